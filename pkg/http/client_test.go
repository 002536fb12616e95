package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSONMergesQueryAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "a", r.URL.Query().Get("fixed"))
		assert.Equal(t, "7", r.URL.Query().Get("days"))
		assert.Equal(t, "k", r.Header.Get("X-Key"))
		assert.Equal(t, "signalbot", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"n":3}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(WithUserAgent("signalbot"))
	var out struct{ N int }
	err := c.GetJSON(context.Background(), Request{
		URL:     srv.URL + "/x?fixed=a",
		Query:   url.Values{"days": {"7"}},
		Headers: map[string]string{"X-Key": "k"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, out.N)
}

func TestGetJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("  coin not found \n"))
	}))
	t.Cleanup(srv.Close)

	err := NewClient().GetJSON(context.Background(), Request{URL: srv.URL}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "coin not found", se.Body)
	assert.False(t, se.Retryable())
}

func TestGetJSONDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	t.Cleanup(srv.Close)

	var out map[string]any
	err := NewClient().GetJSON(context.Background(), Request{URL: srv.URL}, &out)
	assert.ErrorContains(t, err, "decode json")
}
