package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type knobs struct {
	Window int     `query:"window" default:"6" validate:"gte=1,lte=1000"`
	Mode   string  `query:"mode" default:"text" validate:"oneof=text json"`
	Limit  float64 `query:"limit"`
}

func bind(target string) []ValidationError {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
	return ReadAndValidateRequest(c, &knobs{})
}

func TestReadAndValidateFillsDefaults(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=2", nil), httptest.NewRecorder())
	req := &knobs{}
	require.Nil(t, ReadAndValidateRequest(c, req))
	assert.Equal(t, 6, req.Window)
	assert.Equal(t, "text", req.Mode)
	assert.Equal(t, 2.0, req.Limit)
}

func TestReadAndValidateReportsQueryNames(t *testing.T) {
	errs := bind("/?window=5000")
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_LTE", errs[0].Code)
	assert.Equal(t, "window", errs[0].Field)
	assert.Equal(t, "window must be less than or equal to 1000", errs[0].Message)
	assert.Equal(t, "1000", errs[0].Params["max"])
}

func TestReadAndValidateOneOf(t *testing.T) {
	errs := bind("/?mode=xml")
	require.Len(t, errs, 1)
	assert.Equal(t, "mode must be one of: text, json", errs[0].Message)
	assert.Equal(t, []string{"text", "json"}, errs[0].Params["options"])
}

func TestReadAndValidateBindFailure(t *testing.T) {
	errs := bind("/?window=abc")
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
}

func TestAppErrorResponseStatus(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, AppErrorResponse(c, RateLimitedError("signals")))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"status":429,"message":"Too Many Requests","data":[{"code":"ERR_RATE_LIMITED","message":"too many requests","params":{"endpoint":"signals"}}]}`, rec.Body.String())
}

func TestBlobResponseMarksCache(t *testing.T) {
	b, err := MarshalSuccess(map[string]int{"n": 1})
	require.NoError(t, err)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, BlobResponse(c, b, true))
	assert.Equal(t, "HIT", rec.Header().Get(CacheHeader))
	assert.JSONEq(t, `{"status":200,"message":"OK","data":{"n":1}}`, rec.Body.String())
}
