package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueryMatch(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	q := Query{Assets: []string{"Bitcoin"}, From: t0, To: t0.Add(time.Hour)}

	assert.True(t, q.Match("bitcoin", t0))
	assert.True(t, q.Match("BITCOIN", t0.Add(time.Hour)))
	assert.False(t, q.Match("bitcoin", t0.Add(-time.Second)))
	assert.False(t, q.Match("bitcoin", t0.Add(2*time.Hour)))
	assert.False(t, q.Match("ethereum", t0))
	assert.True(t, Query{}.Match("anything", time.Time{}))
}

func TestQueryUnboundedKeepsAssets(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	q := Query{Assets: []string{"bitcoin"}, From: t0, To: t0.Add(time.Hour)}

	u := q.Unbounded()
	assert.Equal(t, []string{"bitcoin"}, u.Assets)
	assert.True(t, u.From.IsZero())
	assert.True(t, u.To.IsZero())
	assert.True(t, u.Match("bitcoin", t0.Add(48*time.Hour)))
	assert.False(t, u.Match("ethereum", t0))
}
