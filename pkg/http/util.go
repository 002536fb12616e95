package http

import (
	"time"

	xutil "SignalBot/pkg/util"
)

// ParseTimeParam parses an optional time query parameter. Empty yields the
// zero time; anything unparsable is a 400.
func ParseTimeParam(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, ok := xutil.ParseTime(s)
	if !ok {
		return time.Time{}, InvalidParamError("ERR_INVALID_TIME", name, name+" must be RFC3339, a date or a unix timestamp").WithParam("value", s)
	}
	return t, nil
}
