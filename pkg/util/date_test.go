package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeCSVLayouts(t *testing.T) {
	want := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	for _, s := range []string{
		"2024-05-01 13:00:00",
		"2024-05-01 13:00:00+00:00",
		"2024-05-01 15:00:00+02:00",
		"2024-05-01T13:00:00",
		"2024-05-01T13:00:00.000",
	} {
		got, ok := ParseTime(s)
		if !ok {
			t.Fatalf("%q: expected ok", s)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: got %v", s, got)
		}
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}

	got, ok = ParseTime(strconv.FormatInt(ts*1000, 10))
	if !ok || got.Unix() != ts {
		t.Fatalf("unexpected unix ms %v", got)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
	if _, ok := ParseTime("yesterday"); ok {
		t.Fatalf("expected failure")
	}
}

func TestFormatTimeRoundTrip(t *testing.T) {
	in := time.Date(2024, 5, 1, 13, 0, 0, 500, time.FixedZone("X", 3600))
	got, ok := ParseTime(FormatTime(in))
	if !ok || !got.Equal(in) {
		t.Fatalf("round trip lost %v -> %v", in, got)
	}
}
