package timeutil

import (
	"testing"
	"time"
)

func TestParseRFC3339(t *testing.T) {
	cases := []string{
		"2026-02-01T01:23:45Z",
		"2026-02-01T01:23:45.123Z",
		"2026-02-01T01:23:45.123456789Z",
		"2026-02-01T01:23:45-08:00",
	}
	for _, value := range cases {
		if _, err := ParseRFC3339(value); err != nil {
			t.Fatalf("expected parse to succeed for %s: %v", value, err)
		}
	}

	for _, value := range []string{"", "yesterday", "2026-02-01"} {
		if _, err := ParseRFC3339(value); err == nil {
			t.Fatalf("expected parse to fail for %q", value)
		}
	}
}

func TestFormatRFC3339RoundTrip(t *testing.T) {
	loc := time.FixedZone("PST", -8*3600)
	in := time.Date(2026, 10, 19, 9, 30, 15, 123456789, loc)

	out, err := ParseRFC3339(FormatRFC3339(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !out.Equal(in) {
		t.Fatalf("expected %s, got %s", in, out)
	}
	if out.Location() != time.UTC {
		t.Fatalf("expected UTC, got %s", out.Location())
	}
}

func TestSettled(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		release time.Time
		want    bool
	}{
		{name: "ten days ago", release: now.Add(-10 * 24 * time.Hour), want: true},
		{name: "two days ago", release: now.Add(-2 * 24 * time.Hour), want: false},
		{name: "exactly at window", release: now.Add(-DefaultWindow), want: false},
		{name: "just past window", release: now.Add(-DefaultWindow - time.Second), want: true},
		{name: "future", release: now.Add(time.Hour), want: false},
	}

	for _, tc := range cases {
		if got := Settled(tc.release, now, DefaultWindow); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestDue(t *testing.T) {
	last := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	if Due(last, last.Add(time.Hour), DefaultWindow) {
		t.Fatalf("expected check one hour later to not be due")
	}
	if !Due(last, last.Add(DefaultWindow), DefaultWindow) {
		t.Fatalf("expected check exactly one interval later to be due")
	}
	if !Due(last, last.Add(30*24*time.Hour), DefaultWindow) {
		t.Fatalf("expected check a month later to be due")
	}
	if got := NextDue(last, DefaultWindow); !got.Equal(time.Date(2026, 10, 8, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next due %s", got)
	}
}
