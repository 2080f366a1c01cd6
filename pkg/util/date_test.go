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
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDate(t *testing.T) {
	got, ok := ParseTime("2024-02-29")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
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
}

func TestStripZoneKeepsWallClock(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	in := time.Date(2024, 1, 2, 23, 30, 0, 0, loc)
	got := StripZone(in)
	if got.Location() != time.UTC || got.Hour() != 23 || got.Day() != 2 {
		t.Fatalf("unexpected %v", got)
	}
}

func TestDayAndAddDays(t *testing.T) {
	d := Day(time.Date(2024, 12, 31, 18, 0, 0, 0, time.UTC))
	if FormatDay(d) != "2024-12-31" || d.Hour() != 0 {
		t.Fatalf("unexpected day %v", d)
	}
	if FormatDay(AddDays(d, 1)) != "2025-01-01" {
		t.Fatalf("unexpected next day")
	}
}

func TestFromUnixMilli(t *testing.T) {
	got := FromUnixMilli(1704067200000)
	if !got.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected %v", got)
	}
}
