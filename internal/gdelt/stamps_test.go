package gdelt

import (
	"testing"
	"time"
)

func TestMinuteStampsInclusive(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 17, 0, time.UTC)
	end := time.Date(2026, 3, 1, 10, 4, 59, 0, time.UTC)

	var got []Stamp
	for s := range MinuteStamps(start, end) {
		got = append(got, s)
	}

	want := []Stamp{
		"20260301100000",
		"20260301100100",
		"20260301100200",
		"20260301100300",
		"20260301100400",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d stamps, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stamp %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestMinuteStampsCount(t *testing.T) {
	start := time.Date(2026, 1, 5, 23, 58, 30, 0, time.UTC)
	end := start.Add(7 * time.Minute)

	count := 0
	var prev Stamp
	for s := range MinuteStamps(start, end) {
		if count > 0 && s <= prev {
			t.Errorf("stamps not increasing: %s after %s", s, prev)
		}
		prev = s
		count++
	}
	if count != 8 {
		t.Errorf("expected 8 stamps (minutes-between + 1), got %d", count)
	}
}

func TestMinuteStampsSameMinute(t *testing.T) {
	at := time.Date(2026, 6, 1, 12, 30, 45, 0, time.UTC)

	var got []Stamp
	for s := range MinuteStamps(at, at) {
		got = append(got, s)
	}
	if len(got) != 1 || got[0] != "20260601123000" {
		t.Errorf("expected single stamp 20260601123000, got %v", got)
	}
}

func TestMinuteStampsEmptyRange(t *testing.T) {
	end := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	start := end.Add(5 * time.Minute)

	for s := range MinuteStamps(start, end) {
		t.Errorf("expected no stamps, got %s", s)
	}
}

func TestMinuteStampsNonUTCInput(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, loc) // 10:00 UTC

	for s := range MinuteStamps(start, start) {
		if s != "20260301100000" {
			t.Errorf("expected UTC-normalized stamp, got %s", s)
		}
	}
}

func TestStampRoundTrip(t *testing.T) {
	at := time.Date(2026, 8, 31, 9, 41, 0, 0, time.UTC)
	s := StampFor(at)
	back, err := s.Time()
	if err != nil {
		t.Fatalf("parsing stamp: %v", err)
	}
	if !back.Equal(at) {
		t.Errorf("round trip mismatch: %v != %v", back, at)
	}
}
