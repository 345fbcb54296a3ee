package review

import (
	"testing"
	"time"
)

func TestIntervalGrowth(t *testing.T) {
	s := NewScheduler(7, 1.5, 90)

	base := time.Date(2025, 3, 1, 15, 30, 0, 0, time.UTC)
	cases := []struct {
		count    int
		wantDays int
	}{
		{0, 7},   // 7 * 1.5^0
		{1, 11},  // 7 * 1.5 = 10.5 days from 15:30 lands past midnight
		{2, 16},  // 7 * 2.25 = 15.75
		{10, 90}, // capped
	}
	for _, tc := range cases {
		next := s.NextReview(base, tc.count)
		gotDays := int(next.Sub(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)).Hours() / 24)
		if gotDays != tc.wantDays {
			t.Errorf("count %d: next in %d days, want %d", tc.count, gotDays, tc.wantDays)
		}
		if next.Hour() != 0 || next.Minute() != 0 || next.Second() != 0 {
			t.Errorf("count %d: next = %v, want midnight", tc.count, next)
		}
	}
}

func TestIsDue(t *testing.T) {
	s := NewScheduler(7, 1.5, 90)

	if s.IsDue(nil) {
		t.Error("nil schedule must not be due")
	}
	past := time.Now().Add(-24 * time.Hour)
	if !s.IsDue(&past) {
		t.Error("past date must be due")
	}
	future := time.Now().Add(24 * time.Hour)
	if s.IsDue(&future) {
		t.Error("future date must not be due")
	}
}

func TestOverdueDays(t *testing.T) {
	s := NewScheduler(7, 1.5, 90)

	if d := s.OverdueDays(time.Now().Add(48 * time.Hour)); d != 0 {
		t.Errorf("future overdue = %d, want 0", d)
	}
	if d := s.OverdueDays(time.Now().Add(-49 * time.Hour)); d != 2 {
		t.Errorf("overdue = %d, want 2", d)
	}
}

func TestFormatInterval(t *testing.T) {
	s := NewScheduler(7, 1.5, 90)
	if got := s.FormatInterval(0); got != "7d" {
		t.Errorf("FormatInterval(0) = %q", got)
	}
	if got := s.FormatInterval(20); got != "90d" {
		t.Errorf("FormatInterval(20) = %q, want capped 90d", got)
	}
}
