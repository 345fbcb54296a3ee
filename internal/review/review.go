// Package review implements the spaced-repetition schedule used for
// learning-progress entries: intervals grow geometrically with each
// completed review (Ebbinghaus forgetting curve), capped at a maximum.
package review

import (
	"fmt"
	"math"
	"time"
)

// Scheduler computes review dates from a base interval, growth multiplier,
// and interval cap (all in days).
type Scheduler struct {
	InitialIntervalDays float64
	Multiplier          float64
	MaxIntervalDays     float64
}

// NewScheduler creates a Scheduler with the given parameters.
func NewScheduler(initialDays, multiplier, maxDays float64) *Scheduler {
	return &Scheduler{
		InitialIntervalDays: initialDays,
		Multiplier:          multiplier,
		MaxIntervalDays:     maxDays,
	}
}

func (s *Scheduler) intervalDays(reviewCount int) float64 {
	interval := s.InitialIntervalDays * math.Pow(s.Multiplier, float64(reviewCount))
	return math.Min(interval, s.MaxIntervalDays)
}

// NextReview returns the date of the next review after reviewCount
// successful reviews, truncated to midnight.
func (s *Scheduler) NextReview(from time.Time, reviewCount int) time.Time {
	next := from.Add(time.Duration(s.intervalDays(reviewCount) * 24 * float64(time.Hour)))
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, next.Location())
}

// IsDue reports whether a scheduled review is due. A nil schedule is never due.
func (s *Scheduler) IsDue(nextReviewAt *time.Time) bool {
	return nextReviewAt != nil && !time.Now().Before(*nextReviewAt)
}

// OverdueDays returns how many whole days past due a review is (0 if not due).
func (s *Scheduler) OverdueDays(nextReviewAt time.Time) int {
	now := time.Now()
	if now.Before(nextReviewAt) {
		return 0
	}
	return int(now.Sub(nextReviewAt).Hours() / 24)
}

// FormatInterval renders the interval for display, e.g. "7d".
func (s *Scheduler) FormatInterval(reviewCount int) string {
	return fmt.Sprintf("%dd", int(s.intervalDays(reviewCount)))
}
