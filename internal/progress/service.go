// Package progress tracks per-category learning progress in JSON files,
// with spaced-repetition scheduling for mastered entries.
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/starford/studykb/internal/apperr"
	"github.com/starford/studykb/internal/atomicfile"
	"github.com/starford/studykb/internal/locker"
	"github.com/starford/studykb/internal/review"
)

// Since filters for Get.
const (
	SinceAll = "all"
	Since7d  = "7d"
	Since30d = "30d"
	Since90d = "90d"
)

// Service manages progress files under one directory, one JSON file per
// category. Writes to the same category are serialized through a keyed lock
// so concurrent batch updates cannot clobber each other.
type Service struct {
	path      string
	scheduler *review.Scheduler
	locks     *locker.Keyed
}

// NewService creates a progress service storing files under path.
func NewService(path string, scheduler *review.Scheduler) *Service {
	return &Service{
		path:      path,
		scheduler: scheduler,
		locks:     locker.New(),
	}
}

// Get returns the progress file for a category with optional status and
// recency filters applied; limit bounds entries per status group (-1 for
// all). Entries whose review date has arrived are transitioned done->review
// and persisted before filtering.
func (s *Service) Get(category string, statusFilter []Status, since string, limit int) (*File, error) {
	unlock := s.locks.Lock(category)
	defer unlock()

	file, err := s.load(category)
	if err != nil {
		return nil, err
	}

	if s.triggerDueReviews(file) {
		if err := s.save(category, file); err != nil {
			return nil, err
		}
	}

	return &File{
		Category:    category,
		LastUpdated: file.LastUpdated,
		Entries:     filterEntries(file.Entries, statusFilter, since, limit),
	}, nil
}

// GetFull returns the unfiltered progress file for a category.
func (s *Service) GetFull(category string) (*File, error) {
	return s.load(category)
}

// Update creates or updates an entry. name is required for new entries.
// Returns the stored entry, whether it was newly created, and the previous
// status (empty for new entries).
func (s *Service) Update(category, progressID string, status Status, name, comment string) (*Entry, bool, Status, error) {
	if !ValidStatus(status) {
		return nil, false, "", fmt.Errorf("progress: invalid status %q", status)
	}

	unlock := s.locks.Lock(category)
	defer unlock()

	file, err := s.load(category)
	if err != nil {
		return nil, false, "", err
	}

	now := time.Now()
	existing, ok := file.Entries[progressID]
	var entry *Entry
	var oldStatus Status

	if !ok {
		if name == "" {
			return nil, false, "", fmt.Errorf("progress: name is required for new entry %s", progressID)
		}
		entry = &Entry{
			Name:      name,
			Status:    status,
			Comment:   comment,
			UpdatedAt: now,
		}
		if status == StatusDone {
			entry.MasteredAt = &now
			next := s.scheduler.NextReview(now, 0)
			entry.NextReviewAt = &next
		}
	} else {
		oldStatus = existing.Status
		if name == "" {
			name = existing.Name
		}
		entry = &Entry{
			Name:         name,
			Status:       status,
			Comment:      comment,
			UpdatedAt:    now,
			MasteredAt:   existing.MasteredAt,
			ReviewCount:  existing.ReviewCount,
			NextReviewAt: nil,
		}
		if status == StatusDone {
			if oldStatus != StatusDone {
				entry.MasteredAt = &now
			}
			// A review -> done transition counts as a completed review.
			if oldStatus == StatusReview {
				entry.ReviewCount = existing.ReviewCount + 1
			}
			next := s.scheduler.NextReview(now, entry.ReviewCount)
			entry.NextReviewAt = &next
		}
	}

	file.Entries[progressID] = entry
	file.LastUpdated = now

	if err := s.save(category, file); err != nil {
		return nil, false, "", err
	}
	return entry, !ok, oldStatus, nil
}

// Delete removes an entry, returning it. apperr.ErrNotFound when absent.
func (s *Service) Delete(category, progressID string) (*Entry, error) {
	unlock := s.locks.Lock(category)
	defer unlock()

	file, err := s.load(category)
	if err != nil {
		return nil, err
	}
	entry, ok := file.Entries[progressID]
	if !ok {
		return nil, fmt.Errorf("progress: entry %s: %w", progressID, apperr.ErrNotFound)
	}
	delete(file.Entries, progressID)
	file.LastUpdated = time.Now()

	if err := s.save(category, file); err != nil {
		return nil, err
	}
	return entry, nil
}

// HasCategory reports whether a progress file exists for the category.
func (s *Service) HasCategory(category string) bool {
	_, err := os.Stat(s.filePath(category))
	return err == nil
}

// triggerDueReviews flips done entries whose review date has arrived to the
// review status. Returns true when anything changed.
func (s *Service) triggerDueReviews(file *File) bool {
	now := time.Now()
	updated := false
	for _, e := range file.Entries {
		if e.Status == StatusDone && s.scheduler.IsDue(e.NextReviewAt) {
			e.Status = StatusReview
			e.UpdatedAt = now
			updated = true
		}
	}
	return updated
}

func filterEntries(entries map[string]*Entry, statusFilter []Status, since string, limit int) map[string]*Entry {
	var cutoff time.Time
	switch since {
	case Since7d:
		cutoff = time.Now().AddDate(0, 0, -7)
	case Since30d:
		cutoff = time.Now().AddDate(0, 0, -30)
	case Since90d:
		cutoff = time.Now().AddDate(0, 0, -90)
	}

	wanted := func(st Status) bool {
		if len(statusFilter) == 0 {
			return true
		}
		for _, f := range statusFilter {
			if f == st {
				return true
			}
		}
		return false
	}

	type keyed struct {
		id    string
		entry *Entry
	}
	byStatus := map[Status][]keyed{}
	for id, e := range entries {
		if !cutoff.IsZero() && e.UpdatedAt.Before(cutoff) {
			continue
		}
		if !wanted(e.Status) {
			continue
		}
		byStatus[e.Status] = append(byStatus[e.Status], keyed{id, e})
	}

	result := make(map[string]*Entry)
	for _, group := range byStatus {
		sort.Slice(group, func(i, j int) bool {
			return group[i].entry.UpdatedAt.After(group[j].entry.UpdatedAt)
		})
		if limit > 0 && len(group) > limit {
			group = group[:limit]
		}
		for _, k := range group {
			result[k.id] = k.entry
		}
	}
	return result
}

func (s *Service) filePath(category string) string {
	return filepath.Join(s.path, category+".json")
}

func (s *Service) load(category string) (*File, error) {
	data, err := os.ReadFile(s.filePath(category))
	if err != nil {
		if os.IsNotExist(err) {
			return &File{
				Category:    category,
				LastUpdated: time.Now(),
				Entries:     map[string]*Entry{},
			}, nil
		}
		return nil, fmt.Errorf("progress: read %s: %w", category, err)
	}
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("progress: parse %s: %w", category, err)
	}
	if file.Entries == nil {
		file.Entries = map[string]*Entry{}
	}
	return &file, nil
}

func (s *Service) save(category string, file *File) error {
	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return fmt.Errorf("progress: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("progress: encode %s: %w", category, err)
	}
	if err := atomicfile.WriteFile(s.filePath(category), data); err != nil {
		return fmt.Errorf("progress: write %s: %w", category, err)
	}
	return nil
}
