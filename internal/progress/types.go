package progress

import "time"

// Status of a knowledge-point entry.
type Status string

const (
	StatusActive  Status = "active"
	StatusDone    Status = "done"
	StatusReview  Status = "review"
	StatusPending Status = "pending"
)

// ValidStatus reports whether s is one of the known statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusDone, StatusReview, StatusPending:
		return true
	}
	return false
}

// Entry is one knowledge point's learning state.
type Entry struct {
	Name         string     `json:"name"`
	Status       Status     `json:"status"`
	Comment      string     `json:"comment"`
	UpdatedAt    time.Time  `json:"updated_at"`
	MasteredAt   *time.Time `json:"mastered_at,omitempty"`
	ReviewCount  int        `json:"review_count"`
	NextReviewAt *time.Time `json:"next_review_at,omitempty"`
}

// File is the persisted progress state for one category, keyed by
// dot-separated progress id (e.g. "ds.graph.mst.kruskal").
type File struct {
	Category    string            `json:"category"`
	LastUpdated time.Time         `json:"last_updated"`
	Entries     map[string]*Entry `json:"entries"`
}

// Stats counts entries per status.
func (f *File) Stats() map[string]int {
	stats := map[string]int{
		"active": 0, "done": 0, "review": 0, "pending": 0, "total": 0,
	}
	for _, e := range f.Entries {
		stats[string(e.Status)]++
		stats["total"]++
	}
	return stats
}
