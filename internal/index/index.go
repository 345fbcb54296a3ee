package index

// MaterialIndex defines the interface for material indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type MaterialIndex interface {
	Upsert(m MaterialRow, body string) error
	Delete(path string) error
	AllChecksums() (map[string]string, error)
	Search(query, category string, limit int) ([]SearchResult, error)
	Count() (int, error)
	Close() error
}

// Verify *DB satisfies MaterialIndex at compile time.
var _ MaterialIndex = (*DB)(nil)
