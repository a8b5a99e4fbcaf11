package index

// APIIndex defines the interface for registry index operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type APIIndex interface {
	UpsertEntry(r EntryRow) error
	DeleteEntry(provider, service, version string) error
	GetEntry(provider, service, version string) (*EntryRow, error)
	ListProviders() (map[string]int, error)
	ListByProvider(provider string) ([]EntryRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllKeys() (map[string]string, error)
	Stats() (providers, entries, invalid int, err error)
	Close() error
}

// Verify *DB satisfies APIIndex at compile time.
var _ APIIndex = (*DB)(nil)
