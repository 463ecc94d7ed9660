package history

import "github.com/starford/chainval/internal/validation"

// Store defines the operations the chain service needs from the run history.
// Consumers should depend on this interface rather than the concrete *DB type.
type Store interface {
	RecordRun(run RunRow, issues []validation.Issue) (int64, error)
	ListRuns(path string, limit int) ([]RunRow, error)
	GetRun(id int64) (*RunRow, []validation.Issue, error)
	LatestRuns() (map[string]RunRow, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
