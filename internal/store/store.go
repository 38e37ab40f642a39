package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/taxroll-cli/internal/model"
)

// ErrRunNotFound is returned when a run id has no archived row.
var ErrRunNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing archived runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	User   string          `json:"user,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store archives completed pipeline runs for later inspection.
type Store interface {
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	DeleteRun(ctx context.Context, runID string) error

	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver. The sqlite driver
// treats dsn as a file path; postgres treats it as a connection string.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
