package mint

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tunegate/tunegate-server/pkg/database/query"
)

var (
	ErrNotFound = errors.New("mint record not found")
	ErrExists   = errors.New("mint record already exists")
)

// Store is the ledger of mints created by the backend authority.
type Store interface {
	// Save creates a new record. Returns ErrExists if the mint is already
	// recorded.
	Save(ctx context.Context, record *Record) error

	// Get finds the record for a mint address.
	//
	// Returns ErrNotFound if no record exists.
	Get(ctx context.Context, mint string) (*Record, error)

	// GetAll returns a page of records ordered by id.
	//
	// Returns ErrNotFound if the page is empty.
	GetAll(ctx context.Context, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)

	// Count returns the number of recorded mints.
	Count(ctx context.Context) (uint64, error)
}
