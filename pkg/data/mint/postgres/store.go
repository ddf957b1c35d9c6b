package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/tunegate/tunegate-server/pkg/data/mint"

	pgutil "github.com/tunegate/tunegate-server/pkg/database/postgres"
	"github.com/tunegate/tunegate-server/pkg/database/query"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres backed mint.Store
func New(db *sql.DB) mint.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// CreateTable applies Schema.
func CreateTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}

// Save implements mint.Store.Save
func (s *store) Save(ctx context.Context, record *mint.Record) error {
	m, err := toModel(record)
	if err != nil {
		return err
	}

	err = pgutil.ExecuteRetryable(func() error {
		return m.dbSave(ctx, s.db)
	})
	if err != nil {
		return err
	}

	fromModel(m).CopyTo(record)
	return nil
}

// Get implements mint.Store.Get
func (s *store) Get(ctx context.Context, address string) (*mint.Record, error) {
	m, err := dbGet(ctx, s.db, address)
	if err != nil {
		return nil, err
	}
	return fromModel(m), nil
}

// GetAll implements mint.Store.GetAll
func (s *store) GetAll(ctx context.Context, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*mint.Record, error) {
	models, err := dbGetAll(ctx, s.db, cursor, limit, direction)
	if err != nil {
		return nil, err
	}

	res := make([]*mint.Record, len(models))
	for i, m := range models {
		res[i] = fromModel(m)
	}
	return res, nil
}

// Count implements mint.Store.Count
func (s *store) Count(ctx context.Context) (uint64, error) {
	return dbCount(ctx, s.db)
}
