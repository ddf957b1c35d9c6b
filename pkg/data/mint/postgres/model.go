package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tunegate/tunegate-server/pkg/data/mint"

	pgutil "github.com/tunegate/tunegate-server/pkg/database/postgres"
	q "github.com/tunegate/tunegate-server/pkg/database/query"
)

const (
	tableName = "tunegate__core_mint"

	allColumns = "id, mint, authority, decimals, signature, created_at"
)

// Schema creates the mint table when it doesn't exist yet.
const Schema = `
	CREATE TABLE IF NOT EXISTS ` + tableName + ` (
		id SERIAL NOT NULL PRIMARY KEY,

		mint TEXT UNIQUE NOT NULL,
		authority TEXT NOT NULL,
		decimals INTEGER NOT NULL,
		signature TEXT NOT NULL,

		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);`

type model struct {
	Id        sql.NullInt64 `db:"id"`
	Mint      string        `db:"mint"`
	Authority string        `db:"authority"`
	Decimals  int           `db:"decimals"`
	Signature string        `db:"signature"`
	CreatedAt time.Time     `db:"created_at"`
}

func toModel(obj *mint.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	createdAt := obj.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return &model{
		Mint:      obj.Mint,
		Authority: obj.Authority,
		Decimals:  int(obj.Decimals),
		Signature: obj.Signature,
		CreatedAt: createdAt.UTC(),
	}, nil
}

func fromModel(obj *model) *mint.Record {
	return &mint.Record{
		Id:        uint64(obj.Id.Int64),
		Mint:      obj.Mint,
		Authority: obj.Authority,
		Decimals:  uint8(obj.Decimals),
		Signature: obj.Signature,
		CreatedAt: obj.CreatedAt.UTC(),
	}
}

func (m *model) dbSave(ctx context.Context, db *sqlx.DB) error {
	query := `INSERT INTO ` + tableName + `
		(mint, authority, decimals, signature, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + allColumns

	err := db.QueryRowxContext(
		ctx,
		query,
		m.Mint,
		m.Authority,
		m.Decimals,
		m.Signature,
		m.CreatedAt,
	).StructScan(m)

	return pgutil.CheckUniqueViolation(err, mint.ErrExists)
}

func dbGet(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	res := &model{}

	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE mint = $1
		LIMIT 1`

	err := db.GetContext(ctx, res, query, address)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, mint.ErrNotFound)
	}
	return res, nil
}

func dbGetAll(ctx context.Context, db *sqlx.DB, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	res := []*model{}

	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE (TRUE)`

	query, opts := q.PaginateQuery(query, nil, cursor, limit, direction)

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, mint.ErrNotFound)
	}
	if len(res) == 0 {
		return nil, mint.ErrNotFound
	}
	return res, nil
}

func dbCount(ctx context.Context, db *sqlx.DB) (uint64, error) {
	var res uint64

	err := db.GetContext(ctx, &res, `SELECT COUNT(*) FROM `+tableName)
	if err != nil {
		return 0, err
	}
	return res, nil
}
