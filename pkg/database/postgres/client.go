package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

const (
	// DriverName is the New Relic instrumented pgx driver.
	DriverName = "nrpgx"

	defaultMaxOpenConnections = 10
	defaultMaxIdleConnections = 5
	defaultPingTimeout        = 5 * time.Second
)

type Config struct {
	DSN                string
	MaxOpenConnections int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// Open returns a connection pool for the configured DSN, verified with a
// ping. Queries are traced as New Relic datastore segments when the context
// carries a transaction.
func Open(ctx context.Context, config Config) (*sql.DB, error) {
	if len(config.DSN) == 0 {
		return nil, errors.New("postgres dsn is required")
	}
	if config.MaxOpenConnections <= 0 {
		config.MaxOpenConnections = defaultMaxOpenConnections
	}
	if config.MaxIdleConnections <= 0 {
		config.MaxIdleConnections = defaultMaxIdleConnections
	}

	db, err := sql.Open(DriverName, config.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection pool")
	}

	db.SetMaxOpenConns(config.MaxOpenConnections)
	db.SetMaxIdleConns(config.MaxIdleConnections)
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping postgres")
	}

	return db, nil
}
