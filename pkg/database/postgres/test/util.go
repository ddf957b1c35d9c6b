// Package test runs a disposable postgres container for store tests.
package test

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/tunegate/tunegate-server/pkg/retry"
	"github.com/tunegate/tunegate-server/pkg/retry/backoff"
)

const (
	image    = "postgres"
	imageTag = "15-alpine"

	// The container is killed after this long even if the tests never
	// clean up.
	expiry = 2 * time.Minute

	user     = "tunegate"
	password = "tunegate"
	dbname   = "tunegate_test"
)

// StartPostgresDB runs a postgres container and returns a connection to it
// once it accepts queries. closeFunc closes the connection and removes the
// container.
func StartPostgresDB(pool *dockertest.Pool) (db *sql.DB, closeFunc func(), err error) {
	log := logrus.StandardLogger().WithField("type", "postgres/test")

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: image,
		Tag:        imageTag,
		Env: []string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbname,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, func() {}, errors.Wrap(err, "failed to start postgres container")
	}

	// Expire never fails.
	_ = resource.Expire(uint(expiry.Seconds()))

	closeFunc = func() {
		if db != nil {
			db.Close()
		}
		if err := pool.Purge(resource); err != nil {
			log.WithError(err).Warn("failed to remove postgres container")
		}
	}

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=disable",
		user, password, resource.GetHostPort("5432/tcp"), dbname,
	)

	_, err = retry.Retry(
		func() error {
			if db == nil {
				if db, err = sql.Open("pgx", dsn); err != nil {
					return err
				}
			}
			return db.Ping()
		},
		retry.Limit(60),
		retry.Backoff(backoff.Constant(500*time.Millisecond), time.Second),
	)
	if err != nil {
		closeFunc()
		return nil, func() {}, errors.Wrap(err, "postgres container never became available")
	}

	return db, closeFunc, nil
}
