package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"

	"github.com/tunegate/tunegate-server/pkg/data/mint"
	"github.com/tunegate/tunegate-server/pkg/data/mint/tests"

	postgrestest "github.com/tunegate/tunegate-server/pkg/database/postgres/test"

	_ "github.com/jackc/pgx/v4/stdlib"
)

const tableDestroy = `DROP TABLE ` + tableName

var (
	testStore mint.Store
	teardown  func()
)

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	testPool, err := dockertest.NewPool("")
	if err == nil {
		err = testPool.Client.Ping()
	}
	if err != nil {
		log.WithError(err).Warn("docker unavailable, skipping postgres store tests")
		os.Exit(m.Run())
	}

	db, cleanUpFunc, err := postgrestest.StartPostgresDB(testPool)
	if err != nil {
		log.WithError(err).Error("Error starting postgres image")
		os.Exit(1)
	}
	if err := CreateTable(context.Background(), db); err != nil {
		log.WithError(err).Error("Error creating test tables")
		cleanUpFunc()
		os.Exit(1)
	}

	testStore = New(db)
	teardown = func() {
		if pc := recover(); pc != nil {
			cleanUpFunc()
			panic(pc)
		}

		if err := resetTestTables(db); err != nil {
			log.WithError(err).Error("Error resetting test tables")
			cleanUpFunc()
			os.Exit(1)
		}
	}

	code := m.Run()
	cleanUpFunc()
	os.Exit(code)
}

func TestMintPostgresStore(t *testing.T) {
	if testStore == nil {
		t.Skip("docker unavailable")
	}
	tests.RunTests(t, testStore, teardown)
}

func resetTestTables(db *sql.DB) error {
	if _, err := db.Exec(tableDestroy); err != nil {
		return err
	}
	return CreateTable(context.Background(), db)
}
