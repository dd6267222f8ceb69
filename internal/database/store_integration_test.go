//go:build integration

package database

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/JonMunkholm/qrtrack/internal/storetest"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var testPool *pgxpool.Pool

// TestMain starts one Postgres container for the package.
func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("qrtrack"),
		tcpostgres.WithUsername("qrtrack"),
		tcpostgres.WithPassword("qrtrack"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("postgres connection string: %v", err)
	}
	testPool, err = Connect(ctx, url, PoolOptions{MaxConns: 20})
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	if err := New(testPool).Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	code := m.Run()

	testPool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

// freshStore empties every table and returns a store over the shared pool.
func freshStore(t *testing.T) core.Store {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `
		TRUNCATE attendance, checkin_sessions, participant_records, datasets, wizard_sessions, audit_log`)
	require.NoError(t, err)
	return New(testPool)
}

func TestStoreContract(t *testing.T) {
	suite.Run(t, &storetest.Suite{NewStore: freshStore})
}

func TestMigrateIsIdempotent(t *testing.T) {
	require.NoError(t, New(testPool).Migrate(context.Background()))
}
