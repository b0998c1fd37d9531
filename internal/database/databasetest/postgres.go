// Package databasetest starts a disposable Postgres container for integration tests.
package databasetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"postboard/internal/config"
	"postboard/internal/database"
	"postboard/internal/logger"
)

const (
	dbName     = "posts"
	dbUser     = "user"
	dbPassword = "password"
)

// Start runs a Postgres container, applies the schema and returns a connected
// Service. The test is skipped under -short or when Docker is unavailable.
func Start(t *testing.T) database.Service {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	db, err := database.New(ctx, config.DatabaseConfig{
		Host:     host,
		Port:     port.Port(),
		Name:     dbName,
		Username: dbUser,
		Password: dbPassword,
		Schema:   "public",
	}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	return db
}
