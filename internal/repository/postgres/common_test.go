package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/canopylabs/canopy/internal/config"
	"github.com/canopylabs/canopy/internal/pkg/database"
)

// getTestDB returns a database connection for integration tests.
// Returns nil if the database is not available (skips tests).
func getTestDB(t *testing.T) *database.PostgresDB {
	// Check if we're running integration tests
	if os.Getenv("POSTGRES_TEST_HOST") == "" {
		t.Skip("Skipping integration test: POSTGRES_TEST_HOST not set")
		return nil
	}

	cfg := testPostgresConfig()

	db, err := database.NewPostgres(context.Background(), cfg)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to PostgreSQL: %v", err)
		return nil
	}

	return db
}

// getTestSQLX returns a sqlx handle for repositories that scan arrays.
func getTestSQLX(t *testing.T) *sqlx.DB {
	if os.Getenv("POSTGRES_TEST_HOST") == "" {
		t.Skip("Skipping integration test: POSTGRES_TEST_HOST not set")
		return nil
	}

	db, err := database.NewSQLX(testPostgresConfig())
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to PostgreSQL: %v", err)
		return nil
	}
	return db
}

func testPostgresConfig() config.PostgresConfig {
	cfg := config.PostgresConfig{
		Host:     os.Getenv("POSTGRES_TEST_HOST"),
		Port:     5432,
		User:     os.Getenv("POSTGRES_TEST_USER"),
		Password: os.Getenv("POSTGRES_TEST_PASS"),
		Database: os.Getenv("POSTGRES_TEST_DB"),
		SSLMode:  "disable",
		MaxConns: 5,
		MinConns: 1,
	}
	if cfg.Database == "" {
		cfg.Database = "test_canopy"
	}
	if cfg.User == "" {
		cfg.User = "postgres"
	}
	return cfg
}

// cleanupSites removes test sites and their shards from the database
func cleanupSites(t *testing.T, db *database.PostgresDB, ids ...uuid.UUID) {
	ctx := context.Background()
	for _, id := range ids {
		_, _ = db.Pool.Exec(ctx, "DELETE FROM shards WHERE site_id = $1", id)
		_, _ = db.Pool.Exec(ctx, "DELETE FROM sites WHERE id = $1", id)
	}
}

// cleanupJobs removes test jobs and their shards from the database
func cleanupJobs(t *testing.T, db *database.PostgresDB, ids ...uuid.UUID) {
	ctx := context.Background()
	for _, id := range ids {
		_, _ = db.Pool.Exec(ctx, "DELETE FROM shards WHERE job_id = $1", id)
		_, _ = db.Pool.Exec(ctx, "DELETE FROM jobs WHERE id = $1", id)
	}
}

// cleanupScenes removes test scenes from the database
func cleanupScenes(t *testing.T, db *database.PostgresDB, ids ...string) {
	ctx := context.Background()
	for _, id := range ids {
		_, _ = db.Pool.Exec(ctx, "DELETE FROM scenes WHERE id = $1", id)
	}
}

// cleanupNetworks removes one bank's networks from the database
func cleanupNetworks(t *testing.T, db *sqlx.DB, sensor, variable string) {
	_, _ = db.Exec("DELETE FROM networks WHERE sensor = $1 AND variable = $2", sensor, variable)
}
