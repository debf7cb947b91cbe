//go:build integration

package postgres_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	testpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/turathna/marketplace/internal/database"
	"github.com/turathna/marketplace/internal/idempotency/postgres"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testpostgres.Run(ctx,
		"postgres:16-alpine",
		testpostgres.WithDatabase("test"),
		testpostgres.WithUsername("test"),
		testpostgres.WithPassword("test"),
		testpostgres.BasicWaitStrategies(),
		testpostgres.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	projectRoot := findProjectRoot(t)
	migrationsPath := filepath.Join(projectRoot, "migrations")

	if err := database.RunMigrations(connStr, migrationsPath); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := database.NewPool(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
	})

	return pool
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

func TestStoreMarkAndProcessed(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewStore(pool)
	ctx := context.Background()

	seen, err := store.Processed(ctx, "evt_fresh")
	if err != nil {
		t.Fatalf("failed to check event: %v", err)
	}
	if seen {
		t.Error("expected fresh event to be unprocessed")
	}

	if err := store.Mark(ctx, "evt_fresh", "ord_1"); err != nil {
		t.Fatalf("failed to mark event: %v", err)
	}

	seen, err = store.Processed(ctx, "evt_fresh")
	if err != nil {
		t.Fatalf("failed to check event: %v", err)
	}
	if !seen {
		t.Error("expected marked event to be processed")
	}
}

func TestStoreMark_Conflict(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewStore(pool)
	ctx := context.Background()

	if err := store.Mark(ctx, "evt_dup", "ord_1"); err != nil {
		t.Fatalf("failed to mark event: %v", err)
	}

	if err := store.Mark(ctx, "evt_dup", "ord_2"); err != nil {
		t.Fatalf("expected re-marking to be a no-op, got: %v", err)
	}

	seen, err := store.Processed(ctx, "evt_dup")
	if err != nil {
		t.Fatalf("failed to check event: %v", err)
	}
	if !seen {
		t.Error("expected event to remain processed")
	}
}
