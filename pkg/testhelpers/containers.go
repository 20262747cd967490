// Package testhelpers provides a shared Postgres container for integration
// tests. Tests that need it are skipped in short mode.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/mindcase/mindcase-core/pkg/database"
)

// postgresImage is the stock image used for shard integration tests.
const postgresImage = "postgres:16-alpine"

// ShardDB holds a shared test shard with migrations applied.
type ShardDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedShard     *ShardDB
	sharedShardOnce sync.Once
	sharedShardErr  error
)

// GetShardDB returns a shared migrated Postgres shard for integration
// tests. The container is created once and reused across the test run.
func GetShardDB(t *testing.T) *ShardDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedShardOnce.Do(func() {
		sharedShard, sharedShardErr = setupShard()
	})
	if sharedShardErr != nil {
		t.Fatalf("Failed to set up test shard: %v", sharedShardErr)
	}
	return sharedShard
}

func setupShard() (*ShardDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "mindcase_test",
			"POSTGRES_USER":     "mindcase",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://mindcase:test_password@%s:%s/mindcase_test?sslmode=disable",
		host, port.Port())

	migrationsDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("open migrations connection: %w", err)
	}
	defer migrationsDB.Close()

	if err := database.RunMigrations(migrationsDB, migrationsPath(), zap.NewNop()); err != nil {
		return nil, err
	}

	db, err := database.NewConnection(ctx, &database.Config{Region: "test", URL: connStr})
	if err != nil {
		return nil, err
	}

	return &ShardDB{Container: container, DB: db, ConnStr: connStr}, nil
}

// migrationsPath locates the repo's migrations directory relative to this
// source file, so integration tests work from any package directory.
func migrationsPath() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "migrations")
}
