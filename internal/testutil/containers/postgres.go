// Package containers provides testcontainers-based fixtures for tests that
// need a real Postgres server. One container is started per test binary and
// reused by every test in it.
package containers

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresDSNEnv points tests at an existing server instead of a container.
const PostgresDSNEnv = "PORTAL_TEST_DATABASE_URL"

var (
	postgresOnce sync.Once
	postgresDSN  string
	postgresErr  error
)

// PostgresDSN returns the DSN of an empty Postgres database. It skips the test
// under -short or when no container runtime is reachable.
func PostgresDSN(t *testing.T) string {
	t.Helper()
	if dsn := strings.TrimSpace(os.Getenv(PostgresDSNEnv)); dsn != "" {
		return dsn
	}
	if testing.Short() {
		t.Skip("postgres container skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	postgresOnce.Do(func() {
		postgresDSN, postgresErr = startPostgres(context.Background())
	})
	if postgresErr != nil {
		t.Fatalf("failed to start postgres container: %v", postgresErr)
	}
	return postgresDSN
}

// startPostgres runs the container. Ryuk removes it when the test process exits.
func startPostgres(ctx context.Context) (string, error) {
	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("portal_test"),
		postgres.WithUsername("portal"),
		postgres.WithPassword("portal_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return "", err
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", err
	}
	return dsn, nil
}
