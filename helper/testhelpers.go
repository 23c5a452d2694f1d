package helper

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDatabaseName     = "workspacer"
	testDatabaseUser     = "workspacer"
	testDatabasePassword = "workspacer"
)

// MustStartPostgresContainer starts a pgvector enabled postgres container for
// integration tests and returns the teardown function and the mapped port.
func MustStartPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	container, err := postgres.Run(
		ctx,
		"pgvector/pgvector:pg17",
		postgres.WithDatabase(testDatabaseName),
		postgres.WithUsername(testDatabaseUser),
		postgres.WithPassword(testDatabasePassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", err
	}

	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return container.Terminate, "", err
	}

	return container.Terminate, mappedPort.Port(), nil
}

// SetTestDatabaseConfigEnvs points the database configuration at the test container
func SetTestDatabaseConfigEnvs(t *testing.T, port string) {
	t.Setenv("WORKSPACER_DB_HOST", "localhost")
	t.Setenv("WORKSPACER_DB_PORT", port)
	t.Setenv("WORKSPACER_DB_USER", testDatabaseUser)
	t.Setenv("WORKSPACER_DB_PASSWORD", testDatabasePassword)
	t.Setenv("WORKSPACER_DB_NAME", testDatabaseName)
}

// NewTestDatabase connects with a quiet logger for tests
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	logger := slog.New(NewPrettyHandler(os.Stdout, PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: slog.LevelError},
	}))
	return NewDatabase("workspacer-test", config, logger)
}
