package e2e_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// A single postgres container backs every postgres-mode server in the run.
// TestMain terminates it.
var postgres struct {
	once      sync.Once
	container *pgcontainer.PostgresContainer
	dsn       string
	err       error
}

// sharedPostgresDSN starts the container on first use and returns its DSN.
func sharedPostgresDSN(t *testing.T) string {
	t.Helper()

	postgres.once.Do(func() {
		ctx := context.Background()

		c, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("chartcrafter"),
			pgcontainer.WithUsername("chartcrafter"),
			pgcontainer.WithPassword("chartcrafter"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			postgres.err = fmt.Errorf("start postgres container: %w", err)
			return
		}
		postgres.container = c

		postgres.dsn, postgres.err = c.ConnectionString(ctx, "sslmode=disable")
		if postgres.err != nil {
			postgres.err = fmt.Errorf("postgres connection string: %w", postgres.err)
		}
	})

	if postgres.err != nil {
		t.Fatal(postgres.err)
	}
	return postgres.dsn
}

// stopPostgres terminates the shared container if one was started.
func stopPostgres() {
	if postgres.container == nil {
		return
	}
	if err := testcontainers.TerminateContainer(postgres.container); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
	}
}
