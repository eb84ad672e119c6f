package postgres_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/chartcrafter/chartcrafter/blobstore"
	"github.com/chartcrafter/chartcrafter/database/postgres"
)

var (
	testDSN     string
	testDSNErr  error
	testDSNOnce sync.Once
)

// getSharedTestDSN starts one postgres container for the whole package and
// returns its connection string. The container is reaped by testcontainers'
// ryuk sidecar when the test binary exits.
func getSharedTestDSN(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres tests in short mode")
	}

	testDSNOnce.Do(func() {
		ctx := context.Background()

		pgContainer, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("testdb"),
			pgcontainer.WithUsername("testuser"),
			pgcontainer.WithPassword("testpass"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			testDSNErr = fmt.Errorf("start postgres container: %w", err)
			return
		}

		testDSN, testDSNErr = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if testDSNErr != nil {
			_ = testcontainers.TerminateContainer(pgContainer)
		}
	})

	require.NoError(t, testDSNErr)
	return testDSN
}

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

// setupTestDB connects with a unique table name and drops it on cleanup.
func setupTestDB(t *testing.T) *postgres.DB {
	t.Helper()
	ctx := context.Background()

	tables := blobstore.Tables{MetaData: fmt.Sprintf("metadata_%s", getRandomString(t))}

	db, err := postgres.Connect(ctx, getSharedTestDSN(t), tables)
	require.NoError(t, err, "failed to connect")

	t.Cleanup(func() {
		_ = db.DropTables(ctx)
		_ = db.Close()
	})

	return db
}

func setupTestRepo(t *testing.T) blobstore.MetaDataRepo {
	t.Helper()

	db := setupTestDB(t)
	require.NoError(t, db.Migrate(context.Background()), "failed to migrate")

	return db.GetRepo()
}
