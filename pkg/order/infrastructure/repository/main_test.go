package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"orderservice/pkg/order/infrastructure/migrations"
)

const mysqlImage = "mysql:8.0"

var (
	startOnce sync.Once
	container testcontainers.Container
	testDB    *sqlx.DB
	startErr  error
)

func TestMain(m *testing.M) {
	code := m.Run()
	if testDB != nil {
		_ = testDB.Close()
	}
	if container != nil {
		_ = container.Terminate(context.Background())
	}
	os.Exit(code)
}

// newTestDatabase returns a Database backed by a MySQL container with the
// schema migrated and every table emptied. The container is shared by all
// tests of the package.
func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	if testing.Short() {
		t.Skip("needs a MySQL container")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	startOnce.Do(func() {
		testDB, startErr = startMySQL(context.Background())
	})
	require.NoError(t, startErr)

	for _, table := range []string{"order_item", "customer_order", "outbox", "product", "customer"} {
		_, err := testDB.Exec("DELETE FROM " + table)
		require.NoError(t, err)
	}

	logger, _ := test.NewNullLogger()
	return NewDatabase(testDB, logger)
}

func startMySQL(ctx context.Context) (*sqlx.DB, error) {
	var err error
	container, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        mysqlImage,
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "secret",
				"MYSQL_DATABASE":      "order",
			},
			WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to start MySQL container")
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	port, err := container.MappedPort(ctx, "3306/tcp")
	if err != nil {
		return nil, errors.WithStack(err)
	}

	db, err := sqlx.Open(migrations.DriverMySQL, fmt.Sprintf("root:secret@tcp(%s:%s)/order?parseTime=true", host, port.Port()))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = time.Minute
	if err := backoff.Retry(func() error { return db.PingContext(ctx) }, backoff.WithContext(policy, ctx)); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "MySQL container is not ready")
	}

	logger, _ := test.NewNullLogger()
	if err := migrations.Up(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
