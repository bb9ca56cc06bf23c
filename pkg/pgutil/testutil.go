package pgutil

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"

	"github.com/chainsafe/ledger-ingest/pkg/config"
)

const (
	testImage    = "postgres:15-alpine"
	testUser     = "ingest_test"
	testPassword = "ingest_test"
	testDatabase = "ledger_ingest_test"

	connectAttempts = 10
)

// RequireDocker skips the test when no docker daemon socket is reachable.
// A DOCKER_HOST override is trusted as is.
func RequireDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("DOCKER_HOST") != "" {
		return
	}
	for _, sock := range []string{
		"/var/run/docker.sock",
		filepath.Join(os.Getenv("HOME"), ".docker/run/docker.sock"),
	} {
		conn, err := (&net.Dialer{Timeout: time.Second}).Dial("unix", sock)
		if err == nil {
			_ = conn.Close()
			return
		}
	}
	t.Skip("docker daemon socket is not accessible; skipping testcontainer-backed tests")
}

// SetupTestDB starts a throwaway PostgreSQL container and connects to it
// through ConnectDB. The returned func closes the pool and removes the
// container.
func SetupTestDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()
	RequireDocker(t)
	ctx := context.Background()

	container, err := postgres.Run(ctx, testImage,
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	terminate := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	cfg, err := containerConfig(ctx, container)
	if err != nil {
		terminate()
		t.Fatalf("failed to resolve container address: %v", err)
	}

	db, err := connectWithRetry(ctx, cfg)
	if err != nil {
		terminate()
		t.Fatalf("failed to connect to test database after %d attempts: %v", connectAttempts, err)
	}

	return db, func() {
		_ = db.Close()
		terminate()
	}
}

func containerConfig(ctx context.Context, c *postgres.PostgresContainer) (*config.DatabaseConfig, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return nil, err
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		return nil, err
	}
	return &config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		User:     testUser,
		Password: testPassword,
		Database: testDatabase,
		SSLMode:  "disable",
	}, nil
}

// connectWithRetry backs off 100ms, 200ms, 400ms... between attempts
func connectWithRetry(ctx context.Context, cfg *config.DatabaseConfig) (*bun.DB, error) {
	var lastErr error
	for i := 0; i < connectAttempts; i++ {
		db, err := ConnectDB(ctx, cfg)
		if err == nil {
			return db, nil
		}
		lastErr = err
		time.Sleep(time.Duration(100<<uint(i)) * time.Millisecond)
	}
	return nil, lastErr
}

func exists(t *testing.T, db *bun.DB, query string, args ...any) bool {
	t.Helper()
	var ok bool
	if err := db.NewSelect().ColumnExpr("EXISTS ("+query+")", args...).Scan(context.Background(), &ok); err != nil {
		t.Fatalf("existence check failed: %v", err)
	}
	return ok
}

func tableExists(t *testing.T, db *bun.DB, table string) bool {
	t.Helper()
	return exists(t, db,
		"SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = ?", table)
}

// AssertTableExists fails the test when table is missing
func AssertTableExists(t *testing.T, db *bun.DB, table string) {
	t.Helper()
	if !tableExists(t, db, table) {
		t.Errorf("table %s does not exist", table)
	}
}

// AssertTableNotExists fails the test when table is present
func AssertTableNotExists(t *testing.T, db *bun.DB, table string) {
	t.Helper()
	if tableExists(t, db, table) {
		t.Errorf("table %s should not exist but it does", table)
	}
}

// AssertIndexExists fails the test when index is missing
func AssertIndexExists(t *testing.T, db *bun.DB, index string) {
	t.Helper()
	if !exists(t, db, "SELECT 1 FROM pg_indexes WHERE schemaname = 'public' AND indexname = ?", index) {
		t.Errorf("index %s does not exist", index)
	}
}

// AssertRowCount fails the test when table does not hold exactly expected rows
func AssertRowCount(t *testing.T, db *bun.DB, table string, expected int) {
	t.Helper()
	var count int
	err := db.NewSelect().
		TableExpr("?", bun.Ident(table)).
		ColumnExpr("COUNT(*)").
		Scan(context.Background(), &count)
	if err != nil {
		t.Fatalf("failed to count rows in table %s: %v", table, err)
	}
	if count != expected {
		t.Errorf("table %s: expected %d rows, got %d", table, expected, count)
	}
}
