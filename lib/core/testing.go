package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-i2p/dbpool/lib/driver"
)

// testConfig returns a configuration backed by a SQLite file in a fresh
// temporary directory, with the status server disabled.
func testConfig(t *testing.T) *Config {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Database = DatabaseConfig{
		Type: driver.TypeSQLite,
		Path: filepath.Join(t.TempDir(), "pool.db"),
	}
	cfg.Pool.MinSize = 1
	cfg.Pool.MaxSize = 3
	cfg.Pool.AcquireTimeout = Duration(time.Second)
	cfg.Status.Enabled = false

	return cfg
}

// cleanupNode stops a running node so its pool does not outlive the test.
func cleanupNode(t *testing.T, node *Node) {
	t.Helper()

	if node == nil || node.GetState() != StateRunning {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := node.Stop(ctx); err != nil {
		t.Logf("Warning: Stop failed during cleanup: %v", err)
	}
}
