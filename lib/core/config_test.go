package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
	"github.com/go-i2p/dbpool/lib/driver"
	"github.com/go-i2p/dbpool/lib/pool"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, driver.TypeMySQL, cfg.Database.Type)
	assert.Equal(t, DefaultPort, cfg.Database.Port)
	assert.Equal(t, pool.DefaultMinSize, cfg.Pool.MinSize)
	assert.Equal(t, pool.DefaultMaxSize, cfg.Pool.MaxSize)
	assert.Equal(t, pool.DefaultAcquireTimeout, cfg.Pool.AcquireTimeout.Std())
	assert.False(t, cfg.Breaker.Enabled)
	assert.Equal(t, DefaultStatusListen, cfg.Status.Listen)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.Database.Type = "postgres" }, true},
		{"empty host", func(c *Config) { c.Database.Host = "" }, true},
		{"bad port", func(c *Config) { c.Database.Port = 70000 }, true},
		{"bad database name", func(c *Config) { c.Database.Name = "a;b" }, true},
		{"sqlite needs path", func(c *Config) { c.Database = DatabaseConfig{Type: driver.TypeSQLite} }, true},
		{"sqlite with path", func(c *Config) { c.Database = DatabaseConfig{Type: driver.TypeSQLite, Path: "x.db"} }, false},
		{"max size zero", func(c *Config) { c.Pool.MaxSize = 0 }, true},
		{"max size huge", func(c *Config) { c.Pool.MaxSize = 1 << 20 }, true},
		{"min above max", func(c *Config) { c.Pool.MinSize = 20 }, true},
		{"negative min", func(c *Config) { c.Pool.MinSize = -1 }, true},
		{"negative acquire timeout", func(c *Config) { c.Pool.AcquireTimeout = Duration(-time.Second) }, true},
		{"zero acquire timeout uses default", func(c *Config) { c.Pool.AcquireTimeout = 0 }, false},
		{"bad status listen", func(c *Config) { c.Status.Listen = "localhost" }, true},
		{"bad status listen ignored when disabled", func(c *Config) {
			c.Status.Enabled = false
			c.Status.Listen = "localhost"
		}, false},
		{"breaker negative threshold", func(c *Config) {
			c.Breaker.Enabled = true
			c.Breaker.FailureThreshold = -1
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Host = ""
	cfg.Pool.MaxSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.host")
	assert.Contains(t, err.Error(), "max size")
}

func TestLoadConfig_DefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbpool.toml")
	data := `
[database]
type = "mysql"
host = "db.internal"
port = 3307
user = "app"
password = "secret"
name = "orders"
dial_timeout = "2s"

[pool]
min_size = 2
max_size = 3
acquire_timeout = "750ms"
max_idle_duration = "1m30s"

[breaker]
enabled = true
failure_threshold = 4
open_timeout = "15s"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.Equal(t, 2*time.Second, cfg.Database.DialTimeout.Std())
	assert.Equal(t, 3, cfg.Pool.MaxSize)
	assert.Equal(t, 750*time.Millisecond, cfg.Pool.AcquireTimeout.Std())
	assert.Equal(t, 90*time.Second, cfg.Pool.MaxIdleDuration.Std())
	assert.True(t, cfg.Breaker.Enabled)
	assert.Equal(t, 4, cfg.Breaker.FailureThreshold)

	// Unset sections keep their defaults
	assert.True(t, cfg.Status.Enabled)
	assert.Equal(t, DefaultStatusListen, cfg.Status.Listen)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbpool.yaml")
	data := `
database:
  type: sqlite
  path: /var/lib/dbpool/app.db
pool:
  min_size: 0
  max_size: 4
  max_idle_duration: 45s
status:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, driver.TypeSQLite, cfg.Database.Type)
	assert.Equal(t, "/var/lib/dbpool/app.db", cfg.Database.Path)
	assert.Equal(t, 0, cfg.Pool.MinSize)
	assert.Equal(t, 4, cfg.Pool.MaxSize)
	assert.Equal(t, 45*time.Second, cfg.Pool.MaxIdleDuration.Std())
	assert.False(t, cfg.Status.Enabled)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbpool.toml")
	require.NoError(t, os.WriteFile(path, []byte("[pool]\nacquire_timeout = \"soon\"\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.toml")
	require.NoError(t, os.WriteFile(path, []byte("this is not [valid toml"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_FailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbpool.toml")
	require.NoError(t, os.WriteFile(path, []byte("[pool]\nmin_size = 5\nmax_size = 2\n"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, pool.ErrInvalidConfig)
}

func TestSaveAndLoadConfig(t *testing.T) {
	for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			original := DefaultConfig()
			original.Database.Name = "inventory"
			original.Database.Params = map[string]string{"charset": "utf8mb4"}
			original.Pool.MaxSize = 7
			original.Pool.MaxIdleDuration = Duration(2 * time.Minute)
			original.Breaker.Enabled = true

			require.NoError(t, SaveConfig(original, path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, original, loaded)
		})
	}
}

func TestSaveConfig_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new", "nested", "config.toml")

	require.NoError(t, SaveConfig(DefaultConfig(), path))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Std())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("90")))
}

func TestConfig_Converters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pool.ReclaimInterval = Duration(10 * time.Second)
	cfg.Breaker.Enabled = true

	pc := cfg.PoolConfig()
	assert.Equal(t, cfg.Pool.MaxSize, pc.MaxSize)
	assert.Equal(t, 10*time.Second, pc.ReclaimInterval)

	dc := cfg.DriverConfig()
	assert.Equal(t, cfg.Database.Name, dc.Database)
	assert.Equal(t, cfg.Database.Host, dc.Host)

	bc, enabled := cfg.BreakerConfig()
	assert.True(t, enabled)
	assert.Equal(t, cfg.Breaker.OpenTimeout.Std(), bc.OpenTimeout)
}
