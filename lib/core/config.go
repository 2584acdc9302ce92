// Package core ties a dbpool process together: it loads the configuration
// file and runs a Node that owns one connection pool, the optional dial
// circuit breaker and the status server.
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
	"github.com/go-i2p/dbpool/lib/driver"
	"github.com/go-i2p/dbpool/lib/pool"
	"github.com/go-i2p/dbpool/lib/resilience"
	"github.com/go-i2p/dbpool/lib/validation"
	"github.com/go-i2p/dbpool/lib/web"
)

// Default configuration values
const (
	DefaultDriver       = driver.TypeMySQL
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 3306
	DefaultStatusListen = "127.0.0.1:8089"
)

// Duration is a time.Duration written as a string ("5s", "1m30s") in
// configuration files.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all configuration for a dbpool process.
type Config struct {
	Database DatabaseConfig `toml:"database" yaml:"database"`
	Pool     PoolConfig     `toml:"pool" yaml:"pool"`
	Breaker  BreakerConfig  `toml:"breaker" yaml:"breaker"`
	Status   StatusConfig   `toml:"status" yaml:"status"`
}

// DatabaseConfig describes the backend connections are opened to.
type DatabaseConfig struct {
	// Type is "mysql" or "sqlite"
	Type string `toml:"type" yaml:"type"`
	// Host is the MySQL server host name or IP
	Host string `toml:"host" yaml:"host"`
	// Port is the MySQL server port
	Port int `toml:"port" yaml:"port"`
	// User is the MySQL account
	User string `toml:"user" yaml:"user"`
	// Password is the MySQL account password
	Password string `toml:"password" yaml:"password"`
	// Name is the database (schema) to use
	Name string `toml:"name" yaml:"name"`
	// Path is the SQLite database file
	Path string `toml:"path,omitempty" yaml:"path,omitempty"`
	// DialTimeout bounds a single connection attempt
	DialTimeout Duration `toml:"dial_timeout" yaml:"dial_timeout"`
	// Params are extra MySQL session parameters
	Params map[string]string `toml:"params,omitempty" yaml:"params,omitempty"`
}

// PoolConfig contains pool sizing and timeout settings.
type PoolConfig struct {
	// MinSize is the number of connections opened at startup and kept warm
	MinSize int `toml:"min_size" yaml:"min_size"`
	// MaxSize is the maximum number of live connections
	MaxSize int `toml:"max_size" yaml:"max_size"`
	// AcquireTimeout bounds how long a caller waits for a connection
	AcquireTimeout Duration `toml:"acquire_timeout" yaml:"acquire_timeout"`
	// MaxIdleDuration is how long a connection may sit idle before it is closed
	MaxIdleDuration Duration `toml:"max_idle_duration" yaml:"max_idle_duration"`
	// ReclaimInterval is how often idle connections are checked (0 = half of MaxIdleDuration)
	ReclaimInterval Duration `toml:"reclaim_interval,omitempty" yaml:"reclaim_interval,omitempty"`
}

// BreakerConfig contains dial circuit breaker settings.
type BreakerConfig struct {
	// Enabled puts a circuit breaker in front of every dial
	Enabled bool `toml:"enabled" yaml:"enabled"`
	// FailureThreshold is the number of consecutive dial failures that opens it
	FailureThreshold int `toml:"failure_threshold" yaml:"failure_threshold"`
	// SuccessThreshold is the number of successful probes that closes it
	SuccessThreshold int `toml:"success_threshold" yaml:"success_threshold"`
	// OpenTimeout is how long dials are rejected before probing
	OpenTimeout Duration `toml:"open_timeout" yaml:"open_timeout"`
	// MaxProbes is the number of dials allowed while probing
	MaxProbes int `toml:"max_probes" yaml:"max_probes"`
}

// StatusConfig contains status server settings.
type StatusConfig struct {
	// Enabled controls whether the status server is started
	Enabled bool `toml:"enabled" yaml:"enabled"`
	// Listen is the address to bind the status server to
	Listen string `toml:"listen" yaml:"listen"`
	// ReadyTimeout bounds the checkout done by /readyz
	ReadyTimeout Duration `toml:"ready_timeout" yaml:"ready_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	breaker := resilience.DefaultConfig()

	return &Config{
		Database: DatabaseConfig{
			Type:        DefaultDriver,
			Host:        DefaultHost,
			Port:        DefaultPort,
			User:        "root",
			Name:        "test",
			DialTimeout: Duration(driver.DefaultDialTimeout),
		},
		Pool: PoolConfig{
			MinSize:         pool.DefaultMinSize,
			MaxSize:         pool.DefaultMaxSize,
			AcquireTimeout:  Duration(pool.DefaultAcquireTimeout),
			MaxIdleDuration: Duration(pool.DefaultMaxIdleDuration),
		},
		Breaker: BreakerConfig{
			Enabled:          false,
			FailureThreshold: breaker.FailureThreshold,
			SuccessThreshold: breaker.SuccessThreshold,
			OpenTimeout:      Duration(breaker.OpenTimeout),
			MaxProbes:        breaker.MaxProbes,
		},
		Status: StatusConfig{
			Enabled:      true,
			Listen:       DefaultStatusListen,
			ReadyTimeout: Duration(web.DefaultReadyTimeout),
		},
	}
}

// isYAML reports whether path should be read and written as YAML.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// LoadConfig reads configuration from a TOML file, or a YAML file when the
// extension is .yaml or .yml. If the file doesn't exist, it returns the
// default configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a TOML or YAML file, chosen by
// extension. It creates the parent directory if it doesn't exist.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = toml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for errors. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs validation.Errors

	if err := c.DriverConfig().Validate(); err != nil {
		errs.Add(err)
	}
	if err := c.PoolConfig().Validate(); err != nil {
		errs.Add(err)
	}
	errs.Add(validation.IntRange("pool.max_size", c.Pool.MaxSize, 1, validation.MaxPoolSize))
	errs.Add(validation.DurationRange("pool.acquire_timeout", c.Pool.AcquireTimeout.Std(), time.Millisecond, validation.MaxDuration))
	errs.Add(validation.DurationRange("pool.max_idle_duration", c.Pool.MaxIdleDuration.Std(), time.Millisecond, validation.MaxDuration))

	if c.Breaker.Enabled {
		errs.Add(validation.NonNegative("breaker.failure_threshold", c.Breaker.FailureThreshold))
		errs.Add(validation.NonNegative("breaker.success_threshold", c.Breaker.SuccessThreshold))
		errs.Add(validation.NonNegative("breaker.max_probes", c.Breaker.MaxProbes))
		errs.Add(validation.DurationRange("breaker.open_timeout", c.Breaker.OpenTimeout.Std(), time.Millisecond, validation.MaxDuration))
	}
	if c.Status.Enabled {
		errs.Add(validation.HostPort("status.listen", c.Status.Listen))
		errs.Add(validation.DurationRange("status.ready_timeout", c.Status.ReadyTimeout.Std(), time.Millisecond, validation.MaxDuration))
	}

	if errs.HasErrors() {
		return fmt.Errorf("%w: %w", apperrors.ErrConfiguration, errs.Err())
	}
	return nil
}

// DriverConfig returns the driver settings.
func (c *Config) DriverConfig() driver.Config {
	return driver.Config{
		Type:        c.Database.Type,
		Host:        c.Database.Host,
		Port:        c.Database.Port,
		User:        c.Database.User,
		Password:    c.Database.Password,
		Database:    c.Database.Name,
		Params:      c.Database.Params,
		DialTimeout: c.Database.DialTimeout.Std(),
		Path:        c.Database.Path,
	}
}

// PoolConfig returns the pool settings.
func (c *Config) PoolConfig() pool.Config {
	return pool.Config{
		MinSize:         c.Pool.MinSize,
		MaxSize:         c.Pool.MaxSize,
		AcquireTimeout:  c.Pool.AcquireTimeout.Std(),
		MaxIdleDuration: c.Pool.MaxIdleDuration.Std(),
		ReclaimInterval: c.Pool.ReclaimInterval.Std(),
	}
}

// BreakerConfig returns the circuit breaker settings, or false if the
// breaker is disabled.
func (c *Config) BreakerConfig() (resilience.Config, bool) {
	return resilience.Config{
		FailureThreshold: c.Breaker.FailureThreshold,
		SuccessThreshold: c.Breaker.SuccessThreshold,
		OpenTimeout:      c.Breaker.OpenTimeout.Std(),
		MaxProbes:        c.Breaker.MaxProbes,
	}, c.Breaker.Enabled
}
