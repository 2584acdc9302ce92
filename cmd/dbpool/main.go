// dbpool runs and exercises a database connection pool.
//
// Usage:
//
//	dbpool [flags] [serve]          Run the pool and status server until interrupted
//	dbpool [flags] bench            Hammer the pool with concurrent checkouts
//	dbpool [flags] check            Validate the configuration file
//	dbpool [flags] init             Write a default configuration file
//
// Flags:
//
//	-config string
//	    Path to configuration file (default "~/.dbpool/config.toml")
//	-v
//	    Enable verbose logging
//	-version
//	    Print version and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-i2p/dbpool/lib/core"
	"github.com/go-i2p/dbpool/lib/driver"
	apperrors "github.com/go-i2p/dbpool/lib/errors"
	"github.com/go-i2p/dbpool/lib/pool"
	"github.com/go-i2p/dbpool/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	defaultConfigPath := filepath.Join(homeDir, ".dbpool", "config.toml")

	fs := flag.NewFlagSet("dbpool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file (.toml, .yaml or .yml)")
	verbose := fs.Bool("v", false, "Enable verbose logging")
	showVersion := fs.Bool("version", false, "Print version and exit")
	workers := fs.Int("workers", 8, "bench: number of concurrent workers")
	iterations := fs.Int("n", 100, "bench: checkouts per worker")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "dbpool - database connection pool\n\n")
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  dbpool [flags] [serve]   Run the pool and status server\n")
		fmt.Fprintf(stderr, "  dbpool [flags] bench     Run concurrent checkouts against the database\n")
		fmt.Fprintf(stderr, "  dbpool [flags] check     Validate the configuration file\n")
		fmt.Fprintf(stderr, "  dbpool [flags] init      Write a default configuration file\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "dbpool version %s\n", version.Full())
		return 0
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	command := "serve"
	if fs.NArg() > 0 {
		command = fs.Arg(0)
	}

	switch command {
	case "serve":
		return handleServe(logger, *configPath)
	case "bench":
		return handleBench(logger, stdout, *configPath, *workers, *iterations)
	case "check":
		return handleCheck(stdout, stderr, *configPath)
	case "init":
		return handleInit(stdout, stderr, *configPath)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		fs.Usage()
		return 2
	}
}

// handleServe runs a node until SIGINT or SIGTERM.
func handleServe(logger *slog.Logger, configPath string) int {
	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	node, err := core.NewNode(cfg, logger)
	if err != nil {
		logger.Error("failed to create node", "error", err)
		return 1
	}
	node.SetOnError(func(err error, message string) {
		logger.Error(message, "error", err)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := node.Start(ctx); err != nil {
		logger.Error("failed to start node", "error", err)
		return 1
	}

	logger.Info("dbpool started",
		"driver", cfg.Database.Type,
		"status", node.StatusAddr(),
		"version", version.Version,
	)

	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig)
	case <-node.Done():
		logger.Info("node stopped unexpectedly")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := node.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return 1
	}

	logger.Info("dbpool stopped")
	return 0
}

// benchResult counts bench outcomes across workers.
type benchResult struct {
	ok       atomic.Int64
	timeouts atomic.Int64
	failed   atomic.Int64
}

// handleBench runs workers that each check out a connection, run the server
// version probe on it and hand it back, through the process-wide pool.
func handleBench(logger *slog.Logger, stdout io.Writer, configPath string, workers, iterations int) int {
	if workers < 1 || iterations < 1 {
		fmt.Fprintln(stdout, "workers and n must be positive")
		return 2
	}

	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	factory, err := driver.NewFactory(cfg.DriverConfig(), nil)
	if err != nil {
		logger.Error("failed to build driver", "error", err)
		return 1
	}
	if err := pool.Init(factory, cfg.PoolConfig()); err != nil {
		logger.Error("failed to create pool", "error", err)
		return 1
	}
	defer pool.Shutdown()

	var (
		res           benchResult
		wg            sync.WaitGroup
		serverVersion atomic.Value
	)
	start := time.Now()

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				v, err := benchOnce(context.Background())
				switch {
				case err == nil:
					res.ok.Add(1)
					serverVersion.CompareAndSwap(nil, v)
				case apperrors.IsTimeout(err):
					res.timeouts.Add(1)
				default:
					res.failed.Add(1)
					logger.Debug("checkout failed", "worker", id, "error", err)
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	stats := pool.Default().Stats()
	total := workers * iterations

	fmt.Fprintf(stdout, "Driver:       %s\n", cfg.Database.Type)
	if v, ok := serverVersion.Load().(string); ok {
		fmt.Fprintf(stdout, "Server:       %s\n", v)
	}
	fmt.Fprintf(stdout, "Checkouts:    %d (%d ok, %d timed out, %d failed)\n",
		total, res.ok.Load(), res.timeouts.Load(), res.failed.Load())
	fmt.Fprintf(stdout, "Elapsed:      %s (%.0f/s)\n", elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
	fmt.Fprintf(stdout, "Connections:  %d open, %d idle, max %d\n", stats.NumOpen, stats.NumIdle, stats.MaxSize)
	fmt.Fprintf(stdout, "Waits:        %d (%d dial failures)\n", stats.WaitCount, stats.CreateFailed)

	if res.ok.Load() == 0 {
		return 1
	}
	return 0
}

func benchOnce(ctx context.Context) (string, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Release()

	dc, ok := conn.Raw().(*driver.Conn)
	if !ok {
		return "", fmt.Errorf("unexpected connection type %T", conn.Raw())
	}
	v, err := dc.ServerVersion(ctx)
	if err != nil {
		conn.MarkUnusable()
		return "", err
	}
	return v, nil
}

// handleCheck validates the configuration file and prints a summary.
func handleCheck(stdout, stderr io.Writer, configPath string) int {
	if _, err := os.Stat(configPath); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Configuration OK: %s\n", configPath)
	fmt.Fprintf(stdout, "  Driver:  %s\n", cfg.Database.Type)
	fmt.Fprintf(stdout, "  Pool:    min %d, max %d, acquire timeout %s\n",
		cfg.Pool.MinSize, cfg.Pool.MaxSize, cfg.Pool.AcquireTimeout.Std())
	if cfg.Status.Enabled {
		fmt.Fprintf(stdout, "  Status:  %s\n", cfg.Status.Listen)
	}
	return 0
}

// handleInit writes the default configuration unless the file exists.
func handleInit(stdout, stderr io.Writer, configPath string) int {
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(stderr, "Error: %s already exists\n", configPath)
		return 1
	}

	if err := core.SaveConfig(core.DefaultConfig(), configPath); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Wrote %s\n", configPath)
	return 0
}
