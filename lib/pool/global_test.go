package pool

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
)

func resetDefault(t *testing.T) {
	t.Helper()
	defaultMu.Lock()
	p := defaultPool
	defaultPool = nil
	defaultMu.Unlock()
	if p != nil {
		p.Close()
	}
}

func TestGlobalAcquireBeforeInit(t *testing.T) {
	resetDefault(t)

	if _, err := Acquire(context.Background()); !errors.Is(err, apperrors.ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
	if err := Shutdown(); err != nil {
		t.Errorf("Shutdown before Init should be a no-op, got %v", err)
	}
}

func TestGlobalInitOnce(t *testing.T) {
	resetDefault(t)
	t.Cleanup(func() { resetDefault(t) })

	var counter int32
	if err := Init(mockFactory(&counter), testConfig()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	first := Default()

	err := Init(mockFactory(&counter), testConfig())
	if !errors.Is(err, apperrors.ErrAlreadyInitialized) {
		t.Errorf("Expected ErrAlreadyInitialized, got %v", err)
	}
	if Default() != first {
		t.Error("Second Init must not replace the pool")
	}

	conn, err := Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	conn.Release()

	if err := Shutdown(); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	if _, err := Acquire(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed after Shutdown, got %v", err)
	}
}

func TestGlobalInitInvalidConfig(t *testing.T) {
	resetDefault(t)

	var counter int32
	cfg := testConfig()
	cfg.MaxSize = 0
	if err := Init(mockFactory(&counter), cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
	if Default() != nil {
		t.Error("Failed Init must not register a pool")
	}
}
