package validation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRequired(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid string", "test", false},
		{"empty string", "", true},
		{"whitespace only", "   ", true},
		{"tab only", "\t", true},
		{"valid with spaces", " test ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Required("user", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Required() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrRequired) {
				t.Errorf("Required() error should wrap ErrRequired")
			}
		})
	}
}

func TestMaxLength(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		max     int
		wantErr bool
	}{
		{"under max", "test", 10, false},
		{"at max", "test", 4, false},
		{"over max", "testing", 4, true},
		{"unicode chars", "日本語", 5, false},
		{"unicode over", "日本語テスト", 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MaxLength("name", tt.value, tt.max)
			if (err != nil) != tt.wantErr {
				t.Errorf("MaxLength() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrTooLong) {
				t.Errorf("MaxLength() error should wrap ErrTooLong")
			}
		})
	}
}

func TestNumericValidators(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"range inside", IntRange("size", 5, 1, 10), false},
		{"range low edge", IntRange("size", 1, 1, 10), false},
		{"range high edge", IntRange("size", 10, 1, 10), false},
		{"range below", IntRange("size", 0, 1, 10), true},
		{"range above", IntRange("size", 11, 1, 10), true},
		{"positive", Positive("max", 1), false},
		{"positive zero", Positive("max", 0), true},
		{"non-negative zero", NonNegative("min", 0), false},
		{"non-negative negative", NonNegative("min", -1), true},
		{"port valid", Port("port", 3306), false},
		{"port zero", Port("port", 0), true},
		{"port too high", Port("port", 65536), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", tt.err, tt.wantErr)
			}
			if tt.err != nil && !errors.Is(tt.err, ErrOutOfRange) {
				t.Errorf("error should wrap ErrOutOfRange")
			}
		})
	}
}

func TestDurationRange(t *testing.T) {
	tests := []struct {
		name    string
		value   time.Duration
		wantErr bool
	}{
		{"zero uses default", 0, false},
		{"in range", 5 * time.Second, false},
		{"at min", time.Millisecond, false},
		{"below min", time.Microsecond, true},
		{"above max", 2 * MaxDuration, true},
		{"negative", -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DurationRange("acquire_timeout", tt.value, time.Millisecond, MaxDuration)
			if (err != nil) != tt.wantErr {
				t.Errorf("DurationRange() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOneOf(t *testing.T) {
	if err := OneOf("type", "mysql", "mysql", "sqlite"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := OneOf("type", "postgres", "mysql", "sqlite")
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
	if !strings.Contains(err.Error(), "mysql, sqlite") {
		t.Errorf("message should list choices, got %q", err.Error())
	}
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr error
	}{
		{"simple", "orders", nil},
		{"underscore and digits", "app_db_2", nil},
		{"dollar", "tmp$1", nil},
		{"empty", "", ErrRequired},
		{"dash", "my-db", ErrInvalidFormat},
		{"space", "my db", ErrInvalidFormat},
		{"too long", strings.Repeat("a", MaxIdentifierLength+1), ErrTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Identifier("database", tt.value)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHost(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"hostname", "db.internal", false},
		{"ipv4", "127.0.0.1", false},
		{"ipv6", "::1", false},
		{"with port", "localhost:3306", true},
		{"with path", "db/x", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Host("host", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Host() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHostPort(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid", "127.0.0.1:8089", false},
		{"ipv6", "[::1]:8089", false},
		{"empty host", ":8089", false},
		{"missing port", "localhost", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := HostPort("listen", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("HostPort() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResultError(t *testing.T) {
	r := NewResult("pool.max_size", "must be positive", ErrOutOfRange)
	if r.Error() != "pool.max_size: must be positive" {
		t.Errorf("unexpected message %q", r.Error())
	}

	r = NewResult("", "bad", ErrInvalidFormat)
	if r.Error() != "bad" {
		t.Errorf("unexpected message %q", r.Error())
	}
}

func TestAll(t *testing.T) {
	err := All(
		func() error { return Required("host", "localhost") },
		func() error { return Port("port", 0) },
		func() error { return Required("user", "") },
	)
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected first failure (port), got %v", err)
	}

	if err := All(func() error { return nil }); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestErrors(t *testing.T) {
	var errs Errors
	errs.Add(nil)
	if errs.HasErrors() {
		t.Error("nil errors should be ignored")
	}
	if errs.Err() != nil {
		t.Error("empty collection should produce nil")
	}

	errs.Add(Required("user", ""))
	if errs.Error() != "user: is required" {
		t.Errorf("unexpected single message %q", errs.Error())
	}

	errs.Add(Port("port", -1))
	err := errs.Err()
	if !strings.HasPrefix(err.Error(), "multiple validation errors: ") {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrRequired) || !errors.Is(err, ErrOutOfRange) {
		t.Error("collected errors should be reachable with errors.Is")
	}
}
