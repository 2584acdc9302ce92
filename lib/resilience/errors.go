package resilience

import apperrors "github.com/go-i2p/dbpool/lib/errors"

// ErrCircuitOpen is returned when the breaker rejects a dial.
// This is an alias to the central error definition in lib/errors.
var ErrCircuitOpen = apperrors.ErrCircuitOpen
