package bus

import "errors"

// ErrBusClosed is returned when dispatching on a closed bus.
var ErrBusClosed = errors.New("bus is closed")

// ErrNilEnvelope is returned when dispatching a nil envelope.
var ErrNilEnvelope = errors.New("envelope is nil")
