package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPath reports that no destination is reachable under the current
	// costs, blockages and guides. Callers retry with relaxed constraints or
	// mark the connection unroutable for the iteration.
	ErrNoPath = errors.New("no path to destination")
	// ErrOutOfRange is wrapped by *RangeError.
	ErrOutOfRange = errors.New("grid index out of range")
	// ErrNotInitialized is returned by operations that need Init first.
	ErrNotInitialized = errors.New("grid graph not initialized")
	// ErrSearchInFlight is returned when Init is called during a search.
	ErrSearchInFlight = errors.New("search in flight")
)

// ConfigurationError is fatal for the worker that hit it.
type ConfigurationError struct {
	Layer  int
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("grid configuration: layer %d: %s", e.Layer, e.Reason)
}

// RangeError is returned by the checked accessors.
type RangeError struct {
	Point GridPoint
	Dims  GridPoint
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("grid point %v outside grid of size %dx%dx%d", e.Point, e.Dims.X, e.Dims.Y, e.Dims.Z)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// ArithmeticError describes a cost counter overflow or underflow. It is only
// raised, as a panic value, by drtdebug builds.
type ArithmeticError struct {
	Op    string
	Value uint64
	Delta uint64
	Limit uint64
}

func (e *ArithmeticError) Error() string {
	if e.Op == "add" {
		return fmt.Sprintf("cost counter overflow: %d + %d exceeds %d", e.Value, e.Delta, e.Limit)
	}
	return fmt.Sprintf("cost counter underflow: %d - %d", e.Value, e.Delta)
}
