package store

import (
	"errors"
)

var (
	// ErrStaleUpdate is returned when a monotonic pointer (view, epoch, high QC, ...) would move backwards.
	ErrStaleUpdate = errors.New("update is not newer than the current value")
	// ErrLeafNotFound is returned when a leaf is not known locally.
	ErrLeafNotFound = errors.New("leaf not found")
	// ErrPayloadExists is returned when a different payload was already saved for the view.
	ErrPayloadExists = errors.New("a different payload was already saved for the view")
	// ErrViewOverride is returned when an update would replace a leaf entry by weaker information.
	ErrViewOverride = errors.New("update would override leaf view")
)
