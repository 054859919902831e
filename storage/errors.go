package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned when a key does not exist. The badger operations translate
	// badger.ErrKeyNotFound into it.
	ErrNotFound = errors.New("key not found")

	ErrAlreadyExists = errors.New("key already exists")
)
