package unittest

import (
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// returned runs f in a goroutine and returns a channel closed when f returns.
func returned(f func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f()
	}()
	return done
}

// AssertReturnsBefore marks the test failed if f does not return within the duration.
func AssertReturnsBefore(t *testing.T, f func(), duration time.Duration) {
	select {
	case <-returned(f):
	case <-time.After(duration):
		assert.Fail(t, "function did not return in time")
	}
}

// RequireReturnsBefore stops the test if f does not return within the duration.
func RequireReturnsBefore(t testing.TB, f func(), duration time.Duration) {
	select {
	case <-returned(f):
	case <-time.After(duration):
		require.Fail(t, "function did not return in time")
	}
}

// RequireCloseBefore stops the test if c is not closed within the duration.
func RequireCloseBefore(t testing.TB, c <-chan struct{}, duration time.Duration, message string) {
	select {
	case <-c:
	case <-time.After(duration):
		require.Fail(t, "channel not closed in time: "+message)
	}
}

// TempDir creates a directory the caller removes.
func TempDir(t testing.TB) string {
	dir, err := os.MkdirTemp("", "hotshot-test-")
	require.NoError(t, err)
	return dir
}

func RunWithTempDir(t testing.TB, f func(string)) {
	dir := TempDir(t)
	defer os.RemoveAll(dir)
	f(dir)
}

// BadgerDB opens a quiet badger database in dir.
func BadgerDB(t testing.TB, dir string) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions(dir).WithKeepL0InMemory(true).WithLogger(nil))
	require.NoError(t, err)
	return db
}

// RunWithBadgerDB runs f against a database in a temporary directory that is removed afterwards.
func RunWithBadgerDB(t testing.TB, f func(*badger.DB)) {
	RunWithTempDir(t, func(dir string) {
		db := BadgerDB(t, dir)
		defer db.Close()
		f(db)
	})
}
