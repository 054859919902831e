package operation

import (
	"errors"

	"github.com/dgraph-io/badger/v2"

	"github.com/hotshot-go/hotshot/storage"
)

// SkipDuplicates turns storage.ErrAlreadyExists into success.
func SkipDuplicates(op func(*badger.Txn) error) func(tx *badger.Txn) error {
	return func(tx *badger.Txn) error {
		err := op(tx)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil
		}
		return err
	}
}

// RetryOnConflict runs the update again as long as badger reports a transaction conflict.
func RetryOnConflict(db *badger.DB, op func(*badger.Txn) error) error {
	for {
		err := db.Update(op)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}
