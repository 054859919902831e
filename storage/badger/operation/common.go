package operation

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/hotshot-go/hotshot/storage"
)

// insert encodes the entity and stores it under the key. It errors with
// storage.ErrAlreadyExists if the key is taken.
func insert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if err == nil {
			return storage.ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("could not check key: %w", err)
		}
		return set(tx, key, entity)
	}
}

// upsert encodes the entity and stores it under the key, replacing any previous value.
func upsert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		return set(tx, key, entity)
	}
}

func set(tx *badger.Txn, key []byte, entity interface{}) error {
	val, err := encodeEntity(entity)
	if err != nil {
		return err
	}
	if err := tx.Set(key, val); err != nil {
		return fmt.Errorf("could not store data: %w", err)
	}
	return nil
}

// retrieve decodes the value under the key into the entity. It errors with
// storage.ErrNotFound if the key does not exist.
func retrieve(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("could not load data: %w", err)
		}
		err = item.Value(func(val []byte) error {
			return decodeValue(val, entity)
		})
		if err != nil {
			return fmt.Errorf("could not decode entity: %w", err)
		}
		return nil
	}
}

// createFunc returns a pointer to a fresh entity to decode the current value into.
type createFunc func() interface{}

// handleFunc processes the key and the entity decoded for it.
type handleFunc func(key []byte, entity interface{}) error

// traverse decodes every value whose key starts with the prefix, in key order.
func traverse(prefix []byte, create createFunc, handle handleFunc) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		if len(prefix) == 0 {
			return fmt.Errorf("prefix must not be empty")
		}
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			entity := create()
			err := item.Value(func(val []byte) error {
				return decodeValue(val, entity)
			})
			if err != nil {
				return fmt.Errorf("could not decode value of key %x: %w", key, err)
			}
			if err := handle(key, entity); err != nil {
				return fmt.Errorf("could not handle entity: %w", err)
			}
		}
		return nil
	}
}

// removeBelow deletes every key of the view-indexed code whose view is below the given one.
func removeBelow(code byte, view uint64) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		prefix := makePrefix(code)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if indexFromKey(key) >= view {
				break
			}
			keys = append(keys, key)
		}
		it.Close()
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return fmt.Errorf("could not delete key %x: %w", key, err)
			}
		}
		return nil
	}
}
