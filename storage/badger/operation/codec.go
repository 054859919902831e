package operation

import (
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack"
)

var errUncompressedValue = errors.New("could not uncompress data")

// encodeEntity encodes the entity with msgpack and compresses the result with snappy.
func encodeEntity(entity interface{}) ([]byte, error) {
	val, err := msgpack.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("could not encode entity: %w", err)
	}
	return snappy.Encode(nil, val), nil
}

// decodeValue reverses encodeEntity into the given entity, which must be a pointer.
func decodeValue(val []byte, entity interface{}) error {
	raw, err := snappy.Decode(nil, val)
	if err != nil {
		return fmt.Errorf("%s: %w", err, errUncompressedValue)
	}
	if err := msgpack.Unmarshal(raw, entity); err != nil {
		return fmt.Errorf("could not decode entity: %w", err)
	}
	return nil
}
