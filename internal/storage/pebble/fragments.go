package pebblestore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cockroachdb/pebble"

	"github.com/roach88/pksplit/internal/ir"
	"github.com/roach88/pksplit/internal/segment"
	"github.com/roach88/pksplit/internal/split"
)

// Key layout:
//
//	'f' | u32be len(key) | key | u64be seq  -> CBOR fragment
//	'k' | key                               -> empty (key index)
//
// The length prefix keeps one key's range from containing another key that
// extends it; the big-endian seq makes iteration order arrival order.
const (
	prefixFragment byte = 'f'
	prefixKey      byte = 'k'
)

func fragmentPrefix(key []byte) []byte {
	p := make([]byte, 0, 5+len(key))
	p = append(p, prefixFragment)
	p = binary.BigEndian.AppendUint32(p, uint32(len(key)))
	return append(p, key...)
}

func fragmentKey(key []byte, seq int64) []byte {
	return binary.BigEndian.AppendUint64(fragmentPrefix(key), uint64(seq))
}

func indexKey(key []byte) []byte {
	return append([]byte{prefixKey}, key...)
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p []byte) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// FragmentSink returns a consumer that stores every fragment of a
// sub-stream and commits them in one batch at end of stream. An aborted
// stream commits nothing.
func (db *DB) FragmentSink() split.ConsumerFunc {
	return func(ctx context.Context, s *split.Stream) error {
		b := db.inner.NewBatch()
		defer b.Close()

		key := s.Key()
		for {
			f, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			value, err := segment.MarshalFragment(f)
			if err != nil {
				return err
			}
			if err := b.Set(fragmentKey(key, f.Seq), value, nil); err != nil {
				return fmt.Errorf("pebble: stage fragment seq %d: %w", f.Seq, err)
			}
		}
		if err := b.Set(indexKey(key), nil, nil); err != nil {
			return fmt.Errorf("pebble: stage key index: %w", err)
		}
		if err := db.commit(b); err != nil {
			return fmt.Errorf("pebble: commit stream %q: %w", key, err)
		}
		return nil
	}
}

// ReadFragments returns every stored fragment of key in seq order.
func (db *DB) ReadFragments(key []byte) ([]ir.Fragment, error) {
	lower := fragmentPrefix(key)
	it, err := db.inner.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: prefixEnd(lower)})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []ir.Fragment
	for it.First(); it.Valid(); it.Next() {
		f, err := segment.UnmarshalFragment(it.Value())
		if err != nil {
			return nil, fmt.Errorf("pebble: %q: %w", it.Key(), err)
		}
		out = append(out, f)
	}
	return out, it.Error()
}

// Keys returns every key that has committed fragments, in byte order.
func (db *DB) Keys() ([][]byte, error) {
	lower := []byte{prefixKey}
	it, err := db.inner.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: prefixEnd(lower)})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var keys [][]byte
	for it.First(); it.Valid(); it.Next() {
		keys = append(keys, append([]byte(nil), it.Key()[1:]...))
	}
	return keys, it.Error()
}

// HasKey reports whether key has committed fragments.
func (db *DB) HasKey(key []byte) (bool, error) {
	_, err := db.get(indexKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// DeleteKey removes every fragment of key and its index entry atomically.
func (db *DB) DeleteKey(key []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()

	lower := fragmentPrefix(key)
	if err := b.DeleteRange(lower, prefixEnd(lower), nil); err != nil {
		return err
	}
	if err := b.Delete(indexKey(key), nil); err != nil {
		return err
	}
	return db.commit(b)
}
