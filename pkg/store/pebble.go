package store

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/valyala/bytebufferpool"

	"mesgd/pkg/logger"
)

// Store wraps a Pebble database. It is constructed once at service start
// and injected into every component; there is no package-level handle.
type Store struct {
	db   *pebble.DB
	path string

	// convLocks serializes the append/markRead paths per conversation
	// while leaving different conversations fully parallel.
	convLocks sync.Map // convID -> *sync.Mutex
}

// Open opens (or creates) a Pebble database at the given path.
func Open(path string) (*Store, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	logger.Info("pebble_closed", "path", s.path)
	return err
}

// Ready reports whether the store is opened.
func (s *Store) Ready() bool { return s != nil && s.db != nil }

// Path returns the on-disk location of the database.
func (s *Store) Path() string { return s.path }

// ConvLock returns the mutex guarding writes for one conversation.
func (s *Store) ConvLock(convID string) *sync.Mutex {
	if l, ok := s.convLocks.Load(convID); ok {
		return l.(*sync.Mutex)
	}
	l, _ := s.convLocks.LoadOrStore(convID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// ErrKeyNotFound re-exports pebble's not-found sentinel for callers that
// should not import pebble directly.
var ErrKeyNotFound = pebble.ErrNotFound

// Get returns a copy of the value stored under key.
func (s *Store) Get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), v...)
	_ = closer.Close()
	return out, nil
}

// GetJSON fetches key and unmarshals it into v.
func (s *Store) GetJSON(key []byte, v any) error {
	b, err := s.Get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Set writes key/value durably.
func (s *Store) Set(key, value []byte, sync bool) error {
	opt := pebble.NoSync
	if sync {
		opt = pebble.Sync
	}
	return s.db.Set(key, value, opt)
}

// SetJSON encodes v through a pooled buffer and writes it under key.
// Pebble copies the value on Set, so the buffer is safe to recycle.
func (s *Store) SetJSON(key []byte, v any, sync bool) error {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	if err := json.NewEncoder(bb).Encode(v); err != nil {
		return err
	}
	return s.Set(key, bytes.TrimRight(bb.B, "\n"), sync)
}

// Delete removes key.
func (s *Store) Delete(key []byte, sync bool) error {
	opt := pebble.NoSync
	if sync {
		opt = pebble.Sync
	}
	return s.db.Delete(key, opt)
}

// NewBatch returns an empty write batch.
func (s *Store) NewBatch() *pebble.Batch { return s.db.NewBatch() }

// BatchSetJSON encodes v through a pooled buffer into the batch. Batches
// copy key and value internally.
func BatchSetJSON(b *pebble.Batch, key []byte, v any) error {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	if err := json.NewEncoder(bb).Encode(v); err != nil {
		return err
	}
	return b.Set(key, bytes.TrimRight(bb.B, "\n"), nil)
}

// ApplyBatch commits the batch, optionally with a synchronous WAL write.
func (s *Store) ApplyBatch(b *pebble.Batch, sync bool) error {
	opt := pebble.NoSync
	if sync {
		opt = pebble.Sync
	}
	if err := s.db.Apply(b, opt); err != nil {
		logger.Error("apply_batch_failed", "error", err)
		return err
	}
	return nil
}

// IterPrefix invokes fn for every key with the given prefix, in key order,
// until fn returns false or the prefix is exhausted. The value slice is
// only valid for the duration of the call.
func (s *Store) IterPrefix(prefix []byte, fn func(key, value []byte) bool) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

// IterRange iterates keys in [start, end) in order, with the same
// contract as IterPrefix.
func (s *Store) IterRange(start, end []byte, fn func(key, value []byte) bool) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: start, UpperBound: end})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}
