// Package pebblestore implements storage.PageStore on top of Pebble, the
// LSM key-value engine from CockroachDB.
//
// Page images are stored under "p" followed by the big-endian page id, so a
// prefix scan visits pages in id order. Two metadata keys hold the next
// page id and the root page. Page ids are never reused.
package pebblestore

import (
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/KilimcininKorOglu/obaidx/internal/storage"
)

var (
	pagePrefix = []byte("p")
	nextKey    = []byte("m/next")
	rootKey    = []byte("m/root")
)

// Options configures a Store.
type Options struct {
	// SyncOnWrite makes every write durable before returning.
	SyncOnWrite bool
	// MemTableSize overrides Pebble's memtable size when non-zero.
	MemTableSize uint64
}

// Store is a storage.PageStore backed by a Pebble database directory.
type Store struct {
	mu     sync.Mutex
	db     *pebble.DB
	next   storage.PageID
	root   storage.PageID
	wo     *pebble.WriteOptions
	closed bool
}

var _ storage.PageStore = (*Store)(nil)

// Open opens or creates a Pebble database in dir.
func Open(dir string, opts Options) (*Store, error) {
	popts := &pebble.Options{}
	if opts.MemTableSize > 0 {
		popts.MemTableSize = opts.MemTableSize
	}

	db, err := pebble.Open(dir, popts)
	if err != nil {
		return nil, errors.Wrapf(err, "pebblestore: open %s", dir)
	}

	s := &Store{db: db, next: 1, wo: pebble.NoSync}
	if opts.SyncOnWrite {
		s.wo = pebble.Sync
	}

	if v, ok, err := s.getUint64(nextKey); err != nil {
		db.Close()
		return nil, err
	} else if ok {
		s.next = storage.PageID(v)
	}
	if v, ok, err := s.getUint64(rootKey); err != nil {
		db.Close()
		return nil, err
	} else if ok {
		s.root = storage.PageID(v)
	}
	return s, nil
}

func pageKey(id storage.PageID) []byte {
	k := make([]byte, len(pagePrefix)+8)
	copy(k, pagePrefix)
	binary.BigEndian.PutUint64(k[len(pagePrefix):], uint64(id))
	return k
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// get copies the value for key; the slice returned by Pebble is only valid
// until the closer is closed.
func (s *Store) get(key []byte) ([]byte, bool, error) {
	val, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "pebblestore: get")
	}
	out := make([]byte, len(val))
	copy(out, val)
	closer.Close()
	return out, true, nil
}

func (s *Store) getUint64(key []byte) (uint64, bool, error) {
	v, ok, err := s.get(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if len(v) != 8 {
		return 0, false, errors.Newf("pebblestore: key %q holds %d bytes, want 8", key, len(v))
	}
	return binary.BigEndian.Uint64(v), true, nil
}

func (s *Store) Allocate() (storage.PageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.InvalidPageID, storage.ErrStoreClosed
	}

	id := s.next
	batch := s.db.NewBatch()
	defer batch.Close()
	batch.Set(pageKey(id), nil, nil)
	batch.Set(nextKey, encodeUint64(uint64(id+1)), nil)
	if err := batch.Commit(s.wo); err != nil {
		return storage.InvalidPageID, errors.Wrap(err, "pebblestore: allocate")
	}
	s.next = id + 1
	return id, nil
}

func (s *Store) Free(id storage.PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPage(id); err != nil {
		return err
	}
	if err := s.db.Delete(pageKey(id), s.wo); err != nil {
		return errors.Wrap(err, "pebblestore: delete")
	}
	return nil
}

func (s *Store) Read(id storage.PageID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, storage.ErrStoreClosed
	}
	v, ok, err := s.get(pageKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(storage.ErrPageNotFound, "page %d", id)
	}
	return v, nil
}

func (s *Store) Write(id storage.PageID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPage(id); err != nil {
		return err
	}
	if err := s.db.Set(pageKey(id), data, s.wo); err != nil {
		return errors.Wrap(err, "pebblestore: set")
	}
	return nil
}

// checkPage fails unless id is allocated. Must be called with lock held.
func (s *Store) checkPage(id storage.PageID) error {
	if s.closed {
		return storage.ErrStoreClosed
	}
	_, ok, err := s.get(pageKey(id))
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(storage.ErrPageNotFound, "page %d", id)
	}
	return nil
}

func (s *Store) Root() storage.PageID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

func (s *Store) SetRoot(id storage.PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStoreClosed
	}
	if err := s.db.Set(rootKey, encodeUint64(uint64(id)), s.wo); err != nil {
		return errors.Wrap(err, "pebblestore: set root")
	}
	s.root = id
	return nil
}

func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStoreClosed
	}
	return s.db.Flush()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStoreClosed
	}
	s.closed = true
	return s.db.Close()
}

// Len counts allocated pages with a prefix scan.
func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, storage.ErrStoreClosed
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: pagePrefix,
		UpperBound: []byte{pagePrefix[0] + 1},
	})
	if err != nil {
		return 0, errors.Wrap(err, "pebblestore: iterate")
	}
	n := 0
	for valid := iter.First(); valid; valid = iter.Next() {
		n++
	}
	return n, iter.Close()
}
