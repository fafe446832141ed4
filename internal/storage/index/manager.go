package index

import (
	"encoding/binary"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/KilimcininKorOglu/obaidx/internal/key"
	"github.com/KilimcininKorOglu/obaidx/internal/logging"
	"github.com/KilimcininKorOglu/obaidx/internal/object"
	"github.com/KilimcininKorOglu/obaidx/internal/storage"
	"github.com/KilimcininKorOglu/obaidx/internal/storage/btree"
)

// Manager errors.
var (
	ErrIndexExists       = errors.New("index already exists")
	ErrIndexNotFound     = errors.New("index not found")
	ErrInvalidName       = errors.New("invalid index name")
	ErrManagerClosed     = errors.New("index manager is closed")
	ErrMetadataCorrupted = errors.New("index metadata corrupted")
)

// Catalogue constants.
const (
	// catalogMarker is the first byte of a catalogue image.
	catalogMarker byte = 0xAA

	// MaxNameLength is the maximum length of an index name.
	MaxNameLength = 256

	// Layout after the name: key type(1) unique(1) root(8) height(4)
	// count(8) capacity(4).
	catalogEntryFixedSize = 2 + 1 + 1 + 8 + 4 + 8 + 4
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Objects owns the indexed values. Defaults to an object.Durable over
	// the manager's page store, so values survive a reopen.
	Objects object.Store
	// Mode is the cursor mode of every index.
	Mode btree.Mode
	// Capacity overrides the page capacity of new indexes.
	Capacity int
	// Logger defaults to a nop logger.
	Logger logging.Logger
}

// Info describes one index of a Manager.
type Info struct {
	Name     string         `json:"name"`
	KeyType  string         `json:"keyType"`
	Unique   bool           `json:"unique"`
	Count    int            `json:"count"`
	Height   int            `json:"height"`
	Capacity int            `json:"capacity"`
	Root     storage.PageID `json:"root"`
}

// Info describes the index.
func (ix *Index) Info() Info {
	meta := ix.Meta()
	return Info{
		Name:     ix.name,
		KeyType:  ix.keyType.String(),
		Unique:   meta.Unique,
		Count:    meta.Count,
		Height:   meta.Height,
		Capacity: meta.Capacity,
		Root:     meta.Root,
	}
}

// Manager owns named indexes sharing one page store. The catalogue of
// their root records lives in the page recorded as the store root.
type Manager struct {
	mu      sync.RWMutex
	store   storage.PageStore
	opts    ManagerOptions
	log     logging.Logger
	catalog storage.PageID
	indexes map[string]*Index
	closed  bool
}

// NewManager opens the catalogue of store, or initializes one when the
// store has no root yet.
func NewManager(store storage.PageStore, opts ManagerOptions) (*Manager, error) {
	if store == nil {
		return nil, errors.New("index manager requires a page store")
	}
	if opts.Objects == nil {
		opts.Objects = object.NewDurable(store)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	m := &Manager{
		store:   store,
		opts:    opts,
		log:     opts.Logger,
		indexes: make(map[string]*Index),
	}

	if root := store.Root(); root != storage.InvalidPageID {
		m.catalog = root
		if err := m.loadCatalog(); err != nil {
			return nil, err
		}
		m.log.Info("index catalogue loaded", "indexes", len(m.indexes))
		return m, nil
	}

	id, err := store.Allocate()
	if err != nil {
		return nil, errors.Wrap(err, "allocate catalogue page")
	}
	m.catalog = id
	if err := m.saveCatalog(); err != nil {
		return nil, err
	}
	if err := store.SetRoot(id); err != nil {
		return nil, err
	}
	m.log.Info("index catalogue initialized", "page", uint64(id))
	return m, nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxNameLength {
		return "", errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return name, nil
}

func (m *Manager) indexOptions(name string, unique bool) Options {
	return Options{
		Name:     name,
		Unique:   unique,
		Mode:     m.opts.Mode,
		Capacity: m.opts.Capacity,
		Objects:  m.opts.Objects,
		Store:    m.store,
		Logger:   m.log,
	}
}

// CreateIndex creates an empty index and records it in the catalogue.
func (m *Manager) CreateIndex(name string, t key.Type, unique bool) (*Index, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if _, exists := m.indexes[name]; exists {
		return nil, errors.Wrapf(ErrIndexExists, "%q", name)
	}

	ix, err := New(t, m.indexOptions(name, unique))
	if err != nil {
		return nil, err
	}
	m.indexes[name] = ix
	if err := m.flushLocked(); err != nil {
		delete(m.indexes, name)
		return nil, err
	}
	m.log.Info("index created", "index", name, "keyType", t.String(), "unique", unique)
	return ix, nil
}

// Index returns the named index.
func (m *Manager) Index(name string) (*Index, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	ix, ok := m.indexes[strings.TrimSpace(name)]
	if !ok {
		return nil, errors.Wrapf(ErrIndexNotFound, "%q", name)
	}
	return ix, nil
}

// DropIndex frees every page of the named index and removes it from the
// catalogue.
func (m *Manager) DropIndex(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	name = strings.TrimSpace(name)
	ix, ok := m.indexes[name]
	if !ok {
		return errors.Wrapf(ErrIndexNotFound, "%q", name)
	}
	if err := ix.Drop(); err != nil {
		return err
	}
	delete(m.indexes, name)
	if err := m.flushLocked(); err != nil {
		return err
	}
	m.log.Info("index dropped", "index", name)
	return nil
}

// Indexes describes every index, sorted by name.
func (m *Manager) Indexes() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.indexes))
	for _, ix := range m.indexes {
		out = append(out, ix.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IndexCount returns the number of indexes.
func (m *Manager) IndexCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.indexes)
}

// Objects returns the object store shared by every index.
func (m *Manager) Objects() object.Store { return m.opts.Objects }

// Store returns the page store holding the indexes.
func (m *Manager) Store() storage.PageStore { return m.store }

// Flush writes every dirty index page, then the catalogue, then syncs the
// store. The decoded pages are evicted afterwards, so later reads go
// through the store and its page cache.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	if err := m.flushLocked(); err != nil {
		return err
	}

	evicted := 0
	for _, ix := range m.indexes {
		evicted += ix.Evict()
	}
	m.log.Debug("indexes flushed", "indexes", len(m.indexes), "evictedPages", evicted)
	return nil
}

func (m *Manager) flushLocked() error {
	for name, ix := range m.indexes {
		if err := ix.Flush(); err != nil {
			return errors.Wrapf(err, "flush index %q", name)
		}
	}
	if err := m.saveCatalog(); err != nil {
		return err
	}
	return m.store.Sync()
}

// Check verifies every index.
func (m *Manager) Check() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ix := range m.indexes {
		if err := ix.Check(); err != nil {
			return errors.Wrapf(err, "index %q", name)
		}
	}
	return nil
}

// Close flushes and closes the page store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	err := m.flushLocked()
	m.closed = true
	m.indexes = nil
	if cerr := m.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// encodeCatalog lays out the catalogue as: marker(1) count(2) then one
// entry per index, sorted by name.
func (m *Manager) encodeCatalog() []byte {
	names := make([]string, 0, len(m.indexes))
	for name := range m.indexes {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := make([]byte, 3, 3+len(names)*(catalogEntryFixedSize+16))
	buf[0] = catalogMarker
	binary.LittleEndian.PutUint16(buf[1:], uint16(len(names)))

	for _, name := range names {
		ix := m.indexes[name]
		meta := ix.Meta()

		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(name)))
		buf = append(buf, name...)
		buf = append(buf, byte(ix.KeyType()))
		if meta.Unique {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = binary.LittleEndian.AppendUint64(buf, uint64(meta.Root))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(meta.Height))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(meta.Count))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(meta.Capacity))
	}
	return buf
}

func (m *Manager) saveCatalog() error {
	if err := m.store.Write(m.catalog, m.encodeCatalog()); err != nil {
		return errors.Wrap(err, "write index catalogue")
	}
	return nil
}

func (m *Manager) loadCatalog() error {
	data, err := m.store.Read(m.catalog)
	if err != nil {
		return errors.Wrap(err, "read index catalogue")
	}
	if len(data) < 3 || data[0] != catalogMarker {
		return errors.Wrap(ErrMetadataCorrupted, "bad catalogue header")
	}

	n := int(binary.LittleEndian.Uint16(data[1:]))
	offset := 3
	for i := 0; i < n; i++ {
		if offset+2 > len(data) {
			return errors.Wrapf(ErrMetadataCorrupted, "entry %d truncated", i)
		}
		nameLen := int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
		if nameLen > MaxNameLength || offset+nameLen+catalogEntryFixedSize-2 > len(data) {
			return errors.Wrapf(ErrMetadataCorrupted, "entry %d truncated", i)
		}
		name := string(data[offset : offset+nameLen])
		offset += nameLen

		t := key.Type(data[offset])
		meta := btree.Meta{Unique: data[offset+1] == 1}
		offset += 2
		meta.Root = storage.PageID(binary.LittleEndian.Uint64(data[offset:]))
		offset += 8
		meta.Height = int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
		meta.Count = int(binary.LittleEndian.Uint64(data[offset:]))
		offset += 8
		meta.Capacity = int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4

		ix, err := open(t, &meta, m.indexOptions(name, meta.Unique))
		if err != nil {
			return errors.Wrapf(err, "open index %q", name)
		}
		m.indexes[name] = ix
	}
	return nil
}
