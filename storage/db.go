package storage

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// Reader exposes point lookups.
type Reader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

// Tx is a read-write view whose writes become visible only when the
// surrounding Update call returns without error.
type Tx interface {
	Reader
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Database is a generic interface for a key-value store.
// This allows the engine to use any database backend (in-memory or persistent).
type Database interface {
	Reader
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	// Update runs fn inside a transaction. Every write performed through the
	// supplied Tx is applied atomically when fn returns nil and discarded
	// otherwise.
	Update(fn func(Tx) error) error
	Close() // A way to gracefully shut down the database connection.
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{
		data: make(map[string][]byte),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (db *MemDB) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.data[string(key)]
	return ok, nil
}

func (db *MemDB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.data, string(key))
	return nil
}

// Update holds the write lock for the whole transaction, so concurrent
// updates are serialised and each one observes the previous commit.
func (db *MemDB) Update(fn func(Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	tx := &memTx{base: db.data, writes: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	for key, value := range tx.writes {
		if value == nil {
			delete(db.data, key)
			continue
		}
		db.data[key] = value
	}
	return nil
}

// Len reports the number of stored keys.
func (db *MemDB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.data)
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	// Nothing to close for an in-memory database.
}

// memTx overlays pending writes on top of the committed map. A nil value in
// writes marks a deletion.
type memTx struct {
	base   map[string][]byte
	writes map[string][]byte
}

func (tx *memTx) Get(key []byte) ([]byte, error) {
	if value, ok := tx.writes[string(key)]; ok {
		if value == nil {
			return nil, ErrNotFound
		}
		return append([]byte(nil), value...), nil
	}
	value, ok := tx.base[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (tx *memTx) Has(key []byte) (bool, error) {
	if value, ok := tx.writes[string(key)]; ok {
		return value != nil, nil
	}
	_, ok := tx.base[string(key)]
	return ok, nil
}

func (tx *memTx) Put(key []byte, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	tx.writes[string(key)] = stored
	return nil
}

func (tx *memTx) Delete(key []byte) error {
	tx.writes[string(key)] = nil
	return nil
}

// --- Persistent DB (for mainnet) ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Has reports whether the key exists.
func (ldb *LevelDB) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, nil)
}

// Delete removes the key. Deleting a missing key is not an error.
func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

// Update runs fn inside a LevelDB transaction. LevelDB blocks other writers
// while the transaction is open.
func (ldb *LevelDB) Update(fn func(Tx) error) error {
	tr, err := ldb.db.OpenTransaction()
	if err != nil {
		return err
	}
	if err := fn(&levelTx{tr: tr}); err != nil {
		tr.Discard()
		return err
	}
	return tr.Commit()
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.db.Close()
}

type levelTx struct {
	tr *leveldb.Transaction
}

func (tx *levelTx) Get(key []byte) ([]byte, error) {
	value, err := tx.tr.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (tx *levelTx) Has(key []byte) (bool, error) {
	return tx.tr.Has(key, nil)
}

func (tx *levelTx) Put(key []byte, value []byte) error {
	return tx.tr.Put(key, value, nil)
}

func (tx *levelTx) Delete(key []byte) error {
	return tx.tr.Delete(key, nil)
}
