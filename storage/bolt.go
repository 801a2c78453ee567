package storage

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("state")

// BoltDB stores state in a single bucket of a bbolt file. bbolt allows one
// writer at a time, so Update calls are serialised.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens or creates the bbolt file at path.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &BoltDB{db: db}, nil
}

func (bdb *BoltDB) Put(key []byte, value []byte) error {
	return bdb.Update(func(tx Tx) error { return tx.Put(key, value) })
}

func (bdb *BoltDB) Get(key []byte) ([]byte, error) {
	var value []byte
	err := bdb.db.View(func(tx *bolt.Tx) error {
		var err error
		value, err = (&boltTx{bucket: tx.Bucket(boltBucket)}).Get(key)
		return err
	})
	return value, err
}

func (bdb *BoltDB) Has(key []byte) (bool, error) {
	var ok bool
	err := bdb.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(boltBucket).Get(key) != nil
		return nil
	})
	return ok, err
}

func (bdb *BoltDB) Delete(key []byte) error {
	return bdb.Update(func(tx Tx) error { return tx.Delete(key) })
}

// Update maps onto a bbolt read-write transaction, which rolls back when fn
// returns an error.
func (bdb *BoltDB) Update(fn func(Tx) error) error {
	return bdb.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltTx{bucket: tx.Bucket(boltBucket)})
	})
}

func (bdb *BoltDB) Close() {
	bdb.db.Close()
}

type boltTx struct {
	bucket *bolt.Bucket
}

// Get copies the value out because bbolt slices are only valid for the
// lifetime of the transaction.
func (tx *boltTx) Get(key []byte) ([]byte, error) {
	value := tx.bucket.Get(key)
	if value == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (tx *boltTx) Has(key []byte) (bool, error) {
	return tx.bucket.Get(key) != nil, nil
}

func (tx *boltTx) Put(key []byte, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	return tx.bucket.Put(key, value)
}

func (tx *boltTx) Delete(key []byte) error {
	return tx.bucket.Delete(key)
}

// Open selects a backend by name. An empty name means leveldb.
func Open(backend, path string) (Database, error) {
	switch backend {
	case "", "leveldb":
		return NewLevelDB(path)
	case "bolt":
		return NewBoltDB(path)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
