// Bolt-backed KV: a single bucket holding every prefixed key range,
// addressed by the byte-prefix key layout in keys.go. bbolt's transaction
// model maps directly onto the store contract: an Update transaction is
// the write batch, a View transaction is the snapshot, and bbolt's own
// fsync-on-commit (db.NoSync=false, the default) gives the durable-sync
// semantics the contract requires.
package store

import (
	"bytes"

	bbolt "go.etcd.io/bbolt"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"

	"vulkan/corverrors"
)

// bucketName is the single bbolt bucket backing every prefixed key range
// (U/B/H/T/X/M/I/N). bbolt already gives us a second namespacing axis
// (buckets); using one bucket and letting the byte-prefix do the work
// keeps Iterate(prefix) simple.
var bucketName = []byte("core")

// BoltKV is a KV backed by a bbolt database file.
type BoltKV struct {
	db *bbolt.DB
}

// OpenBolt opens (creating if necessary) a bbolt database at path and
// ensures the core bucket exists.
func OpenBolt(path string) (*BoltKV, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, corverrors.Wrap(corverrors.Storage, "open bolt db", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, corverrors.Wrap(corverrors.Storage, "create bucket", err)
	}
	return &BoltKV{db: db}, nil
}

func (b *BoltKV) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get(key)
		if v != nil {
			val = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, corverrors.Wrap(corverrors.Storage, "get", err)
	}
	return val, nil
}

func (b *BoltKV) Put(key, value []byte) error {
	return b.WriteBatch([]Op{Put(key, value)}, true)
}

func (b *BoltKV) Delete(key []byte) error {
	return b.WriteBatch([]Op{Delete(key)}, true)
}

// WriteBatch commits ops inside a single bbolt transaction. bbolt
// transactions are atomic and, by default, fsync on commit; when sync is
// false we temporarily relax that so bulk/non-durable callers (none in the
// core today, but the contract allows it) can skip the fsync cost.
func (b *BoltKV) WriteBatch(ops []Op, sync bool) error {
	prevNoSync := b.db.NoSync
	b.db.NoSync = !sync
	defer func() { b.db.NoSync = prevNoSync }()

	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		for _, op := range ops {
			switch op.Kind {
			case OpPut:
				if err := bucket.Put(op.Key, op.Value); err != nil {
					return err
				}
			case OpDelete:
				if err := bucket.Delete(op.Key); err != nil {
					return err
				}
			default:
				return xerrors.Errorf("unknown op kind %d", op.Kind)
			}
		}
		return nil
	})
	if err != nil {
		log.Errorf("store: write batch of %d ops failed: %v", len(ops), err)
		return corverrors.Wrap(corverrors.Storage, "write batch", err)
	}
	return nil
}

func (b *BoltKV) Snapshot() (Snapshot, error) {
	tx, err := b.db.Begin(false)
	if err != nil {
		return nil, corverrors.Wrap(corverrors.Storage, "begin snapshot", err)
	}
	return &boltSnapshot{tx: tx}, nil
}

func (b *BoltKV) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	err := b.db.View(func(tx *bbolt.Tx) error {
		return iterateBucket(tx.Bucket(bucketName), prefix, fn)
	})
	if err != nil {
		return corverrors.Wrap(corverrors.Storage, "iterate", err)
	}
	return nil
}

func (b *BoltKV) Close() error {
	if err := b.db.Close(); err != nil {
		return corverrors.Wrap(corverrors.Storage, "close", err)
	}
	return nil
}

type boltSnapshot struct {
	tx *bbolt.Tx
}

func (s *boltSnapshot) Get(key []byte) ([]byte, error) {
	v := s.tx.Bucket(bucketName).Get(key)
	if v == nil {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *boltSnapshot) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	return iterateBucket(s.tx.Bucket(bucketName), prefix, fn)
}

func (s *boltSnapshot) Close() error {
	return s.tx.Rollback()
}

func iterateBucket(bucket *bbolt.Bucket, prefix []byte, fn func(key, value []byte) error) error {
	c := bucket.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}
