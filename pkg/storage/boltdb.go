package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	// ErrBucketNotFound is returned when reading a bucket that was never written
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrObjectNotFound is returned by GetObject for a missing key
	ErrObjectNotFound = errors.New("object not found")
)

// BoltStore keeps untyped objects as JSON values in bbolt buckets, one
// bucket per record store bucket name.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the bbolt file at path
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// PutObject stores value under key in bucket, creating the bucket if needed.
func (s *BoltStore) PutObject(bucket, key string, value map[string]interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode object %s: %w", key, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		return b.Put([]byte(key), data)
	})
}

// GetObject returns the object stored under key in bucket
func (s *BoltStore) GetObject(bucket, key string) (map[string]interface{}, error) {
	var value map[string]interface{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
		}
		return decode(data, &value)
	})
	return value, err
}

// ForEachObject calls fn for every object in bucket in key order. An
// error returned by fn stops the iteration and is returned.
func (s *BoltStore) ForEachObject(bucket string, fn func(key string, value map[string]interface{}) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
		}
		return b.ForEach(func(k, v []byte) error {
			var value map[string]interface{}
			if err := decode(v, &value); err != nil {
				return fmt.Errorf("failed to decode object %s: %w", k, err)
			}
			return fn(string(k), value)
		})
	})
}

// Buckets lists bucket names in order
func (s *BoltStore) Buckets() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, err
}

// CountObjects returns the number of keys in bucket
func (s *BoltStore) CountObjects(bucket string) (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

// decode keeps integers as json.Number so large sizes survive a round trip.
func decode(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
