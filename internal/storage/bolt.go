// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var boltBucket = []byte("lingochat")

// BoltStore is a Store backed by one bbolt bucket.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the bbolt file at path. bbolt holds its own
// file lock, so a second process blocks for at most a second and then fails.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Get(key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// Copy required: bbolt values are only valid during the transaction
		out = append([]byte{}, v...)
		return nil
	})
	return out, b.wrap(err)
}

func (b *BoltStore) Set(key string, value []byte) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		if value == nil {
			value = []byte{}
		}
		return tx.Bucket(boltBucket).Put([]byte(key), value)
	})
	return b.wrap(err)
}

func (b *BoltStore) Delete(key string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
	return b.wrap(err)
}

func (b *BoltStore) Keys() ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bbolt.Tx) error {
		// bbolt iterates in byte order, which is already ascending
		return tx.Bucket(boltBucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, b.wrap(err)
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}

func (b *BoltStore) wrap(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return err
}
