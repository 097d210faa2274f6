/*
 * This file is part of the thermo-mate distribution (https://github.com/mlipscombe/thermo-mate).
 * Copyright (c) 2024 Mark Lipscombe.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, version 3.
 *
 * This program is distributed in the hope that it will be useful, but
 * WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
 * General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program. If not, see <http://www.gnu.org/licenses/>.
 */

package eeprom

import (
	"bytes"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	boltBucket = []byte("eeprom")
	boltKey    = []byte("image")
)

// Bolt keeps the whole image as a single value in a bbolt database, so
// every write is an atomic replace of the blob.
type Bolt struct {
	db   *bolt.DB
	size int64
}

func OpenBolt(path string, size int) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open eeprom db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(boltBucket)
		if err != nil {
			return err
		}
		if len(b.Get(boltKey)) >= size {
			return nil
		}
		image := bytes.Repeat([]byte{Erased}, size)
		copy(image, b.Get(boltKey))
		return b.Put(boltKey, image)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise eeprom db %s: %w", path, err)
	}
	return &Bolt{db: db, size: int64(size)}, nil
}

func (e *Bolt) Size() int64 { return e.size }

func (e *Bolt) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(e, len(p), off); err != nil {
		return 0, err
	}
	var n int
	err := e.db.View(func(tx *bolt.Tx) error {
		n = copy(p, tx.Bucket(boltBucket).Get(boltKey)[off:])
		return nil
	})
	return n, err
}

func (e *Bolt) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange(e, len(p), off); err != nil {
		return 0, err
	}
	var n int
	err := e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucket)
		image := append([]byte(nil), b.Get(boltKey)...)
		n = copy(image[off:], p)
		return b.Put(boltKey, image)
	})
	return n, err
}

func (e *Bolt) Close() error {
	return e.db.Close()
}
