package repository

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names for the key-value fallback backend. Each entity kind is
// one bucket; every record is stored as a JSON blob under its id.
//
// This backend exists for runtimes where SQLite cannot initialize (no
// cgo, sandboxed filesystem). Mutations are read-modify-write inside a
// single bolt transaction, which bounds it to survey-scale record
// counts; that is an accepted limit of the constrained platform, not a
// bug.
var (
	bucketSites       = []byte("sites")
	bucketSurveys     = []byte("surveys")
	bucketInspections = []byte("asset_inspections")
	bucketPhotos      = []byte("photos")
)

// NewBoltDB opens the key-value fallback store, creating buckets as needed
func NewBoltDB(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSites, bucketSurveys, bucketInspections, bucketPhotos} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func boltPut(tx *bolt.Tx, bucket []byte, id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", bucket, err)
	}
	return tx.Bucket(bucket).Put([]byte(id), data)
}

// boltGet loads one record; found is false when the key does not exist
func boltGet(db *bolt.DB, bucket []byte, id string, v interface{}) (bool, error) {
	found := false
	err := db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, v)
	})
	return found, err
}

func boltDelete(db *bolt.DB, bucket []byte, id string) (bool, error) {
	existed := false
	err := db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b.Get([]byte(id)) == nil {
			return nil
		}
		existed = true
		return b.Delete([]byte(id))
	})
	return existed, err
}

func boltForEach(db *bolt.DB, bucket []byte, fn func(data []byte) error) error {
	return db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(_, data []byte) error {
			return fn(data)
		})
	})
}
