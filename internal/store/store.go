// Package store persists administrative state — static entries, the RARP
// reverse map, and conflict audit records — in BoltDB. The engine itself
// is memory-only; the store feeds its init and records what the admin API
// changes so restarts keep the operator's intent.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltDB bucket names.
var (
	bucketStatic    = []byte("static_entries")
	bucketReverse   = []byte("reverse_map")
	bucketConflicts = []byte("conflict_log")
)

// StaticRecord is a persisted static cache entry.
type StaticRecord struct {
	Interface string `json:"interface"`
	IP        string `json:"ip"`
	MAC       string `json:"mac"`
}

// ReverseRecord is a persisted RARP reverse mapping.
type ReverseRecord struct {
	MAC string `json:"mac"`
	IP  string `json:"ip"`
}

// ConflictRecord is an audit entry appended when an address conflict is
// observed.
type ConflictRecord struct {
	Interface  string    `json:"interface"`
	IP         string    `json:"ip"`
	RivalMAC   string    `json:"rival_mac,omitempty"`
	Phase      string    `json:"phase"`
	DetectedAt time.Time `json:"detected_at"`
}

// Store wraps a BoltDB database holding the administrative state.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database and its buckets.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening state database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketStatic, bucketReverse, bucketConflicts} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("creating bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing database buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for collaborators sharing the database file.
func (s *Store) DB() *bolt.DB {
	return s.db
}

func staticKey(iface, ip string) []byte {
	return []byte(iface + "|" + ip)
}

// PutStatic persists a static entry.
func (s *Store) PutStatic(r StaticRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshalling static entry for %s: %w", r.IP, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStatic).Put(staticKey(r.Interface, r.IP), data)
	})
}

// DeleteStatic removes a persisted static entry.
func (s *Store) DeleteStatic(iface, ip string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStatic).Delete(staticKey(iface, ip))
	})
}

// StaticEntries returns all persisted static entries.
func (s *Store) StaticEntries() ([]StaticRecord, error) {
	var out []StaticRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStatic).ForEach(func(k, v []byte) error {
			var r StaticRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshalling static entry %s: %w", k, err)
			}
			out = append(out, r)
			return nil
		})
	})
	return out, err
}

// PutReverse persists a RARP reverse mapping keyed by MAC.
func (s *Store) PutReverse(r ReverseRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshalling reverse entry for %s: %w", r.MAC, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReverse).Put([]byte(r.MAC), data)
	})
}

// ReverseEntries returns all persisted reverse mappings.
func (s *Store) ReverseEntries() ([]ReverseRecord, error) {
	var out []ReverseRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReverse).ForEach(func(k, v []byte) error {
			var r ReverseRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshalling reverse entry %s: %w", k, err)
			}
			out = append(out, r)
			return nil
		})
	})
	return out, err
}

// AppendConflict appends a conflict audit record.
func (s *Store) AppendConflict(r ConflictRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshalling conflict record for %s: %w", r.IP, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConflicts)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := []byte(fmt.Sprintf("%016d", seq))
		return b.Put(key, data)
	})
}

// Conflicts returns up to limit most recent conflict records, newest first.
func (s *Store) Conflicts(limit int) ([]ConflictRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []ConflictRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketConflicts).Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var r ConflictRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshalling conflict record %s: %w", k, err)
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}
