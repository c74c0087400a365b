// Package querylog keeps an append-only record of answered queries in bbolt.
package querylog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-zoned/internal/dns/common/log"
	"github.com/haukened/rr-zoned/internal/dns/domain"
)

// DefaultRecentLimit is the number of entries Recent returns for limit <= 0.
const DefaultRecentLimit = 200

var bucketQueries = []byte("queries")

type Options struct {
	Path string
	// Retain bounds the number of stored entries; older ones are trimmed on
	// append. 0 keeps everything.
	Retain int
	Logger log.Logger
}

// Store is the bbolt backed query log. Keys are bbolt sequence numbers so
// iteration order is insertion order.
type Store struct {
	db     *bbolt.DB
	retain uint64
	logger log.Logger
}

// Open opens (or creates) the query log database.
func Open(opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Retain < 0 {
		opts.Retain = 0
	}
	db, err := bbolt.Open(opts.Path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open query log %s: %w", opts.Path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketQueries)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize query log: %w", err)
	}
	return &Store{db: db, retain: uint64(opts.Retain), logger: opts.Logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record appends an entry. Failures are logged and swallowed so that query
// handling never depends on the log.
func (s *Store) Record(entry domain.QueryLogEntry) {
	if err := s.Append(entry); err != nil {
		s.logger.Warn(map[string]any{"qname": entry.QName, "error": err.Error()}, "query log write failed")
	}
}

// Append stores an entry and trims entries beyond the retention bound.
func (s *Store) Append(entry domain.QueryLogEntry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketQueries)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		entry.ID = seq
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := b.Put(itob(seq), data); err != nil {
			return err
		}
		if s.retain == 0 || seq <= s.retain {
			return nil
		}
		return trimBefore(b, seq-s.retain+1)
	})
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]domain.QueryLogEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	out := make([]domain.QueryLogEntry, 0, min(limit, 64))
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketQueries).Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var e domain.QueryLogEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode query log entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// trimBefore deletes every entry whose sequence is below first.
func trimBefore(b *bbolt.Bucket, first uint64) error {
	c := b.Cursor()
	for k, _ := c.First(); k != nil && binary.BigEndian.Uint64(k) < first; k, _ = c.First() {
		if err := c.Delete(); err != nil {
			return err
		}
	}
	return nil
}

func itob(v uint64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), v)
}
