// Package zonestore persists zones, records and server settings in bbolt and
// answers longest-suffix zone lookups for the resolver.
package zonestore

import (
	"fmt"
	"sync"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-zoned/internal/dns/common/clock"
	"github.com/haukened/rr-zoned/internal/dns/common/log"
	"github.com/haukened/rr-zoned/internal/dns/domain"
	"github.com/haukened/rr-zoned/internal/dns/repos/zonestore/bloom"
	"github.com/haukened/rr-zoned/internal/dns/repos/zonestore/lru"
)

var (
	bucketZones     = []byte("zones")        // zone id -> Zone JSON
	bucketZoneNames = []byte("zone_names")   // canonical name -> zone id
	bucketRecords   = []byte("records")      // zone id -> bucket of recordKey -> Record JSON
	bucketRecordIdx = []byte("record_index") // record id -> zone id + recordKey
	bucketSettings  = []byte("settings")     // key -> value
)

// Options configures Open.
type Options struct {
	// Path of the bbolt database file.
	Path string
	// Seed values are written for settings keys not yet present.
	Seed domain.Settings
	// MatchCacheSize bounds the name to zone cache. 0 disables it.
	MatchCacheSize int
	// FalsePositiveRate of the zone apex prefilter.
	FalsePositiveRate float64
	Clock             clock.Clock
	Logger            log.Logger
}

// Store is the bbolt backed zone store. All mutations of one zone's data and
// its serial bump commit in the same transaction.
type Store struct {
	db     *bbolt.DB
	clock  clock.Clock
	logger log.Logger
	fpRate float64

	// mu orders zone set changes against lookups so the prefilter and the
	// match cache never disagree with the committed zone names.
	mu    sync.RWMutex
	names *bloom.Filter
	cache lru.Cache
}

// Open opens (or creates) the database at opts.Path, ensures buckets exist and
// seeds missing settings.
func Open(opts Options) (*Store, error) {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	seed := opts.Seed
	if seed.ListenAddr == "" {
		seed = domain.DefaultSettings()
	}

	cache, err := lru.New(opts.MatchCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create match cache: %w", err)
	}

	db, err := bbolt.Open(opts.Path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open zone store %s: %w", opts.Path, err)
	}

	var names []string
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketZones, bucketZoneNames, bucketRecords, bucketRecordIdx, bucketSettings} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		settings := tx.Bucket(bucketSettings)
		for k, v := range seed.ToMap() {
			if settings.Get([]byte(k)) == nil {
				if err := settings.Put([]byte(k), []byte(v)); err != nil {
					return err
				}
			}
		}
		names = zoneNames(tx)
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize zone store: %w", err)
	}

	s := &Store{
		db:     db,
		clock:  opts.Clock,
		logger: opts.Logger,
		fpRate: opts.FalsePositiveRate,
		cache:  cache,
	}
	s.names = bloom.Build(names, s.fpRate)
	s.logger.Info(map[string]any{"path": opts.Path, "zones": len(names)}, "zone store opened")
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// zoneSetUpdate runs fn in a write transaction that may add or remove zones,
// then rebuilds the apex prefilter and clears the match cache.
func (s *Store) zoneSetUpdate(fn func(tx *bbolt.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		names = zoneNames(tx)
		return nil
	})
	if err != nil {
		return err
	}
	s.names = bloom.Build(names, s.fpRate)
	s.cache.Purge()
	return nil
}

func zoneNames(tx *bbolt.Tx) []string {
	var names []string
	_ = tx.Bucket(bucketZoneNames).ForEach(func(k, _ []byte) error {
		names = append(names, string(k))
		return nil
	})
	return names
}
