package zonestore

import (
	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-zoned/internal/dns/common/utils"
	"github.com/haukened/rr-zoned/internal/dns/domain"
)

// FindZoneForName returns the zone whose name is the longest label-wise suffix
// of name. Candidate suffixes rejected by the apex prefilter skip the database,
// and results (including misses) are cached per query name until the set of
// zones changes.
func (s *Store) FindZoneForName(name string) (domain.Zone, bool, error) {
	qname := utils.CanonicalDNSName(name)
	if qname == "" {
		return domain.Zone{}, false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.cache.Get(qname); ok {
		if id == 0 {
			return domain.Zone{}, false, nil
		}
		z, err := s.GetZone(id)
		if err != nil {
			return domain.Zone{}, false, err
		}
		return z, true, nil
	}

	var zone domain.Zone
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		index := tx.Bucket(bucketZoneNames)
		for _, candidate := range utils.CandidateZones(qname) {
			if !s.names.MightContain(candidate) {
				continue
			}
			v := index.Get([]byte(candidate))
			if v == nil {
				continue
			}
			z, err := loadZone(tx, btoi(v))
			if err != nil {
				return err
			}
			zone, found = z, true
			return nil
		}
		return nil
	})
	if err != nil {
		return domain.Zone{}, false, err
	}

	s.cache.Put(qname, zone.ID)
	return zone, found, nil
}

// MatchCacheStats reports hits, misses and evictions of the match cache.
func (s *Store) MatchCacheStats() (hits, misses, evictions uint64) {
	return s.cache.Stats()
}
