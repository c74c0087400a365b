package zonestore

import (
	"errors"
	"fmt"
	"math"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-zoned/internal/dns/domain"
)

// GetZone returns the zone with id.
func (s *Store) GetZone(id uint64) (domain.Zone, error) {
	var z domain.Zone
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		z, err = loadZone(tx, id)
		return err
	})
	return z, err
}

// ListZones returns all zones ordered by name.
func (s *Store) ListZones() ([]domain.Zone, error) {
	var zones []domain.Zone
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketZoneNames).ForEach(func(_, v []byte) error {
			z, err := loadZone(tx, btoi(v))
			if err != nil {
				return err
			}
			zones = append(zones, z)
			return nil
		})
	})
	return zones, err
}

// UpsertZone creates z when z.ID is 0 and updates it otherwise. Creation
// assigns the initial serial (current unix time when unset); every update
// increments the serial by one. A zone cannot be renamed.
func (s *Store) UpsertZone(z domain.Zone) (domain.Zone, error) {
	z = z.Normalize()
	if err := z.Validate(); err != nil {
		return domain.Zone{}, err
	}

	if z.ID == 0 {
		var created domain.Zone
		err := s.zoneSetUpdate(func(tx *bbolt.Tx) error {
			var err error
			created, err = s.insertZone(tx, z)
			return err
		})
		if err != nil {
			return domain.Zone{}, err
		}
		s.logger.Info(map[string]any{"zone": created.Name, "id": created.ID, "serial": created.Serial}, "zone created")
		return created, nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		existing, err := loadZone(tx, z.ID)
		if err != nil {
			return err
		}
		if existing.Name != z.Name {
			return fmt.Errorf("%w: zone name cannot be changed (%s -> %s)", domain.ErrInvalidZone, existing.Name, z.Name)
		}
		if existing.Serial == math.MaxUint32 {
			return fmt.Errorf("%w: serial of %s exhausted", domain.ErrInvalidZone, existing.Name)
		}
		z.Serial = existing.Serial + 1
		return saveZone(tx, z)
	})
	if err != nil {
		return domain.Zone{}, err
	}
	s.logger.Info(map[string]any{"zone": z.Name, "id": z.ID, "serial": z.Serial}, "zone updated")
	return z, nil
}

// DeleteZone removes the zone and all of its records.
func (s *Store) DeleteZone(id uint64) error {
	var name string
	err := s.zoneSetUpdate(func(tx *bbolt.Tx) error {
		z, err := loadZone(tx, id)
		if err != nil {
			return err
		}
		name = z.Name
		zoneKey := itob(id)
		if records := tx.Bucket(bucketRecords).Bucket(zoneKey); records != nil {
			idx := tx.Bucket(bucketRecordIdx)
			if err := records.ForEach(func(k, _ []byte) error {
				return idx.Delete(k[len(k)-8:])
			}); err != nil {
				return err
			}
			if err := tx.Bucket(bucketRecords).DeleteBucket(zoneKey); err != nil {
				return err
			}
		}
		if err := tx.Bucket(bucketZoneNames).Delete([]byte(z.Name)); err != nil {
			return err
		}
		return tx.Bucket(bucketZones).Delete(zoneKey)
	})
	if err != nil {
		return err
	}
	s.logger.Info(map[string]any{"zone": name, "id": id}, "zone deleted")
	return nil
}

// CreateZoneWithRecords creates a zone and all of its records atomically.
// Either everything is stored or nothing is.
func (s *Store) CreateZoneWithRecords(z domain.Zone, records []domain.Record) (domain.Zone, error) {
	z = z.Normalize()
	z.ID = 0
	if err := z.Validate(); err != nil {
		return domain.Zone{}, err
	}

	var created domain.Zone
	err := s.zoneSetUpdate(func(tx *bbolt.Tx) error {
		var err error
		created, err = s.insertZone(tx, z)
		if err != nil {
			return err
		}
		for i, r := range records {
			r.ID = 0
			if _, err := insertRecord(tx, created, r); err != nil {
				return fmt.Errorf("record %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Zone{}, err
	}
	s.logger.Info(map[string]any{"zone": created.Name, "id": created.ID, "records": len(records)}, "zone imported")
	return created, nil
}

func (s *Store) insertZone(tx *bbolt.Tx, z domain.Zone) (domain.Zone, error) {
	names := tx.Bucket(bucketZoneNames)
	if names.Get([]byte(z.Name)) != nil {
		return domain.Zone{}, fmt.Errorf("zone %s: %w", z.Name, domain.ErrAlreadyExists)
	}
	zones := tx.Bucket(bucketZones)
	id, err := zones.NextSequence()
	if err != nil {
		return domain.Zone{}, err
	}
	z.ID = id
	if z.Serial == 0 {
		z.Serial = uint32(s.clock.Now().Unix())
	}
	if err := saveZone(tx, z); err != nil {
		return domain.Zone{}, err
	}
	if err := names.Put([]byte(z.Name), itob(id)); err != nil {
		return domain.Zone{}, err
	}
	if _, err := tx.Bucket(bucketRecords).CreateBucketIfNotExists(itob(id)); err != nil {
		return domain.Zone{}, err
	}
	return z, nil
}

func loadZone(tx *bbolt.Tx, id uint64) (domain.Zone, error) {
	var z domain.Zone
	found, err := getJSON(tx.Bucket(bucketZones), itob(id), &z)
	if err != nil {
		return domain.Zone{}, fmt.Errorf("decode zone %d: %w", id, err)
	}
	if !found {
		return domain.Zone{}, fmt.Errorf("zone %d: %w", id, domain.ErrNotFound)
	}
	return z, nil
}

func saveZone(tx *bbolt.Tx, z domain.Zone) error {
	return putJSON(tx.Bucket(bucketZones), itob(z.ID), z)
}

// bumpSerial increments the serial of the zone owning a changed record.
func bumpSerial(tx *bbolt.Tx, zoneID uint64) (domain.Zone, error) {
	z, err := loadZone(tx, zoneID)
	if err != nil {
		return domain.Zone{}, err
	}
	if z.Serial == math.MaxUint32 {
		return domain.Zone{}, errors.New("zone serial exhausted")
	}
	z.Serial++
	return z, saveZone(tx, z)
}
