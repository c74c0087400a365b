package zonestore

import (
	"bytes"
	"encoding/json"
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-zoned/internal/dns/domain"
)

// GetRecord returns the record with id.
func (s *Store) GetRecord(id uint64) (domain.Record, error) {
	var r domain.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		r, _, err = loadRecord(tx, id)
		return err
	})
	return r, err
}

// ListRecords returns the records of a zone ordered by (name, type).
func (s *Store) ListRecords(zoneID uint64) ([]domain.Record, error) {
	var out []domain.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		if _, err := loadZone(tx, zoneID); err != nil {
			return err
		}
		var err error
		out, err = scanRecords(tx, zoneID, nil)
		return err
	})
	return out, err
}

// RecordsByOwnerAndType returns the records of zoneID at owner with type t.
func (s *Store) RecordsByOwnerAndType(zoneID uint64, owner string, t domain.RRType) ([]domain.Record, error) {
	var out []domain.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		out, err = scanRecords(tx, zoneID, ownerTypePrefix(owner, t))
		return err
	})
	return out, err
}

// RecordsByOwner returns every record of zoneID at owner.
func (s *Store) RecordsByOwner(zoneID uint64, owner string) ([]domain.Record, error) {
	var out []domain.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		out, err = scanRecords(tx, zoneID, ownerPrefix(owner))
		return err
	})
	return out, err
}

// UpsertRecord creates r when r.ID is 0 and replaces it otherwise. The owner
// name is qualified against the zone and the zone serial is bumped in the
// same transaction. Records cannot move between zones.
func (s *Store) UpsertRecord(r domain.Record) (domain.Record, error) {
	var saved domain.Record
	var zone domain.Zone
	err := s.db.Update(func(tx *bbolt.Tx) error {
		zoneID := r.ZoneID
		if r.ID != 0 {
			existing, key, err := loadRecord(tx, r.ID)
			if err != nil {
				return err
			}
			if zoneID != 0 && zoneID != existing.ZoneID {
				return fmt.Errorf("%w: record %d belongs to zone %d", domain.ErrInvalidRecord, r.ID, existing.ZoneID)
			}
			zoneID = existing.ZoneID
			if err := tx.Bucket(bucketRecords).Bucket(itob(zoneID)).Delete(key); err != nil {
				return err
			}
		}
		z, err := loadZone(tx, zoneID)
		if err != nil {
			return err
		}
		if saved, err = insertRecord(tx, z, r); err != nil {
			return err
		}
		zone, err = bumpSerial(tx, zoneID)
		return err
	})
	if err != nil {
		return domain.Record{}, err
	}
	s.logger.Debug(map[string]any{"zone": zone.Name, "serial": zone.Serial, "name": saved.Name, "type": saved.Type.String(), "id": saved.ID}, "record saved")
	return saved, nil
}

// DeleteRecord removes a record and bumps its zone serial.
func (s *Store) DeleteRecord(id uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		r, key, err := loadRecord(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketRecords).Bucket(itob(r.ZoneID)).Delete(key); err != nil {
			return err
		}
		if err := tx.Bucket(bucketRecordIdx).Delete(itob(id)); err != nil {
			return err
		}
		_, err = bumpSerial(tx, r.ZoneID)
		return err
	})
}

// insertRecord normalizes, validates and stores r in zone z. A zero r.ID gets
// a fresh id.
func insertRecord(tx *bbolt.Tx, z domain.Zone, r domain.Record) (domain.Record, error) {
	r = r.Normalize(z.Name)
	r.ZoneID = z.ID
	if err := r.Validate(); err != nil {
		return domain.Record{}, err
	}
	if !z.Contains(r.Name) {
		return domain.Record{}, fmt.Errorf("%w: %s is outside zone %s", domain.ErrInvalidRecord, r.Name, z.Name)
	}

	idx := tx.Bucket(bucketRecordIdx)
	if r.ID == 0 {
		id, err := idx.NextSequence()
		if err != nil {
			return domain.Record{}, err
		}
		r.ID = id
	}
	records := tx.Bucket(bucketRecords).Bucket(itob(z.ID))
	if records == nil {
		return domain.Record{}, fmt.Errorf("records of zone %d: %w", z.ID, domain.ErrNotFound)
	}
	key := recordKey(r)
	if err := putJSON(records, key, r); err != nil {
		return domain.Record{}, err
	}
	if err := idx.Put(itob(r.ID), indexValue(z.ID, key)); err != nil {
		return domain.Record{}, err
	}
	return r, nil
}

func loadRecord(tx *bbolt.Tx, id uint64) (domain.Record, []byte, error) {
	v := tx.Bucket(bucketRecordIdx).Get(itob(id))
	if v == nil {
		return domain.Record{}, nil, fmt.Errorf("record %d: %w", id, domain.ErrNotFound)
	}
	zoneID, key := splitIndexValue(v)
	records := tx.Bucket(bucketRecords).Bucket(itob(zoneID))
	if records == nil {
		return domain.Record{}, nil, fmt.Errorf("record %d: %w", id, domain.ErrNotFound)
	}
	var r domain.Record
	found, err := getJSON(records, key, &r)
	if err != nil {
		return domain.Record{}, nil, fmt.Errorf("decode record %d: %w", id, err)
	}
	if !found {
		return domain.Record{}, nil, fmt.Errorf("record %d: %w", id, domain.ErrNotFound)
	}
	return r, key, nil
}

// scanRecords returns the records of a zone whose key starts with prefix. A
// missing zone yields no records.
func scanRecords(tx *bbolt.Tx, zoneID uint64, prefix []byte) ([]domain.Record, error) {
	records := tx.Bucket(bucketRecords).Bucket(itob(zoneID))
	if records == nil {
		return nil, nil
	}
	var out []domain.Record
	c := records.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var r domain.Record
		if err := json.Unmarshal(v, &r); err != nil {
			return nil, fmt.Errorf("decode record %x: %w", k, err)
		}
		out = append(out, r)
	}
	return out, nil
}
