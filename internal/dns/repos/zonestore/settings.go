package zonestore

import (
	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-zoned/internal/dns/domain"
)

// CurrentSettings returns the persisted settings map.
func (s *Store) CurrentSettings() (map[string]string, error) {
	out := map[string]string{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettings).ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out, err
}

// Settings returns the persisted settings parsed and validated.
func (s *Store) Settings() (domain.Settings, error) {
	m, err := s.CurrentSettings()
	if err != nil {
		return domain.Settings{}, err
	}
	return domain.ParseSettings(m)
}

// PutSettings normalizes, validates and replaces all settings.
func (s *Store) PutSettings(settings domain.Settings) error {
	settings = settings.Normalize()
	if err := settings.Validate(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSettings)
		for k, v := range settings.ToMap() {
			if err := b.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info(map[string]any{"listen": settings.Address(), "upstream": settings.Upstream}, "settings saved")
	return nil
}
