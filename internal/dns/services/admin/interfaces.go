package admin

import "github.com/haukened/rr-zoned/internal/dns/domain"

// ZoneRepository is the zone store as seen by the administration surface.
type ZoneRepository interface {
	GetZone(id uint64) (domain.Zone, error)
	ListZones() ([]domain.Zone, error)
	UpsertZone(z domain.Zone) (domain.Zone, error)
	DeleteZone(id uint64) error
	CreateZoneWithRecords(z domain.Zone, records []domain.Record) (domain.Zone, error)

	GetRecord(id uint64) (domain.Record, error)
	ListRecords(zoneID uint64) ([]domain.Record, error)
	UpsertRecord(r domain.Record) (domain.Record, error)
	DeleteRecord(id uint64) error

	Settings() (domain.Settings, error)
	PutSettings(settings domain.Settings) error
}

// QueryHistory reads the query log.
type QueryHistory interface {
	Recent(limit int) ([]domain.QueryLogEntry, error)
}

// Restarter rebuilds the DNS listener from the stored settings.
type Restarter interface {
	Restart() error
}
