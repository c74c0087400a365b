// Package admin implements the administration operations: every committed
// change to zones, records or settings is followed by a listener restart.
package admin

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/haukened/rr-zoned/internal/dns/common/clock"
	"github.com/haukened/rr-zoned/internal/dns/common/log"
	"github.com/haukened/rr-zoned/internal/dns/domain"
	"github.com/haukened/rr-zoned/internal/dns/services/supervisor"
	"github.com/haukened/rr-zoned/internal/dns/services/zonefile"
)

// ErrRestartFailed is returned alongside the result of a mutation that was
// committed but could not be followed by a listener restart.
var ErrRestartFailed = supervisor.ErrRestartFailed

// DefaultRecentLimit is used by ListRecentQueries for limit <= 0.
const DefaultRecentLimit = 200

type Options struct {
	Zones   ZoneRepository
	Queries QueryHistory
	// Supervisor may be nil, in which case mutations do not restart anything.
	Supervisor Restarter
	Clock      clock.Clock
	Logger     log.Logger
}

type Service struct {
	zones      ZoneRepository
	queries    QueryHistory
	supervisor Restarter
	clock      clock.Clock
	logger     log.Logger
}

func NewService(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Service{
		zones:      opts.Zones,
		queries:    opts.Queries,
		supervisor: opts.Supervisor,
		clock:      opts.Clock,
		logger:     opts.Logger,
	}
}

func (s *Service) ListZones() ([]domain.Zone, error) {
	return s.zones.ListZones()
}

func (s *Service) GetZone(id uint64) (domain.Zone, error) {
	return s.zones.GetZone(id)
}

// CreateZone stores a new zone. Unset SOA fields get ns1.<zone>,
// admin.<zone>, a serial from the current time and the standard timers; an
// unset TTL takes the default_ttl setting.
func (s *Service) CreateZone(z domain.Zone) (domain.Zone, error) {
	settings, err := s.zones.Settings()
	if err != nil {
		return domain.Zone{}, err
	}
	z.ID = 0
	z.Serial = 0
	created, err := s.zones.UpsertZone(z.WithDefaults(settings.DefaultTTL, s.clock.Now()))
	if err != nil {
		return domain.Zone{}, err
	}
	return created, s.restart("zone created")
}

// UpdateZone replaces the SOA metadata of zone id. Zero fields keep their
// current value; the serial is always bumped by the store.
func (s *Service) UpdateZone(id uint64, z domain.Zone) (domain.Zone, error) {
	existing, err := s.zones.GetZone(id)
	if err != nil {
		return domain.Zone{}, err
	}
	updated, err := s.zones.UpsertZone(mergeZone(existing, z))
	if err != nil {
		return domain.Zone{}, err
	}
	return updated, s.restart("zone updated")
}

func (s *Service) DeleteZone(id uint64) error {
	if err := s.zones.DeleteZone(id); err != nil {
		return err
	}
	return s.restart("zone deleted")
}

func (s *Service) ListRecords(zoneID uint64) ([]domain.Record, error) {
	return s.zones.ListRecords(zoneID)
}

func (s *Service) GetRecord(id uint64) (domain.Record, error) {
	return s.zones.GetRecord(id)
}

func (s *Service) CreateRecord(zoneID uint64, r domain.Record) (domain.Record, error) {
	r.ID = 0
	r.ZoneID = zoneID
	saved, err := s.zones.UpsertRecord(r)
	if err != nil {
		return domain.Record{}, err
	}
	return saved, s.restart("record created")
}

// UpdateRecord replaces record id. The record stays in its zone.
func (s *Service) UpdateRecord(id uint64, r domain.Record) (domain.Record, error) {
	r.ID = id
	saved, err := s.zones.UpsertRecord(r)
	if err != nil {
		return domain.Record{}, err
	}
	return saved, s.restart("record updated")
}

func (s *Service) DeleteRecord(id uint64) error {
	if err := s.zones.DeleteRecord(id); err != nil {
		return err
	}
	return s.restart("record deleted")
}

func (s *Service) GetSettings() (domain.Settings, error) {
	return s.zones.Settings()
}

func (s *Service) SetSettings(settings domain.Settings) (domain.Settings, error) {
	settings = settings.Normalize()
	if err := s.zones.PutSettings(settings); err != nil {
		return domain.Settings{}, err
	}
	return settings, s.restart("settings changed")
}

// ImportZoneFile parses a master file and stores the zone with all of its
// records as one unit.
func (s *Service) ImportZoneFile(r io.Reader) (domain.Zone, error) {
	settings, err := s.zones.Settings()
	if err != nil {
		return domain.Zone{}, err
	}
	parsed, err := zonefile.Import(r, zonefile.ImportOptions{Now: s.clock.Now(), DefaultTTL: settings.DefaultTTL})
	if err != nil {
		return domain.Zone{}, err
	}
	if len(parsed.Skipped) > 0 {
		s.logger.Warn(map[string]any{
			"zone":    parsed.Zone.Name,
			"skipped": strings.Join(parsed.Skipped, " | "),
		}, "zone file lines with unsupported types skipped")
	}
	created, err := s.zones.CreateZoneWithRecords(parsed.Zone, parsed.Records)
	if err != nil {
		return domain.Zone{}, err
	}
	return created, s.restart("zone imported")
}

func (s *Service) ExportZoneFile(id uint64) (string, error) {
	z, err := s.zones.GetZone(id)
	if err != nil {
		return "", err
	}
	records, err := s.zones.ListRecords(id)
	if err != nil {
		return "", err
	}
	return zonefile.ExportString(z, records), nil
}

// ListRecentQueries returns the newest query log entries first.
func (s *Service) ListRecentQueries(limit int) ([]domain.QueryLogEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if s.queries == nil {
		return nil, nil
	}
	return s.queries.Recent(limit)
}

func (s *Service) restart(reason string) error {
	if s.supervisor == nil {
		return nil
	}
	if err := s.supervisor.Restart(); err != nil {
		s.logger.Error(map[string]any{"reason": reason, "error": err.Error()}, "DNS listener restart failed")
		if !errors.Is(err, ErrRestartFailed) {
			err = fmt.Errorf("%w: %w", ErrRestartFailed, err)
		}
		return err
	}
	s.logger.Debug(map[string]any{"reason": reason}, "DNS listener restarted")
	return nil
}

func mergeZone(existing, z domain.Zone) domain.Zone {
	out := existing
	if z.TTL != 0 {
		out.TTL = z.TTL
	}
	if z.PrimaryNS != "" {
		out.PrimaryNS = z.PrimaryNS
	}
	if z.AdminEmail != "" {
		out.AdminEmail = z.AdminEmail
	}
	if z.Refresh != 0 {
		out.Refresh = z.Refresh
	}
	if z.Retry != 0 {
		out.Retry = z.Retry
	}
	if z.Expire != 0 {
		out.Expire = z.Expire
	}
	if z.Minimum != 0 {
		out.Minimum = z.Minimum
	}
	if z.Name != "" {
		out.Name = z.Name
	}
	return out
}
