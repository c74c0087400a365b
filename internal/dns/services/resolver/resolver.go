// Package resolver answers queries from local zones and falls back to an
// upstream server for names outside every zone.
package resolver

import (
	"context"
	"fmt"

	"github.com/haukened/rr-zoned/internal/dns/common/log"
	"github.com/haukened/rr-zoned/internal/dns/common/rrdata"
	"github.com/haukened/rr-zoned/internal/dns/common/utils"
	"github.com/haukened/rr-zoned/internal/dns/domain"
)

// Resolver is immutable after construction; the supervisor builds a new one
// whenever the listener starts.
type Resolver struct {
	zones    ZoneStore
	upstream UpstreamClient
	logger   log.Logger
}

type ResolverOptions struct {
	Zones ZoneStore
	// Upstream may be nil, in which case out-of-zone names get NXDOMAIN.
	Upstream UpstreamClient
	Logger   log.Logger
}

func NewResolver(opts ResolverOptions) *Resolver {
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Resolver{
		zones:    opts.Zones,
		upstream: opts.Upstream,
		logger:   opts.Logger,
	}
}

// HandleQuery resolves one question. Names inside a local zone are answered
// authoritatively; anything else is forwarded upstream.
func (r *Resolver) HandleQuery(ctx context.Context, query domain.Question, raw []byte) domain.DNSResponse {
	qname := utils.CanonicalDNSName(query.Name)

	zone, found, err := r.zones.FindZoneForName(qname)
	if err != nil {
		r.logger.Error(map[string]any{"qname": qname, "error": err.Error()}, "zone lookup failed")
		return domain.NewDNSErrorResponse(query, domain.SERVFAIL)
	}
	if !found {
		return r.forward(ctx, query, raw)
	}

	answers, err := r.answerFromZone(zone, qname, query.Type)
	if err != nil {
		r.logger.Error(map[string]any{"qname": qname, "zone": zone.Name, "error": err.Error()}, "record lookup failed")
		return domain.NewDNSErrorResponse(query, domain.SERVFAIL)
	}
	if len(answers) == 0 {
		return domain.NewDNSErrorResponse(query, domain.NXDOMAIN)
	}
	return domain.DNSResponse{
		ID:            query.ID,
		RCode:         domain.NOERROR,
		Authoritative: true,
		Question:      query,
		Answers:       answers,
	}
}

// answerFromZone assembles the answer set for qname inside zone:
//
//  1. SOA at the apex for SOA and ANY queries
//  2. every record at the owner for ANY, otherwise records of the asked type,
//     falling back to a CNAME at the owner when there are none
//  3. an NS record for the primary nameserver when an NS query at the apex
//     found nothing else
func (r *Resolver) answerFromZone(zone domain.Zone, qname string, qtype domain.RRType) ([]domain.ResourceRecord, error) {
	var answers []domain.ResourceRecord
	apex := qname == zone.Name

	if apex && (qtype == domain.RRTypeSOA || qtype == domain.RRTypeANY) {
		if rr, ok := r.build(qname, domain.RRTypeSOA, zone.TTL, zone.SOAText()); ok {
			answers = append(answers, rr)
		}
	}

	var records []domain.Record
	var err error
	if qtype == domain.RRTypeANY {
		records, err = r.zones.RecordsByOwner(zone.ID, qname)
	} else {
		records, err = r.zones.RecordsByOwnerAndType(zone.ID, qname, qtype)
		if err == nil && len(records) == 0 && qtype != domain.RRTypeCNAME {
			records, err = r.zones.RecordsByOwnerAndType(zone.ID, qname, domain.RRTypeCNAME)
		}
	}
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		text, err := presentation(rec)
		if err != nil {
			r.logger.Debug(map[string]any{"id": rec.ID, "name": rec.Name, "type": rec.Type.String(), "error": err.Error()}, "malformed record skipped")
			continue
		}
		if rr, ok := r.build(qname, rec.Type, rec.EffectiveTTL(zone.TTL), text); ok {
			answers = append(answers, rr)
		}
	}

	if len(answers) == 0 && apex && qtype == domain.RRTypeNS {
		if rr, ok := r.build(qname, domain.RRTypeNS, zone.TTL, utils.Fqdn(zone.PrimaryNS)); ok {
			answers = append(answers, rr)
		}
	}
	return answers, nil
}

// build encodes text into an answer. Content that does not encode is logged
// and dropped.
func (r *Resolver) build(owner string, t domain.RRType, ttl uint32, text string) (domain.ResourceRecord, bool) {
	data, err := rrdata.Encode(t, text)
	if err != nil {
		r.logger.Debug(map[string]any{"name": owner, "type": t.String(), "text": text, "error": err.Error()}, "malformed record skipped")
		return domain.ResourceRecord{}, false
	}
	rr, err := domain.NewAuthoritativeResourceRecord(owner, t, ttl, data, text)
	if err != nil {
		return domain.ResourceRecord{}, false
	}
	return rr, true
}

// forward relays a query for a name outside every local zone. Without an
// upstream, or when the exchange fails, the answer is NXDOMAIN.
func (r *Resolver) forward(ctx context.Context, query domain.Question, raw []byte) domain.DNSResponse {
	if r.upstream == nil {
		r.logger.Debug(map[string]any{"qname": query.Name}, "no upstream configured")
		return domain.NewDNSErrorResponse(query, domain.NXDOMAIN)
	}
	resp, err := r.upstream.Forward(ctx, query, raw)
	if err != nil {
		r.logger.Warn(map[string]any{"qname": query.Name, "error": err.Error()}, "upstream unavailable")
		return domain.NewDNSErrorResponse(query, domain.NXDOMAIN)
	}
	return resp
}

// presentation renders a stored record as the RDATA text served on the wire.
// Domain name targets are made fully qualified; MX gets its priority
// prepended; SRV content must have exactly four fields.
func presentation(rec domain.Record) (string, error) {
	switch rec.Type {
	case domain.RRTypeCNAME, domain.RRTypeNS:
		return utils.Fqdn(rec.Content), nil
	case domain.RRTypeMX:
		return fmt.Sprintf("%d %s", rec.EffectivePriority(), utils.Fqdn(rec.Content)), nil
	case domain.RRTypeSRV:
		return srvText(rec.Content)
	default:
		return rec.Content, nil
	}
}
