package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/haukened/rr-zoned/internal/dns/common/utils"
)

// DefaultMXPriority is used for MX records stored without a priority.
const DefaultMXPriority uint16 = 10

// Record is an operator managed record inside a zone. Name is the absolute,
// canonical owner name. TTL 0 means "inherit the zone TTL".
type Record struct {
	ID       uint64  `json:"id"`
	ZoneID   uint64  `json:"zone_id"`
	Name     string  `json:"name" validate:"required,dnsname"`
	Type     RRType  `json:"type" validate:"required"`
	Content  string  `json:"content" validate:"required"`
	TTL      uint32  `json:"ttl"`
	Priority *uint16 `json:"priority,omitempty"`
}

// Normalize qualifies the owner against origin, trims content and drops a
// priority on types that do not carry one. SRV content always carries its
// priority as the first field: a three field target gets the priority
// prepended and a four field one supplies a missing priority.
func (r Record) Normalize(origin string) Record {
	r.Name = utils.Qualify(r.Name, origin)
	r.Content = strings.TrimSpace(r.Content)
	if !r.Type.HasPriority() {
		r.Priority = nil
	}
	if r.Type == RRTypeSRV {
		fields := strings.Fields(r.Content)
		switch {
		case len(fields) == 3 && r.Priority != nil:
			r.Content = fmt.Sprintf("%d %s", *r.Priority, r.Content)
		case len(fields) == 4 && r.Priority == nil:
			if p, ok := srvPriority(fields); ok {
				r.Priority = Priority(p)
			}
		}
	}
	return r
}

// Validate checks the record, wrapping failures in ErrInvalidRecord or
// ErrUnsupportedType.
func (r Record) Validate() error {
	if !r.Type.IsRecordType() {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, r.Type)
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if r.Type == RRTypeSRV && r.Priority != nil {
		if p, ok := srvPriority(strings.Fields(r.Content)); ok && p != *r.Priority {
			return fmt.Errorf("%w: SRV priority %d does not match content priority %d", ErrInvalidRecord, *r.Priority, p)
		}
	}
	return nil
}

// srvPriority parses the priority field of SRV content.
func srvPriority(fields []string) (uint16, bool) {
	if len(fields) != 4 {
		return 0, false
	}
	p, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(p), true
}

// EffectiveTTL returns the record TTL, falling back to the zone TTL.
func (r Record) EffectiveTTL(zoneTTL uint32) uint32 {
	if r.TTL > 0 {
		return r.TTL
	}
	return zoneTTL
}

// EffectivePriority returns the priority used when the record is served or
// exported. MX defaults to DefaultMXPriority. An SRV without a stored priority
// uses the first field of its content.
func (r Record) EffectivePriority() uint16 {
	if r.Priority != nil {
		return *r.Priority
	}
	if r.Type == RRTypeSRV {
		p, _ := srvPriority(strings.Fields(r.Content))
		return p
	}
	return DefaultMXPriority
}

// Priority returns a pointer to p, for building records in code.
func Priority(p uint16) *uint16 {
	return &p
}
