package domain

import (
	"fmt"

	"github.com/haukened/rr-zoned/internal/dns/common/utils"
)

// ResourceRecord is one answer record as it goes on the wire.
type ResourceRecord struct {
	Name  string
	Type  RRType
	Class RRClass
	TTL   uint32
	Data  []byte // RDATA
	Text  string // presentation form of Data
}

// NewAuthoritativeResourceRecord constructs an answer served from local zone data.
func NewAuthoritativeResourceRecord(name string, rrtype RRType, ttl uint32, data []byte, text string) (ResourceRecord, error) {
	rr := ResourceRecord{
		Name:  utils.CanonicalDNSName(name),
		Type:  rrtype,
		Class: RRClassIN,
		TTL:   ttl,
		Data:  data,
		Text:  text,
	}
	if err := rr.Validate(); err != nil {
		return ResourceRecord{}, err
	}
	return rr, nil
}

// Validate checks whether the ResourceRecord fields are valid.
func (rr ResourceRecord) Validate() error {
	if rr.Name == "" {
		return fmt.Errorf("record name must not be empty")
	}
	if rr.Type == 0 {
		return fmt.Errorf("record type must be set")
	}
	if len(rr.Data) == 0 && rr.Text == "" {
		return fmt.Errorf("either Text or Data must be set")
	}
	return nil
}
