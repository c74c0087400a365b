// Package rrdata encodes the textual record content kept in the zone store
// into RFC 1035 RDATA bytes.
package rrdata

import (
	"fmt"

	"github.com/haukened/rr-zoned/internal/dns/domain"
)

// Encode encodes a presentation value of the given type into RDATA.
//
//	A, AAAA     address literal
//	NS, CNAME   domain name
//	MX          "preference exchange"
//	TXT         text, split into 255 byte character-strings
//	SRV         "priority weight port target"
//	SOA         "mname rname serial refresh retry expire minimum"
func Encode(rrType domain.RRType, data string) ([]byte, error) {
	switch rrType {
	case domain.RRTypeA:
		return encodeAData(data)
	case domain.RRTypeAAAA:
		return encodeAAAAData(data)
	case domain.RRTypeNS, domain.RRTypeCNAME:
		return encodeDomainName(data)
	case domain.RRTypeSOA:
		return encodeSOAData(data)
	case domain.RRTypeMX:
		return encodeMXData(data)
	case domain.RRTypeTXT:
		return encodeTXTData(data)
	case domain.RRTypeSRV:
		return encodeSRVData(data)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, rrType)
	}
}
