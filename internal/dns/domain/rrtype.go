package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// RRType represents a DNS resource record type (e.g. A, AAAA, MX).
type RRType uint16

const (
	RRTypeA     RRType = 1   // IPv4 address
	RRTypeNS    RRType = 2   // Name server
	RRTypeCNAME RRType = 5   // Canonical name
	RRTypeSOA   RRType = 6   // Start of authority
	RRTypePTR   RRType = 12  // Pointer
	RRTypeMX    RRType = 15  // Mail exchange
	RRTypeTXT   RRType = 16  // Text
	RRTypeAAAA  RRType = 28  // IPv6 address
	RRTypeSRV   RRType = 33  // Service
	RRTypeOPT   RRType = 41  // EDNS option
	RRTypeANY   RRType = 255 // Any type (query only)
	RRTypeCAA   RRType = 257 // Certification authority authorization
)

var rrTypeNames = map[RRType]string{
	RRTypeA:     "A",
	RRTypeNS:    "NS",
	RRTypeCNAME: "CNAME",
	RRTypeSOA:   "SOA",
	RRTypePTR:   "PTR",
	RRTypeMX:    "MX",
	RRTypeTXT:   "TXT",
	RRTypeAAAA:  "AAAA",
	RRTypeSRV:   "SRV",
	RRTypeOPT:   "OPT",
	RRTypeANY:   "ANY",
	RRTypeCAA:   "CAA",
}

// RecordTypes is the closed set of types an operator can store in a zone.
// SOA is synthesized from zone metadata and never stored.
var RecordTypes = []RRType{RRTypeA, RRTypeAAAA, RRTypeCNAME, RRTypeMX, RRTypeNS, RRTypeTXT, RRTypeSRV}

// IsRecordType reports whether t may be stored as a zone record.
func (t RRType) IsRecordType() bool {
	for _, rt := range RecordTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// HasPriority reports whether records of this type carry a priority value.
func (t RRType) HasPriority() bool {
	return t == RRTypeMX || t == RRTypeSRV
}

// String returns the mnemonic, or the RFC 3597 "TYPEnnn" form for unknown types.
func (t RRType) String() string {
	if name, ok := rrTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TYPE%d", uint16(t))
}

// RRTypeFromString parses a mnemonic or TYPEnnn token, case-insensitively.
// It returns 0 when the token is not a type.
func RRTypeFromString(s string) RRType {
	s = strings.ToUpper(strings.TrimSpace(s))
	for t, name := range rrTypeNames {
		if name == s {
			return t
		}
	}
	if rest, ok := strings.CutPrefix(s, "TYPE"); ok {
		if n, err := strconv.ParseUint(rest, 10, 16); err == nil {
			return RRType(n)
		}
	}
	return 0
}

func (t RRType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts only storable record types.
func (t *RRType) UnmarshalText(b []byte) error {
	parsed := RRTypeFromString(string(b))
	if !parsed.IsRecordType() {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, string(b))
	}
	*t = parsed
	return nil
}
