package domain

// RRClass represents a DNS class (usually IN for Internet).
type RRClass uint16

const (
	RRClassIN  RRClass = 1   // Internet
	RRClassCH  RRClass = 3   // Chaos
	RRClassHS  RRClass = 4   // Hesiod
	RRClassANY RRClass = 255 // Any class (query only)
)

func (c RRClass) String() string {
	switch c {
	case RRClassIN:
		return "IN"
	case RRClassCH:
		return "CH"
	case RRClassHS:
		return "HS"
	case RRClassANY:
		return "ANY"
	default:
		return "UNKNOWN"
	}
}
