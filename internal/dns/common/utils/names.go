package utils

import (
	"strings"

	"golang.org/x/net/idna"
)

// CanonicalDNSName returns a DNS name in canonical form: trimmed, lowercased
// and fully qualified with a single trailing dot. Empty input stays empty and
// the root is ".".
func CanonicalDNSName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	name = strings.TrimRight(name, ".")
	return name + "."
}

// Fqdn appends a trailing dot when missing. Case is preserved.
func Fqdn(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}

// ZoneName normalizes an operator supplied zone or host name. Internationalized
// labels are converted to their ASCII (punycode) form.
func ZoneName(input string) string {
	name := strings.ToLower(strings.TrimSpace(input))
	if name == "" {
		return ""
	}
	if ascii, err := idna.Punycode.ToASCII(name); err == nil {
		name = ascii
	}
	return CanonicalDNSName(name)
}

// Qualify resolves an owner name against origin. "@" and "" mean the origin
// itself, names ending in a dot are absolute, anything else is relative.
func Qualify(owner, origin string) string {
	owner = strings.TrimSpace(owner)
	switch {
	case owner == "" || owner == "@":
		return ZoneName(origin)
	case strings.HasSuffix(owner, "."):
		return ZoneName(owner)
	default:
		return ZoneName(owner + "." + strings.TrimSpace(origin))
	}
}

// IsSubdomain reports whether name equals zone or lies beneath it, compared on
// whole labels.
func IsSubdomain(name, zone string) bool {
	name = CanonicalDNSName(name)
	zone = CanonicalDNSName(zone)
	if zone == "." {
		return name != ""
	}
	return name == zone || strings.HasSuffix(name, "."+zone)
}

// CandidateZones lists every suffix of name on label boundaries, longest first,
// ending with the root.
func CandidateZones(name string) []string {
	name = CanonicalDNSName(name)
	if name == "" {
		return nil
	}
	if name == "." {
		return []string{"."}
	}
	out := []string{name}
	for i := 0; i < len(name)-1; i++ {
		if name[i] == '.' {
			out = append(out, name[i+1:])
		}
	}
	return append(out, ".")
}
