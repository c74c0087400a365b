package rrdata

import (
	"fmt"
	"strings"
)

const (
	maxLabelLength = 63
	maxNameLength  = 255
)

// encodeDomainName encodes a name as length-prefixed labels terminated by the
// root label. Case is preserved.
func encodeDomainName(name string) ([]byte, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	if name == "" {
		return []byte{0}, nil
	}
	encoded := make([]byte, 0, len(name)+2)
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return nil, fmt.Errorf("empty label in %q", name)
		}
		if len(label) > maxLabelLength {
			return nil, fmt.Errorf("label too long: %s", label)
		}
		encoded = append(encoded, byte(len(label)))
		encoded = append(encoded, label...)
	}
	encoded = append(encoded, 0)
	if len(encoded) > maxNameLength {
		return nil, fmt.Errorf("name too long: %d octets", len(encoded))
	}
	return encoded, nil
}
