package rrdata

import (
	"fmt"
	"net/netip"
	"strings"
)

func encodeAData(data string) ([]byte, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(data))
	if err != nil || !addr.Is4() {
		return nil, fmt.Errorf("invalid A record IP: %s", data)
	}
	b := addr.As4()
	return b[:], nil
}

func encodeAAAAData(data string) ([]byte, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(data))
	if err != nil || !addr.Is6() || addr.Is4In6() {
		return nil, fmt.Errorf("invalid AAAA record IP: %s", data)
	}
	b := addr.As16()
	return b[:], nil
}
