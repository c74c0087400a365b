package rrdata

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

func encodeMXData(data string) ([]byte, error) {
	parts := strings.Fields(data)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid MX record format (expected: preference exchange): %s", data)
	}
	pref, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid MX preference: %s", parts[0])
	}
	exchange, err := encodeDomainName(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid MX exchange %s: %w", parts[1], err)
	}
	b := binary.BigEndian.AppendUint16(make([]byte, 0, 2+len(exchange)), uint16(pref))
	return append(b, exchange...), nil
}
