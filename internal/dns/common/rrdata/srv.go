package rrdata

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

func encodeSRVData(data string) ([]byte, error) {
	parts := strings.Fields(data)
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid SRV record format (expected 4 fields): %s", data)
	}

	// priority, weight, port
	buf := make([]byte, 6)
	for i := 0; i < 3; i++ {
		val, err := strconv.ParseUint(parts[i], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid SRV field %d: %w", i, err)
		}
		binary.BigEndian.PutUint16(buf[i*2:], uint16(val))
	}
	target, err := encodeDomainName(parts[3])
	if err != nil {
		return nil, fmt.Errorf("invalid SRV target: %w", err)
	}
	return append(buf, target...), nil
}
