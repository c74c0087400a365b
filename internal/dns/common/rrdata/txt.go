package rrdata

const maxCharacterString = 255

// encodeTXTData stores the text verbatim, split into as many character-strings
// as needed. Empty text yields a single empty string.
func encodeTXTData(data string) ([]byte, error) {
	if data == "" {
		return []byte{0}, nil
	}
	encoded := make([]byte, 0, len(data)+len(data)/maxCharacterString+1)
	for len(data) > 0 {
		n := min(len(data), maxCharacterString)
		encoded = append(encoded, byte(n))
		encoded = append(encoded, data[:n]...)
		data = data[n:]
	}
	return encoded, nil
}
