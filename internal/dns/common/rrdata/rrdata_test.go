package rrdata

import (
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-zoned/internal/dns/domain"
)

func TestEncodeDomainName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{"simple", "foo.example.com.", []byte{3, 'f', 'o', 'o', 7, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 3, 'c', 'o', 'm', 0}, false},
		{"case preserved", "Mail.", []byte{4, 'M', 'a', 'i', 'l', 0}, false},
		{"without trailing dot", "localhost", []byte{9, 'l', 'o', 'c', 'a', 'l', 'h', 'o', 's', 't', 0}, false},
		{"root", ".", []byte{0}, false},
		{"label too long", strings.Repeat("a", 64) + ".com.", nil, true},
		{"empty label", "a..b.", nil, true},
		{"name too long", strings.Repeat(strings.Repeat("a", 63)+".", 5), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeDomainName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_Valid(t *testing.T) {
	tests := []struct {
		rrType domain.RRType
		input  string
		want   []byte
	}{
		{domain.RRTypeA, "10.0.0.1", []byte{10, 0, 0, 1}},
		{domain.RRTypeAAAA, "::1", append(make([]byte, 15), 1)},
		{domain.RRTypeCNAME, "web.example.com.", []byte{3, 'w', 'e', 'b', 7, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 3, 'c', 'o', 'm', 0}},
		{domain.RRTypeNS, "ns1.", []byte{3, 'n', 's', '1', 0}},
		{domain.RRTypeMX, "10 mx.", []byte{0, 10, 2, 'm', 'x', 0}},
		{domain.RRTypeSRV, "10 20 5060 sip.", []byte{0, 10, 0, 20, 0x13, 0xc4, 3, 's', 'i', 'p', 0}},
		{domain.RRTypeTXT, "v=spf1 -all", append([]byte{11}, "v=spf1 -all"...)},
		{domain.RRTypeTXT, "", []byte{0}},
		{domain.RRTypeSOA, "ns1. admin. 1 2 3 4 5", []byte{
			3, 'n', 's', '1', 0,
			5, 'a', 'd', 'm', 'i', 'n', 0,
			0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 4, 0, 0, 0, 5,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.rrType.String()+"/"+tt.input, func(t *testing.T) {
			got, err := Encode(tt.rrType, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_Invalid(t *testing.T) {
	tests := []struct {
		rrType domain.RRType
		input  string
	}{
		{domain.RRTypeA, "not-an-ip"},
		{domain.RRTypeA, "2001:db8::1"},
		{domain.RRTypeAAAA, "10.0.0.1"},
		{domain.RRTypeMX, "mail.example.com."},
		{domain.RRTypeMX, "70000 mail.example.com."},
		{domain.RRTypeSRV, "10 20 5060"},
		{domain.RRTypeSRV, "10 20 5060 extra target."},
		{domain.RRTypeSRV, "ten 20 5060 sip."},
		{domain.RRTypeSOA, "ns1. admin. 1 2 3"},
		{domain.RRTypeSOA, "ns1. admin. 1 2 3 4 x"},
		{domain.RRTypePTR, "host.example.com."},
	}
	for _, tt := range tests {
		t.Run(tt.rrType.String()+"/"+tt.input, func(t *testing.T) {
			_, err := Encode(tt.rrType, tt.input)
			assert.Error(t, err)
		})
	}
}

func TestEncode_UnsupportedTypeIsSentinel(t *testing.T) {
	_, err := Encode(domain.RRTypePTR, "x.")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestTXT_LongTextIsChunked(t *testing.T) {
	text := strings.Repeat("x", 300)
	b, err := Encode(domain.RRTypeTXT, text)
	require.NoError(t, err)
	assert.Len(t, b, 302)
	assert.Equal(t, byte(255), b[0])
	assert.Equal(t, byte(45), b[256])

	rr := unpack(t, domain.RRTypeTXT, b)
	assert.Equal(t, text, strings.Join(rr.(*dns.TXT).Txt, ""))
}

// unpack parses RDATA with miekg/dns so encodings are checked against an
// independent wire implementation.
func unpack(t *testing.T, rrType domain.RRType, rdata []byte) dns.RR {
	t.Helper()
	hdr := dns.RR_Header{Name: "x.", Rrtype: uint16(rrType), Class: dns.ClassINET, Rdlength: uint16(len(rdata))}
	rr, _, err := dns.UnpackRRWithHeader(hdr, rdata, 0)
	require.NoError(t, err)
	return rr
}

func TestEncode_WireCompatible(t *testing.T) {
	tests := []struct {
		rrType domain.RRType
		text   string
		want   string
	}{
		{domain.RRTypeA, "192.168.1.10", "192.168.1.10"},
		{domain.RRTypeAAAA, "2001:db8::10", "2001:db8::10"},
		{domain.RRTypeCNAME, "web.example.com", "web.example.com."},
		{domain.RRTypeNS, "ns1.example.com.", "ns1.example.com."},
		{domain.RRTypeMX, "5 mail.example.com.", "5 mail.example.com."},
		{domain.RRTypeSRV, "0 5 443 _sip._tcp.example.com.", "0 5 443 _sip._tcp.example.com."},
		{domain.RRTypeSOA, "ns1.example.com. admin.example.com. 7 3600 600 86400 300", "ns1.example.com. admin.example.com. 7 3600 600 86400 300"},
		{domain.RRTypeTXT, "v=spf1 mx -all", `"v=spf1 mx -all"`},
	}
	for _, tt := range tests {
		t.Run(tt.rrType.String(), func(t *testing.T) {
			b, err := Encode(tt.rrType, tt.text)
			require.NoError(t, err)
			rr := unpack(t, tt.rrType, b)
			assert.Equal(t, tt.want, strings.TrimPrefix(rr.String(), rr.Header().String()))
		})
	}
}
