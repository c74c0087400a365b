package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/miekg/dns"

	"github.com/haukened/rr-zoned/internal/dns/common/log"
	"github.com/haukened/rr-zoned/internal/dns/domain"
)

// ErrShortMessage is returned when a datagram is too short to carry an id.
var ErrShortMessage = errors.New("message too short")

// msgCodec implements DNSCodec on top of miekg/dns messages.
type msgCodec struct {
	logger log.Logger
}

// NewCodec returns a DNSCodec.
func NewCodec(logger log.Logger) DNSCodec {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &msgCodec{logger: logger}
}

func (c *msgCodec) DecodeQuery(data []byte) (domain.Question, error) {
	m := new(dns.Msg)
	if err := m.Unpack(data); err != nil {
		return domain.Question{}, fmt.Errorf("unpack query: %w", err)
	}
	if m.Response {
		return domain.Question{}, fmt.Errorf("message %d is a response, not a query", m.Id)
	}
	if len(m.Question) != 1 {
		return domain.Question{}, fmt.Errorf("expected exactly one question, got %d", len(m.Question))
	}
	q := m.Question[0]
	return domain.Question{
		ID:               m.Id,
		Name:             q.Name,
		Type:             domain.RRType(q.Qtype),
		Class:            domain.RRClass(q.Qclass),
		RecursionDesired: m.RecursionDesired,
	}, nil
}

func (c *msgCodec) EncodeResponse(resp domain.DNSResponse) ([]byte, error) {
	if resp.Relayed() {
		return resp.Raw, nil
	}

	m := new(dns.Msg)
	m.Id = resp.ID
	m.Response = true
	m.Opcode = dns.OpcodeQuery
	m.Authoritative = resp.Authoritative
	m.RecursionDesired = resp.Question.RecursionDesired
	m.Rcode = int(resp.RCode)
	if resp.Question.Name != "" {
		m.Question = []dns.Question{{
			Name:   dns.Fqdn(resp.Question.Name),
			Qtype:  uint16(resp.Question.Type),
			Qclass: uint16(resp.Question.Class),
		}}
	}
	for _, a := range resp.Answers {
		rr, err := toRR(a)
		if err != nil {
			c.logger.Debug(map[string]any{"name": a.Name, "type": a.Type.String(), "text": a.Text}, "answer could not be encoded")
			return nil, fmt.Errorf("encode %s %s answer: %w", a.Name, a.Type, err)
		}
		m.Answer = append(m.Answer, rr)
	}
	return m.Pack()
}

func (c *msgCodec) EncodeError(data []byte, rcode domain.RCode) ([]byte, error) {
	if len(data) < 2 {
		return nil, ErrShortMessage
	}
	m := new(dns.Msg)
	m.Id = binary.BigEndian.Uint16(data[:2])
	m.Response = true
	m.Rcode = int(rcode)
	return m.Pack()
}

func (c *msgCodec) EncodeQuery(query domain.Question) ([]byte, error) {
	m := new(dns.Msg)
	m.Id = query.ID
	m.RecursionDesired = true
	m.Question = []dns.Question{{
		Name:   dns.Fqdn(query.Name),
		Qtype:  uint16(query.Type),
		Qclass: uint16(query.Class),
	}}
	return m.Pack()
}

func (c *msgCodec) DecodeResponse(data []byte) (domain.DNSResponse, error) {
	m := new(dns.Msg)
	if err := m.Unpack(data); err != nil {
		return domain.DNSResponse{}, fmt.Errorf("unpack response: %w", err)
	}
	resp := domain.DNSResponse{
		ID:            m.Id,
		RCode:         domain.RCode(m.Rcode),
		Authoritative: m.Authoritative,
		Raw:           data,
	}
	if len(m.Question) > 0 {
		q := m.Question[0]
		resp.Question = domain.Question{
			ID:    m.Id,
			Name:  q.Name,
			Type:  domain.RRType(q.Qtype),
			Class: domain.RRClass(q.Qclass),
		}
	}
	for _, rr := range m.Answer {
		hdr := rr.Header()
		resp.Answers = append(resp.Answers, domain.ResourceRecord{
			Name:  hdr.Name,
			Type:  domain.RRType(hdr.Rrtype),
			Class: domain.RRClass(hdr.Class),
			TTL:   hdr.Ttl,
			Text:  rdataText(rr),
		})
	}
	return resp, nil
}

// toRR turns an answer into a miekg RR, preferring the encoded RDATA.
func toRR(a domain.ResourceRecord) (dns.RR, error) {
	hdr := dns.RR_Header{
		Name:     dns.Fqdn(a.Name),
		Rrtype:   uint16(a.Type),
		Class:    uint16(a.Class),
		Ttl:      a.TTL,
		Rdlength: uint16(len(a.Data)),
	}
	if len(a.Data) > 0 {
		rr, _, err := dns.UnpackRRWithHeader(hdr, a.Data, 0)
		return rr, err
	}
	return dns.NewRR(fmt.Sprintf("%s %d %s %s %s", hdr.Name, a.TTL, a.Class, a.Type, a.Text))
}

// rdataText is the presentation form of an RR without its header.
func rdataText(rr dns.RR) string {
	return strings.TrimPrefix(rr.String(), rr.Header().String())
}
