// Package wire converts between DNS wire messages and domain types.
package wire

import "github.com/haukened/rr-zoned/internal/dns/domain"

// DNSCodec encodes and decodes DNS messages.
type DNSCodec interface {
	// DecodeQuery parses an incoming datagram carrying exactly one question.
	DecodeQuery(data []byte) (domain.Question, error)
	// EncodeResponse serializes a response. Relayed responses are returned
	// byte for byte.
	EncodeResponse(resp domain.DNSResponse) ([]byte, error)
	// EncodeError builds a bare reply with rcode for a datagram that could not
	// be decoded, echoing its transaction id.
	EncodeError(data []byte, rcode domain.RCode) ([]byte, error)
	// EncodeQuery serializes an outgoing query.
	EncodeQuery(query domain.Question) ([]byte, error)
	// DecodeResponse parses a reply received from an upstream server, keeping
	// the original bytes in Raw.
	DecodeResponse(data []byte) (domain.DNSResponse, error)
}
