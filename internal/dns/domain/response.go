package domain

import "strings"

// DNSResponse is the outcome of resolving one Question. A response relayed from
// upstream keeps the upstream bytes in Raw so they can be sent back unmodified.
type DNSResponse struct {
	ID            uint16
	RCode         RCode
	Authoritative bool
	Question      Question
	Answers       []ResourceRecord
	Raw           []byte
}

// NewDNSErrorResponse builds an empty, non-authoritative reply with rcode.
func NewDNSErrorResponse(q Question, rcode RCode) DNSResponse {
	return DNSResponse{ID: q.ID, RCode: rcode, Question: q}
}

// Relayed reports whether the response came verbatim from an upstream server.
func (r DNSResponse) Relayed() bool {
	return len(r.Raw) > 0
}

// Summary joins the textual form of all answers with ";", the format recorded
// in the query log.
func (r DNSResponse) Summary() string {
	texts := make([]string, 0, len(r.Answers))
	for _, a := range r.Answers {
		texts = append(texts, a.Text)
	}
	return strings.Join(texts, ";")
}
