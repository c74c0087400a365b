package domain

import "fmt"

// Question is the single question carried by an incoming query, together with
// the header fields a reply must echo.
type Question struct {
	ID               uint16
	Name             string
	Type             RRType
	Class            RRClass
	RecursionDesired bool
}

// NewQuestion constructs a Question and validates its fields.
func NewQuestion(id uint16, name string, rrtype RRType, class RRClass) (Question, error) {
	q := Question{ID: id, Name: name, Type: rrtype, Class: class}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}

// Validate only checks the name; any type or class may be asked and is
// answered with NXDOMAIN or forwarded when nothing local matches.
func (q Question) Validate() error {
	if q.Name == "" {
		return fmt.Errorf("query name must not be empty")
	}
	return nil
}
