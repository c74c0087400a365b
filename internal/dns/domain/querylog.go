package domain

import "time"

// QueryLogEntry records one answered query.
type QueryLogEntry struct {
	ID         uint64    `json:"id"`
	Time       time.Time `json:"time"`
	Client     string    `json:"client"`
	QName      string    `json:"qname"`
	QType      string    `json:"qtype"`
	RCode      string    `json:"rcode"`
	Answer     string    `json:"answer"`
	DurationMS float64   `json:"duration_ms"`
}
