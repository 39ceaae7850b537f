package model

import (
	"time"
)

// TalkRecord is one row in the backing record store. The ID is assigned by
// the store (a page id for the hosted backend, a uuid for postgres) and is
// treated as opaque everywhere above the repository layer.
type TalkRecord struct {
	ID             string     `json:"id"`
	Text           string     `json:"text"`
	Acknowledged   bool       `json:"acknowledged"`
	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}
