package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownLocation replaces a missing place in feed events.
const UnknownLocation = "Unknown location"

// SeismicEvent is a transient earthquake report taken from the feed. It is never persisted as-is.
type SeismicEvent struct {
	ID        string          `json:"id"`
	Magnitude decimal.Decimal `json:"magnitude"`
	Place     string          `json:"place"`
	Time      time.Time       `json:"time"`
}

// Disbursement is the outcome of recording a severe event against a vault.
// It is the payload handed to settlement consumers.
type Disbursement struct {
	VaultID     int64        `json:"vault_id"`
	Recipient   string       `json:"recipient"`
	Donation    *Donation    `json:"donation,omitempty"`
	Event       SeismicEvent `json:"event"`
	Fingerprint string       `json:"fingerprint"`
	Duplicate   bool         `json:"duplicate"`
	RecordedAt  time.Time    `json:"recorded_at"`
}
