package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Amounts are persisted as plain JSON numbers so stores written by older
	// tooling stay readable in both directions.
	decimal.MarshalJSONWithoutQuotes = true
}

// GenerateUUIDWithSuffix generates a UUID with a given module name as a suffix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New() // Generate a new UUID.
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr) // Append the module as a suffix to the UUID.
	return idWithSuffix
}

// Fingerprint generates a SHA-256 hash of the event's identifying fields.
// Settlement consumers use it to deduplicate submissions; the ledger itself keys on the event ID.
func (e SeismicEvent) Fingerprint() string {
	data := fmt.Sprintf("%s:%s:%s", e.ID, e.Magnitude.String(), e.Place)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// MaxDecimal returns the larger of a and b.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
