package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DonationPrecision is the number of decimal places a vault balance is rounded to after a donation.
const DonationPrecision = 2

type Vault struct {
	ID          int64           `json:"id"`
	Balance     decimal.Decimal `json:"balance"`
	Threshold   decimal.Decimal `json:"threshold"`
	MaxDonation decimal.Decimal `json:"maxDonation"`
	Recipient   string          `json:"recipient"`
	CreatedAt   time.Time       `json:"createdAt"`
	Scheduled   bool            `json:"scheduled"`
	Donations   []Donation      `json:"donations"`
}

type Donation struct {
	SourceID  string          `json:"sourceId"`
	Magnitude decimal.Decimal `json:"magnitude"`
	Amount    decimal.Decimal `json:"amount"`
	Location  string          `json:"location"`
	Timestamp time.Time       `json:"timestamp"`
}

// VaultStore is the persisted layout shared by every vault backend.
type VaultStore struct {
	NextID int64   `json:"nextId"`
	Vaults []Vault `json:"vaults"`
}

// CreateVault carries the configuration a donor supplies when opening a vault.
type CreateVault struct {
	Threshold     decimal.Decimal
	MaxDonation   decimal.Decimal
	DepositAmount decimal.Decimal
	Recipient     string
	Scheduled     *bool
}

// DonationRequest describes a donation to append. Timestamp defaults to the append time.
type DonationRequest struct {
	SourceID  string
	Magnitude decimal.Decimal
	Amount    decimal.Decimal
	Location  string
	Timestamp *time.Time
}

// NewVaultStore returns an empty store whose first vault gets id 1.
func NewVaultStore() *VaultStore {
	return &VaultStore{NextID: 1, Vaults: []Vault{}}
}

// NewVault builds a vault from its creation parameters. Negative deposits open an empty vault.
func NewVault(id int64, params CreateVault, now time.Time) Vault {
	scheduled := true
	if params.Scheduled != nil {
		scheduled = *params.Scheduled
	}
	return Vault{
		ID:          id,
		Balance:     MaxDecimal(decimal.Zero, params.DepositAmount),
		Threshold:   params.Threshold,
		MaxDonation: params.MaxDonation,
		Recipient:   params.Recipient,
		CreatedAt:   now.UTC(),
		Scheduled:   scheduled,
		Donations:   []Donation{},
	}
}

// Clone returns a copy of the vault that shares no donation storage with the original.
func (v Vault) Clone() Vault {
	donations := make([]Donation, len(v.Donations))
	copy(donations, v.Donations)
	v.Donations = donations
	return v
}

// HasDonation reports whether a donation for sourceID was already recorded.
func (v *Vault) HasDonation(sourceID string) bool {
	for _, d := range v.Donations {
		if d.SourceID == sourceID {
			return true
		}
	}
	return false
}

// ApplyDonation appends a donation capped at the current balance and debits the vault.
// It returns nil when a donation with the same source id already exists; the vault is then untouched.
func (v *Vault) ApplyDonation(req DonationRequest, now time.Time) *Donation {
	if v.HasDonation(req.SourceID) {
		return nil
	}

	timestamp := now.UTC()
	if req.Timestamp != nil {
		timestamp = req.Timestamp.UTC()
	}

	amount := MinDecimal(v.Balance, MaxDecimal(decimal.Zero, req.Amount))
	donation := Donation{
		SourceID:  req.SourceID,
		Magnitude: req.Magnitude,
		Amount:    amount,
		Location:  req.Location,
		Timestamp: timestamp,
	}

	v.Balance = MaxDecimal(decimal.Zero, v.Balance.Sub(amount).Round(DonationPrecision))
	v.Donations = append(v.Donations, donation)
	return &donation
}

// Find returns the vault with the given id, or nil.
func (s *VaultStore) Find(id int64) *Vault {
	for i := range s.Vaults {
		if s.Vaults[i].ID == id {
			return &s.Vaults[i]
		}
	}
	return nil
}

// Latest returns the most recently appended vault, or nil when the store is empty.
func (s *VaultStore) Latest() *Vault {
	if len(s.Vaults) == 0 {
		return nil
	}
	return &s.Vaults[len(s.Vaults)-1]
}

// Append assigns the next id to a new vault built from params and stores it.
func (s *VaultStore) Append(params CreateVault, now time.Time) Vault {
	if s.NextID < 1 {
		s.NextID = 1
	}
	vault := NewVault(s.NextID, params, now)
	s.NextID++
	s.Vaults = append(s.Vaults, vault)
	return vault.Clone()
}

// Normalize repairs fields an older or hand-edited store may leave empty.
func (s *VaultStore) Normalize() {
	if s.Vaults == nil {
		s.Vaults = []Vault{}
	}
	var maxID int64
	for i := range s.Vaults {
		if s.Vaults[i].Donations == nil {
			s.Vaults[i].Donations = []Donation{}
		}
		if s.Vaults[i].ID > maxID {
			maxID = s.Vaults[i].ID
		}
	}
	if s.NextID <= maxID {
		s.NextID = maxID + 1
	}
}
