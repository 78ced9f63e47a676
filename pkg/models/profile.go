package models

import (
	"encoding/json"
	"time"
)

// PartyRole classifies an address by how it participates in agreements.
type PartyRole string

const (
	RoleCompany PartyRole = "company"
	RoleTalent  PartyRole = "talent"
)

// PartyProfile is the off-chain aggregate for one address. Counter fields are
// owned exclusively by the aggregate projector and must be a deterministic fold
// over all activity records referencing the address: replaying the full log
// from empty state reproduces them exactly.
type PartyProfile struct {
	Address            string          `json:"address" db:"address"`
	Role               PartyRole       `json:"role" db:"role"`
	DisplayName        string          `json:"display_name,omitempty" db:"display_name"`
	Bio                string          `json:"bio,omitempty" db:"bio"`
	Rating             float64         `json:"rating" db:"rating"`
	TotalContracts     int64           `json:"total_contracts" db:"total_contracts"`
	CompletedContracts int64           `json:"completed_contracts" db:"completed_contracts"`
	DisputedContracts  int64           `json:"disputed_contracts" db:"disputed_contracts"`
	CancelledContracts int64           `json:"cancelled_contracts" db:"cancelled_contracts"`
	TotalEarned        string          `json:"total_earned" db:"total_earned"` // smallest units, decimal string
	TotalSpent         string          `json:"total_spent" db:"total_spent"`   // smallest units, decimal string
	Credentials        json.RawMessage `json:"credentials,omitempty" db:"credentials"`
	SessionNonce       string          `json:"-" db:"session_nonce"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// CredentialRef is one soulbound credential entry on a profile.
type CredentialRef struct {
	AgreementID uint64    `json:"agreement_id"`
	TokenRef    string    `json:"token_ref"`
	IssuedAt    time.Time `json:"issued_at"`
}
