package beneficiaries

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-aid/meridian-aid/internal/pii"
	"github.com/meridian-aid/meridian-aid/internal/scope"
)

// BeneficiaryStatus represents the lifecycle of a beneficiary record.
type BeneficiaryStatus string

const (
	StatusActive   BeneficiaryStatus = "ACTIVE"
	StatusInactive BeneficiaryStatus = "INACTIVE"
	StatusArchived BeneficiaryStatus = "ARCHIVED"
)

// IsValid checks if the status is valid.
func (s BeneficiaryStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusArchived:
		return true
	default:
		return false
	}
}

// Beneficiary is the stored record: non-PII base attributes plus one
// ciphertext envelope per personal attribute. Plaintext PII never
// touches this struct.
type Beneficiary struct {
	ID         uuid.UUID         `json:"id" db:"id"`
	Pseudonym  string            `json:"pseudonym" db:"pseudonym"`
	Status     BeneficiaryStatus `json:"status" db:"status"`
	EntityID   uuid.UUID         `json:"entity_id" db:"entity_id"`
	EntityType scope.EntityType  `json:"entity_type" db:"entity_type"`
	CreatedBy  uuid.UUID         `json:"created_by" db:"created_by"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`

	FirstNameEnc  *pii.Envelope `json:"-" db:"first_name_enc"`
	LastNameEnc   *pii.Envelope `json:"-" db:"last_name_enc"`
	DobEnc        *pii.Envelope `json:"-" db:"dob_enc"`
	NationalIDEnc *pii.Envelope `json:"-" db:"national_id_enc"`
	PhoneEnc      *pii.Envelope `json:"-" db:"phone_enc"`
	EmailEnc      *pii.Envelope `json:"-" db:"email_enc"`
	AddressEnc    *pii.Envelope `json:"-" db:"address_enc"`
}

// EncFields collects the envelopes keyed by attribute name.
func (b *Beneficiary) EncFields() pii.Fields {
	return pii.Fields{
		"firstName":  b.FirstNameEnc,
		"lastName":   b.LastNameEnc,
		"dob":        b.DobEnc,
		"nationalId": b.NationalIDEnc,
		"phone":      b.PhoneEnc,
		"email":      b.EmailEnc,
		"address":    b.AddressEnc,
	}
}

// View is the wire shape of a beneficiary. The envelope map is always
// present; the plaintext map only for admin-tier callers.
type View struct {
	ID         uuid.UUID                `json:"id"`
	Pseudonym  string                   `json:"pseudonym"`
	Status     BeneficiaryStatus        `json:"status"`
	EntityID   uuid.UUID                `json:"entity_id"`
	EntityType scope.EntityType         `json:"entity_type"`
	CreatedAt  time.Time                `json:"created_at"`
	UpdatedAt  time.Time                `json:"updated_at"`
	PIIEnc     map[string]*pii.Envelope `json:"piiEnc"`
	PII        map[string]*string       `json:"pii,omitempty"`
}

// CreateRequest registers a beneficiary. Envelopes arrive pre-encrypted
// from the intake client.
type CreateRequest struct {
	Pseudonym  string           `json:"pseudonym" validate:"required,max=100"`
	EntityID   uuid.UUID        `json:"entity_id" validate:"required"`
	EntityType scope.EntityType `json:"entity_type" validate:"required"`

	FirstNameEnc  *pii.Envelope `json:"firstNameEnc,omitempty"`
	LastNameEnc   *pii.Envelope `json:"lastNameEnc,omitempty"`
	DobEnc        *pii.Envelope `json:"dobEnc,omitempty"`
	NationalIDEnc *pii.Envelope `json:"nationalIdEnc,omitempty"`
	PhoneEnc      *pii.Envelope `json:"phoneEnc,omitempty"`
	EmailEnc      *pii.Envelope `json:"emailEnc,omitempty"`
	AddressEnc    *pii.Envelope `json:"addressEnc,omitempty"`
}

// UpdateRequest patches status or re-encrypted envelopes.
type UpdateRequest struct {
	Status        *BeneficiaryStatus `json:"status,omitempty"`
	FirstNameEnc  *pii.Envelope      `json:"firstNameEnc,omitempty"`
	LastNameEnc   *pii.Envelope      `json:"lastNameEnc,omitempty"`
	DobEnc        *pii.Envelope      `json:"dobEnc,omitempty"`
	NationalIDEnc *pii.Envelope      `json:"nationalIdEnc,omitempty"`
	PhoneEnc      *pii.Envelope      `json:"phoneEnc,omitempty"`
	EmailEnc      *pii.Envelope      `json:"emailEnc,omitempty"`
	AddressEnc    *pii.Envelope      `json:"addressEnc,omitempty"`
}

// ListRequest carries the caller-supplied filters for listings.
type ListRequest struct {
	EntityID    *uuid.UUID
	EntityIDs   []uuid.UUID
	StaffUserID *uuid.UUID
	Status      *BeneficiaryStatus
	Page        int
	PerPage     int
}
