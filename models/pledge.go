package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PledgeState is the derived lifecycle state of a pledge
type PledgeState string

const (
	PledgeStateActive    PledgeState = "active"    // Vaulted (or vaulting), neither cancelled nor charged
	PledgeStateCancelled PledgeState = "cancelled" // Withdrawn by its owner before charging
	PledgeStateCharged   PledgeState = "charged"   // Charged by the out-of-band billing process
)

// Pledge is one visitor's monthly commitment for a number of Founder Pass seats
type Pledge struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`

	FullName  string `gorm:"type:varchar(255);not null" json:"full_name"`
	UserEmail string `gorm:"type:varchar(255);not null;index" json:"user_email"`

	Seats       int    `gorm:"not null" json:"seats"`
	TotalAmount int64  `gorm:"not null" json:"total_amount"` // Whole euros per month
	Currency    string `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`

	// bcrypt hash of the cancellation secret, the plaintext is never stored
	SecretHash string `gorm:"type:varchar(255);not null" json:"-"`

	VaultIntentID           string     `gorm:"column:stripe_setup_intent_id;type:varchar(255);uniqueIndex;not null" json:"stripe_setup_intent_id"`
	PaymentMethodID         *string    `gorm:"type:varchar(255)" json:"payment_method_id,omitempty"`
	PaymentMethodAttachedAt *time.Time `json:"payment_method_attached_at,omitempty"`

	IsCharged   bool       `gorm:"not null;default:false" json:"is_charged"`
	IsCancelled bool       `gorm:"not null;default:false;index" json:"is_cancelled"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Metadata  json.RawMessage `gorm:"type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Pledge) TableName() string {
	return "pledges"
}

// BeforeCreate ensures the public UUID is set
func (p *Pledge) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	return nil
}

// IsActive reports whether the pledge still counts toward the vault aggregate
func (p *Pledge) IsActive() bool {
	return !p.IsCancelled && !p.IsCharged
}

// State derives the lifecycle state from the two flags
func (p *Pledge) State() PledgeState {
	switch {
	case p.IsCharged:
		return PledgeStateCharged
	case p.IsCancelled:
		return PledgeStateCancelled
	default:
		return PledgeStateActive
	}
}

// HasPaymentMethod reports whether the card has been confirmed and vaulted
func (p *Pledge) HasPaymentMethod() bool {
	return p.PaymentMethodID != nil && *p.PaymentMethodID != ""
}

// PledgeFilter represents filter criteria for pledge queries
type PledgeFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	UserEmail     *string
	State         *PledgeState
	VaultIntentID *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
