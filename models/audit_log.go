// Package models contains domain entities for the Founder Pass pledge service
package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	PledgeID     *uint           `gorm:"index:idx_audit_pledge_id" json:"pledge_id,omitempty"`
	Action       string          `gorm:"type:varchar(64);not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionPledgeCreated         = "pledge_created"
	AuditActionPledgeCreationFailed  = "pledge_creation_failed"
	AuditActionPaymentMethodAttached = "payment_method_attached"
	AuditActionPaymentMethodFailed   = "payment_method_attach_failed"
	AuditActionPledgeCancelled       = "pledge_cancelled"
	AuditActionPledgeCancelFailed    = "pledge_cancellation_failed"
	AuditActionCompensationFailed    = "compensation_failed"
	AuditActionVaultThresholdReached = "vault_threshold_reached"
	AuditActionVaultReconciled       = "vault_reconciled"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	PledgeID      *uint
	Action        *string
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}
