// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/healthiphi/founder-pass/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// PledgeRepository defines operations for pledges
type PledgeRepository interface {
	Repository[models.Pledge, models.PledgeFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Pledge, error)
	ListActiveByEmail(ctx context.Context, email string) ([]*models.Pledge, error)
	ListActive(ctx context.Context) ([]*models.Pledge, error)
	// MarkCancelled flips is_cancelled only while the pledge is still active,
	// stamping cancelled_at with at. It reports false when no row was updated.
	MarkCancelled(ctx context.Context, id uint, at time.Time) (bool, error)
	// RevertCancelled undoes only the cancellation stamped at
	RevertCancelled(ctx context.Context, id uint, at time.Time) (bool, error)
	AttachPaymentMethod(ctx context.Context, id uint, paymentMethodID string) error
	Delete(ctx context.Context, id uint) error
	ActiveTotals(ctx context.Context) (pledges int64, seats int64, err error)
}

// VaultStatusRepository defines operations for the vault aggregate
type VaultStatusRepository interface {
	Get(ctx context.Context) (*models.VaultStatus, error)
	// Adjust applies both deltas atomically and returns the new totals
	Adjust(ctx context.Context, pledgeDelta, seatsDelta int) (*models.VaultTotals, error)
	// MarkThresholdReached stamps pledge_reached_at if it is unset and reports
	// whether this call performed the stamp
	MarkThresholdReached(ctx context.Context) (bool, error)
	// Overwrite replaces the totals, used by reconciliation
	Overwrite(ctx context.Context, totalPledges, totalSeats int64) error
	// Lock takes a row lock on the aggregate for the rest of the transaction
	Lock(ctx context.Context) (*models.VaultStatus, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByPledge(ctx context.Context, pledgeID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}
