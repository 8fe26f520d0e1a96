package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/healthiphi/founder-pass/models"
	"github.com/healthiphi/founder-pass/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrVaultStatusMissing is returned when the singleton aggregate row does not exist
var ErrVaultStatusMissing = errors.New("vault status row is missing")

// VaultStatusRepositoryImpl implements VaultStatusRepository interface
type VaultStatusRepositoryImpl struct {
	*BaseRepository[models.VaultStatus, struct{}]
}

// NewVaultStatusRepository creates a new vault status repository
func NewVaultStatusRepository(db *gorm.DB) VaultStatusRepository {
	return &VaultStatusRepositoryImpl{
		BaseRepository: NewBaseRepository[models.VaultStatus, struct{}](db),
	}
}

// Get reads the aggregate
func (r *VaultStatusRepositoryImpl) Get(ctx context.Context) (*models.VaultStatus, error) {
	status, err := r.ByID(ctx, utils.VaultStatusSingletonID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, ErrVaultStatusMissing
	}
	return status, nil
}

// Adjust calls update_vault_status, a single row-locked UPDATE on the aggregate
func (r *VaultStatusRepositoryImpl) Adjust(ctx context.Context, pledgeDelta, seatsDelta int) (*models.VaultTotals, error) {
	db := r.getDB(ctx)

	var totals []models.VaultTotals
	err := db.Raw("SELECT total_pledges, total_seats, pledge_reached_at FROM update_vault_status(?, ?)", pledgeDelta, seatsDelta).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update vault status (%+d pledges, %+d seats): %w", pledgeDelta, seatsDelta, err)
	}
	if len(totals) == 0 {
		return nil, ErrVaultStatusMissing
	}
	return &totals[0], nil
}

// MarkThresholdReached stamps pledge_reached_at once
func (r *VaultStatusRepositoryImpl) MarkThresholdReached(ctx context.Context) (bool, error) {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	res := db.Model(&models.VaultStatus{}).
		Where("id = ? AND pledge_reached_at IS NULL", utils.VaultStatusSingletonID).
		Updates(map[string]any{
			"pledge_reached_at": now,
			"updated_at":        now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to stamp vault threshold: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Overwrite replaces both totals
func (r *VaultStatusRepositoryImpl) Overwrite(ctx context.Context, totalPledges, totalSeats int64) error {
	db := r.getDB(ctx)
	err := db.Model(&models.VaultStatus{}).
		Where("id = ?", utils.VaultStatusSingletonID).
		Updates(map[string]any{
			"total_pledges": totalPledges,
			"total_seats":   totalSeats,
			"updated_at":    utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to overwrite vault status: %w", err)
	}
	return nil
}

// Lock reads the aggregate with SELECT ... FOR UPDATE
func (r *VaultStatusRepositoryImpl) Lock(ctx context.Context) (*models.VaultStatus, error) {
	db := r.getDB(ctx)
	var status models.VaultStatus
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", utils.VaultStatusSingletonID).
		First(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVaultStatusMissing
		}
		return nil, fmt.Errorf("failed to lock vault status: %w", err)
	}
	return &status, nil
}
