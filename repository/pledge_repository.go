package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/healthiphi/founder-pass/models"
	"github.com/healthiphi/founder-pass/utils"
	"gorm.io/gorm"
)

const activePledgeCondition = "is_cancelled = ? AND is_charged = ?"

// PledgeRepositoryImpl implements PledgeRepository interface
type PledgeRepositoryImpl struct {
	*BaseRepository[models.Pledge, models.PledgeFilter]
}

// NewPledgeRepository creates a new pledge repository
func NewPledgeRepository(db *gorm.DB) PledgeRepository {
	return &PledgeRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Pledge, models.PledgeFilter](db),
	}
}

// ByUUID finds a pledge by its public id
func (r *PledgeRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Pledge, error) {
	db := r.getDB(ctx)
	var pledge models.Pledge
	err := db.Where("uuid = ?", uuid).Last(&pledge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pledge, nil
}

// ListActiveByEmail returns the active pledges of one email, newest first
func (r *PledgeRepositoryImpl) ListActiveByEmail(ctx context.Context, email string) ([]*models.Pledge, error) {
	db := r.getDB(ctx)
	var pledges []*models.Pledge
	err := db.Where("user_email = ?", email).
		Where(activePledgeCondition, false, false).
		Order("created_at DESC").
		Find(&pledges).Error
	if err != nil {
		return nil, err
	}
	return pledges, nil
}

// ListActive returns every active pledge, oldest first
func (r *PledgeRepositoryImpl) ListActive(ctx context.Context) ([]*models.Pledge, error) {
	db := r.getDB(ctx)
	var pledges []*models.Pledge
	err := db.Where(activePledgeCondition, false, false).
		Order("created_at ASC").
		Find(&pledges).Error
	if err != nil {
		return nil, err
	}
	return pledges, nil
}

// MarkCancelled sets is_cancelled on an active pledge, stamping cancelled_at with at
func (r *PledgeRepositoryImpl) MarkCancelled(ctx context.Context, id uint, at time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Pledge{}).
		Where("id = ?", id).
		Where(activePledgeCondition, false, false).
		Updates(map[string]any{
			"is_cancelled": true,
			"cancelled_at": at,
			"updated_at":   utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark pledge %d cancelled: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// RevertCancelled undoes the cancellation stamped at. A pledge whose cancelled_at
// differs was cancelled by someone else and is left alone.
func (r *PledgeRepositoryImpl) RevertCancelled(ctx context.Context, id uint, at time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Pledge{}).
		Where("id = ? AND is_cancelled = ? AND cancelled_at = ?", id, true, at).
		Updates(map[string]any{
			"is_cancelled": false,
			"cancelled_at": nil,
			"updated_at":   utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to revert cancellation of pledge %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AttachPaymentMethod stores the vaulted payment method on the pledge
func (r *PledgeRepositoryImpl) AttachPaymentMethod(ctx context.Context, id uint, paymentMethodID string) error {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	err := db.Model(&models.Pledge{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"payment_method_id":          paymentMethodID,
			"payment_method_attached_at": now,
			"updated_at":                 now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to attach payment method to pledge %d: %w", id, err)
	}
	return nil
}

// Delete removes a pledge row permanently
func (r *PledgeRepositoryImpl) Delete(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	if err := db.Delete(&models.Pledge{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete pledge %d: %w", id, err)
	}
	return nil
}

// ActiveTotals counts active pledges and sums their seats
func (r *PledgeRepositoryImpl) ActiveTotals(ctx context.Context) (int64, int64, error) {
	db := r.getDB(ctx)
	var totals struct {
		Pledges int64
		Seats   int64
	}
	err := db.Model(&models.Pledge{}).
		Select("COUNT(*) AS pledges, COALESCE(SUM(seats), 0) AS seats").
		Where(activePledgeCondition, false, false).
		Scan(&totals).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate active pledges: %w", err)
	}
	return totals.Pledges, totals.Seats, nil
}

// ByFilter retrieves pledges based on filter criteria
func (r *PledgeRepositoryImpl) ByFilter(ctx context.Context, filter models.PledgeFilter, orderBy string, limit, offset int) ([]*models.Pledge, error) {
	db := r.getDB(ctx)
	var pledges []*models.Pledge

	query := db.Model(&models.Pledge{})
	query = r.applyFilter(query, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	} else {
		query = query.Order("created_at DESC")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&pledges).Error
	if err != nil {
		return nil, err
	}
	return pledges, nil
}

// Count returns the number of pledges matching the filter
func (r *PledgeRepositoryImpl) Count(ctx context.Context, filter models.PledgeFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.Pledge{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any pledge matching the filter exists
func (r *PledgeRepositoryImpl) Exists(ctx context.Context, filter models.PledgeFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *PledgeRepositoryImpl) applyFilter(query *gorm.DB, filter models.PledgeFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.UserEmail != nil {
		query = query.Where("user_email = ?", *filter.UserEmail)
	}
	if filter.VaultIntentID != nil {
		query = query.Where("stripe_setup_intent_id = ?", *filter.VaultIntentID)
	}
	if filter.State != nil {
		switch *filter.State {
		case models.PledgeStateActive:
			query = query.Where(activePledgeCondition, false, false)
		case models.PledgeStateCancelled:
			query = query.Where("is_cancelled = ?", true)
		case models.PledgeStateCharged:
			query = query.Where("is_charged = ?", true)
		}
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}
