// Package testing provides test utilities and database setup for repository integration tests
package testing

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/healthiphi/founder-pass/models"
	"github.com/healthiphi/founder-pass/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestPledge inserts an active pledge whose cancellation secret is secret.
// The vault aggregate is not touched.
func (tf *TestFixtures) CreateTestPledge(email string, seats int, secret string) (*models.Pledge, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash secret: %w", err)
	}

	if email == "" {
		email = fmt.Sprintf("founder.%09d@example.com", rand.Intn(900000000)+100000000)
	}

	pledge := &models.Pledge{
		UUID:          uuid.New(),
		FullName:      "Ada Founder",
		UserEmail:     utils.NormalizeEmail(email),
		Seats:         seats,
		TotalAmount:   int64(29 + 20*(seats-1)),
		Currency:      "EUR",
		SecretHash:    string(hash),
		VaultIntentID: fmt.Sprintf("seti_test_%s", uuid.NewString()[:12]),
		Metadata:      []byte(`{}`),
	}

	if err := tf.DB.DB.Create(pledge).Error; err != nil {
		return nil, fmt.Errorf("failed to create test pledge: %w", err)
	}

	return pledge, nil
}

// CreateCancelledPledge inserts a pledge that no longer counts toward the aggregate
func (tf *TestFixtures) CreateCancelledPledge(email string, seats int) (*models.Pledge, error) {
	pledge, err := tf.CreateTestPledge(email, seats, "irrelevant-secret")
	if err != nil {
		return nil, err
	}

	now := utils.UTCNow()
	if err := tf.DB.DB.Model(pledge).Updates(map[string]any{
		"is_cancelled": true,
		"cancelled_at": now,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to cancel test pledge: %w", err)
	}
	pledge.IsCancelled = true
	pledge.CancelledAt = &now

	return pledge, nil
}

// SetVaultTotals overwrites the singleton aggregate
func (tf *TestFixtures) SetVaultTotals(pledges, seats int64) error {
	return tf.DB.DB.Exec("UPDATE vault_status SET total_pledges = ?, total_seats = ? WHERE id = 1", pledges, seats).Error
}

// CreateTestAuditLog creates a test audit log entry
func (tf *TestFixtures) CreateTestAuditLog(pledgeID *uint, action string, success bool) (*models.AuditLog, error) {
	description := fmt.Sprintf("Test audit log for action: %s", action)
	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	auditLog := &models.AuditLog{
		PledgeID:    pledgeID,
		Action:      action,
		Description: &description,
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
		Success:     utils.ToPtr(success),
		Metadata:    []byte(`{}`),
	}

	if !success {
		errorMsg := "Test error message"
		auditLog.ErrorMessage = &errorMsg
	}

	if err := tf.DB.DB.Create(auditLog).Error; err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}

	return auditLog, nil
}
