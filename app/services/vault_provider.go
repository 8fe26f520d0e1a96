package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

// Vault intent statuses, mirroring the payment processor's SetupIntent lifecycle
const (
	VaultIntentStatusRequiresPaymentMethod = "requires_payment_method"
	VaultIntentStatusRequiresConfirmation  = "requires_confirmation"
	VaultIntentStatusRequiresAction        = "requires_action"
	VaultIntentStatusProcessing            = "processing"
	VaultIntentStatusSucceeded             = "succeeded"
	VaultIntentStatusCanceled              = "canceled"
)

// ErrVaultIntentNotFound is returned when the processor does not know the intent
var ErrVaultIntentNotFound = errors.New("vault intent not found")

// VaultIntentInput describes the pledge a card is being vaulted for
type VaultIntentInput struct {
	PledgeID       string
	Email          string
	FullName       string
	Seats          int
	TotalAmount    int64
	Currency       string
	IdempotencyKey string
}

// VaultIntent is the processor-side object that collects a card for later off-session charges
type VaultIntent struct {
	ID              string
	ClientSecret    string
	Status          string
	PaymentMethodID string
}

// Succeeded reports whether a payment method has been vaulted
func (v *VaultIntent) Succeeded() bool {
	return v.Status == VaultIntentStatusSucceeded && v.PaymentMethodID != ""
}

// VaultProvider is the payment processor collaborator
type VaultProvider interface {
	Name() string
	CreateVaultIntent(ctx context.Context, in VaultIntentInput) (*VaultIntent, error)
	GetVaultIntent(ctx context.Context, id string) (*VaultIntent, error)
	CancelVaultIntent(ctx context.Context, id string) error
}

// MockVaultProvider keeps intents in memory and confirms them immediately.
// It backs local development and tests.
type MockVaultProvider struct {
	mu      sync.Mutex
	intents map[string]*VaultIntent
}

func NewMockVaultProvider() *MockVaultProvider {
	return &MockVaultProvider{intents: make(map[string]*VaultIntent)}
}

func (m *MockVaultProvider) Name() string { return "mock" }

func (m *MockVaultProvider) CreateVaultIntent(ctx context.Context, in VaultIntentInput) (*VaultIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	suffix, err := randomHex(12)
	if err != nil {
		return nil, err
	}
	secret, err := randomHex(12)
	if err != nil {
		return nil, err
	}
	intent := &VaultIntent{
		ID:              "seti_mock_" + suffix,
		ClientSecret:    fmt.Sprintf("seti_mock_%s_secret_%s", suffix, secret),
		Status:          VaultIntentStatusSucceeded,
		PaymentMethodID: "pm_mock_" + suffix,
	}

	m.mu.Lock()
	m.intents[intent.ID] = intent
	m.mu.Unlock()

	copied := *intent
	return &copied, nil
}

func (m *MockVaultProvider) GetVaultIntent(ctx context.Context, id string) (*VaultIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[id]
	if !ok {
		return nil, ErrVaultIntentNotFound
	}
	copied := *intent
	return &copied, nil
}

func (m *MockVaultProvider) CancelVaultIntent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[id]
	if !ok {
		return ErrVaultIntentNotFound
	}
	intent.Status = VaultIntentStatusCanceled
	intent.PaymentMethodID = ""
	return nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
