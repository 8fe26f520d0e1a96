package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/healthiphi/founder-pass/utils"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/setupintent"
)

// StripeVaultProvider vaults cards with Stripe SetupIntents for off-session use
type StripeVaultProvider struct {
	client *setupintent.Client
}

// NewStripeVaultProvider creates a Stripe-backed provider using the given secret key.
// Network retries are disabled; callers see the first failure.
func NewStripeVaultProvider(secretKey string, timeout time.Duration) (*StripeVaultProvider, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
	})
	return &StripeVaultProvider{
		client: &setupintent.Client{B: backend, Key: secretKey},
	}, nil
}

func (p *StripeVaultProvider) Name() string { return "stripe" }

// CreateVaultIntent creates an off-session SetupIntent tagged with the pledge details
func (p *StripeVaultProvider) CreateVaultIntent(ctx context.Context, in VaultIntentInput) (*VaultIntent, error) {
	params := &stripe.SetupIntentParams{
		Usage:              stripe.String(string(stripe.SetupIntentUsageOffSession)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	params.AddMetadata("email", in.Email)
	params.AddMetadata("full_name", in.FullName)
	params.AddMetadata("seats", strconv.Itoa(in.Seats))
	params.AddMetadata("total_amount", strconv.FormatInt(in.TotalAmount, 10))
	params.AddMetadata("currency", in.Currency)
	if in.PledgeID != "" {
		params.AddMetadata("pledge_id", in.PledgeID)
	}
	if rid := utils.RequestIDFromContext(ctx); rid != "" {
		params.AddMetadata("request_id", rid)
	}

	si, err := p.client.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create setup intent: %w", err)
	}
	return toVaultIntent(si), nil
}

// GetVaultIntent retrieves a SetupIntent by id
func (p *StripeVaultProvider) GetVaultIntent(ctx context.Context, id string) (*VaultIntent, error) {
	params := &stripe.SetupIntentParams{}
	params.Context = ctx

	si, err := p.client.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, ErrVaultIntentNotFound
		}
		return nil, fmt.Errorf("stripe: get setup intent %s: %w", id, err)
	}
	return toVaultIntent(si), nil
}

// CancelVaultIntent cancels an unconfirmed SetupIntent
func (p *StripeVaultProvider) CancelVaultIntent(ctx context.Context, id string) error {
	params := &stripe.SetupIntentCancelParams{}
	params.Context = ctx

	if _, err := p.client.Cancel(id, params); err != nil {
		return fmt.Errorf("stripe: cancel setup intent %s: %w", id, err)
	}
	return nil
}

func toVaultIntent(si *stripe.SetupIntent) *VaultIntent {
	intent := &VaultIntent{
		ID:           si.ID,
		ClientSecret: si.ClientSecret,
		Status:       string(si.Status),
	}
	if si.PaymentMethod != nil {
		intent.PaymentMethodID = si.PaymentMethod.ID
	}
	return intent
}
