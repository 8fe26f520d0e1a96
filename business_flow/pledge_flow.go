package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/healthiphi/founder-pass/app/dto"
	"github.com/healthiphi/founder-pass/app/services"
	"github.com/healthiphi/founder-pass/config"
	"github.com/healthiphi/founder-pass/models"
	"github.com/healthiphi/founder-pass/repository"
	"github.com/healthiphi/founder-pass/utils"
	"golang.org/x/crypto/bcrypt"
)

const (
	// compensationTimeout bounds compensating writes, which run detached from the request deadline
	compensationTimeout = 10 * time.Second
	// thresholdNotifyTimeout bounds the background fan-out to every active pledger
	thresholdNotifyTimeout = 10 * time.Minute
)

// PledgeFlow handles the public pledge lifecycle
type PledgeFlow interface {
	CreatePledge(ctx context.Context, req *dto.CreatePledgeRequest, metadata *ClientMetadata) (*dto.CreatePledgeResponse, error)
	AttachPaymentMethod(ctx context.Context, req *dto.AttachPaymentMethodRequest, metadata *ClientMetadata) (*dto.AttachPaymentMethodResponse, error)
	CancelPledge(ctx context.Context, req *dto.CancelPledgeRequest, metadata *ClientMetadata) (*dto.CancelPledgeResponse, error)
	QuotePledge(ctx context.Context, req *dto.PledgeQuoteRequest) (*dto.PledgeQuoteResponse, error)
}

// PledgeFlowImpl implements the pledge business flow
type PledgeFlowImpl struct {
	pledgeRepo    repository.PledgeRepository
	vaultRepo     repository.VaultStatusRepository
	auditRepo     repository.AuditLogRepository
	txRunner      repository.TxRunner
	vaultProvider services.VaultProvider
	notifier      PledgeNotifier
	cache         VaultStatusCache
	seatGoal      int64
	bcryptCost    int

	dummyOnce sync.Once
	dummyHash []byte

	background sync.WaitGroup
}

// NewPledgeFlow creates a new pledge flow instance
func NewPledgeFlow(
	pledgeRepo repository.PledgeRepository,
	vaultRepo repository.VaultStatusRepository,
	auditRepo repository.AuditLogRepository,
	txRunner repository.TxRunner,
	vaultProvider services.VaultProvider,
	notifier PledgeNotifier,
	cache VaultStatusCache,
	pledgeCfg config.PledgeConfig,
	bcryptCost int,
) PledgeFlow {
	seatGoal := pledgeCfg.SeatGoal
	if seatGoal <= 0 {
		seatGoal = utils.VaultSeatGoal
	}
	if notifier == nil {
		notifier = noopPledgeNotifier{}
	}
	if cache == nil {
		cache = noopVaultStatusCache{}
	}
	return &PledgeFlowImpl{
		pledgeRepo:    pledgeRepo,
		vaultRepo:     vaultRepo,
		auditRepo:     auditRepo,
		txRunner:      txRunner,
		vaultProvider: vaultProvider,
		notifier:      notifier,
		cache:         cache,
		seatGoal:      seatGoal,
		bcryptCost:    bcryptCost,
	}
}

// CreatePledge vaults a card intent, stores the pledge and bumps the aggregate
func (f *PledgeFlowImpl) CreatePledge(ctx context.Context, req *dto.CreatePledgeRequest, metadata *ClientMetadata) (_ *dto.CreatePledgeResponse, err error) {
	defer func() {
		pledgesCreatedTotal.WithLabelValues(outcome(err)).Inc()
	}()

	if err := f.validateCreatePledgeRequest(req); err != nil {
		return nil, NewBusinessError("CREATE_PLEDGE_VALIDATION_FAILED", "Invalid pledge request", err)
	}

	fullName := strings.TrimSpace(req.FullName)
	email := utils.NormalizeEmail(req.Email)
	amount := CalculateAmount(req.Seats)

	secret, err := GenerateSecret()
	if err != nil {
		return nil, NewBusinessError("CREATE_PLEDGE_FAILED", "Failed to create pledge", fmt.Errorf("%w: %w", ErrPledgeCreationFailed, err))
	}
	secretHash, err := HashSecret(secret, f.bcryptCost)
	if err != nil {
		return nil, NewBusinessError("CREATE_PLEDGE_FAILED", "Failed to create pledge", fmt.Errorf("%w: %w", ErrPledgeCreationFailed, err))
	}

	// The public id doubles as the processor idempotency key, so it exists before the row does
	pledgeUUID := uuid.New()

	intent, err := f.vaultProvider.CreateVaultIntent(ctx, services.VaultIntentInput{
		PledgeID:       pledgeUUID.String(),
		Email:          email,
		FullName:       fullName,
		Seats:          req.Seats,
		TotalAmount:    amount,
		Currency:       utils.EuroCurrency,
		IdempotencyKey: "pledge-" + pledgeUUID.String(),
	})
	if err != nil {
		errMsg := err.Error()
		_ = createAuditLog(ctx, f.auditRepo, nil, models.AuditActionPledgeCreationFailed,
			fmt.Sprintf("Vault intent creation failed for %s", utils.MaskEmail(email)), false, &errMsg, metadata)
		return nil, NewBusinessError("VAULT_INTENT_CREATION_FAILED", "Failed to create pledge", fmt.Errorf("%w: %w", ErrVaultIntentCreationFailed, err))
	}

	pledge := &models.Pledge{
		UUID:          pledgeUUID,
		FullName:      fullName,
		UserEmail:     email,
		Seats:         req.Seats,
		TotalAmount:   amount,
		Currency:      utils.EuroCurrency,
		SecretHash:    secretHash,
		VaultIntentID: intent.ID,
		Metadata:      pledgeMetadata(metadata, f.vaultProvider.Name()),
	}

	var totals *models.VaultTotals
	err = f.txRunner.Run(ctx, func(txCtx context.Context) error {
		if err := f.pledgeRepo.Save(txCtx, pledge); err != nil {
			return fmt.Errorf("%w: %w", ErrPledgeCreationFailed, err)
		}
		t, err := f.vaultRepo.Adjust(txCtx, 1, pledge.Seats)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrVaultStatusUpdateFailed, err)
		}
		totals = t
		return nil
	})
	if err != nil {
		if IsVaultStatusUpdateFailed(err) {
			f.compensateCreate(ctx, pledge, metadata)
		}
		f.releaseVaultIntent(ctx, intent.ID)

		errMsg := err.Error()
		_ = createAuditLog(ctx, f.auditRepo, nil, models.AuditActionPledgeCreationFailed,
			fmt.Sprintf("Pledge creation failed for %s", utils.MaskEmail(email)), false, &errMsg, metadata)

		if IsVaultStatusUpdateFailed(err) {
			return nil, NewBusinessError("VAULT_STATUS_UPDATE_FAILED", "Failed to update vault status", err)
		}
		return nil, NewBusinessError("CREATE_PLEDGE_FAILED", "Failed to create pledge", err)
	}

	observeVaultTotals(totals.TotalPledges, totals.TotalSeats)
	f.cache.Invalidate(ctx)

	_ = createAuditLog(ctx, f.auditRepo, pledge, models.AuditActionPledgeCreated,
		fmt.Sprintf("Pledge for %d seats created (%d EUR/month)", pledge.Seats, pledge.TotalAmount), true, nil, metadata)

	if err := f.notifier.PledgeConfirmed(ctx, pledge, secret, totals.TotalSeats); err != nil {
		log.Printf("pledge %s: confirmation email failed: %v", pledge.UUID, err)
	}

	if totals.TotalSeats >= f.seatGoal && totals.PledgeReachedAt == nil {
		f.handleThresholdReached(ctx, metadata)
	}

	return &dto.CreatePledgeResponse{
		Success:      true,
		ClientSecret: intent.ClientSecret,
		PledgeID:     pledge.UUID.String(),
	}, nil
}

// AttachPaymentMethod stores the card vaulted by a confirmed intent
func (f *PledgeFlowImpl) AttachPaymentMethod(ctx context.Context, req *dto.AttachPaymentMethodRequest, metadata *ClientMetadata) (*dto.AttachPaymentMethodResponse, error) {
	if req == nil {
		return nil, NewBusinessError("ATTACH_PAYMENT_METHOD_VALIDATION_FAILED", "Invalid request", ErrPledgeIDInvalid)
	}
	pledgeUUID, err := uuid.Parse(strings.TrimSpace(req.PledgeID))
	if err != nil {
		return nil, NewBusinessError("ATTACH_PAYMENT_METHOD_VALIDATION_FAILED", "Invalid pledge id", ErrPledgeIDInvalid)
	}

	pledge, err := f.pledgeRepo.ByUUID(ctx, pledgeUUID.String())
	if err != nil {
		return nil, NewBusinessError("ATTACH_PAYMENT_METHOD_FAILED", "Failed to load pledge", err)
	}
	if pledge == nil {
		return nil, NewBusinessError("PLEDGE_NOT_FOUND", "Pledge not found", ErrPledgeNotFound)
	}
	if !pledge.IsActive() {
		return nil, NewBusinessError("PLEDGE_NOT_ACTIVE", "Pledge is no longer active", ErrPledgeNotActive)
	}
	if strings.TrimSpace(req.SetupIntentID) != pledge.VaultIntentID {
		return nil, NewBusinessError("VAULT_INTENT_MISMATCH", "Setup intent does not belong to this pledge", ErrVaultIntentMismatch)
	}

	intent, err := f.vaultProvider.GetVaultIntent(ctx, pledge.VaultIntentID)
	if err != nil {
		f.auditAttachFailure(ctx, pledge, err, metadata)
		return nil, NewBusinessError("VAULT_LOOKUP_FAILED", "Failed to verify setup intent", fmt.Errorf("%w: %w", ErrVaultLookupFailed, err))
	}
	if !intent.Succeeded() {
		f.auditAttachFailure(ctx, pledge, fmt.Errorf("intent status %q", intent.Status), metadata)
		return nil, NewBusinessErrorf("VAULT_INTENT_NOT_CONFIRMED", "Setup intent is %s", ErrVaultIntentNotConfirmed, intent.Status)
	}

	if pledge.HasPaymentMethod() {
		if *pledge.PaymentMethodID != intent.PaymentMethodID {
			return nil, NewBusinessError("PAYMENT_METHOD_CONFLICT", "Pledge already has a different payment method", ErrPaymentMethodConflict)
		}
		return &dto.AttachPaymentMethodResponse{
			PledgeID:        pledge.UUID.String(),
			PaymentMethodID: *pledge.PaymentMethodID,
			AttachedAt:      formatAttachedAt(pledge.PaymentMethodAttachedAt),
			AlreadyAttached: true,
		}, nil
	}

	if err := f.pledgeRepo.AttachPaymentMethod(ctx, pledge.ID, intent.PaymentMethodID); err != nil {
		f.auditAttachFailure(ctx, pledge, err, metadata)
		return nil, NewBusinessError("ATTACH_PAYMENT_METHOD_FAILED", "Failed to store payment method", err)
	}
	attachedAt := utils.UTCNow()

	_ = createAuditLog(ctx, f.auditRepo, pledge, models.AuditActionPaymentMethodAttached,
		"Payment method vaulted", true, nil, metadata)

	return &dto.AttachPaymentMethodResponse{
		PledgeID:        pledge.UUID.String(),
		PaymentMethodID: intent.PaymentMethodID,
		AttachedAt:      attachedAt.Format(time.RFC3339),
	}, nil
}

// CancelPledge withdraws an active pledge for the holder of its email and secret
func (f *PledgeFlowImpl) CancelPledge(ctx context.Context, req *dto.CancelPledgeRequest, metadata *ClientMetadata) (_ *dto.CancelPledgeResponse, err error) {
	defer func() {
		pledgesCancelledTotal.WithLabelValues(outcome(err)).Inc()
	}()

	if err := f.validateCancelPledgeRequest(req); err != nil {
		return nil, NewBusinessError("CANCEL_PLEDGE_VALIDATION_FAILED", "Invalid data", err)
	}
	email := utils.NormalizeEmail(req.Email)

	pledge, err := f.findPledgeBySecret(ctx, email, req.Secret)
	if err != nil {
		return nil, NewBusinessError("CANCEL_PLEDGE_FAILED", "Failed to cancel pledge", fmt.Errorf("%w: %w", ErrPledgeCancellationFailed, err))
	}
	if pledge == nil {
		return nil, NewBusinessError("PLEDGE_NOT_FOUND", "Invalid email or secret, or pledge already processed", ErrPledgeNotFoundOrProcessed)
	}

	// Postgres keeps microseconds, and the stamp must compare equal when reverting
	cancelledAt := utils.UTCNow().Truncate(time.Microsecond)

	var totals *models.VaultTotals
	err = f.txRunner.Run(ctx, func(txCtx context.Context) error {
		updated, err := f.pledgeRepo.MarkCancelled(txCtx, pledge.ID, cancelledAt)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPledgeCancellationFailed, err)
		}
		if !updated {
			return ErrPledgeNotFoundOrProcessed
		}
		t, err := f.vaultRepo.Adjust(txCtx, -1, -pledge.Seats)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrVaultStatusUpdateFailed, err)
		}
		totals = t
		return nil
	})
	if err != nil {
		if IsPledgeNotFoundOrProcessed(err) {
			return nil, NewBusinessError("PLEDGE_NOT_FOUND", "Invalid email or secret, or pledge already processed", err)
		}
		if IsVaultStatusUpdateFailed(err) {
			f.compensateCancel(ctx, pledge, cancelledAt, metadata)
			err = fmt.Errorf("%w: %w", ErrPledgeCancellationFailed, err)
		}

		errMsg := err.Error()
		_ = createAuditLog(ctx, f.auditRepo, pledge, models.AuditActionPledgeCancelFailed,
			"Pledge cancellation failed", false, &errMsg, metadata)
		return nil, NewBusinessError("CANCEL_PLEDGE_FAILED", "Failed to cancel pledge", err)
	}

	observeVaultTotals(totals.TotalPledges, totals.TotalSeats)
	f.cache.Invalidate(ctx)

	_ = createAuditLog(ctx, f.auditRepo, pledge, models.AuditActionPledgeCancelled,
		fmt.Sprintf("Pledge for %d seats cancelled", pledge.Seats), true, nil, metadata)

	if err := f.notifier.PledgeCancelled(ctx, pledge); err != nil {
		log.Printf("pledge %s: cancellation email failed: %v", pledge.UUID, err)
	}

	return &dto.CancelPledgeResponse{
		Success: true,
		Message: "Pledge cancelled successfully",
	}, nil
}

// QuotePledge prices a seat count without touching storage
func (f *PledgeFlowImpl) QuotePledge(ctx context.Context, req *dto.PledgeQuoteRequest) (*dto.PledgeQuoteResponse, error) {
	if req == nil {
		return nil, NewBusinessError("QUOTE_VALIDATION_FAILED", "Invalid quote request", ErrInvalidSeats)
	}
	quote, err := BuildQuote(req.Seats)
	if err != nil {
		return nil, NewBusinessError("QUOTE_VALIDATION_FAILED", "Invalid quote request", err)
	}
	return quote, nil
}

func (f *PledgeFlowImpl) validateCreatePledgeRequest(req *dto.CreatePledgeRequest) error {
	if req == nil {
		return ErrFullNameEmpty
	}
	if strings.TrimSpace(req.FullName) == "" {
		return ErrFullNameEmpty
	}
	if !validEmail(req.Email) {
		return ErrEmailInvalid
	}
	if !ValidSeats(req.Seats) {
		return ErrInvalidSeats
	}
	return nil
}

func (f *PledgeFlowImpl) validateCancelPledgeRequest(req *dto.CancelPledgeRequest) error {
	if req == nil || !validEmail(req.Email) {
		return ErrEmailInvalid
	}
	if req.Secret == "" {
		return ErrSecretRequired
	}
	return nil
}

// findPledgeBySecret returns the active pledge of email whose secret matches, or nil
func (f *PledgeFlowImpl) findPledgeBySecret(ctx context.Context, email, secret string) (*models.Pledge, error) {
	pledges, err := f.pledgeRepo.ListActiveByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(pledges) == 0 {
		_ = bcrypt.CompareHashAndPassword(f.dummySecretHash(), []byte(secret))
		return nil, nil
	}
	for _, p := range pledges {
		if SecretMatches(p.SecretHash, secret) {
			return p, nil
		}
	}
	return nil, nil
}

// dummySecretHash is compared against when an email has no active pledge, so a miss
// costs as much as a hit at the configured bcrypt cost
func (f *PledgeFlowImpl) dummySecretHash() []byte {
	f.dummyOnce.Do(func() {
		hash, err := HashSecret("founder-pass-placeholder-secret", f.bcryptCost)
		if err != nil {
			log.Printf("failed to prepare placeholder secret hash: %v", err)
			return
		}
		f.dummyHash = []byte(hash)
	})
	return f.dummyHash
}

// compensateCreate removes a pledge row whose counter adjustment failed.
// After a rolled back transaction the delete matches nothing.
func (f *PledgeFlowImpl) compensateCreate(ctx context.Context, pledge *models.Pledge, metadata *ClientMetadata) {
	if pledge.ID == 0 {
		return
	}
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	err := f.pledgeRepo.Delete(compCtx, pledge.ID)
	compensationsTotal.WithLabelValues("delete_pledge", outcome(err)).Inc()
	if err != nil {
		log.Printf("pledge %s: compensating delete failed: %v", pledge.UUID, err)
		errMsg := err.Error()
		_ = createAuditLog(compCtx, f.auditRepo, pledge, models.AuditActionCompensationFailed,
			"Compensating delete after failed vault update did not complete", false, &errMsg, metadata)
	}
}

// compensateCancel restores a pledge whose cancellation could not be counted.
// A rolled back transaction already undid the flag, and another request may have
// cancelled the pledge since, so only the non-transactional path reverts, and
// only the cancellation stamped cancelledAt.
func (f *PledgeFlowImpl) compensateCancel(ctx context.Context, pledge *models.Pledge, cancelledAt time.Time, metadata *ClientMetadata) {
	if f.txRunner.Transactional() {
		return
	}
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	reverted, err := f.pledgeRepo.RevertCancelled(compCtx, pledge.ID, cancelledAt)
	compensationsTotal.WithLabelValues("revert_cancel", outcome(err)).Inc()
	if err == nil && !reverted {
		log.Printf("pledge %s: cancellation no longer ours to revert", pledge.UUID)
	}
	if err != nil {
		log.Printf("pledge %s: compensating revert failed: %v", pledge.UUID, err)
		errMsg := err.Error()
		_ = createAuditLog(compCtx, f.auditRepo, pledge, models.AuditActionCompensationFailed,
			"Reverting cancellation after failed vault update did not complete", false, &errMsg, metadata)
	}
}

// releaseVaultIntent cancels an intent whose pledge was never stored
func (f *PledgeFlowImpl) releaseVaultIntent(ctx context.Context, intentID string) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	err := f.vaultProvider.CancelVaultIntent(relCtx, intentID)
	compensationsTotal.WithLabelValues("cancel_vault_intent", outcome(err)).Inc()
	if err != nil {
		log.Printf("vault intent %s: cancel after failed pledge creation failed: %v", intentID, err)
	}
}

// handleThresholdReached stamps the goal and, for the single caller that wins the
// stamp, notifies every active pledger in the background. Nothing here fails the request.
func (f *PledgeFlowImpl) handleThresholdReached(ctx context.Context, metadata *ClientMetadata) {
	won, err := f.vaultRepo.MarkThresholdReached(ctx)
	if err != nil {
		thresholdEventsTotal.WithLabelValues("stamp", outcomeFailure).Inc()
		log.Printf("threshold: failed to record pledge_reached_at: %v", err)
		return
	}
	if !won {
		return
	}
	thresholdEventsTotal.WithLabelValues("stamp", outcomeSuccess).Inc()
	f.cache.Invalidate(ctx)

	_ = createAuditLog(ctx, f.auditRepo, nil, models.AuditActionVaultThresholdReached,
		fmt.Sprintf("Seat goal of %d reached", f.seatGoal), true, nil, metadata)

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), thresholdNotifyTimeout)
	f.background.Add(1)
	go func() {
		defer f.background.Done()
		defer cancel()
		f.notifyThresholdReached(notifyCtx)
	}()
}

func (f *PledgeFlowImpl) notifyThresholdReached(ctx context.Context) {
	pledges, err := f.pledgeRepo.ListActive(ctx)
	if err != nil {
		thresholdEventsTotal.WithLabelValues("enumerate", outcomeFailure).Inc()
		log.Printf("threshold: failed to list active pledges: %v", err)
		return
	}

	err = f.notifier.ThresholdReached(ctx, pledges)
	thresholdEventsTotal.WithLabelValues("notify", outcome(err)).Inc()
	if err != nil {
		log.Printf("threshold: notifying %d pledgers finished with errors: %v", len(pledges), err)
	}
}

// Wait blocks until background threshold notifications have finished
func (f *PledgeFlowImpl) Wait() {
	f.background.Wait()
}

func (f *PledgeFlowImpl) auditAttachFailure(ctx context.Context, pledge *models.Pledge, cause error, metadata *ClientMetadata) {
	errMsg := cause.Error()
	_ = createAuditLog(ctx, f.auditRepo, pledge, models.AuditActionPaymentMethodFailed,
		"Payment method could not be attached", false, &errMsg, metadata)
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 255 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func pledgeMetadata(metadata *ClientMetadata, provider string) json.RawMessage {
	m := map[string]string{"vault_provider": provider}
	if metadata != nil {
		if metadata.IPAddress != "" {
			m["ip_address"] = metadata.IPAddress
		}
		if metadata.UserAgent != "" {
			m["user_agent"] = metadata.UserAgent
		}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}

func formatAttachedAt(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
