package businessflow

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/healthiphi/founder-pass/app/dto"
	"github.com/healthiphi/founder-pass/models"
	"github.com/healthiphi/founder-pass/repository"
	"github.com/healthiphi/founder-pass/utils"
)

// Progress stage labels shown on the public progress band
const (
	VaultStageWarming  = "warming"
	VaultStageIgnition = "ignition"
	VaultStageForming  = "forming"
	VaultStageImminent = "imminent"
)

// VaultFlow exposes the vault aggregate
type VaultFlow interface {
	GetVaultStatus(ctx context.Context) (*dto.VaultStatusResponse, error)
	// Reconcile compares the aggregate with the active pledges under a row lock
	// and rewrites it when repair is set
	Reconcile(ctx context.Context, repair bool, metadata *ClientMetadata) (*dto.ReconcileVaultResponse, error)
}

type VaultFlowImpl struct {
	pledgeRepo repository.PledgeRepository
	vaultRepo  repository.VaultStatusRepository
	auditRepo  repository.AuditLogRepository
	txRunner   repository.TxRunner
	cache      VaultStatusCache
	seatGoal   int64
}

func NewVaultFlow(
	pledgeRepo repository.PledgeRepository,
	vaultRepo repository.VaultStatusRepository,
	auditRepo repository.AuditLogRepository,
	txRunner repository.TxRunner,
	cache VaultStatusCache,
	seatGoal int64,
) VaultFlow {
	if seatGoal <= 0 {
		seatGoal = utils.VaultSeatGoal
	}
	if cache == nil {
		cache = noopVaultStatusCache{}
	}
	return &VaultFlowImpl{
		pledgeRepo: pledgeRepo,
		vaultRepo:  vaultRepo,
		auditRepo:  auditRepo,
		txRunner:   txRunner,
		cache:      cache,
		seatGoal:   seatGoal,
	}
}

func (f *VaultFlowImpl) GetVaultStatus(ctx context.Context) (*dto.VaultStatusResponse, error) {
	if cached, ok := f.cache.Get(ctx); ok {
		return cached, nil
	}

	status, err := f.vaultRepo.Get(ctx)
	if err != nil {
		return nil, NewBusinessError("VAULT_STATUS_UNAVAILABLE", "Failed to load vault status", fmt.Errorf("%w: %w", ErrVaultStatusUnavailable, err))
	}

	resp := BuildVaultStatus(status, f.seatGoal)
	observeVaultTotals(status.TotalPledges, status.TotalSeats)
	f.cache.Set(ctx, resp)
	return resp, nil
}

func (f *VaultFlowImpl) Reconcile(ctx context.Context, repair bool, metadata *ClientMetadata) (*dto.ReconcileVaultResponse, error) {
	// Without a transaction the count can race with a concurrent insert and its
	// counter bump, so only the transactional runner may rewrite the aggregate.
	if repair && !f.txRunner.Transactional() {
		log.Printf("vault reconcile: repair requested without transactional store, reporting only")
		repair = false
	}

	var drift models.VaultDrift
	err := f.txRunner.Run(ctx, func(txCtx context.Context) error {
		status, err := f.vaultRepo.Lock(txCtx)
		if err != nil {
			return err
		}
		pledges, seats, err := f.pledgeRepo.ActiveTotals(txCtx)
		if err != nil {
			return err
		}

		drift = models.VaultDrift{
			StoredPledges: status.TotalPledges,
			StoredSeats:   status.TotalSeats,
			ActualPledges: pledges,
			ActualSeats:   seats,
		}
		if !drift.HasDrift() || !repair {
			return nil
		}
		if err := f.vaultRepo.Overwrite(txCtx, pledges, seats); err != nil {
			return err
		}
		drift.Repaired = true
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("VAULT_RECONCILE_FAILED", "Failed to reconcile vault status", fmt.Errorf("%w: %w", ErrVaultStatusUnavailable, err))
	}

	if drift.HasDrift() {
		vaultDriftTotal.Inc()
		log.Printf("vault reconcile: stored %d/%d, actual %d/%d, repaired=%t",
			drift.StoredPledges, drift.StoredSeats, drift.ActualPledges, drift.ActualSeats, drift.Repaired)
		_ = createAuditLog(ctx, f.auditRepo, nil, models.AuditActionVaultReconciled,
			fmt.Sprintf("Vault drift: stored %d pledges/%d seats, actual %d pledges/%d seats, repaired=%t",
				drift.StoredPledges, drift.StoredSeats, drift.ActualPledges, drift.ActualSeats, drift.Repaired),
			true, nil, metadata)
	}
	if drift.Repaired {
		observeVaultTotals(drift.ActualPledges, drift.ActualSeats)
		f.cache.Invalidate(ctx)
	}

	return &dto.ReconcileVaultResponse{
		StoredPledges: drift.StoredPledges,
		StoredSeats:   drift.StoredSeats,
		ActualPledges: drift.ActualPledges,
		ActualSeats:   drift.ActualSeats,
		Drift:         drift.HasDrift(),
		Repaired:      drift.Repaired,
	}, nil
}

// BuildVaultStatus renders the aggregate for the progress band
func BuildVaultStatus(status *models.VaultStatus, seatGoal int64) *dto.VaultStatusResponse {
	percent := ProgressPercent(status.TotalSeats, seatGoal)
	remaining := seatGoal - status.TotalSeats
	if remaining < 0 {
		remaining = 0
	}
	return &dto.VaultStatusResponse{
		TotalPledges:    status.TotalPledges,
		TotalSeats:      status.TotalSeats,
		SeatGoal:        seatGoal,
		SeatsRemaining:  remaining,
		ProgressPercent: percent,
		Stage:           ProgressStage(percent),
		GoalReached:     status.GoalReached(),
		PledgeReachedAt: utils.FormatTimePtr(status.PledgeReachedAt),
	}
}

// ProgressPercent is seats over goal, capped at 100 and rounded to one decimal
func ProgressPercent(seats, goal int64) float64 {
	if goal <= 0 || seats <= 0 {
		return 0
	}
	p := float64(seats) / float64(goal) * 100
	if p > 100 {
		p = 100
	}
	return math.Round(p*10) / 10
}

func ProgressStage(percent float64) string {
	switch {
	case percent < 25:
		return VaultStageWarming
	case percent < 50:
		return VaultStageIgnition
	case percent < 75:
		return VaultStageForming
	default:
		return VaultStageImminent
	}
}
