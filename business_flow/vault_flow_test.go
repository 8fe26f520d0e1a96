package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/healthiphi/founder-pass/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0.0, ProgressPercent(0, 400))
	assert.Equal(t, 25.0, ProgressPercent(100, 400))
	assert.Equal(t, 33.3, ProgressPercent(1, 3))
	assert.Equal(t, 100.0, ProgressPercent(400, 400))
	assert.Equal(t, 100.0, ProgressPercent(520, 400))
	assert.Equal(t, 0.0, ProgressPercent(10, 0))
}

func TestProgressStage(t *testing.T) {
	assert.Equal(t, VaultStageWarming, ProgressStage(0))
	assert.Equal(t, VaultStageWarming, ProgressStage(24.9))
	assert.Equal(t, VaultStageIgnition, ProgressStage(25))
	assert.Equal(t, VaultStageIgnition, ProgressStage(49.9))
	assert.Equal(t, VaultStageForming, ProgressStage(50))
	assert.Equal(t, VaultStageImminent, ProgressStage(75))
	assert.Equal(t, VaultStageImminent, ProgressStage(100))
}

func TestBuildVaultStatus(t *testing.T) {
	status := BuildVaultStatus(&models.VaultStatus{TotalPledges: 12, TotalSeats: 210}, 400)
	assert.Equal(t, int64(12), status.TotalPledges)
	assert.Equal(t, int64(210), status.TotalSeats)
	assert.Equal(t, int64(400), status.SeatGoal)
	assert.Equal(t, int64(190), status.SeatsRemaining)
	assert.Equal(t, 52.5, status.ProgressPercent)
	assert.Equal(t, VaultStageForming, status.Stage)
	assert.False(t, status.GoalReached)
	assert.Nil(t, status.PledgeReachedAt)

	reached := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	status = BuildVaultStatus(&models.VaultStatus{TotalPledges: 150, TotalSeats: 450, PledgeReachedAt: &reached}, 400)
	assert.Zero(t, status.SeatsRemaining)
	assert.Equal(t, 100.0, status.ProgressPercent)
	assert.True(t, status.GoalReached)
	require.NotNil(t, status.PledgeReachedAt)
}

type vaultFlowFixture struct {
	store  *memStore
	audit  *memAuditRepo
	cache  *countingCache
	pledge *memPledgeRepo
	flow   VaultFlow
}

func newVaultFlowFixture(transactional bool) *vaultFlowFixture {
	store := newMemStore()
	fx := &vaultFlowFixture{
		store:  store,
		audit:  &memAuditRepo{},
		cache:  &countingCache{},
		pledge: &memPledgeRepo{store: store},
	}
	fx.flow = NewVaultFlow(fx.pledge, &memVaultRepo{store: store}, fx.audit,
		&memTxRunner{store: store, transactional: transactional}, fx.cache, 400)
	return fx
}

func (fx *vaultFlowFixture) seed(t *testing.T, seats ...int) {
	t.Helper()
	for _, n := range seats {
		require.NoError(t, fx.pledge.Save(context.Background(), &models.Pledge{
			UserEmail:   "seed@example.com",
			Seats:       n,
			TotalAmount: CalculateAmount(n),
		}))
	}
}

func TestGetVaultStatus(t *testing.T) {
	fx := newVaultFlowFixture(true)
	fx.store.totalPledges = 3
	fx.store.totalSeats = 120

	status, err := fx.flow.GetVaultStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(120), status.TotalSeats)
	assert.Equal(t, 30.0, status.ProgressPercent)
	assert.Equal(t, VaultStageIgnition, status.Stage)
	assert.Equal(t, 1, fx.cache.sets)

	// Served from cache until invalidated
	fx.store.totalSeats = 130
	status, err = fx.flow.GetVaultStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(120), status.TotalSeats)
	assert.Equal(t, 1, fx.cache.sets)
	assert.Equal(t, 2, fx.cache.gets)

	fx.cache.Invalidate(context.Background())
	status, err = fx.flow.GetVaultStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(130), status.TotalSeats)
}

func TestGetVaultStatusWithoutCache(t *testing.T) {
	store := newMemStore()
	store.totalSeats = 4
	flow := NewVaultFlow(&memPledgeRepo{store: store}, &memVaultRepo{store: store}, &memAuditRepo{},
		&memTxRunner{store: store}, nil, 0)

	status, err := flow.GetVaultStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(400), status.SeatGoal)
	assert.Equal(t, int64(396), status.SeatsRemaining)
}

func TestReconcile(t *testing.T) {
	t.Run("NoDrift", func(t *testing.T) {
		fx := newVaultFlowFixture(true)
		fx.seed(t, 2, 3)
		fx.store.totalPledges = 2
		fx.store.totalSeats = 5

		result, err := fx.flow.Reconcile(context.Background(), true, nil)
		require.NoError(t, err)
		assert.False(t, result.Drift)
		assert.False(t, result.Repaired)
		assert.Empty(t, fx.audit.actions())
		assert.Zero(t, fx.cache.invalidates)
	})

	t.Run("RepairsDriftInTransaction", func(t *testing.T) {
		fx := newVaultFlowFixture(true)
		fx.seed(t, 2, 3)
		fx.store.totalPledges = 3
		fx.store.totalSeats = 10

		result, err := fx.flow.Reconcile(context.Background(), true, NewClientMetadata("", "vault-reconciler"))
		require.NoError(t, err)
		assert.True(t, result.Drift)
		assert.True(t, result.Repaired)
		assert.Equal(t, int64(3), result.StoredPledges)
		assert.Equal(t, int64(10), result.StoredSeats)
		assert.Equal(t, int64(2), result.ActualPledges)
		assert.Equal(t, int64(5), result.ActualSeats)

		pledges, seats := fx.store.vaultTotals()
		assert.Equal(t, int64(2), pledges)
		assert.Equal(t, int64(5), seats)
		assert.Equal(t, []string{models.AuditActionVaultReconciled}, fx.audit.actions())
		assert.Equal(t, 1, fx.cache.invalidates)
	})

	t.Run("ReportOnly", func(t *testing.T) {
		fx := newVaultFlowFixture(true)
		fx.seed(t, 4)

		result, err := fx.flow.Reconcile(context.Background(), false, nil)
		require.NoError(t, err)
		assert.True(t, result.Drift)
		assert.False(t, result.Repaired)

		pledges, _ := fx.store.vaultTotals()
		assert.Zero(t, pledges)
	})

	t.Run("NeverRepairsWithoutTransactions", func(t *testing.T) {
		fx := newVaultFlowFixture(false)
		fx.seed(t, 4)

		result, err := fx.flow.Reconcile(context.Background(), true, nil)
		require.NoError(t, err)
		assert.True(t, result.Drift)
		assert.False(t, result.Repaired)

		pledges, seats := fx.store.vaultTotals()
		assert.Zero(t, pledges)
		assert.Zero(t, seats)
	})
}
