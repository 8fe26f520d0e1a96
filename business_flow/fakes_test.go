package businessflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/healthiphi/founder-pass/app/dto"
	"github.com/healthiphi/founder-pass/app/services"
	"github.com/healthiphi/founder-pass/models"
	"github.com/stretchr/testify/mock"
)

// memStore backs the pledge and vault fakes so a transaction can snapshot both
type memStore struct {
	mu      sync.Mutex
	nextID  uint
	pledges map[uint]models.Pledge

	totalPledges    int64
	totalSeats      int64
	pledgeReachedAt *time.Time

	failSave    error
	failAdjust  error
	failDelete  error
	failRevert  error
	failStamp   error
	failListAll error
	stampCalls  int
	deleteCalls int
	revertCalls int
}

func newMemStore() *memStore {
	return &memStore{pledges: make(map[uint]models.Pledge)}
}

type memSnapshot struct {
	nextID          uint
	pledges         map[uint]models.Pledge
	totalPledges    int64
	totalSeats      int64
	pledgeReachedAt *time.Time
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[uint]models.Pledge, len(s.pledges))
	for k, v := range s.pledges {
		cp[k] = v
	}
	return memSnapshot{s.nextID, cp, s.totalPledges, s.totalSeats, s.pledgeReachedAt}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.pledges = snap.pledges
	s.totalPledges = snap.totalPledges
	s.totalSeats = snap.totalSeats
	s.pledgeReachedAt = snap.pledgeReachedAt
}

func (s *memStore) activeTotals() (int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pledges, seats int64
	for _, p := range s.pledges {
		if p.IsActive() {
			pledges++
			seats += int64(p.Seats)
		}
	}
	return pledges, seats
}

func (s *memStore) vaultTotals() (int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalPledges, s.totalSeats
}

func (s *memStore) pledgeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pledges)
}

func (s *memStore) byUUID(id string) *models.Pledge {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pledges {
		if p.UUID.String() == id {
			cp := p
			return &cp
		}
	}
	return nil
}

// memTxRunner mimics GormTxRunner by rolling the store back when fn fails
type memTxRunner struct {
	store         *memStore
	transactional bool
	mu            sync.Mutex
	// afterRollback runs once, outside the lock, after the next failed transaction
	afterRollback func()
}

func (r *memTxRunner) Run(ctx context.Context, fn func(context.Context) error) error {
	if !r.transactional {
		return fn(ctx)
	}
	r.mu.Lock()
	snap := r.store.snapshot()
	err := fn(ctx)
	var hook func()
	if err != nil {
		r.store.restore(snap)
		hook, r.afterRollback = r.afterRollback, nil
	}
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (r *memTxRunner) Transactional() bool { return r.transactional }

type memPledgeRepo struct {
	store *memStore
}

func (r *memPledgeRepo) ByID(ctx context.Context, id uint) (*models.Pledge, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.pledges[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memPledgeRepo) ByFilter(ctx context.Context, filter models.PledgeFilter, orderBy string, limit, offset int) ([]*models.Pledge, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Pledge
	for _, p := range r.store.pledges {
		if !matchesFilter(p, filter) {
			continue
		}
		cp := p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if orderBy == "id ASC" {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func matchesFilter(p models.Pledge, filter models.PledgeFilter) bool {
	if filter.UserEmail != nil && p.UserEmail != *filter.UserEmail {
		return false
	}
	if filter.State != nil && p.State() != *filter.State {
		return false
	}
	return true
}

func (r *memPledgeRepo) Save(ctx context.Context, p *models.Pledge) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.failSave != nil {
		return r.store.failSave
	}
	if p.ID == 0 {
		r.store.nextID++
		p.ID = r.store.nextID
		p.CreatedAt = time.Now().UTC()
	}
	r.store.pledges[p.ID] = *p
	return nil
}

func (r *memPledgeRepo) SaveBatch(ctx context.Context, ps []*models.Pledge) error {
	for _, p := range ps {
		if err := r.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *memPledgeRepo) Count(ctx context.Context, filter models.PledgeFilter) (int64, error) {
	all, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(all)), err
}

func (r *memPledgeRepo) Exists(ctx context.Context, filter models.PledgeFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *memPledgeRepo) ByUUID(ctx context.Context, id string) (*models.Pledge, error) {
	return r.store.byUUID(id), nil
}

func (r *memPledgeRepo) ListActiveByEmail(ctx context.Context, email string) ([]*models.Pledge, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Pledge
	for _, p := range r.store.pledges {
		if p.UserEmail == email && p.IsActive() {
			cp := p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPledgeRepo) ListActive(ctx context.Context) ([]*models.Pledge, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.failListAll != nil {
		return nil, r.store.failListAll
	}
	var out []*models.Pledge
	for _, p := range r.store.pledges {
		if p.IsActive() {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memPledgeRepo) MarkCancelled(ctx context.Context, id uint, at time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.pledges[id]
	if !ok || !p.IsActive() {
		return false, nil
	}
	p.IsCancelled = true
	p.CancelledAt = &at
	r.store.pledges[id] = p
	return true, nil
}

func (r *memPledgeRepo) RevertCancelled(ctx context.Context, id uint, at time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.revertCalls++
	if r.store.failRevert != nil {
		return false, r.store.failRevert
	}
	p, ok := r.store.pledges[id]
	if !ok || !p.IsCancelled || p.CancelledAt == nil || !p.CancelledAt.Equal(at) {
		return false, nil
	}
	p.IsCancelled = false
	p.CancelledAt = nil
	r.store.pledges[id] = p
	return true, nil
}

func (r *memPledgeRepo) AttachPaymentMethod(ctx context.Context, id uint, paymentMethodID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.pledges[id]
	if !ok {
		return fmt.Errorf("pledge %d not found", id)
	}
	now := time.Now().UTC()
	p.PaymentMethodID = &paymentMethodID
	p.PaymentMethodAttachedAt = &now
	r.store.pledges[id] = p
	return nil
}

func (r *memPledgeRepo) Delete(ctx context.Context, id uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.deleteCalls++
	if r.store.failDelete != nil {
		return r.store.failDelete
	}
	delete(r.store.pledges, id)
	return nil
}

func (r *memPledgeRepo) ActiveTotals(ctx context.Context) (int64, int64, error) {
	pledges, seats := r.store.activeTotals()
	return pledges, seats, nil
}

type memVaultRepo struct {
	store *memStore
}

var errNegativeTotals = errors.New(`new row for relation "vault_status" violates check constraint "vault_status_non_negative"`)

func (r *memVaultRepo) Get(ctx context.Context) (*models.VaultStatus, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return &models.VaultStatus{
		ID:              1,
		TotalPledges:    r.store.totalPledges,
		TotalSeats:      r.store.totalSeats,
		PledgeReachedAt: r.store.pledgeReachedAt,
	}, nil
}

func (r *memVaultRepo) Adjust(ctx context.Context, pledgeDelta, seatsDelta int) (*models.VaultTotals, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.failAdjust != nil {
		return nil, r.store.failAdjust
	}
	pledges := r.store.totalPledges + int64(pledgeDelta)
	seats := r.store.totalSeats + int64(seatsDelta)
	if pledges < 0 || seats < 0 {
		return nil, errNegativeTotals
	}
	r.store.totalPledges = pledges
	r.store.totalSeats = seats
	return &models.VaultTotals{TotalPledges: pledges, TotalSeats: seats, PledgeReachedAt: r.store.pledgeReachedAt}, nil
}

func (r *memVaultRepo) MarkThresholdReached(ctx context.Context) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.failStamp != nil {
		return false, r.store.failStamp
	}
	r.store.stampCalls++
	if r.store.pledgeReachedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	r.store.pledgeReachedAt = &now
	return true, nil
}

func (r *memVaultRepo) Overwrite(ctx context.Context, totalPledges, totalSeats int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.totalPledges = totalPledges
	r.store.totalSeats = totalSeats
	return nil
}

func (r *memVaultRepo) Lock(ctx context.Context) (*models.VaultStatus, error) {
	return r.Get(ctx)
}

type memAuditRepo struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (r *memAuditRepo) ByID(ctx context.Context, id uint) (*models.AuditLog, error) { return nil, nil }

func (r *memAuditRepo) ByFilter(ctx context.Context, filter models.AuditLogFilter, orderBy string, limit, offset int) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditLog
	for i := range r.entries {
		e := r.entries[i]
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		out = append(out, &e)
	}
	return out, nil
}

func (r *memAuditRepo) Save(ctx context.Context, entry *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uint(len(r.entries) + 1)
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memAuditRepo) SaveBatch(ctx context.Context, entries []*models.AuditLog) error {
	for _, e := range entries {
		_ = r.Save(ctx, e)
	}
	return nil
}

func (r *memAuditRepo) Count(ctx context.Context, filter models.AuditLogFilter) (int64, error) {
	all, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(all)), nil
}

func (r *memAuditRepo) Exists(ctx context.Context, filter models.AuditLogFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *memAuditRepo) ListByPledge(ctx context.Context, pledgeID uint, limit, offset int) ([]*models.AuditLog, error) {
	return nil, nil
}

func (r *memAuditRepo) ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error) {
	return r.ByFilter(ctx, models.AuditLogFilter{Action: &action}, "", limit, offset)
}

func (r *memAuditRepo) ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	return nil, nil
}

func (r *memAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

// recordingProvider wraps the in-memory provider and records what was created and released
type recordingProvider struct {
	*services.MockVaultProvider
	mu         sync.Mutex
	created    []services.VaultIntentInput
	cancelled  []string
	failCreate error
	failGet    error
	status     string
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{MockVaultProvider: services.NewMockVaultProvider()}
}

func (p *recordingProvider) CreateVaultIntent(ctx context.Context, in services.VaultIntentInput) (*services.VaultIntent, error) {
	p.mu.Lock()
	p.created = append(p.created, in)
	p.mu.Unlock()
	if p.failCreate != nil {
		return nil, p.failCreate
	}
	return p.MockVaultProvider.CreateVaultIntent(ctx, in)
}

func (p *recordingProvider) GetVaultIntent(ctx context.Context, id string) (*services.VaultIntent, error) {
	if p.failGet != nil {
		return nil, p.failGet
	}
	intent, err := p.MockVaultProvider.GetVaultIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.status != "" {
		intent.Status = p.status
	}
	return intent, nil
}

func (p *recordingProvider) CancelVaultIntent(ctx context.Context, id string) error {
	p.mu.Lock()
	p.cancelled = append(p.cancelled, id)
	p.mu.Unlock()
	return p.MockVaultProvider.CancelVaultIntent(ctx, id)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) PledgeConfirmed(ctx context.Context, pledge *models.Pledge, secret string, totalSeats int64) error {
	args := m.Called(ctx, pledge, secret, totalSeats)
	return args.Error(0)
}

func (m *mockNotifier) PledgeCancelled(ctx context.Context, pledge *models.Pledge) error {
	args := m.Called(ctx, pledge)
	return args.Error(0)
}

func (m *mockNotifier) ThresholdReached(ctx context.Context, pledges []*models.Pledge) error {
	args := m.Called(ctx, pledges)
	return args.Error(0)
}

type countingCache struct {
	mu          sync.Mutex
	value       *dto.VaultStatusResponse
	gets        int
	sets        int
	invalidates int
}

func (c *countingCache) Get(ctx context.Context) (*dto.VaultStatusResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.value == nil {
		return nil, false
	}
	cp := *c.value
	return &cp, true
}

func (c *countingCache) Set(ctx context.Context, status *dto.VaultStatusResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	cp := *status
	c.value = &cp
}

func (c *countingCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidates++
	c.value = nil
}
