package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/waste-contracts/internal/model"
)

// MemoryRepository is an in-process stand-in for TerminationRepository.
// Transactions are serialized and work on a copy of the amendment ledger that
// replaces the committed ledger only when the callback succeeds. It also
// enforces the dedup unique index the migrations create.
type MemoryRepository struct {
	mu         sync.Mutex
	contracts  map[model.ContractType]map[uuid.UUID]model.Contract
	amendments map[model.ContractType][]storedAmendment
	seq        int64
	now        func() time.Time
	insertHook func(model.Amendment) error
}

type storedAmendment struct {
	amendment model.Amendment
	seq       int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		contracts:  map[model.ContractType]map[uuid.UUID]model.Contract{},
		amendments: map[model.ContractType][]storedAmendment{},
		now:        time.Now,
	}
}

// AddContract stores a contract row as the CRUD side would.
func (m *MemoryRepository) AddContract(c model.Contract) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Lifecycle == "" {
		c.Lifecycle = model.LifecycleActive
	}
	if m.contracts[c.Type] == nil {
		m.contracts[c.Type] = map[uuid.UUID]model.Contract{}
	}
	m.contracts[c.Type][c.ID] = c
}

// AddAmendment seeds a committed amendment, including soft-deleted ones.
func (m *MemoryRepository) AddAmendment(t model.ContractType, a model.Amendment) model.Amendment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Lifecycle == "" {
		a.Lifecycle = model.LifecycleActive
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now()
	}
	m.seq++
	m.amendments[t] = append(m.amendments[t], storedAmendment{amendment: a, seq: m.seq})
	return a
}

// Contract returns the stored contract row unchanged.
func (m *MemoryRepository) Contract(t model.ContractType, id uuid.UUID) (model.Contract, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[t][id]
	return c, ok
}

// Amendments lists committed amendments of a contract in insertion order.
func (m *MemoryRepository) Amendments(t model.ContractType, contractID uuid.UUID) []model.Amendment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Amendment
	for _, stored := range m.amendments[t] {
		if stored.amendment.ContractID == contractID {
			out = append(out, stored.amendment)
		}
	}
	return out
}

// SetInsertHook installs a callback run before every amendment insert; a
// non-nil error fails the insert.
func (m *MemoryRepository) SetInsertHook(hook func(model.Amendment) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertHook = hook
}

// SetClock replaces the created_at source.
func (m *MemoryRepository) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryRepository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	working := make(map[model.ContractType][]storedAmendment, len(m.amendments))
	for t, list := range m.amendments {
		working[t] = append([]storedAmendment(nil), list...)
	}
	tx := &memoryTx{repo: m, amendments: working, seq: m.seq}

	if err := fn(tx); err != nil {
		return err
	}
	m.amendments = working
	m.seq = tx.seq
	return nil
}

type memoryTx struct {
	repo       *MemoryRepository
	amendments map[model.ContractType][]storedAmendment
	seq        int64
}

func (t *memoryTx) FindOverlapping(_ context.Context, f Family, q OverlapQuery) ([]model.Contract, error) {
	var out []model.Contract
	for _, c := range t.repo.contracts[f.Type] {
		if !c.IsActive || c.Lifecycle == model.LifecycleDeleted || c.ID == q.ExcludeID {
			continue
		}
		if !c.Covers(q.SectorIDs) {
			continue
		}
		if c.StartDate == nil || c.StartDate.After(q.TerminationDate) {
			continue
		}
		if c.EndDate != nil && c.EndDate.Before(q.ServiceStart) {
			continue
		}
		if !f.HasQuantity() {
			c.EstimatedQuantityTons = nil
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(*out[j].StartDate) {
			return out[i].StartDate.Before(*out[j].StartDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (t *memoryTx) HasAutoTermination(_ context.Context, f Family, contractID, referenceID uuid.UUID) (bool, error) {
	for _, stored := range t.amendments[f.Type] {
		a := stored.amendment
		if a.ContractID == contractID &&
			a.Type == model.AmendmentTypeAutoTermination &&
			a.Lifecycle != model.LifecycleDeleted &&
			a.ReferenceContractID != nil && *a.ReferenceContractID == referenceID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) LockContract(_ context.Context, f Family, contractID uuid.UUID) error {
	if _, ok := t.repo.contracts[f.Type][contractID]; !ok {
		return ErrNotFound
	}
	return nil
}

func (t *memoryTx) CountAmendments(_ context.Context, f Family, contractID uuid.UUID) (int64, error) {
	var total int64
	for _, stored := range t.amendments[f.Type] {
		if stored.amendment.ContractID == contractID && stored.amendment.Lifecycle != model.LifecycleDeleted {
			total++
		}
	}
	return total, nil
}

func (t *memoryTx) InsertAmendment(ctx context.Context, f Family, a model.Amendment) (*model.Amendment, error) {
	if t.repo.insertHook != nil {
		if err := t.repo.insertHook(a); err != nil {
			return nil, err
		}
	}
	if a.Type == model.AmendmentTypeAutoTermination && a.ReferenceContractID != nil {
		exists, _ := t.HasAutoTermination(ctx, f, a.ContractID, *a.ReferenceContractID)
		if exists {
			return nil, fmt.Errorf("%w: uq_%s_auto_termination", ErrDuplicateAmendment, f.AmendmentTable)
		}
	}

	a.ID = uuid.New()
	a.CreatedAt = t.repo.now()
	if a.Lifecycle == "" {
		a.Lifecycle = model.LifecycleActive
	}
	t.seq++
	t.amendments[f.Type] = append(t.amendments[f.Type], storedAmendment{amendment: a, seq: t.seq})
	saved := a
	return &saved, nil
}

func (t *memoryTx) GetContract(_ context.Context, f Family, id uuid.UUID) (*model.Contract, error) {
	c, ok := t.repo.contracts[f.Type][id]
	if !ok || c.Lifecycle == model.LifecycleDeleted {
		return nil, ErrNotFound
	}
	if !f.HasQuantity() {
		c.EstimatedQuantityTons = nil
	}
	return &c, nil
}

func (t *memoryTx) LatestAmendment(_ context.Context, f Family, contractID uuid.UUID) (*model.Amendment, error) {
	var latest *storedAmendment
	for i := range t.amendments[f.Type] {
		stored := &t.amendments[f.Type][i]
		if stored.amendment.ContractID != contractID || stored.amendment.Lifecycle == model.LifecycleDeleted {
			continue
		}
		if latest == nil ||
			stored.amendment.CreatedAt.After(latest.amendment.CreatedAt) ||
			(stored.amendment.CreatedAt.Equal(latest.amendment.CreatedAt) && stored.seq > latest.seq) {
			latest = stored
		}
	}
	if latest == nil {
		return nil, nil
	}
	a := latest.amendment
	return &a, nil
}
