package store

import (
	"context"
	"sync"

	"provenance/internal/registry/models"
	"provenance/pkg/domain"
	"provenance/pkg/platform/sentinel"
)

// Memory is the reference store: the whole registry-wide state in one
// struct behind one mutex. The registry's execution model is single-writer
// and strictly serialized; the mutex is the mutual-exclusion boundary that
// preserves that model when the store is embedded in a concurrent host.
//
// batchesByHash is maintained exclusively by Insert and Replace so it can
// never diverge from the hash field across batches.
type Memory struct {
	mu          sync.Mutex
	nextBatchID uint64
	maxBatches  uint64
	fee         uint64
	authority   domain.Principal
	bound       bool
	batches     map[uint64]*models.Batch
	updates     map[uint64]*models.BatchUpdate
	byHash      map[string]uint64
}

// Defaults carried over from the registry's original deployment.
const (
	DefaultMaxBatches      = 10000
	DefaultRegistrationFee = 500
)

type MemoryOption func(*Memory)

// WithMaxBatches overrides the capacity ceiling.
func WithMaxBatches(max uint64) MemoryOption {
	return func(m *Memory) { m.maxBatches = max }
}

// WithRegistrationFee overrides the starting fee.
func WithRegistrationFee(fee uint64) MemoryOption {
	return func(m *Memory) { m.fee = fee }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		maxBatches: DefaultMaxBatches,
		fee:        DefaultRegistrationFee,
		batches:    make(map[uint64]*models.Batch),
		updates:    make(map[uint64]*models.BatchUpdate),
		byHash:     make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Insert(_ context.Context, batch *models.Batch) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.nextBatchID >= m.maxBatches {
		return 0, sentinel.ErrCapacity
	}
	key := domain.HashKey(batch.Hash)
	if _, taken := m.byHash[key]; taken {
		return 0, sentinel.ErrConflict
	}

	id := m.nextBatchID
	stored := *batch
	stored.ID = id
	m.batches[id] = &stored
	m.byHash[key] = id
	m.nextBatchID++
	return id, nil
}

func (m *Memory) Replace(_ context.Context, id uint64, hash []byte, quantity uint64, height uint64) (*models.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, ok := m.batches[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	newKey := domain.HashKey(hash)
	if holder, taken := m.byHash[newKey]; taken && holder != id {
		return nil, sentinel.ErrConflict
	}

	delete(m.byHash, domain.HashKey(batch.Hash))
	m.byHash[newKey] = id
	batch.Hash = append([]byte(nil), hash...)
	batch.Quantity = quantity
	batch.Timestamp = height

	copied := *batch
	return &copied, nil
}

func (m *Memory) Get(_ context.Context, id uint64) (*models.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *batch
	return &copied, nil
}

func (m *Memory) IDByHash(_ context.Context, hash []byte) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byHash[domain.HashKey(hash)]
	return id, ok, nil
}

func (m *Memory) ExistsByHash(ctx context.Context, hash []byte) (bool, error) {
	_, ok, err := m.IDByHash(ctx, hash)
	return ok, err
}

func (m *Memory) Count(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextBatchID, nil
}

func (m *Memory) AtCapacity(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextBatchID >= m.maxBatches, nil
}

func (m *Memory) Record(_ context.Context, update *models.BatchUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *update
	m.updates[update.BatchID] = &copied
	return nil
}

func (m *Memory) Latest(_ context.Context, id uint64) (*models.BatchUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	update, ok := m.updates[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *update
	return &copied, nil
}

func (m *Memory) BindAuthority(_ context.Context, principal domain.Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bound {
		return sentinel.ErrAlreadySet
	}
	m.authority = principal
	m.bound = true
	return nil
}

func (m *Memory) Authority(_ context.Context) (domain.Principal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authority, m.bound, nil
}

func (m *Memory) SetFee(_ context.Context, fee uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fee = fee
	return nil
}

func (m *Memory) Fee(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fee, nil
}
