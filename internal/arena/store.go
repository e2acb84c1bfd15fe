package arena

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists the arena mirror. Arena records are append-only except
// the finalization field, which is written exactly once.
type Store interface {
	CreateArena(ctx context.Context, arena *OnChainArena) error
	GetArena(ctx context.Context, groupID string) (*OnChainArena, error)
	GetArenaByID(ctx context.Context, arenaID uint64) (*OnChainArena, error)
	ListArenas(ctx context.Context) ([]*OnChainArena, error)
	AppendJoinTx(ctx context.Context, groupID string, tx JoinTx) error
	AppendVoteTx(ctx context.Context, groupID string, tx VoteTx) error
	SetFinalized(ctx context.Context, groupID string, fin Finalization) error

	// Watcher checkpoint: the last block the reconciliation scan covered.
	Checkpoint(ctx context.Context) (uint64, error)
	SetCheckpoint(ctx context.Context, block uint64) error
}

// MemoryStore is a thread-safe in-memory implementation
type MemoryStore struct {
	mu         sync.RWMutex
	byGroup    map[string]*OnChainArena
	byArenaID  map[uint64]string // arenaId -> groupId
	checkpoint uint64
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byGroup:   make(map[string]*OnChainArena),
		byArenaID: make(map[uint64]string),
	}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

func copyArena(a *OnChainArena) *OnChainArena {
	out := *a
	out.JoinTxs = append([]JoinTx(nil), a.JoinTxs...)
	out.VoteTxs = append([]VoteTx(nil), a.VoteTxs...)
	if a.Finalized != nil {
		fin := *a.Finalized
		out.Finalized = &fin
	}
	return &out
}

func (m *MemoryStore) CreateArena(ctx context.Context, arena *OnChainArena) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byGroup[arena.GroupID]; exists {
		return ErrArenaExists
	}

	if arena.CreatedAt.IsZero() {
		arena.CreatedAt = time.Now()
	}
	m.byGroup[arena.GroupID] = copyArena(arena)
	m.byArenaID[arena.ArenaID] = arena.GroupID

	return nil
}

func (m *MemoryStore) GetArena(ctx context.Context, groupID string) (*OnChainArena, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	arena, exists := m.byGroup[groupID]
	if !exists {
		return nil, ErrArenaNotFound
	}
	return copyArena(arena), nil
}

func (m *MemoryStore) GetArenaByID(ctx context.Context, arenaID uint64) (*OnChainArena, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	groupID, exists := m.byArenaID[arenaID]
	if !exists {
		return nil, ErrArenaNotFound
	}
	return copyArena(m.byGroup[groupID]), nil
}

func (m *MemoryStore) ListArenas(ctx context.Context) ([]*OnChainArena, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	arenas := make([]*OnChainArena, 0, len(m.byGroup))
	for _, a := range m.byGroup {
		arenas = append(arenas, copyArena(a))
	}
	sort.Slice(arenas, func(i, j int) bool {
		return arenas[i].ArenaID < arenas[j].ArenaID
	})
	return arenas, nil
}

func (m *MemoryStore) AppendJoinTx(ctx context.Context, groupID string, tx JoinTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	arena, exists := m.byGroup[groupID]
	if !exists {
		return ErrArenaNotFound
	}
	arena.JoinTxs = append(arena.JoinTxs, tx)
	return nil
}

func (m *MemoryStore) AppendVoteTx(ctx context.Context, groupID string, tx VoteTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	arena, exists := m.byGroup[groupID]
	if !exists {
		return ErrArenaNotFound
	}
	arena.VoteTxs = append(arena.VoteTxs, tx)
	return nil
}

func (m *MemoryStore) SetFinalized(ctx context.Context, groupID string, fin Finalization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	arena, exists := m.byGroup[groupID]
	if !exists {
		return ErrArenaNotFound
	}
	if arena.Finalized != nil {
		return ErrAlreadyFinalized
	}
	arena.Finalized = &fin
	return nil
}

func (m *MemoryStore) Checkpoint(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkpoint, nil
}

func (m *MemoryStore) SetCheckpoint(ctx context.Context, block uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if block > m.checkpoint {
		m.checkpoint = block
	}
	return nil
}
