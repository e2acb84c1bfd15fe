package debate

import (
	"context"
	"sort"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// Store Interface (swap implementations later)
// -----------------------------------------------------------------------------

// Store defines the persistence interface for the debate record
type Store interface {
	// Groups
	CreateGroup(ctx context.Context, group *Group) error
	GetGroup(ctx context.Context, groupID string) (*Group, error)
	UpdateGroup(ctx context.Context, group *Group) error
	ListGroups(ctx context.Context) ([]*Group, error)

	// Messages
	AppendMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, groupID string, messageID int64) (*Message, error)
	ListMessages(ctx context.Context, groupID string, sinceID int64) ([]Message, error)

	// Vote ledger. AddVote atomically records the vote and applies the score
	// delta; the record and the score must never be observed out of sync.
	AddVote(ctx context.Context, rec *VoteRecord, delta int64) (newScore int64, err error)
	ListVotes(ctx context.Context, groupID string, messageID int64) ([]VoteRecord, error)
}

// -----------------------------------------------------------------------------
// In-Memory Store
// -----------------------------------------------------------------------------

// MemoryStore is a thread-safe in-memory implementation
type MemoryStore struct {
	mu       sync.RWMutex
	groups   map[string]*Group
	messages map[string][]Message            // groupID -> ordered log
	nextID   map[string]int64                // groupID -> next message ID
	votes    map[string]map[int64]map[string]*VoteRecord // groupID -> messageID -> voter
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups:   make(map[string]*Group),
		messages: make(map[string][]Message),
		nextID:   make(map[string]int64),
		votes:    make(map[string]map[int64]map[string]*VoteRecord),
	}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

func copyGroup(g *Group) *Group {
	out := *g
	out.Members = append([]string(nil), g.Members...)
	out.Stances = make(map[string]string, len(g.Stances))
	for k, v := range g.Stances {
		out.Stances[k] = v
	}
	return &out
}

func (m *MemoryStore) CreateGroup(ctx context.Context, group *Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.groups[group.GroupID]; exists {
		return ErrGroupExists
	}

	if group.Members == nil {
		group.Members = []string{}
	}
	if group.Stances == nil {
		group.Stances = make(map[string]string)
	}
	group.CreatedAt = time.Now()

	m.groups[group.GroupID] = copyGroup(group)
	m.nextID[group.GroupID] = 1

	return nil
}

func (m *MemoryStore) GetGroup(ctx context.Context, groupID string) (*Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	group, exists := m.groups[groupID]
	if !exists {
		return nil, ErrGroupNotFound
	}
	return copyGroup(group), nil
}

func (m *MemoryStore) UpdateGroup(ctx context.Context, group *Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.groups[group.GroupID]; !exists {
		return ErrGroupNotFound
	}
	m.groups[group.GroupID] = copyGroup(group)

	return nil
}

func (m *MemoryStore) ListGroups(ctx context.Context) ([]*Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	groups := make([]*Group, 0, len(m.groups))
	for _, g := range m.groups {
		groups = append(groups, copyGroup(g))
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].GroupID < groups[j].GroupID
	})
	return groups, nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.groups[msg.GroupID]; !exists {
		return ErrGroupNotFound
	}

	msg.ID = m.nextID[msg.GroupID]
	m.nextID[msg.GroupID]++
	msg.CreatedAt = time.Now()

	m.messages[msg.GroupID] = append(m.messages[msg.GroupID], *msg)

	return nil
}

func (m *MemoryStore) GetMessage(ctx context.Context, groupID string, messageID int64) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.messages[groupID] {
		if m.messages[groupID][i].ID == messageID {
			copy := m.messages[groupID][i]
			return &copy, nil
		}
	}
	return nil, ErrMessageNotFound
}

func (m *MemoryStore) ListMessages(ctx context.Context, groupID string, sinceID int64) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.groups[groupID]; !exists {
		return nil, ErrGroupNotFound
	}

	var out []Message
	for _, msg := range m.messages[groupID] {
		if msg.ID > sinceID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *MemoryStore) AddVote(ctx context.Context, rec *VoteRecord, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.messages[rec.GroupID]
	idx := -1
	for i := range msgs {
		if msgs[i].ID == rec.MessageID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return 0, ErrMessageNotFound
	}

	if m.votes[rec.GroupID] == nil {
		m.votes[rec.GroupID] = make(map[int64]map[string]*VoteRecord)
	}
	if m.votes[rec.GroupID][rec.MessageID] == nil {
		m.votes[rec.GroupID][rec.MessageID] = make(map[string]*VoteRecord)
	}
	if _, voted := m.votes[rec.GroupID][rec.MessageID][rec.VoterAgentID]; voted {
		return msgs[idx].Score, ErrAlreadyVoted
	}

	rec.CreatedAt = time.Now()
	stored := *rec
	m.votes[rec.GroupID][rec.MessageID][rec.VoterAgentID] = &stored

	msgs[idx].Score += delta
	return msgs[idx].Score, nil
}

func (m *MemoryStore) ListVotes(ctx context.Context, groupID string, messageID int64) ([]VoteRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []VoteRecord
	for _, rec := range m.votes[groupID][messageID] {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].VoterAgentID < out[j].VoterAgentID
	})
	return out, nil
}
