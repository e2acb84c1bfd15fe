package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// Store Interface (swap implementations later)
// -----------------------------------------------------------------------------

// Store defines the persistence interface for the registry
type Store interface {
	CreateAgent(ctx context.Context, agent *Agent) error
	GetAgent(ctx context.Context, agentID string) (*Agent, error)
	GetAgentByWallet(ctx context.Context, wallet string) (*Agent, error)
	UpdateAgent(ctx context.Context, agent *Agent) error
	ListAgents(ctx context.Context, query AgentQuery) ([]*Agent, error)
	DeleteAgent(ctx context.Context, agentID string) error
	UpdateAgentStats(ctx context.Context, agentID string, fn func(*AgentStats)) error
}

// -----------------------------------------------------------------------------
// In-Memory Store
// -----------------------------------------------------------------------------

// MemoryStore is a thread-safe in-memory implementation
type MemoryStore struct {
	mu       sync.RWMutex
	agents   map[string]*Agent // agentID -> agent
	byWallet map[string]string // lowercased wallet -> agentID
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:   make(map[string]*Agent),
		byWallet: make(map[string]string),
	}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) CreateAgent(ctx context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.agents[agent.AgentID]; exists {
		return ErrAgentExists
	}

	// Walletless agents are allowed; uniqueness applies only to real wallets.
	wallet := strings.ToLower(agent.WalletAddress)
	if wallet != "" {
		if _, taken := m.byWallet[wallet]; taken {
			return ErrWalletTaken
		}
	}

	// Normalize
	agent.WalletAddress = wallet
	agent.CreatedAt = time.Now()
	agent.UpdatedAt = time.Now()
	agent.Stats = AgentStats{
		TotalStaked: "0",
	}

	m.agents[agent.AgentID] = agent
	if wallet != "" {
		m.byWallet[wallet] = agent.AgentID
	}

	return nil
}

func (m *MemoryStore) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agent, exists := m.agents[agentID]
	if !exists {
		return nil, ErrAgentNotFound
	}

	// Return a copy to prevent mutation
	copy := *agent
	return &copy, nil
}

func (m *MemoryStore) GetAgentByWallet(ctx context.Context, wallet string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agentID, exists := m.byWallet[strings.ToLower(wallet)]
	if !exists {
		return nil, ErrAgentNotFound
	}

	copy := *m.agents[agentID]
	return &copy, nil
}

func (m *MemoryStore) UpdateAgent(ctx context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.agents[agent.AgentID]
	if !exists {
		return ErrAgentNotFound
	}

	wallet := strings.ToLower(agent.WalletAddress)
	if wallet != existing.WalletAddress {
		if wallet != "" {
			if _, taken := m.byWallet[wallet]; taken {
				return ErrWalletTaken
			}
		}
		delete(m.byWallet, existing.WalletAddress)
		if wallet != "" {
			m.byWallet[wallet] = agent.AgentID
		}
	}

	agent.WalletAddress = wallet
	agent.UpdatedAt = time.Now()
	m.agents[agent.AgentID] = agent

	return nil
}

func (m *MemoryStore) ListAgents(ctx context.Context, query AgentQuery) ([]*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if query.Limit == 0 {
		query.Limit = 100
	}

	var results []*Agent
	for _, agent := range m.agents {
		if query.Role != "" && agent.Role != query.Role {
			continue
		}
		copy := *agent
		results = append(results, &copy)
	}

	// Sort by activity (most active first)
	sort.Slice(results, func(i, j int) bool {
		if results[i].Stats.ArgumentsPosted != results[j].Stats.ArgumentsPosted {
			return results[i].Stats.ArgumentsPosted > results[j].Stats.ArgumentsPosted
		}
		return results[i].AgentID < results[j].AgentID
	})

	// Apply pagination
	if query.Offset >= len(results) {
		return []*Agent{}, nil
	}
	end := query.Offset + query.Limit
	if end > len(results) {
		end = len(results)
	}

	return results[query.Offset:end], nil
}

func (m *MemoryStore) DeleteAgent(ctx context.Context, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, exists := m.agents[agentID]
	if !exists {
		return ErrAgentNotFound
	}

	delete(m.byWallet, agent.WalletAddress)
	delete(m.agents, agentID)

	return nil
}

func (m *MemoryStore) UpdateAgentStats(ctx context.Context, agentID string, fn func(*AgentStats)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, exists := m.agents[agentID]
	if !exists {
		return ErrAgentNotFound
	}

	fn(&agent.Stats)
	agent.Stats.LastActive = time.Now()
	agent.UpdatedAt = time.Now()

	return nil
}
