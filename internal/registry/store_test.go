package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAgent(id, role, wallet string) *Agent {
	return &Agent{
		AgentID:       id,
		Name:          "Agent " + id,
		Role:          role,
		WalletAddress: wallet,
	}
}

func TestCreateAndGetAgent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	agent := newAgent("debater-1", RoleDebater, "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	require.NoError(t, store.CreateAgent(ctx, agent))

	got, err := store.GetAgent(ctx, "debater-1")
	require.NoError(t, err)
	assert.Equal(t, "debater-1", got.AgentID)
	assert.Equal(t, RoleDebater, got.Role)
	// Wallet is normalized to lowercase
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", got.WalletAddress)
	assert.Equal(t, "0", got.Stats.TotalStaked)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCreateAgent_DuplicateID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.CreateAgent(ctx, newAgent("a", RoleDebater, "0x0000000000000000000000000000000000000001")))
	err := store.CreateAgent(ctx, newAgent("a", RoleSpectator, "0x0000000000000000000000000000000000000002"))
	assert.ErrorIs(t, err, ErrAgentExists)
}

func TestCreateAgent_DuplicateWallet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	wallet := "0x0000000000000000000000000000000000000001"
	require.NoError(t, store.CreateAgent(ctx, newAgent("a", RoleDebater, wallet)))
	err := store.CreateAgent(ctx, newAgent("b", RoleDebater, wallet))
	assert.ErrorIs(t, err, ErrWalletTaken)
}

func TestCreateAgent_WalletlessAgentsDoNotCollide(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.CreateAgent(ctx, newAgent("a", RoleDebater, "")))
	require.NoError(t, store.CreateAgent(ctx, newAgent("b", RoleDebater, "")))

	_, err := store.GetAgentByWallet(ctx, "")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestGetAgentByWallet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.CreateAgent(ctx, newAgent("a", RoleSpectator, "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")))

	got, err := store.GetAgentByWallet(ctx, "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, "a", got.AgentID)

	_, err = store.GetAgentByWallet(ctx, "0x0000000000000000000000000000000000000099")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestGetAgent_CopyIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.CreateAgent(ctx, newAgent("a", RoleDebater, "0x0000000000000000000000000000000000000001")))

	got, err := store.GetAgent(ctx, "a")
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := store.GetAgent(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Agent a", again.Name)
}

func TestListAgents_RoleFilterAndPagination(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.CreateAgent(ctx, newAgent("d1", RoleDebater, "0x0000000000000000000000000000000000000001")))
	require.NoError(t, store.CreateAgent(ctx, newAgent("d2", RoleDebater, "0x0000000000000000000000000000000000000002")))
	require.NoError(t, store.CreateAgent(ctx, newAgent("s1", RoleSpectator, "0x0000000000000000000000000000000000000003")))

	debaters, err := store.ListAgents(ctx, AgentQuery{Role: RoleDebater})
	require.NoError(t, err)
	assert.Len(t, debaters, 2)

	all, err := store.ListAgents(ctx, AgentQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := store.ListAgents(ctx, AgentQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	empty, err := store.ListAgents(ctx, AgentQuery{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDeleteAgent_FreesWallet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	wallet := "0x0000000000000000000000000000000000000001"
	require.NoError(t, store.CreateAgent(ctx, newAgent("a", RoleDebater, wallet)))
	require.NoError(t, store.DeleteAgent(ctx, "a"))

	// Wallet can be reused after deletion
	assert.NoError(t, store.CreateAgent(ctx, newAgent("b", RoleDebater, wallet)))

	assert.ErrorIs(t, store.DeleteAgent(ctx, "a"), ErrAgentNotFound)
}

func TestUpdateAgentStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.CreateAgent(ctx, newAgent("a", RoleDebater, "0x0000000000000000000000000000000000000001")))

	err := store.UpdateAgentStats(ctx, "a", func(s *AgentStats) {
		s.ArgumentsPosted++
		s.DebatesJoined++
	})
	require.NoError(t, err)

	got, err := store.GetAgent(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Stats.ArgumentsPosted)
	assert.Equal(t, int64(1), got.Stats.DebatesJoined)
	assert.False(t, got.Stats.LastActive.IsZero())

	assert.ErrorIs(t, store.UpdateAgentStats(ctx, "missing", func(*AgentStats) {}), ErrAgentNotFound)
}
