package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monclaw/arena/internal/gate"
)

func setupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r.Group("/v1"))
	return r
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterAgent(t *testing.T) {
	store := NewMemoryStore()
	r := setupRouter(NewHandler(store))

	w := postJSON(r, "/v1/agents", RegisterAgentRequest{
		AgentID:       "debater-1",
		Name:          "Claw",
		Role:          RoleDebater,
		WalletAddress: "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var agent Agent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &agent))
	assert.Equal(t, "debater-1", agent.AgentID)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", agent.WalletAddress)
}

func TestRegisterAgent_MinimalFields(t *testing.T) {
	r := setupRouter(NewHandler(NewMemoryStore()))

	// Only agentId and name are required; role defaults to debater and the
	// wallet can be added later.
	w := postJSON(r, "/v1/agents", RegisterAgentRequest{
		AgentID: "minimal-bot",
		Name:    "Minimal Bot",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var agent Agent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &agent))
	assert.Equal(t, RoleDebater, agent.Role)
	assert.Empty(t, agent.WalletAddress)

	// A second walletless agent must not trip wallet uniqueness.
	w = postJSON(r, "/v1/agents", RegisterAgentRequest{
		AgentID: "minimal-bot-2",
		Name:    "Minimal Bot 2",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRegisterAgent_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterAgentRequest
		wantErr string
	}{
		{
			name: "bad role",
			req: RegisterAgentRequest{
				AgentID: "a", Name: "A", Role: "referee",
				WalletAddress: "0x1234567890123456789012345678901234567890",
			},
			wantErr: "invalid_role",
		},
		{
			name: "bad wallet",
			req: RegisterAgentRequest{
				AgentID: "a", Name: "A", Role: RoleDebater,
				WalletAddress: "nope",
			},
			wantErr: "invalid_address",
		},
		{
			name: "bad agent id",
			req: RegisterAgentRequest{
				AgentID: "has spaces", Name: "A", Role: RoleDebater,
				WalletAddress: "0x1234567890123456789012345678901234567890",
			},
			wantErr: "invalid_agent_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupRouter(NewHandler(NewMemoryStore()))
			w := postJSON(r, "/v1/agents", tt.req)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantErr)
		})
	}
}

func TestRegisterAgent_Conflicts(t *testing.T) {
	r := setupRouter(NewHandler(NewMemoryStore()))

	first := RegisterAgentRequest{
		AgentID: "a", Name: "A", Role: RoleDebater,
		WalletAddress: "0x1234567890123456789012345678901234567890",
	}
	require.Equal(t, http.StatusCreated, postJSON(r, "/v1/agents", first).Code)

	// Same agent ID
	dup := first
	dup.WalletAddress = "0x2234567890123456789012345678901234567890"
	w := postJSON(r, "/v1/agents", dup)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "agent_exists")

	// Same wallet, different ID
	walletDup := first
	walletDup.AgentID = "b"
	w = postJSON(r, "/v1/agents", walletDup)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "wallet_taken")
}

type stubGate struct{ err error }

func (s stubGate) Check(ctx context.Context, addr string) error { return s.err }

func TestRegisterAgent_SpectatorBalanceGate(t *testing.T) {
	spectator := RegisterAgentRequest{
		AgentID: "watcher", Name: "W", Role: RoleSpectator,
		WalletAddress: "0x1234567890123456789012345678901234567890",
	}

	t.Run("below minimum rejected", func(t *testing.T) {
		h := NewHandler(NewMemoryStore())
		h.SetWalletGate(stubGate{err: gate.ErrInsufficientBalance})
		w := postJSON(setupRouter(h), "/v1/agents", spectator)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "insufficient_balance")
	})

	t.Run("debaters skip the gate", func(t *testing.T) {
		h := NewHandler(NewMemoryStore())
		h.SetWalletGate(stubGate{err: gate.ErrInsufficientBalance})
		debater := spectator
		debater.Role = RoleDebater
		w := postJSON(setupRouter(h), "/v1/agents", debater)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("walletless spectators skip the gate", func(t *testing.T) {
		h := NewHandler(NewMemoryStore())
		h.SetWalletGate(stubGate{err: gate.ErrInsufficientBalance})
		walletless := spectator
		walletless.WalletAddress = ""
		w := postJSON(setupRouter(h), "/v1/agents", walletless)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("passing gate registers", func(t *testing.T) {
		h := NewHandler(NewMemoryStore())
		h.SetWalletGate(stubGate{})
		w := postJSON(setupRouter(h), "/v1/agents", spectator)
		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestGetAgent_NotFound(t *testing.T) {
	r := setupRouter(NewHandler(NewMemoryStore()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/agents/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAgents_ByRole(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.CreateAgent(ctx, newAgent("d1", RoleDebater, "0x0000000000000000000000000000000000000001"))
	_ = store.CreateAgent(ctx, newAgent("s1", RoleSpectator, "0x0000000000000000000000000000000000000002"))

	r := setupRouter(NewHandler(store))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/agents?role=spectator", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Agents []Agent `json:"agents"`
		Count  int     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "s1", body.Agents[0].AgentID)
}

func TestDeleteAgent(t *testing.T) {
	store := NewMemoryStore()
	_ = store.CreateAgent(context.Background(), newAgent("a", RoleDebater, "0x0000000000000000000000000000000000000001"))

	r := setupRouter(NewHandler(store))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/v1/agents/a", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/v1/agents/a", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
