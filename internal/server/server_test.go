package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/monclaw/arena/internal/chain"
	"github.com/monclaw/arena/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockContract implements chain.ArenaContract for testing
type mockContract struct{}

func (m *mockContract) GetArena(ctx context.Context, arenaID uint64) (*chain.ArenaState, error) {
	return &chain.ArenaState{ArenaID: arenaID, Status: chain.StatusActive}, nil
}

func (m *mockContract) HasVoted(ctx context.Context, arenaID uint64, voter common.Address) (bool, error) {
	return false, nil
}

func (m *mockContract) ArenaCount(ctx context.Context) (uint64, error) {
	return 0, nil
}

func (m *mockContract) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	return big.NewInt(1e18), nil
}

func (m *mockContract) CreateArena(ctx context.Context, topicHash [32]byte, stakeWei *big.Int, endTime uint64) (*chain.CreateResult, error) {
	return &chain.CreateResult{
		TxResult:    chain.TxResult{TxHash: "0xcreate"},
		ArenaID:     1,
		TopicHash:   topicHash,
		StakeAmount: stakeWei,
		EndTime:     endTime,
	}, nil
}

func (m *mockContract) JoinArena(ctx context.Context, arenaID uint64, stakeWei *big.Int) (*chain.JoinResult, error) {
	return &chain.JoinResult{TxResult: chain.TxResult{TxHash: "0xjoin"}, ArenaID: arenaID, Side: chain.SideCon}, nil
}

func (m *mockContract) Vote(ctx context.Context, arenaID uint64, side uint8, stakeWei *big.Int) (*chain.VoteResult, error) {
	return &chain.VoteResult{TxResult: chain.TxResult{TxHash: "0xvote"}, ArenaID: arenaID, Side: side, Stake: stakeWei}, nil
}

func (m *mockContract) Finalize(ctx context.Context, arenaID uint64) (*chain.FinalizeResult, error) {
	return &chain.FinalizeResult{
		TxResult:    chain.TxResult{TxHash: "0xfinal"},
		ArenaID:     arenaID,
		WinningSide: chain.SidePro,
		Winner:      "0x0000000000000000000000000000000000000123",
		Payout:      big.NewInt(1e16),
	}, nil
}

func (m *mockContract) Address() string {
	return "0x0000000000000000000000000000000000000001"
}

func (m *mockContract) Close() error {
	return nil
}

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:                "0",
		Env:                 "development",
		LogLevel:            "error",
		RPCURL:              "https://testnet-rpc.monad.xyz",
		ChainID:             10143,
		DefaultStake:        "0.01",
		DefaultVote:         "0.001",
		DefaultDuration:     600,
		MinSpectatorBalance: "0.01",
		GateFailOpen:        true,
	}
}

// newTestServer creates a server with mock dependencies
func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig(), WithContract(&mockContract{}))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	s.router.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, "GET", "/health/live", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, "GET", "/health/ready", "")
	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/health",
		"GET:/metrics",
		"GET:/ws",
		"POST:/v1/agents",
		"GET:/v1/agents/:agentId",
		"POST:/v1/groups",
		"GET:/v1/groups",
		"POST:/v1/groups/:groupId/join",
		"POST:/v1/groups/:groupId/messages",
		"GET:/v1/groups/:groupId/messages",
		"POST:/v1/groups/:groupId/vote",
		"POST:/v1/arena/create",
		"POST:/v1/arena/join",
		"POST:/v1/arena/vote",
		"POST:/v1/arena/finalize",
		"GET:/v1/arena/:groupId/status",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// Dashboard page test
// ---------------------------------------------------------------------------

func TestDashboardEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, "GET", "/", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for dashboard, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Expected HTML content type, got %q", w.Header().Get("Content-Type"))
	}
}

// ---------------------------------------------------------------------------
// End-to-end flow through the wired stack
// ---------------------------------------------------------------------------

func TestDebateFlowThroughServer(t *testing.T) {
	s := newTestServer(t)

	// Register two debaters
	for i, id := range []string{"agent-pro", "agent-con"} {
		body := fmt.Sprintf(`{"agentId":%q,"name":%q,"role":"debater","walletAddress":"0x%040d"}`, id, id, i+2)
		w := doJSON(t, s, "POST", "/v1/agents", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("register %s: expected 201, got %d: %s", id, w.Code, w.Body.String())
		}
	}

	// Join the default "tech" debate (created on demand)
	w := doJSON(t, s, "POST", "/v1/groups/tech/join", `{"agentId":"agent-pro"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, s, "POST", "/v1/groups/tech/join", `{"agentId":"agent-con"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Post an argument
	w = doJSON(t, s, "POST", "/v1/groups/tech/messages",
		`{"agentId":"agent-pro","type":"argument","content":"Opening case."}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("post: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// Create the on-chain arena (mock contract)
	w = doJSON(t, s, "POST", "/v1/arena/create", `{"groupId":"tech"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("arena create: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// Arena status reflects the mirror
	w = doJSON(t, s, "GET", "/v1/arena/tech/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var status map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("parse status: %v", err)
	}
	if status["hasArena"] != true {
		t.Errorf("Expected hasArena true, got %v", status["hasArena"])
	}

	// Finalize settles and archives the debate
	w = doJSON(t, s, "POST", "/v1/arena/finalize", `{"groupId":"tech"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("finalize: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, "GET", "/v1/groups/tech", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get group: expected 200, got %d", w.Code)
	}
	var group map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &group); err != nil {
		t.Fatalf("parse group: %v", err)
	}
	if group["debateStatus"] != "archived" {
		t.Errorf("Expected archived debate after settlement, got %v", group["debateStatus"])
	}
}

// ---------------------------------------------------------------------------
// Admin routes
// ---------------------------------------------------------------------------

func TestAdminScanRequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.AdminSecret = "hunter2"
	s, err := New(cfg, WithContract(&mockContract{}))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	// Wrong secret
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/admin/scan", nil)
	req.Header.Set("X-Admin-Secret", "wrong")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for wrong secret, got %d", w.Code)
	}

	// Correct secret, but no watcher without a contract address
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/v1/admin/scan", nil)
	req.Header.Set("X-Admin-Secret", "hunter2")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 with no watcher, got %d", w.Code)
	}
}

func TestAdminDisabledWithoutSecret(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/admin/scan", nil)
	req.Header.Set("X-Admin-Secret", "")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 when no admin secret configured, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// 404 test
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, "GET", "/v1/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
