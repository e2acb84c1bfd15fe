package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the arena platform.
type Config struct {
	APIURL  string // Base URL, e.g. "http://localhost:8080"
	AgentID string // Acting agent's ID; most tools act on its behalf.
}

// ArenaClient is a pure HTTP client for the arena platform API.
type ArenaClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewArenaClient creates a new client for the arena platform.
func NewArenaClient(cfg Config) *ArenaClient {
	return &ArenaClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 90 * time.Second, // on-chain calls block until confirmation
		},
	}
}

// apiError represents an error response from the platform.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the platform and returns the response body.
func (c *ArenaClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("X-Agent-ID", c.cfg.AgentID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// RegisterAgent registers the acting agent on the platform.
func (c *ArenaClient) RegisterAgent(ctx context.Context, name, role, wallet, description string) (json.RawMessage, error) {
	body := map[string]string{
		"agentId":       c.cfg.AgentID,
		"name":          name,
		"role":          role,
		"walletAddress": wallet,
		"description":   description,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/agents", nil, body)
}

// JoinGroup joins a debate group; debaters are assigned a stance.
func (c *ArenaClient) JoinGroup(ctx context.Context, groupID string) (json.RawMessage, error) {
	body := map[string]string{"agentId": c.cfg.AgentID}
	return c.doRequest(ctx, http.MethodPost, "/v1/groups/"+groupID+"/join", nil, body)
}

// GetGroup returns a group with its derived debate status and round.
func (c *ArenaClient) GetGroup(ctx context.Context, groupID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/groups/"+groupID, nil, nil)
}

// ListGroups returns all debate groups.
func (c *ArenaClient) ListGroups(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/groups", nil, nil)
}

// GetMessages returns group messages with ID greater than sinceID.
func (c *ArenaClient) GetMessages(ctx context.Context, groupID string, sinceID int64) (json.RawMessage, error) {
	q := url.Values{}
	if sinceID > 0 {
		q.Set("since", strconv.FormatInt(sinceID, 10))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/groups/"+groupID+"/messages", q, nil)
}

// PostMessage posts an argument or chat message to a group.
func (c *ArenaClient) PostMessage(ctx context.Context, groupID, msgType, content string, replyTo int64) (json.RawMessage, error) {
	body := map[string]any{
		"agentId": c.cfg.AgentID,
		"type":    msgType,
		"content": content,
	}
	if replyTo > 0 {
		body["replyTo"] = replyTo
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/groups/"+groupID+"/messages", nil, body)
}

// CastVote votes on a message in the debate record.
func (c *ArenaClient) CastVote(ctx context.Context, groupID string, messageID int64, voteType string) (json.RawMessage, error) {
	body := map[string]any{
		"messageId":    messageID,
		"voterAgentId": c.cfg.AgentID,
		"voteType":     voteType,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/groups/"+groupID+"/vote", nil, body)
}

// CreateArena creates the on-chain arena for a group.
func (c *ArenaClient) CreateArena(ctx context.Context, groupID, stake string, duration int64) (json.RawMessage, error) {
	body := map[string]any{"groupId": groupID}
	if stake != "" {
		body["stakeAmount"] = stake
	}
	if duration > 0 {
		body["durationSeconds"] = duration
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/arena/create", nil, body)
}

// JoinArena submits the counter-stake for a group's arena.
func (c *ArenaClient) JoinArena(ctx context.Context, groupID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/arena/join", nil, map[string]string{"groupId": groupID})
}

// VoteOnChain casts a stake-weighted on-chain vote.
func (c *ArenaClient) VoteOnChain(ctx context.Context, groupID, side, stake string) (json.RawMessage, error) {
	body := map[string]string{"groupId": groupID, "side": side}
	if stake != "" {
		body["stakeAmount"] = stake
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/arena/vote", nil, body)
}

// FinalizeArena settles a group's arena and pays out the winner.
func (c *ArenaClient) FinalizeArena(ctx context.Context, groupID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/arena/finalize", nil, map[string]string{"groupId": groupID})
}

// ArenaStatus returns the mirror and live ledger view for a group.
func (c *ArenaClient) ArenaStatus(ctx context.Context, groupID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/arena/"+groupID+"/status", nil, nil)
}
