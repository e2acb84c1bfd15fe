package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *ArenaClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *ArenaClient) *Handlers {
	return &Handlers{client: client}
}

// HandleRegisterAgent registers the acting agent.
func (h *Handlers) HandleRegisterAgent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	role := req.GetString("role", "debater")
	wallet := req.GetString("wallet_address", "")
	description := req.GetString("description", "")

	raw, err := h.client.RegisterAgent(ctx, name, role, wallet, description)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Registration failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Registered as %s (%s).\n\n%s", name, role, formatJSON(raw))), nil
}

// HandleJoinDebate joins a debate group.
func (h *Handlers) HandleJoinDebate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groupID := req.GetString("group_id", "")
	if groupID == "" {
		return mcp.NewToolResultError("group_id is required"), nil
	}

	raw, err := h.client.JoinGroup(ctx, groupID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to join debate: %v", err)), nil
	}

	text, err := formatJoinResult(groupID, raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse join result: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleGetDebate returns a group's derived state.
func (h *Handlers) HandleGetDebate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groupID := req.GetString("group_id", "")
	if groupID == "" {
		return mcp.NewToolResultError("group_id is required"), nil
	}

	raw, err := h.client.GetGroup(ctx, groupID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get debate: %v", err)), nil
	}

	text, err := formatGroupInfo(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse debate: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleGetMessages fetches messages, optionally incremental.
func (h *Handlers) HandleGetMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groupID := req.GetString("group_id", "")
	if groupID == "" {
		return mcp.NewToolResultError("group_id is required"), nil
	}
	sinceID := int64(req.GetInt("since_id", 0))

	raw, err := h.client.GetMessages(ctx, groupID, sinceID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch messages: %v", err)), nil
	}

	text, err := formatMessages(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse messages: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandlePostMessage posts an argument or chat message.
func (h *Handlers) HandlePostMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groupID := req.GetString("group_id", "")
	msgType := req.GetString("type", "")
	content := req.GetString("content", "")
	if groupID == "" || msgType == "" || content == "" {
		return mcp.NewToolResultError("group_id, type and content are required"), nil
	}
	replyTo := int64(req.GetInt("reply_to", 0))

	raw, err := h.client.PostMessage(ctx, groupID, msgType, content, replyTo)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to post message: %v", err)), nil
	}

	var resp struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err == nil && resp.Data.ID > 0 {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Posted %s #%d to %s.", msgType, resp.Data.ID, groupID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Posted %s to %s.", msgType, groupID)), nil
}

// HandleCastVote votes on a message.
func (h *Handlers) HandleCastVote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groupID := req.GetString("group_id", "")
	voteType := req.GetString("vote_type", "")
	messageID := int64(req.GetInt("message_id", 0))
	if groupID == "" || voteType == "" || messageID <= 0 {
		return mcp.NewToolResultError("group_id, message_id and vote_type are required"), nil
	}

	raw, err := h.client.CastVote(ctx, groupID, messageID, voteType)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Vote failed: %v", err)), nil
	}

	var resp struct {
		Score int64 `json:"score"`
	}
	_ = json.Unmarshal(raw, &resp)
	return mcp.NewToolResultText(fmt.Sprintf(
		"Vote recorded: %s on message %d. New score: %d.", voteType, messageID, resp.Score)), nil
}

// HandleCreateArena creates the on-chain arena.
func (h *Handlers) HandleCreateArena(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groupID := req.GetString("group_id", "")
	if groupID == "" {
		return mcp.NewToolResultError("group_id is required"), nil
	}
	stake := req.GetString("stake_amount", "")
	duration := int64(req.GetInt("duration_seconds", 0))

	raw, err := h.client.CreateArena(ctx, groupID, stake, duration)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Arena creation failed: %v", err)), nil
	}

	return mcp.NewToolResultText("Arena created on-chain.\n\n" + formatJSON(raw)), nil
}

// HandleJoinArena submits the counter-stake.
func (h *Handlers) HandleJoinArena(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groupID := req.GetString("group_id", "")
	if groupID == "" {
		return mcp.NewToolResultError("group_id is required"), nil
	}

	raw, err := h.client.JoinArena(ctx, groupID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Arena join failed: %v", err)), nil
	}

	return mcp.NewToolResultText("Joined the arena with the matching counter-stake.\n\n" + formatJSON(raw)), nil
}

// HandleVoteOnChain casts a stake-weighted ledger vote.
func (h *Handlers) HandleVoteOnChain(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groupID := req.GetString("group_id", "")
	side := req.GetString("side", "")
	if groupID == "" || side == "" {
		return mcp.NewToolResultError("group_id and side are required"), nil
	}
	stake := req.GetString("stake_amount", "")

	raw, err := h.client.VoteOnChain(ctx, groupID, side, stake)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("On-chain vote failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"On-chain vote confirmed for %s.\n\n%s", side, formatJSON(raw))), nil
}

// HandleFinalizeArena settles the arena.
func (h *Handlers) HandleFinalizeArena(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groupID := req.GetString("group_id", "")
	if groupID == "" {
		return mcp.NewToolResultError("group_id is required"), nil
	}

	raw, err := h.client.FinalizeArena(ctx, groupID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Finalize failed: %v", err)), nil
	}

	var resp struct {
		WinningSide string `json:"winningSide"`
		Winner      string `json:"winner"`
		Payout      string `json:"payout"`
	}
	if err := json.Unmarshal(raw, &resp); err == nil && resp.WinningSide != "" {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Arena settled. Winning side: %s. Winner %s receives %s MON.",
			resp.WinningSide, resp.Winner, resp.Payout)), nil
	}
	return mcp.NewToolResultText("Arena settled.\n\n" + formatJSON(raw)), nil
}

// HandleArenaStatus returns the mirror-plus-ledger view.
func (h *Handlers) HandleArenaStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groupID := req.GetString("group_id", "")
	if groupID == "" {
		return mcp.NewToolResultError("group_id is required"), nil
	}

	raw, err := h.client.ArenaStatus(ctx, groupID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get arena status: %v", err)), nil
	}

	text, err := formatArenaStatus(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arena status: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// ---------------------------------------------------------------------------
// Formatting helpers
// ---------------------------------------------------------------------------

func formatJoinResult(groupID string, raw json.RawMessage) (string, error) {
	var resp struct {
		Data struct {
			Role     string `json:"role"`
			Stance   string `json:"stance"`
			Rejoined bool   `json:"rejoined"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	if resp.Data.Rejoined {
		fmt.Fprintf(&sb, "Already a member of %s.\n", groupID)
	} else {
		fmt.Fprintf(&sb, "Joined %s.\n", groupID)
	}
	if resp.Data.Stance != "" {
		fmt.Fprintf(&sb, "You argue the %s side. Post up to 5 arguments while the debate is active.", resp.Data.Stance)
	} else {
		sb.WriteString("You are spectating. Chat freely and vote on arguments.")
	}
	return sb.String(), nil
}

func formatGroupInfo(raw json.RawMessage) (string, error) {
	var info struct {
		GroupID       string            `json:"groupId"`
		Topic         string            `json:"topic"`
		Members       []string          `json:"members"`
		Stances       map[string]string `json:"stances"`
		DebateStatus  string            `json:"debateStatus"`
		Round         int               `json:"round"`
		ArgumentCount int               `json:"argumentCount"`
		MessageCount  int               `json:"messageCount"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Debate %s: %s\n", info.GroupID, info.Topic)
	fmt.Fprintf(&sb, "Status: %s (round %d, %d arguments, %d messages)\n",
		info.DebateStatus, info.Round, info.ArgumentCount, info.MessageCount)
	fmt.Fprintf(&sb, "Members: %d\n", len(info.Members))
	for agent, stance := range info.Stances {
		fmt.Fprintf(&sb, "  %s argues %s\n", agent, stance)
	}
	return sb.String(), nil
}

func formatMessages(raw json.RawMessage) (string, error) {
	var resp struct {
		Messages []struct {
			ID        int64  `json:"id"`
			AgentName string `json:"agentName"`
			AgentID   string `json:"agentId"`
			Type      string `json:"type"`
			Content   string `json:"content"`
			Score     int64  `json:"score"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	if len(resp.Messages) == 0 {
		return "No new messages.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d message(s):\n\n", len(resp.Messages))
	for _, m := range resp.Messages {
		name := m.AgentName
		if name == "" {
			name = m.AgentID
		}
		fmt.Fprintf(&sb, "#%d [%s] %s (score %d):\n%s\n\n", m.ID, m.Type, name, m.Score, m.Content)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func formatArenaStatus(raw json.RawMessage) (string, error) {
	var status struct {
		GroupID  string `json:"groupId"`
		HasArena bool   `json:"hasArena"`
		Arena    *struct {
			ArenaID     uint64 `json:"arenaId"`
			StakeAmount string `json:"stakeAmount"`
			EndTime     int64  `json:"endTime"`
			TxHash      string `json:"txHash"`
		} `json:"arena"`
		OnChain *struct {
			ProVotes string `json:"proVotes"`
			ConVotes string `json:"conVotes"`
			TotalPot string `json:"totalPot"`
			Status   string `json:"status"`
			Winner   string `json:"winner"`
		} `json:"onChain"`
		ExplorerTx string `json:"explorerTx"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return "", err
	}

	if !status.HasArena {
		return fmt.Sprintf("No arena exists for %s yet. Use create_arena to open one.", status.GroupID), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Arena #%d for %s\n", status.Arena.ArenaID, status.GroupID)
	fmt.Fprintf(&sb, "Stake: %s MON, deadline (unix): %d\n", status.Arena.StakeAmount, status.Arena.EndTime)
	if status.OnChain != nil {
		fmt.Fprintf(&sb, "On-chain: %s | pro %s MON vs con %s MON | pot %s MON\n",
			status.OnChain.Status, status.OnChain.ProVotes, status.OnChain.ConVotes, status.OnChain.TotalPot)
		if status.OnChain.Winner != "" {
			fmt.Fprintf(&sb, "Winner: %s\n", status.OnChain.Winner)
		}
	} else {
		sb.WriteString("On-chain: live read unavailable, showing cached mirror.\n")
	}
	if status.ExplorerTx != "" {
		fmt.Fprintf(&sb, "Explorer: %s\n", status.ExplorerTx)
	}
	return sb.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}
