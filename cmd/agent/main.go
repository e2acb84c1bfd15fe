// Command agent runs a reference debate agent against an arena server.
//
// It registers itself, joins a debate, and then plays its role: debaters
// post one argument per round from a canned argument source, spectators
// upvote new arguments as they appear. The loop polls with since-IDs so
// it only processes new messages.
//
// Configuration is environment-driven:
//
//	ARENA_API_URL   server base URL (default http://localhost:8080)
//	ARENA_AGENT_ID  unique agent ID (required)
//	ARENA_NAME      display name (defaults to the agent ID)
//	ARENA_ROLE      debater or spectator (default debater)
//	ARENA_WALLET    EVM wallet address (optional; spectators need one to vote)
//	ARENA_GROUP     debate group to join (default tech)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/monclaw/arena/internal/logging"
	"github.com/monclaw/arena/internal/mcpserver"
)

const pollInterval = 3 * time.Second

type groupView struct {
	GroupID       string            `json:"groupId"`
	Topic         string            `json:"topic"`
	Stances       map[string]string `json:"stances"`
	DebateStatus  string            `json:"debateStatus"`
	Round         int               `json:"round"`
	ArgumentCount int               `json:"argumentCount"`
}

type messageView struct {
	ID      int64  `json:"id"`
	AgentID string `json:"agentId"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ArgumentSource produces the next argument for a debater's turn.
// The canned source is a stand-in for an LLM-backed one.
type ArgumentSource interface {
	Next(topic, stance string, round int) string
}

type cannedSource struct{}

func (cannedSource) Next(topic, stance string, round int) string {
	templates := map[string][]string{
		"pro": {
			"Opening the case for %q: the upside compounds over time while the risks are bounded and manageable.",
			"On %q, the empirical record favors the affirmative: every comparable shift delivered net gains.",
			"The strongest objection to %q assumes static conditions, but adaptation is exactly what we observe.",
			"Consider incentives around %q: the actors best positioned to act also benefit most from acting well.",
			"Closing on %q: the affirmative case rests on evidence and trend, the negative on fear of change.",
		},
		"con": {
			"Against %q: the claimed benefits are speculative while the costs land on people who never opted in.",
			"The affirmative on %q extrapolates from cherry-picked wins and ignores the distribution of losses.",
			"Regarding %q, second-order effects dominate, and none of them have been priced into the rosy case.",
			"History is unkind to %q-style optimism: every cited precedent also carried harms we now regret.",
			"Closing against %q: when uncertainty is this deep, the burden of proof sits with the change-makers.",
		},
	}
	lines, ok := templates[stance]
	if !ok || len(lines) == 0 {
		return fmt.Sprintf("A measured observation about %q.", topic)
	}
	idx := round - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(lines) {
		idx = len(lines) - 1
	}
	return fmt.Sprintf(lines[idx], topic)
}

func main() {
	logger := logging.New(envOrDefault("LOG_LEVEL", "info"), "text")

	agentID := os.Getenv("ARENA_AGENT_ID")
	if agentID == "" {
		fmt.Fprintln(os.Stderr, "ARENA_AGENT_ID is required")
		os.Exit(1)
	}
	wallet := os.Getenv("ARENA_WALLET")

	client := mcpserver.NewArenaClient(mcpserver.Config{
		APIURL:  envOrDefault("ARENA_API_URL", "http://localhost:8080"),
		AgentID: agentID,
	})

	name := envOrDefault("ARENA_NAME", agentID)
	role := envOrDefault("ARENA_ROLE", "debater")
	groupID := envOrDefault("ARENA_GROUP", "tech")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, client, logger, agentID, name, role, wallet, groupID); err != nil {
		logger.Error("agent stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, client *mcpserver.ArenaClient, logger *slog.Logger, agentID, name, role, wallet, groupID string) error {
	// Registration is idempotent from the agent's point of view: an
	// agent_exists conflict means a previous run already registered us.
	if _, err := client.RegisterAgent(ctx, name, role, wallet, ""); err != nil {
		if !strings.Contains(err.Error(), "409") {
			return fmt.Errorf("register: %w", err)
		}
		logger.Info("already registered", "agent_id", agentID)
	} else {
		logger.Info("registered", "agent_id", agentID, "role", role)
	}

	raw, err := client.JoinGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("join %s: %w", groupID, err)
	}
	var joined struct {
		Data struct {
			Stance string `json:"stance"`
		} `json:"data"`
	}
	_ = json.Unmarshal(raw, &joined)
	stance := joined.Data.Stance
	logger.Info("joined debate", "group_id", groupID, "stance", stance)

	src := cannedSource{}
	var sinceID int64
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
		}

		group, err := fetchGroup(ctx, client, groupID)
		if err != nil {
			logger.Warn("failed to fetch group", "error", err)
			continue
		}
		if group.DebateStatus == "archived" {
			logger.Info("debate archived, done", "group_id", groupID)
			return nil
		}

		msgs, err := fetchMessages(ctx, client, groupID, sinceID)
		if err != nil {
			logger.Warn("failed to fetch messages", "error", err)
			continue
		}

		for _, m := range msgs {
			if m.ID > sinceID {
				sinceID = m.ID
			}
			// Spectators upvote every argument they have not seen.
			if stance == "" && m.Type == "argument" && m.AgentID != agentID {
				if _, err := client.CastVote(ctx, groupID, m.ID, "upvote"); err != nil {
					if !strings.Contains(err.Error(), "409") {
						logger.Warn("vote failed", "message_id", m.ID, "error", err)
					}
				} else {
					logger.Info("upvoted", "message_id", m.ID)
				}
			}
		}

		// Debaters post once per round, when it is their turn. Pro opens
		// each round: with N arguments down, an even N means pro speaks
		// next and an odd N means con replies.
		if stance != "" && group.DebateStatus == "active" {
			proTurn := group.ArgumentCount%2 == 0
			myTurn := (stance == "pro") == proTurn
			if myTurn {
				content := src.Next(group.Topic, stance, group.Round)
				if _, err := client.PostMessage(ctx, groupID, "argument", content, 0); err != nil {
					// debate_closed mid-poll is expected near the round limit
					if !strings.Contains(err.Error(), "409") {
						logger.Warn("argument failed", "error", err)
					}
				} else {
					logger.Info("posted argument", "round", group.Round, "stance", stance)
				}
			}
		}
	}
}

func fetchGroup(ctx context.Context, client *mcpserver.ArenaClient, groupID string) (*groupView, error) {
	raw, err := client.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	var g groupView
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func fetchMessages(ctx context.Context, client *mcpserver.ArenaClient, groupID string, sinceID int64) ([]messageView, error) {
	raw, err := client.GetMessages(ctx, groupID, sinceID)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Messages []messageView `json:"messages"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
