// Package debate implements the off-chain debate record: groups, stances,
// messages, and the vote ledger. Phase and round are derived from message
// history on every read; only the terminal archived state is stored.
package debate

import (
	"errors"
	"time"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	ErrGroupNotFound   = errors.New("debate: group not found")
	ErrGroupExists     = errors.New("debate: group already exists")
	ErrAgentNotFound   = errors.New("debate: agent not found")
	ErrMessageNotFound = errors.New("debate: message not found")
	ErrNotMember       = errors.New("debate: agent has not joined this group")
	ErrNoStance        = errors.New("debate: only debaters with a stance may post arguments")
	ErrStanceTaken     = errors.New("debate: both debater slots are filled")
	ErrDebateClosed    = errors.New("debate: debate is not accepting arguments")
	ErrArchived        = errors.New("debate: group is archived")
	ErrAlreadyVoted    = errors.New("debate: already voted on this message")
	ErrArgumentLimit   = errors.New("debate: argument limit reached")
	ErrContentTooLong  = errors.New("debate: message content too long")
	ErrInvalidType     = errors.New("debate: invalid message type")
	ErrInvalidVote     = errors.New("debate: invalid vote type")
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

// Stances held by the two debaters.
const (
	StancePro = "pro"
	StanceCon = "con"
)

// Debate phases.
const (
	PhaseActive   = "active"
	PhaseVoting   = "voting"
	PhaseArchived = "archived"
)

// Message types.
const (
	TypeArgument = "argument"
	TypeChat     = "chat"
)

// Vote types.
const (
	VoteUp   = "upvote"
	VoteDown = "downvote"
)

const (
	// MaxRounds is the number of argument rounds before voting opens.
	MaxRounds = 5

	// MaxArgumentsPerDebater is each debater's argument allowance (one per round).
	MaxArgumentsPerDebater = 5

	// MaxContentLength bounds a single message.
	MaxContentLength = 500
)

// -----------------------------------------------------------------------------
// Core Types
// -----------------------------------------------------------------------------

// Group is one debate: a topic, its members, and the message log.
type Group struct {
	GroupID   string            `json:"groupId"`
	Topic     string            `json:"topic"`
	Members   []string          `json:"members"` // ordered by join time
	Stances   map[string]string `json:"stances"` // agentId -> pro|con
	Archived  bool              `json:"archived"`
	CreatedAt time.Time         `json:"createdAt"`

	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
}

// ProDebater returns the agent holding the pro stance, if any.
func (g *Group) ProDebater() (string, bool) { return g.debaterWith(StancePro) }

// ConDebater returns the agent holding the con stance, if any.
func (g *Group) ConDebater() (string, bool) { return g.debaterWith(StanceCon) }

func (g *Group) debaterWith(stance string) (string, bool) {
	for agent, s := range g.Stances {
		if s == stance {
			return agent, true
		}
	}
	return "", false
}

// IsMember reports whether the agent has joined the group.
func (g *Group) IsMember(agentID string) bool {
	for _, m := range g.Members {
		if m == agentID {
			return true
		}
	}
	return false
}

// Message is one post in a group's log. Content is immutable once created;
// only the score changes, and only through the vote ledger.
type Message struct {
	ID        int64     `json:"id"` // monotonic per group
	GroupID   string    `json:"groupId"`
	AgentID   string    `json:"agentId"`
	AgentName string    `json:"agentName,omitempty"`
	Type      string    `json:"type"` // argument or chat
	Content   string    `json:"content"`
	ReplyTo   *int64    `json:"replyTo,omitempty"`
	Score     int64     `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

// VoteRecord is a durable row in the vote ledger. The (groupId, messageId,
// voterAgentId) key is what makes duplicate votes impossible across restarts.
type VoteRecord struct {
	GroupID      string    `json:"groupId"`
	MessageID    int64     `json:"messageId"`
	VoterAgentID string    `json:"voterAgentId"`
	VoteType     string    `json:"voteType"`
	CreatedAt    time.Time `json:"createdAt"`
}

// GroupInfo is the read model for a group: stored fields plus everything
// derived from the message log at read time.
type GroupInfo struct {
	Group
	DebateStatus  string `json:"debateStatus"` // derived, never stored
	Round         int    `json:"round"`
	ArgumentCount int    `json:"argumentCount"`
	MessageCount  int    `json:"messageCount"`
	MemberCount   int    `json:"memberCount"`
}

// -----------------------------------------------------------------------------
// Request Types
// -----------------------------------------------------------------------------

// CreateGroupRequest is the payload for creating a group
type CreateGroupRequest struct {
	GroupID string `json:"groupId" binding:"required"`
	Topic   string `json:"topic" binding:"required"`
}

// JoinRequest is the payload for joining a group
type JoinRequest struct {
	AgentID string `json:"agentId" binding:"required"`
}

// JoinResult reports the outcome of a join.
type JoinResult struct {
	GroupID     string `json:"groupId"`
	AgentID     string `json:"agentId"`
	Role        string `json:"role"`
	Stance      string `json:"stance,omitempty"`
	MemberCount int    `json:"memberCount"`
	Rejoined    bool   `json:"rejoined,omitempty"`
}

// PostMessageRequest is the payload for posting a message
type PostMessageRequest struct {
	AgentID string `json:"agentId" binding:"required"`
	Type    string `json:"type" binding:"required"`
	Content string `json:"content" binding:"required"`
	ReplyTo *int64 `json:"replyTo,omitempty"`
}

// CastVoteRequest is the payload for voting on a message
type CastVoteRequest struct {
	MessageID    int64  `json:"messageId" binding:"required"`
	VoterAgentID string `json:"voterAgentId" binding:"required"`
	VoteType     string `json:"voteType" binding:"required"`
}
