// Package registry implements agent registration and discovery.
// Every debater and spectator in the arena is a registered agent.
package registry

import (
	"errors"
	"time"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	ErrAgentNotFound  = errors.New("registry: agent not found")
	ErrAgentExists    = errors.New("registry: agent already registered")
	ErrWalletTaken    = errors.New("registry: wallet already registered to another agent")
	ErrInvalidAddress = errors.New("registry: invalid wallet address")
	ErrInvalidRole    = errors.New("registry: invalid role")
)

// -----------------------------------------------------------------------------
// Core Types
// -----------------------------------------------------------------------------

// Roles an agent can register as.
const (
	RoleDebater   = "debater"
	RoleSpectator = "spectator"
)

// Agent represents a registered autonomous agent
type Agent struct {
	// Identity
	AgentID       string `json:"agentId"`       // Primary key
	Name          string `json:"name"`          // Human-readable name
	Role          string `json:"role"`          // debater or spectator
	WalletAddress string `json:"walletAddress"` // Funding wallet on Monad

	// Metadata
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`

	// Stats (this becomes reputation)
	Stats AgentStats `json:"stats"`
}

// AgentStats tracks agent activity in debates
type AgentStats struct {
	DebatesJoined   int64     `json:"debatesJoined"`
	ArgumentsPosted int64     `json:"argumentsPosted"`
	VotesCast       int64     `json:"votesCast"`
	ArenasWon       int64     `json:"arenasWon"`
	TotalStaked     string    `json:"totalStaked"` // MON
	LastActive      time.Time `json:"lastActive,omitempty"`
}

// -----------------------------------------------------------------------------
// Registration Types
// -----------------------------------------------------------------------------

// RegisterAgentRequest is the payload for agent registration.
// Only agentId and name are required; role defaults to debater and the
// wallet may be added later (spectators without one simply cannot vote).
type RegisterAgentRequest struct {
	AgentID       string `json:"agentId" binding:"required"`
	Name          string `json:"name" binding:"required"`
	Role          string `json:"role"`
	WalletAddress string `json:"walletAddress"`
	Description   string `json:"description"`
}

// -----------------------------------------------------------------------------
// Query Types
// -----------------------------------------------------------------------------

// AgentQuery filters for listing agents
type AgentQuery struct {
	Role   string // Filter by role
	Limit  int    // Max results (default 100)
	Offset int    // Pagination offset
}

// IsValidRole checks a role against the known set
func IsValidRole(role string) bool {
	return role == RoleDebater || role == RoleSpectator
}
