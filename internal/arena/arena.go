// Package arena mirrors on-chain DebateArena state for debate groups.
//
// The ledger is authoritative for arena existence, stakes, tallies and
// payouts. The mirror is a cache that records what this server submitted
// and confirmed; a reconciliation watcher repairs the mirror when a
// confirmation was lost between submission and persist.
package arena

import (
	"errors"
	"time"
)

var (
	// ErrArenaNotFound means no arena has been created for the group.
	ErrArenaNotFound = errors.New("arena: no arena for this group")
	// ErrArenaExists means the group already has an arena. One group,
	// at most one arena.
	ErrArenaExists = errors.New("arena: arena already exists for this group")
	// ErrAlreadyFinalized means the finalization record was already written.
	ErrAlreadyFinalized = errors.New("arena: arena already finalized")
	// ErrInvalidSide means the side was not pro or con.
	ErrInvalidSide = errors.New("arena: side must be pro or con")
	// ErrInvalidStake means the stake amount could not be parsed.
	ErrInvalidStake = errors.New("arena: invalid stake amount")
	// ErrGroupNotFound means the debate group does not exist.
	ErrGroupNotFound = errors.New("arena: group not found")
)

// JoinTx records a confirmed joinArena transaction.
type JoinTx struct {
	TxHash    string    `json:"txHash"`
	Side      string    `json:"side"`
	Timestamp time.Time `json:"timestamp"`
}

// VoteTx records a confirmed on-chain vote transaction.
type VoteTx struct {
	TxHash    string    `json:"txHash"`
	Side      string    `json:"side"`
	Stake     string    `json:"stake"` // MON
	Timestamp time.Time `json:"timestamp"`
}

// Finalization records the decoded ArenaFinalized event. Written exactly
// once per arena.
type Finalization struct {
	WinningSide string    `json:"winningSide"`
	Winner      string    `json:"winner"`
	Payout      string    `json:"payout"` // MON
	TxHash      string    `json:"txHash"`
	Timestamp   time.Time `json:"timestamp"`
}

// OnChainArena is the mirror record for one group's arena. Append-only
// except Finalized; the arenaId always comes from the decoded creation
// event, never from a local guess.
type OnChainArena struct {
	GroupID         string    `json:"groupId"`
	ArenaID         uint64    `json:"arenaId"`
	TxHash          string    `json:"txHash"`
	ContractAddress string    `json:"contractAddress"`
	StakeAmount     string    `json:"stakeAmount"` // MON
	EndTime         int64     `json:"endTime"`     // unix seconds
	CreatedAt       time.Time `json:"createdAt"`

	JoinTxs   []JoinTx      `json:"joinTxs"`
	VoteTxs   []VoteTx      `json:"voteTxs"`
	Finalized *Finalization `json:"finalized,omitempty"`
}

// IsFinalized reports whether the finalization record has been written.
func (a *OnChainArena) IsFinalized() bool { return a.Finalized != nil }

// -----------------------------------------------------------------------------
// Request Types
// -----------------------------------------------------------------------------

// CreateArenaRequest is the payload for creating an arena
type CreateArenaRequest struct {
	GroupID         string `json:"groupId" binding:"required"`
	StakeAmount     string `json:"stakeAmount,omitempty"`
	DurationSeconds int64  `json:"durationSeconds,omitempty"`
}

// JoinArenaRequest is the payload for joining an arena
type JoinArenaRequest struct {
	GroupID string `json:"groupId" binding:"required"`
}

// VoteRequest is the payload for an on-chain vote
type VoteRequest struct {
	GroupID     string `json:"groupId" binding:"required"`
	Side        string `json:"side" binding:"required"`
	StakeAmount string `json:"stakeAmount,omitempty"`
}

// FinalizeRequest is the payload for finalizing an arena
type FinalizeRequest struct {
	GroupID string `json:"groupId" binding:"required"`
}

// LiveState is the read-only ledger snapshot returned by refresh.
type LiveState struct {
	ArenaID     uint64 `json:"arenaId"`
	StakeAmount string `json:"stakeAmount"` // MON
	EndTime     int64  `json:"endTime"`
	ProDebater  string `json:"proDebater"`
	ConDebater  string `json:"conDebater"`
	ProVotes    string `json:"proVotes"` // MON
	ConVotes    string `json:"conVotes"` // MON
	TotalPot    string `json:"totalPot"` // MON
	Status      string `json:"status"`
	Winner      string `json:"winner,omitempty"`
}

// Status is the combined mirror-plus-ledger view for one group.
type Status struct {
	GroupID     string        `json:"groupId"`
	HasArena    bool          `json:"hasArena"`
	Arena       *OnChainArena `json:"arena,omitempty"`
	OnChain     *LiveState    `json:"onChain,omitempty"`
	ExplorerTx  string        `json:"explorerTx,omitempty"`
	SignerReady bool          `json:"signerReady"`
}
