package arena

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/monclaw/arena/internal/chain"
	"github.com/monclaw/arena/internal/debate"
	"github.com/monclaw/arena/internal/metrics"
	"github.com/monclaw/arena/internal/mon"
	"github.com/monclaw/arena/internal/registry"
	"github.com/monclaw/arena/internal/syncutil"
	"github.com/monclaw/arena/internal/traces"
)

// DebateDirectory is the slice of the debate service the mirror needs:
// group existence checks, topics for the creation hash, and archival on
// settlement.
type DebateDirectory interface {
	GetGroupInfo(ctx context.Context, groupID string) (*debate.GroupInfo, error)
	ListGroups(ctx context.Context) ([]*debate.GroupInfo, error)
	Archive(ctx context.Context, groupID string) error
}

// WinnerDirectory resolves the winning wallet back to an agent so the win
// can be credited. Optional; settlement works without it.
type WinnerDirectory interface {
	GetAgentByWallet(ctx context.Context, wallet string) (*registry.Agent, error)
	UpdateAgentStats(ctx context.Context, agentID string, fn func(*registry.AgentStats)) error
}

// Defaults applied when a request omits stake or duration.
type Defaults struct {
	StakeMON    string
	VoteMON     string
	DurationSec int64
}

// Service owns the on-chain mirror: it submits ledger transactions through
// the chain client, waits for confirmation, and records what confirmed.
// Per-group locks serialize mirror mutations; ledger reads run lock-free.
type Service struct {
	store    Store
	contract chain.ArenaContract
	debates  DebateDirectory
	agents   WinnerDirectory
	explorer chain.Explorer
	defaults Defaults
	events   Events
	logger   *slog.Logger
	locks    *syncutil.ContextShardedMutex
}

// NewService creates an arena mirror service
func NewService(store Store, contract chain.ArenaContract, debates DebateDirectory, defaults Defaults, explorer chain.Explorer, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		contract: contract,
		debates:  debates,
		explorer: explorer,
		defaults: defaults,
		logger:   logger,
		locks:    syncutil.NewContextShardedMutex(),
	}
}

// SetWinnerDirectory wires the registry so settlement credits the winner.
func (s *Service) SetWinnerDirectory(agents WinnerDirectory) { s.agents = agents }

// Events receives arena lifecycle notifications for fan-out (websocket hub).
type Events interface {
	ArenaCreated(groupID string, arenaID uint64, stake string, endTime int64)
	ArenaFinalized(groupID string, winningSide, winner, payout string)
}

// SetEvents wires a realtime event sink.
func (s *Service) SetEvents(events Events) { s.events = events }

// ArenaEndTime implements the debate phase derivation's deadline source.
func (s *Service) ArenaEndTime(ctx context.Context, groupID string) (int64, bool) {
	arena, err := s.store.GetArena(ctx, groupID)
	if err != nil {
		return 0, false
	}
	return arena.EndTime, true
}

// CreateArena creates an on-chain arena for a group and records the mirror.
// The arenaId is recovered from the decoded ArenaCreated event; the mirror
// never guesses one. One arena per group: a second call is a caller error.
func (s *Service) CreateArena(ctx context.Context, req CreateArenaRequest) (*OnChainArena, error) {
	group, err := s.debates.GetGroupInfo(ctx, req.GroupID)
	if err != nil {
		if errors.Is(err, debate.ErrGroupNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	stakeMON := req.StakeAmount
	if stakeMON == "" {
		stakeMON = s.defaults.StakeMON
	}
	stakeWei, ok := mon.Parse(stakeMON)
	if !ok {
		return nil, ErrInvalidStake
	}

	duration := req.DurationSeconds
	if duration <= 0 {
		duration = s.defaults.DurationSec
	}
	endTime := time.Now().Unix() + duration

	unlock, err := s.locks.LockContext(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Idempotency guard: check the mirror before spending gas.
	if _, err := s.store.GetArena(ctx, req.GroupID); err == nil {
		return nil, ErrArenaExists
	} else if !errors.Is(err, ErrArenaNotFound) {
		return nil, err
	}

	ctx, span := traces.StartSpan(ctx, "arena.create",
		traces.GroupID(req.GroupID), traces.Amount(stakeMON))
	defer span.End()

	start := time.Now()
	result, err := s.contract.CreateArena(ctx, chain.TopicHash(group.Topic), stakeWei, uint64(endTime))
	if err != nil {
		metrics.ChainCallsTotal.WithLabelValues("createArena", "error").Inc()
		s.logger.Error("createArena failed", "group_id", req.GroupID, "error", err)
		return nil, err
	}
	metrics.ChainCallsTotal.WithLabelValues("createArena", "ok").Inc()
	metrics.ChainConfirmDuration.WithLabelValues("createArena").Observe(time.Since(start).Seconds())

	arena := &OnChainArena{
		GroupID:         req.GroupID,
		ArenaID:         result.ArenaID,
		TxHash:          result.TxHash,
		ContractAddress: s.contract.Address(),
		StakeAmount:     mon.Format(result.StakeAmount),
		EndTime:         int64(result.EndTime),
		CreatedAt:       time.Now(),
	}
	if err := s.store.CreateArena(ctx, arena); err != nil {
		// The chain call confirmed; the watcher repairs this from events.
		s.logger.Error("arena confirmed but mirror persist failed",
			"group_id", req.GroupID, "arena_id", result.ArenaID, "error", err)
		return nil, err
	}

	if s.events != nil {
		s.events.ArenaCreated(req.GroupID, arena.ArenaID, arena.StakeAmount, arena.EndTime)
	}

	s.logger.Info("arena created",
		"group_id", req.GroupID,
		"arena_id", result.ArenaID,
		"stake", arena.StakeAmount,
		"end_time", arena.EndTime,
		"tx", result.TxHash,
	)
	return arena, nil
}

// JoinArena submits the counter-stake for the second debater. The value
// always equals the arena's stored stakeAmount; callers cannot supply one.
func (s *Service) JoinArena(ctx context.Context, groupID string) (*chain.JoinResult, error) {
	arena, err := s.store.GetArena(ctx, groupID)
	if err != nil {
		return nil, err
	}

	stakeWei, ok := mon.Parse(arena.StakeAmount)
	if !ok {
		return nil, ErrInvalidStake
	}

	unlock, err := s.locks.LockContext(ctx, groupID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := traces.StartSpan(ctx, "arena.join",
		traces.GroupID(groupID), traces.ArenaID(arena.ArenaID))
	defer span.End()

	start := time.Now()
	result, err := s.contract.JoinArena(ctx, arena.ArenaID, stakeWei)
	if err != nil {
		metrics.ChainCallsTotal.WithLabelValues("joinArena", "error").Inc()
		return nil, err
	}
	metrics.ChainCallsTotal.WithLabelValues("joinArena", "ok").Inc()
	metrics.ChainConfirmDuration.WithLabelValues("joinArena").Observe(time.Since(start).Seconds())

	if err := s.store.AppendJoinTx(ctx, groupID, JoinTx{
		TxHash:    result.TxHash,
		Side:      chain.StanceFromSide(result.Side),
		Timestamp: time.Now(),
	}); err != nil {
		s.logger.Error("join confirmed but mirror append failed", "group_id", groupID, "error", err)
		return nil, err
	}

	s.logger.Info("arena joined",
		"group_id", groupID,
		"arena_id", arena.ArenaID,
		"side", chain.StanceFromSide(result.Side),
		"tx", result.TxHash,
	)
	return result, nil
}

// Vote submits a stake-weighted on-chain vote. Duplicate votes by the same
// address are the ledger's concern; the mirror records what confirmed.
func (s *Service) Vote(ctx context.Context, req VoteRequest) (*chain.VoteResult, error) {
	side, ok := chain.SideFromStance(req.Side)
	if !ok {
		return nil, ErrInvalidSide
	}

	arena, err := s.store.GetArena(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}

	stakeMON := req.StakeAmount
	if stakeMON == "" {
		stakeMON = s.defaults.VoteMON
	}
	stakeWei, ok := mon.Parse(stakeMON)
	if !ok {
		return nil, ErrInvalidStake
	}

	unlock, err := s.locks.LockContext(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := traces.StartSpan(ctx, "arena.vote",
		traces.GroupID(req.GroupID), traces.ArenaID(arena.ArenaID), traces.Side(side))
	defer span.End()

	start := time.Now()
	result, err := s.contract.Vote(ctx, arena.ArenaID, side, stakeWei)
	if err != nil {
		metrics.ChainCallsTotal.WithLabelValues("vote", "error").Inc()
		return nil, err
	}
	metrics.ChainCallsTotal.WithLabelValues("vote", "ok").Inc()
	metrics.ChainConfirmDuration.WithLabelValues("vote").Observe(time.Since(start).Seconds())

	if err := s.store.AppendVoteTx(ctx, req.GroupID, VoteTx{
		TxHash:    result.TxHash,
		Side:      chain.StanceFromSide(result.Side),
		Stake:     mon.Format(result.Stake),
		Timestamp: time.Now(),
	}); err != nil {
		s.logger.Error("vote confirmed but mirror append failed", "group_id", req.GroupID, "error", err)
		return nil, err
	}

	s.logger.Info("on-chain vote cast",
		"group_id", req.GroupID,
		"arena_id", arena.ArenaID,
		"side", req.Side,
		"stake", mon.Format(result.Stake),
		"tx", result.TxHash,
	)
	return result, nil
}

// Finalize settles the arena. The finalization record is written exactly
// once; a repeat call fails locally before touching the ledger. On success
// the debate group is archived and the winner credited.
func (s *Service) Finalize(ctx context.Context, groupID string) (*chain.FinalizeResult, error) {
	arena, err := s.store.GetArena(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if arena.IsFinalized() {
		return nil, ErrAlreadyFinalized
	}

	unlock, err := s.locks.LockContext(ctx, groupID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := traces.StartSpan(ctx, "arena.finalize",
		traces.GroupID(groupID), traces.ArenaID(arena.ArenaID))
	defer span.End()

	start := time.Now()
	result, err := s.contract.Finalize(ctx, arena.ArenaID)
	if err != nil {
		metrics.ChainCallsTotal.WithLabelValues("finalize", "error").Inc()
		return nil, err
	}
	metrics.ChainCallsTotal.WithLabelValues("finalize", "ok").Inc()
	metrics.ChainConfirmDuration.WithLabelValues("finalize").Observe(time.Since(start).Seconds())

	fin := Finalization{
		WinningSide: chain.StanceFromSide(result.WinningSide),
		Winner:      result.Winner,
		Payout:      mon.Format(result.Payout),
		TxHash:      result.TxHash,
		Timestamp:   time.Now(),
	}
	if err := s.store.SetFinalized(ctx, groupID, fin); err != nil && !errors.Is(err, ErrAlreadyFinalized) {
		s.logger.Error("finalize confirmed but mirror persist failed", "group_id", groupID, "error", err)
		return nil, err
	}

	s.settle(ctx, groupID, fin)

	s.logger.Info("arena finalized",
		"group_id", groupID,
		"arena_id", arena.ArenaID,
		"winning_side", fin.WinningSide,
		"winner", fin.Winner,
		"payout", fin.Payout,
		"tx", result.TxHash,
	)
	return result, nil
}

// settle archives the debate and credits the winning agent. Both are
// best-effort: the finalization record is already durable.
func (s *Service) settle(ctx context.Context, groupID string, fin Finalization) {
	if err := s.debates.Archive(ctx, groupID); err != nil && !errors.Is(err, debate.ErrGroupNotFound) {
		s.logger.Warn("failed to archive settled group", "group_id", groupID, "error", err)
	}

	if s.events != nil {
		s.events.ArenaFinalized(groupID, fin.WinningSide, fin.Winner, fin.Payout)
	}

	if s.agents == nil || fin.Winner == "" {
		return
	}
	winner, err := s.agents.GetAgentByWallet(ctx, fin.Winner)
	if err != nil {
		return
	}
	if err := s.agents.UpdateAgentStats(ctx, winner.AgentID, func(st *registry.AgentStats) {
		st.ArenasWon++
	}); err != nil {
		s.logger.Warn("failed to credit winner", "agent_id", winner.AgentID, "error", err)
	}
}

// Refresh reads the ledger's live arena snapshot. Pure: it never mutates
// the mirror, and callers decide whether to trust it over the cache.
func (s *Service) Refresh(ctx context.Context, arenaID uint64) (*LiveState, error) {
	state, err := s.contract.GetArena(ctx, arenaID)
	if err != nil {
		return nil, err
	}
	return liveState(state), nil
}

func liveState(state *chain.ArenaState) *LiveState {
	return &LiveState{
		ArenaID:     state.ArenaID,
		StakeAmount: mon.Format(state.StakeAmount),
		EndTime:     int64(state.EndTime),
		ProDebater:  state.ProDebater,
		ConDebater:  state.ConDebater,
		ProVotes:    mon.Format(state.ProVotes),
		ConVotes:    mon.Format(state.ConVotes),
		TotalPot:    mon.Format(state.TotalPot),
		Status:      chain.StatusLabel(state.Status),
		Winner:      zeroAddressBlank(state.Winner),
	}
}

const zeroAddress = "0x0000000000000000000000000000000000000000"

func zeroAddressBlank(addr string) string {
	if addr == zeroAddress {
		return ""
	}
	return addr
}

// Status returns the mirror record plus a best-effort live ledger read.
// A failing RPC degrades to the cached mirror instead of erroring.
func (s *Service) Status(ctx context.Context, groupID string) (*Status, error) {
	if _, err := s.debates.GetGroupInfo(ctx, groupID); err != nil {
		if errors.Is(err, debate.ErrGroupNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	status := &Status{
		GroupID:     groupID,
		SignerReady: s.contract.Address() != "",
	}

	arena, err := s.store.GetArena(ctx, groupID)
	if errors.Is(err, ErrArenaNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, err
	}

	status.HasArena = true
	status.Arena = arena
	status.ExplorerTx = s.explorer.TxURL(arena.TxHash)

	if live, err := s.Refresh(ctx, arena.ArenaID); err == nil {
		status.OnChain = live
	} else {
		s.logger.Warn("live arena read failed, serving cached mirror",
			"group_id", groupID, "arena_id", arena.ArenaID, "error", err)
	}

	return status, nil
}
