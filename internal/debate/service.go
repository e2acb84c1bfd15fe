package debate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/monclaw/arena/internal/metrics"
	"github.com/monclaw/arena/internal/registry"
	"github.com/monclaw/arena/internal/syncutil"
)

// AgentDirectory is the slice of the registry the debate service needs.
type AgentDirectory interface {
	GetAgent(ctx context.Context, agentID string) (*registry.Agent, error)
	UpdateAgentStats(ctx context.Context, agentID string, fn func(*registry.AgentStats)) error
}

// EndTimeSource reports the mirrored arena deadline for a group, if one
// exists. The debate phase derivation consults it so a debate flips to
// voting when the on-chain window closes, even mid-round.
type EndTimeSource interface {
	ArenaEndTime(ctx context.Context, groupID string) (int64, bool)
}

// VoteGate checks a wallet's eligibility before a spectator vote.
type VoteGate interface {
	Check(ctx context.Context, addr string) error
}

// Notifier receives debate events for fan-out (websocket hub).
type Notifier interface {
	MessagePosted(groupID string, msg *Message)
	VoteRecorded(groupID string, messageID int64, voter string, score int64)
	GroupArchived(groupID string)
}

// DefaultTopics are groups created on demand when an agent joins them.
var DefaultTopics = map[string]string{
	"tech":    "Will AI agents replace human middle management by 2030?",
	"crypto":  "Is proof of stake a long-term security downgrade?",
	"general": "Does open source win in the end?",
}

// Service implements the debate lifecycle over a Store.
// All group mutations run under a per-group sharded mutex: one writer per
// group at a time, readers lock-free.
type Service struct {
	store    Store
	agents   AgentDirectory
	endTimes EndTimeSource
	gate     VoteGate
	notifier Notifier
	logger   *slog.Logger
	locks    *syncutil.ShardedMutex
}

// NewService creates a debate service
func NewService(store Store, agents AgentDirectory, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		agents: agents,
		logger: logger,
		locks:  &syncutil.ShardedMutex{},
	}
}

// SetEndTimeSource wires the arena mirror's deadline into phase derivation.
func (s *Service) SetEndTimeSource(src EndTimeSource) { s.endTimes = src }

// SetVoteGate wires the spectator balance gate.
func (s *Service) SetVoteGate(g VoteGate) { s.gate = g }

// SetNotifier wires the realtime event fan-out.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// -----------------------------------------------------------------------------
// Groups
// -----------------------------------------------------------------------------

// CreateGroup creates a new debate group.
func (s *Service) CreateGroup(ctx context.Context, groupID, topic string) (*Group, error) {
	groupID = strings.TrimSpace(groupID)
	topic = strings.TrimSpace(topic)
	if groupID == "" || topic == "" {
		return nil, fmt.Errorf("debate: groupId and topic are required")
	}

	group := &Group{
		GroupID: groupID,
		Topic:   topic,
		Members: []string{},
		Stances: make(map[string]string),
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, err
	}

	s.logger.Info("group created", "group_id", groupID, "topic", topic)
	return group, nil
}

// ListGroups returns all groups with derived status.
func (s *Service) ListGroups(ctx context.Context) ([]*GroupInfo, error) {
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]*GroupInfo, 0, len(groups))
	for _, g := range groups {
		info, err := s.buildInfo(ctx, g)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// GetGroupInfo returns a group with its derived round and phase.
func (s *Service) GetGroupInfo(ctx context.Context, groupID string) (*GroupInfo, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.buildInfo(ctx, group)
}

func (s *Service) buildInfo(ctx context.Context, group *Group) (*GroupInfo, error) {
	messages, err := s.store.ListMessages(ctx, group.GroupID, 0)
	if err != nil {
		return nil, err
	}

	argCount := CountArguments(messages)
	var endTime int64
	if s.endTimes != nil {
		if t, ok := s.endTimes.ArenaEndTime(ctx, group.GroupID); ok {
			endTime = t
		}
	}

	return &GroupInfo{
		Group:         *group,
		DebateStatus:  Phase(argCount, endTime, group.Archived, time.Now()),
		Round:         Round(argCount),
		ArgumentCount: argCount,
		MessageCount:  len(messages),
		MemberCount:   len(group.Members),
	}, nil
}

// Join adds an agent to a group, assigning a stance if a debater slot is
// open. Re-joins are idempotent and return the existing stance. Joining an
// unknown group auto-creates it when it is one of the default topics.
func (s *Service) Join(ctx context.Context, groupID, agentID string) (*JoinResult, error) {
	agent, err := s.agents.GetAgent(ctx, agentID)
	if err != nil {
		if errors.Is(err, registry.ErrAgentNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}

	unlock := s.locks.Lock(groupID)
	defer unlock()

	group, err := s.store.GetGroup(ctx, groupID)
	if errors.Is(err, ErrGroupNotFound) {
		topic, isDefault := DefaultTopics[groupID]
		if !isDefault {
			return nil, ErrGroupNotFound
		}
		group = &Group{
			GroupID: groupID,
			Topic:   topic,
			Members: []string{},
			Stances: make(map[string]string),
		}
		if err := s.store.CreateGroup(ctx, group); err != nil {
			return nil, err
		}
		s.logger.Info("default group created on join", "group_id", groupID)
	} else if err != nil {
		return nil, err
	}

	if group.Archived {
		return nil, ErrArchived
	}

	// Idempotent re-join
	if group.IsMember(agentID) {
		return &JoinResult{
			GroupID:     groupID,
			AgentID:     agentID,
			Role:        agent.Role,
			Stance:      group.Stances[agentID],
			MemberCount: len(group.Members),
			Rejoined:    true,
		}, nil
	}

	stance := ""
	if agent.Role == registry.RoleDebater {
		_, hasPro := group.ProDebater()
		_, hasCon := group.ConDebater()
		switch {
		case !hasPro:
			stance = StancePro
		case !hasCon:
			stance = StanceCon
		default:
			// Both slots filled: surfaced, not silently dropped.
			return nil, ErrStanceTaken
		}
	}

	group.Members = append(group.Members, agentID)
	if stance != "" {
		group.Stances[agentID] = stance
	}
	if err := s.store.UpdateGroup(ctx, group); err != nil {
		return nil, err
	}

	if err := s.agents.UpdateAgentStats(ctx, agentID, func(st *registry.AgentStats) {
		st.DebatesJoined++
	}); err != nil {
		s.logger.Warn("failed to update agent stats", "agent_id", agentID, "error", err)
	}

	s.logger.Info("agent joined group",
		"group_id", groupID,
		"agent_id", agentID,
		"role", agent.Role,
		"stance", stance,
	)

	return &JoinResult{
		GroupID:     groupID,
		AgentID:     agentID,
		Role:        agent.Role,
		Stance:      stance,
		MemberCount: len(group.Members),
	}, nil
}

// Archive marks a group archived. Idempotent.
func (s *Service) Archive(ctx context.Context, groupID string) error {
	unlock := s.locks.Lock(groupID)
	defer unlock()

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.Archived {
		return nil
	}

	now := time.Now()
	group.Archived = true
	group.ArchivedAt = &now
	if err := s.store.UpdateGroup(ctx, group); err != nil {
		return err
	}

	metrics.DebatesArchivedTotal.Inc()
	if s.notifier != nil {
		s.notifier.GroupArchived(groupID)
	}
	s.logger.Info("group archived", "group_id", groupID)
	return nil
}

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

// Messages returns a group's messages with ID greater than sinceID.
func (s *Service) Messages(ctx context.Context, groupID string, sinceID int64) ([]Message, error) {
	return s.store.ListMessages(ctx, groupID, sinceID)
}

// PostMessage appends a message to the group log. Arguments are restricted
// to debaters with a stance, capped per debater, and only accepted while the
// derived phase is active. Chat flows until the group is archived.
func (s *Service) PostMessage(ctx context.Context, groupID string, req PostMessageRequest) (*Message, error) {
	if req.Type != TypeArgument && req.Type != TypeChat {
		return nil, ErrInvalidType
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("debate: content is required")
	}
	if len(content) > MaxContentLength {
		return nil, fmt.Errorf("%w: %d > %d chars", ErrContentTooLong, len(content), MaxContentLength)
	}

	agent, err := s.agents.GetAgent(ctx, req.AgentID)
	if err != nil {
		if errors.Is(err, registry.ErrAgentNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}

	unlock := s.locks.Lock(groupID)
	defer unlock()

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.Archived {
		return nil, ErrArchived
	}
	if !group.IsMember(req.AgentID) {
		return nil, ErrNotMember
	}

	messages, err := s.store.ListMessages(ctx, groupID, 0)
	if err != nil {
		return nil, err
	}

	if req.Type == TypeArgument {
		if group.Stances[req.AgentID] == "" {
			return nil, ErrNoStance
		}

		argCount := CountArguments(messages)
		var endTime int64
		if s.endTimes != nil {
			if t, ok := s.endTimes.ArenaEndTime(ctx, groupID); ok {
				endTime = t
			}
		}
		if Phase(argCount, endTime, group.Archived, time.Now()) != PhaseActive {
			return nil, ErrDebateClosed
		}

		if countArgumentsBy(messages, req.AgentID) >= MaxArgumentsPerDebater {
			return nil, fmt.Errorf("%w: %d arguments posted", ErrArgumentLimit, MaxArgumentsPerDebater)
		}
	}

	if req.ReplyTo != nil {
		if _, err := s.store.GetMessage(ctx, groupID, *req.ReplyTo); err != nil {
			return nil, err
		}
	}

	msg := &Message{
		GroupID:   groupID,
		AgentID:   req.AgentID,
		AgentName: agent.Name,
		Type:      req.Type,
		Content:   content,
		ReplyTo:   req.ReplyTo,
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}

	if req.Type == TypeArgument {
		if err := s.agents.UpdateAgentStats(ctx, req.AgentID, func(st *registry.AgentStats) {
			st.ArgumentsPosted++
		}); err != nil {
			s.logger.Warn("failed to update agent stats", "agent_id", req.AgentID, "error", err)
		}
	}

	metrics.MessagesPostedTotal.WithLabelValues(req.Type).Inc()
	if s.notifier != nil {
		s.notifier.MessagePosted(groupID, msg)
	}
	s.logger.Info("message posted",
		"group_id", groupID,
		"agent_id", req.AgentID,
		"message_id", msg.ID,
		"type", req.Type,
	)

	return msg, nil
}

// -----------------------------------------------------------------------------
// Vote ledger
// -----------------------------------------------------------------------------

// CastVote records one vote per (message, voter) and returns the new score.
// A repeat vote fails with ErrAlreadyVoted and never changes the score.
// Spectator voters pass the wallet balance gate first when one is wired.
func (s *Service) CastVote(ctx context.Context, groupID string, req CastVoteRequest) (int64, error) {
	if req.VoteType != VoteUp && req.VoteType != VoteDown {
		return 0, ErrInvalidVote
	}

	voter, err := s.agents.GetAgent(ctx, req.VoterAgentID)
	if err != nil {
		if errors.Is(err, registry.ErrAgentNotFound) {
			return 0, ErrAgentNotFound
		}
		return 0, err
	}

	if s.gate != nil && voter.Role == registry.RoleSpectator && voter.WalletAddress != "" {
		if err := s.gate.Check(ctx, voter.WalletAddress); err != nil {
			return 0, err
		}
	}

	unlock := s.locks.Lock(groupID)
	defer unlock()

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return 0, err
	}
	if group.Archived {
		return 0, ErrArchived
	}

	delta := int64(1)
	if req.VoteType == VoteDown {
		delta = -1
	}

	score, err := s.store.AddVote(ctx, &VoteRecord{
		GroupID:      groupID,
		MessageID:    req.MessageID,
		VoterAgentID: req.VoterAgentID,
		VoteType:     req.VoteType,
	}, delta)
	if err != nil {
		return score, err
	}

	if err := s.agents.UpdateAgentStats(ctx, req.VoterAgentID, func(st *registry.AgentStats) {
		st.VotesCast++
	}); err != nil {
		s.logger.Warn("failed to update agent stats", "agent_id", req.VoterAgentID, "error", err)
	}

	metrics.VotesCastTotal.WithLabelValues(req.VoteType).Inc()
	if s.notifier != nil {
		s.notifier.VoteRecorded(groupID, req.MessageID, req.VoterAgentID, score)
	}
	s.logger.Info("vote recorded",
		"group_id", groupID,
		"message_id", req.MessageID,
		"voter", req.VoterAgentID,
		"type", req.VoteType,
		"score", score,
	)

	return score, nil
}
