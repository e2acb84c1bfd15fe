package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Compile-time interface check
var _ Store = (*PostgresStore)(nil)

func (p *PostgresStore) CreateAgent(ctx context.Context, agent *Agent) error {
	metadata, err := json.Marshal(agent.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal agent metadata: %w", err)
	}

	wallet := strings.ToLower(agent.WalletAddress)
	agent.WalletAddress = wallet

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO agents (agent_id, name, role, wallet_address, description, metadata, total_staked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, '0', $7, $7)
	`, agent.AgentID, agent.Name, agent.Role, wallet, agent.Description, metadata, time.Now())

	if err != nil {
		if strings.Contains(err.Error(), "agents_pkey") {
			return ErrAgentExists
		}
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrWalletTaken
		}
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return nil
}

func (p *PostgresStore) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	return p.getAgentWhere(ctx, "agent_id = $1", agentID)
}

func (p *PostgresStore) GetAgentByWallet(ctx context.Context, wallet string) (*Agent, error) {
	// Walletless agents share the empty string; never match on it.
	if wallet == "" {
		return nil, ErrAgentNotFound
	}
	return p.getAgentWhere(ctx, "wallet_address = $1", strings.ToLower(wallet))
}

func (p *PostgresStore) getAgentWhere(ctx context.Context, where string, arg interface{}) (*Agent, error) {
	var agent Agent
	var metadata []byte
	var lastActive sql.NullTime

	err := p.db.QueryRowContext(ctx, `
		SELECT agent_id, name, role, wallet_address, description, metadata,
		       debates_joined, arguments_posted, votes_cast, arenas_won, total_staked,
		       last_active, created_at, updated_at
		FROM agents WHERE `+where,
		arg).Scan(
		&agent.AgentID, &agent.Name, &agent.Role, &agent.WalletAddress, &agent.Description, &metadata,
		&agent.Stats.DebatesJoined, &agent.Stats.ArgumentsPosted, &agent.Stats.VotesCast,
		&agent.Stats.ArenasWon, &agent.Stats.TotalStaked,
		&lastActive, &agent.CreatedAt, &agent.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	if lastActive.Valid {
		agent.Stats.LastActive = lastActive.Time
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &agent.Metadata); err != nil {
			slog.Warn("failed to unmarshal agent metadata", "agentId", agent.AgentID, "error", err)
		}
	}

	return &agent, nil
}

func (p *PostgresStore) UpdateAgent(ctx context.Context, agent *Agent) error {
	metadata, err := json.Marshal(agent.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal agent metadata: %w", err)
	}

	result, err := p.db.ExecContext(ctx, `
		UPDATE agents SET name = $1, role = $2, wallet_address = $3, description = $4, metadata = $5, updated_at = NOW()
		WHERE agent_id = $6
	`, agent.Name, agent.Role, strings.ToLower(agent.WalletAddress), agent.Description, metadata, agent.AgentID)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrWalletTaken
		}
		return fmt.Errorf("failed to update agent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAgentNotFound
	}

	return nil
}

func (p *PostgresStore) ListAgents(ctx context.Context, query AgentQuery) ([]*Agent, error) {
	q := `
		SELECT agent_id, name, role, wallet_address, description, metadata,
		       debates_joined, arguments_posted, votes_cast, arenas_won, total_staked,
		       last_active, created_at, updated_at
		FROM agents`
	var args []interface{}

	if query.Role != "" {
		args = append(args, query.Role)
		q += " WHERE role = $1"
	}

	q += " ORDER BY arguments_posted DESC, agent_id ASC"

	if query.Limit == 0 {
		query.Limit = 100
	}
	args = append(args, query.Limit)
	q += fmt.Sprintf(" LIMIT $%d", len(args))
	if query.Offset > 0 {
		args = append(args, query.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var agents []*Agent
	for rows.Next() {
		var agent Agent
		var metadata []byte
		var lastActive sql.NullTime

		if err := rows.Scan(
			&agent.AgentID, &agent.Name, &agent.Role, &agent.WalletAddress, &agent.Description, &metadata,
			&agent.Stats.DebatesJoined, &agent.Stats.ArgumentsPosted, &agent.Stats.VotesCast,
			&agent.Stats.ArenasWon, &agent.Stats.TotalStaked,
			&lastActive, &agent.CreatedAt, &agent.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		if lastActive.Valid {
			agent.Stats.LastActive = lastActive.Time
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &agent.Metadata); err != nil {
				slog.Warn("failed to unmarshal agent metadata", "agentId", agent.AgentID, "error", err)
			}
		}
		agents = append(agents, &agent)
	}

	return agents, rows.Err()
}

func (p *PostgresStore) DeleteAgent(ctx context.Context, agentID string) error {
	result, err := p.db.ExecContext(ctx, `
		DELETE FROM agents WHERE agent_id = $1
	`, agentID)

	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAgentNotFound
	}

	return nil
}

func (p *PostgresStore) UpdateAgentStats(ctx context.Context, agentID string, fn func(*AgentStats)) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stats AgentStats
	var lastActive sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT debates_joined, arguments_posted, votes_cast, arenas_won, total_staked, last_active
		FROM agents WHERE agent_id = $1 FOR UPDATE
	`, agentID).Scan(&stats.DebatesJoined, &stats.ArgumentsPosted, &stats.VotesCast,
		&stats.ArenasWon, &stats.TotalStaked, &lastActive)
	if err == sql.ErrNoRows {
		return ErrAgentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load agent stats: %w", err)
	}
	if lastActive.Valid {
		stats.LastActive = lastActive.Time
	}

	fn(&stats)

	_, err = tx.ExecContext(ctx, `
		UPDATE agents
		SET debates_joined = $1, arguments_posted = $2, votes_cast = $3,
		    arenas_won = $4, total_staked = $5, last_active = NOW(), updated_at = NOW()
		WHERE agent_id = $6
	`, stats.DebatesJoined, stats.ArgumentsPosted, stats.VotesCast,
		stats.ArenasWon, stats.TotalStaked, agentID)
	if err != nil {
		return fmt.Errorf("failed to update agent stats: %w", err)
	}

	return tx.Commit()
}
