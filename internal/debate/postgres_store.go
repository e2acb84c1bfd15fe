package debate

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
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

func (p *PostgresStore) CreateGroup(ctx context.Context, group *Group) error {
	if group.Members == nil {
		group.Members = []string{}
	}
	if group.Stances == nil {
		group.Stances = make(map[string]string)
	}
	group.CreatedAt = time.Now()

	members, err := json.Marshal(group.Members)
	if err != nil {
		return fmt.Errorf("failed to marshal members: %w", err)
	}
	stances, err := json.Marshal(group.Stances)
	if err != nil {
		return fmt.Errorf("failed to marshal stances: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO groups (group_id, topic, members, stances, archived, created_at)
		VALUES ($1, $2, $3, $4, false, $5)
	`, group.GroupID, group.Topic, members, stances, group.CreatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrGroupExists
		}
		return fmt.Errorf("failed to create group: %w", err)
	}

	return nil
}

func (p *PostgresStore) GetGroup(ctx context.Context, groupID string) (*Group, error) {
	group, err := scanGroup(p.db.QueryRowContext(ctx, `
		SELECT group_id, topic, members, stances, archived, created_at, archived_at
		FROM groups WHERE group_id = $1
	`, groupID))
	if err == sql.ErrNoRows {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGroup(row rowScanner) (*Group, error) {
	var group Group
	var members, stances []byte
	var archivedAt sql.NullTime

	err := row.Scan(&group.GroupID, &group.Topic, &members, &stances,
		&group.Archived, &group.CreatedAt, &archivedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(members, &group.Members); err != nil {
		return nil, fmt.Errorf("failed to unmarshal members: %w", err)
	}
	if err := json.Unmarshal(stances, &group.Stances); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stances: %w", err)
	}
	if archivedAt.Valid {
		t := archivedAt.Time
		group.ArchivedAt = &t
	}
	return &group, nil
}

func (p *PostgresStore) UpdateGroup(ctx context.Context, group *Group) error {
	members, err := json.Marshal(group.Members)
	if err != nil {
		return fmt.Errorf("failed to marshal members: %w", err)
	}
	stances, err := json.Marshal(group.Stances)
	if err != nil {
		return fmt.Errorf("failed to marshal stances: %w", err)
	}

	var archivedAt interface{}
	if group.ArchivedAt != nil {
		archivedAt = *group.ArchivedAt
	}

	result, err := p.db.ExecContext(ctx, `
		UPDATE groups SET topic = $1, members = $2, stances = $3, archived = $4, archived_at = $5
		WHERE group_id = $6
	`, group.Topic, members, stances, group.Archived, archivedAt, group.GroupID)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrGroupNotFound
	}

	return nil
}

func (p *PostgresStore) ListGroups(ctx context.Context) ([]*Group, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT group_id, topic, members, stances, archived, created_at, archived_at
		FROM groups ORDER BY group_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []*Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	return groups, rows.Err()
}

// AppendMessage assigns the next per-group message ID inside a transaction.
// The service serializes writers per group, so MAX+1 cannot race within a
// single process; the composite primary key catches anything else.
func (p *PostgresStore) AppendMessage(ctx context.Context, msg *Message) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM groups WHERE group_id = $1)
	`, msg.GroupID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check group: %w", err)
	}
	if !exists {
		return ErrGroupNotFound
	}

	msg.CreatedAt = time.Now()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO messages (group_id, id, agent_id, agent_name, type, content, reply_to, score, created_at)
		SELECT $1, COALESCE(MAX(id), 0) + 1, $2, $3, $4, $5, $6, 0, $7
		FROM messages WHERE group_id = $1
		RETURNING id
	`, msg.GroupID, msg.AgentID, msg.AgentName, msg.Type, msg.Content, msg.ReplyTo, msg.CreatedAt).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	return tx.Commit()
}

func (p *PostgresStore) GetMessage(ctx context.Context, groupID string, messageID int64) (*Message, error) {
	msg, err := scanMessage(p.db.QueryRowContext(ctx, `
		SELECT group_id, id, agent_id, agent_name, type, content, reply_to, score, created_at
		FROM messages WHERE group_id = $1 AND id = $2
	`, groupID, messageID))
	if err == sql.ErrNoRows {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

func scanMessage(row rowScanner) (*Message, error) {
	var msg Message
	var replyTo sql.NullInt64

	err := row.Scan(&msg.GroupID, &msg.ID, &msg.AgentID, &msg.AgentName,
		&msg.Type, &msg.Content, &replyTo, &msg.Score, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	if replyTo.Valid {
		v := replyTo.Int64
		msg.ReplyTo = &v
	}
	return &msg, nil
}

func (p *PostgresStore) ListMessages(ctx context.Context, groupID string, sinceID int64) ([]Message, error) {
	var exists bool
	if err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM groups WHERE group_id = $1)
	`, groupID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check group: %w", err)
	}
	if !exists {
		return nil, ErrGroupNotFound
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT group_id, id, agent_id, agent_name, type, content, reply_to, score, created_at
		FROM messages WHERE group_id = $1 AND id > $2 ORDER BY id ASC
	`, groupID, sinceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *msg)
	}

	return messages, rows.Err()
}

// AddVote inserts into the vote ledger and bumps the message score in one
// transaction. A unique violation on the ledger key means the voter already
// voted; the stored score is returned untouched in that case.
func (p *PostgresStore) AddVote(ctx context.Context, rec *VoteRecord, delta int64) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var score int64
	err = tx.QueryRowContext(ctx, `
		SELECT score FROM messages WHERE group_id = $1 AND id = $2 FOR UPDATE
	`, rec.GroupID, rec.MessageID).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, ErrMessageNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load message score: %w", err)
	}

	rec.CreatedAt = time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO votes (group_id, message_id, voter_agent_id, vote_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.GroupID, rec.MessageID, rec.VoterAgentID, rec.VoteType, rec.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return score, ErrAlreadyVoted
		}
		return 0, fmt.Errorf("failed to record vote: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE messages SET score = score + $1 WHERE group_id = $2 AND id = $3
		RETURNING score
	`, delta, rec.GroupID, rec.MessageID).Scan(&score)
	if err != nil {
		return 0, fmt.Errorf("failed to update score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit vote: %w", err)
	}
	return score, nil
}

func (p *PostgresStore) ListVotes(ctx context.Context, groupID string, messageID int64) ([]VoteRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT group_id, message_id, voter_agent_id, vote_type, created_at
		FROM votes WHERE group_id = $1 AND message_id = $2 ORDER BY voter_agent_id ASC
	`, groupID, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var votes []VoteRecord
	for rows.Next() {
		var rec VoteRecord
		if err := rows.Scan(&rec.GroupID, &rec.MessageID, &rec.VoterAgentID, &rec.VoteType, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, rec)
	}

	return votes, rows.Err()
}
