package arena

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
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

func (p *PostgresStore) CreateArena(ctx context.Context, arena *OnChainArena) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO arenas (group_id, arena_id, tx_hash, contract_address, stake_amount, end_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, arena.GroupID, arena.ArenaID, arena.TxHash, arena.ContractAddress,
		arena.StakeAmount, arena.EndTime, arena.CreatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrArenaExists
		}
		return fmt.Errorf("failed to create arena: %w", err)
	}

	return nil
}

func (p *PostgresStore) GetArena(ctx context.Context, groupID string) (*OnChainArena, error) {
	return p.getArenaWhere(ctx, "group_id = $1", groupID)
}

func (p *PostgresStore) GetArenaByID(ctx context.Context, arenaID uint64) (*OnChainArena, error) {
	return p.getArenaWhere(ctx, "arena_id = $1", arenaID)
}

func (p *PostgresStore) getArenaWhere(ctx context.Context, where string, arg interface{}) (*OnChainArena, error) {
	var arena OnChainArena
	var fin finalizedColumns

	err := p.db.QueryRowContext(ctx, `
		SELECT group_id, arena_id, tx_hash, contract_address, stake_amount, end_time, created_at,
		       finalized_side, finalized_winner, finalized_payout, finalized_tx_hash, finalized_at
		FROM arenas WHERE `+where,
		arg).Scan(
		&arena.GroupID, &arena.ArenaID, &arena.TxHash, &arena.ContractAddress,
		&arena.StakeAmount, &arena.EndTime, &arena.CreatedAt,
		&fin.side, &fin.winner, &fin.payout, &fin.txHash, &fin.at)

	if err == sql.ErrNoRows {
		return nil, ErrArenaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get arena: %w", err)
	}

	arena.Finalized = fin.record()
	if err := p.loadTxs(ctx, &arena); err != nil {
		return nil, err
	}
	return &arena, nil
}

type finalizedColumns struct {
	side   sql.NullString
	winner sql.NullString
	payout sql.NullString
	txHash sql.NullString
	at     sql.NullTime
}

func (f finalizedColumns) record() *Finalization {
	if !f.txHash.Valid {
		return nil
	}
	return &Finalization{
		WinningSide: f.side.String,
		Winner:      f.winner.String,
		Payout:      f.payout.String,
		TxHash:      f.txHash.String,
		Timestamp:   f.at.Time,
	}
}

func (p *PostgresStore) loadTxs(ctx context.Context, arena *OnChainArena) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT tx_hash, side, created_at FROM join_txs
		WHERE group_id = $1 ORDER BY created_at ASC, tx_hash ASC
	`, arena.GroupID)
	if err != nil {
		return fmt.Errorf("failed to load join txs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var tx JoinTx
		if err := rows.Scan(&tx.TxHash, &tx.Side, &tx.Timestamp); err != nil {
			return fmt.Errorf("failed to scan join tx: %w", err)
		}
		arena.JoinTxs = append(arena.JoinTxs, tx)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	voteRows, err := p.db.QueryContext(ctx, `
		SELECT tx_hash, side, stake, created_at FROM vote_txs
		WHERE group_id = $1 ORDER BY created_at ASC, tx_hash ASC
	`, arena.GroupID)
	if err != nil {
		return fmt.Errorf("failed to load vote txs: %w", err)
	}
	defer func() { _ = voteRows.Close() }()
	for voteRows.Next() {
		var tx VoteTx
		if err := voteRows.Scan(&tx.TxHash, &tx.Side, &tx.Stake, &tx.Timestamp); err != nil {
			return fmt.Errorf("failed to scan vote tx: %w", err)
		}
		arena.VoteTxs = append(arena.VoteTxs, tx)
	}
	return voteRows.Err()
}

func (p *PostgresStore) ListArenas(ctx context.Context) ([]*OnChainArena, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT group_id FROM arenas ORDER BY arena_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list arenas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groupIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan arena: %w", err)
		}
		groupIDs = append(groupIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	arenas := make([]*OnChainArena, 0, len(groupIDs))
	for _, id := range groupIDs {
		arena, err := p.GetArena(ctx, id)
		if err != nil {
			return nil, err
		}
		arenas = append(arenas, arena)
	}
	return arenas, nil
}

func (p *PostgresStore) AppendJoinTx(ctx context.Context, groupID string, tx JoinTx) error {
	result, err := p.db.ExecContext(ctx, `
		INSERT INTO join_txs (group_id, tx_hash, side, created_at)
		SELECT $1, $2, $3, $4 WHERE EXISTS (SELECT 1 FROM arenas WHERE group_id = $1)
	`, groupID, tx.TxHash, tx.Side, tx.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append join tx: %w", err)
	}
	return requireRow(result, ErrArenaNotFound)
}

func (p *PostgresStore) AppendVoteTx(ctx context.Context, groupID string, tx VoteTx) error {
	result, err := p.db.ExecContext(ctx, `
		INSERT INTO vote_txs (group_id, tx_hash, side, stake, created_at)
		SELECT $1, $2, $3, $4, $5 WHERE EXISTS (SELECT 1 FROM arenas WHERE group_id = $1)
	`, groupID, tx.TxHash, tx.Side, tx.Stake, tx.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append vote tx: %w", err)
	}
	return requireRow(result, ErrArenaNotFound)
}

func (p *PostgresStore) SetFinalized(ctx context.Context, groupID string, fin Finalization) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE arenas
		SET finalized_side = $1, finalized_winner = $2, finalized_payout = $3,
		    finalized_tx_hash = $4, finalized_at = $5
		WHERE group_id = $6 AND finalized_tx_hash IS NULL
	`, fin.WinningSide, fin.Winner, fin.Payout, fin.TxHash, fin.Timestamp, groupID)
	if err != nil {
		return fmt.Errorf("failed to finalize arena: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		// Either the arena is missing or already finalized.
		if _, err := p.GetArena(ctx, groupID); err != nil {
			return err
		}
		return ErrAlreadyFinalized
	}
	return nil
}

func (p *PostgresStore) Checkpoint(ctx context.Context) (uint64, error) {
	var block int64
	err := p.db.QueryRowContext(ctx, `
		SELECT last_block FROM watcher_checkpoint WHERE id = 1
	`).Scan(&block)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return uint64(block), nil
}

func (p *PostgresStore) SetCheckpoint(ctx context.Context, block uint64) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO watcher_checkpoint (id, last_block) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_block = GREATEST(watcher_checkpoint.last_block, EXCLUDED.last_block)
	`, int64(block))
	if err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}
	return nil
}

func requireRow(result sql.Result, missing error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return missing
	}
	return nil
}
