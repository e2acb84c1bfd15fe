// Reconciliation watcher. Ledger transactions are non-cancelable: a
// confirmation-wait timeout or a crash between confirmation and persist
// leaves the mirror behind the ledger. The watcher scans ArenaCreated and
// ArenaFinalized events and writes the records the happy path missed.
package arena

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/monclaw/arena/internal/chain"
	"github.com/monclaw/arena/internal/debate"
	"github.com/monclaw/arena/internal/metrics"
	"github.com/monclaw/arena/internal/mon"
	"github.com/monclaw/arena/internal/retry"
)

// EventSource is the slice of the chain client the watcher scans with.
type EventSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterArenaEvents(ctx context.Context, fromBlock, toBlock uint64) ([]chain.ArenaEvent, error)
}

// WatcherConfig for the reconciliation watcher
type WatcherConfig struct {
	PollInterval time.Duration
	StartBlock   uint64 // 0 = resume from checkpoint, or latest
	ContractAddr string
}

// DefaultWatcherConfig returns sensible defaults
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		PollInterval: 15 * time.Second,
	}
}

// Watcher repairs mirror drift from contract events.
type Watcher struct {
	source  EventSource
	store   Store
	debates DebateDirectory
	config  WatcherConfig
	logger  *slog.Logger

	// Track processed events
	processed map[string]bool
	mu        sync.Mutex

	lastBlock uint64

	stop chan struct{}
	done chan struct{}
}

// NewWatcher creates a reconciliation watcher
func NewWatcher(source EventSource, store Store, debates DebateDirectory, cfg WatcherConfig, logger *slog.Logger) *Watcher {
	return &Watcher{
		source:    source,
		store:     store,
		debates:   debates,
		config:    cfg,
		logger:    logger,
		processed: make(map[string]bool),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins the reconciliation loop
func (w *Watcher) Start(ctx context.Context) error {
	w.lastBlock = w.config.StartBlock
	if w.lastBlock == 0 {
		if cp, err := w.store.Checkpoint(ctx); err == nil && cp > 0 {
			w.lastBlock = cp
		}
	}
	if w.lastBlock == 0 {
		block, err := w.source.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("failed to get block number: %w", err)
		}
		w.lastBlock = block
	}

	w.logger.Info("reconciliation watcher started",
		"contract", w.config.ContractAddr,
		"startBlock", w.lastBlock,
	)

	go w.pollLoop(ctx)
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Watcher) pollLoop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			if err := w.Scan(ctx); err != nil {
				w.logger.Error("reconciliation scan failed", "error", err)
			}
		}
	}
}

// Scan checks new blocks for arena events and repairs the mirror. Exposed
// so operators can trigger a scan outside the poll cadence.
func (w *Watcher) Scan(ctx context.Context) error {
	currentBlock, err := w.source.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to get block number: %w", err)
	}

	// Nothing new
	if currentBlock <= w.lastBlock {
		return nil
	}

	// Transient RPC errors are retried; the scan aborts only when the
	// node stays unreachable, and the next tick picks up from lastBlock.
	var events []chain.ArenaEvent
	err = retry.Do(ctx, 3, 500*time.Millisecond, func() error {
		var ferr error
		events, ferr = w.source.FilterArenaEvents(ctx, w.lastBlock+1, currentBlock)
		return ferr
	})
	if err != nil {
		return fmt.Errorf("failed to filter events: %w", err)
	}

	// Track the lowest block with a failed event so the checkpoint never
	// advances past it: the block must be re-fetched on the next scan or
	// a transient store error would drop the repair permanently.
	var failed bool
	var minFailedBlock uint64
	for i := range events {
		if err := w.processEvent(ctx, &events[i]); err != nil {
			w.logger.Error("failed to process event",
				"event", events[i].Name,
				"arena_id", events[i].ArenaID,
				"tx", events[i].TxHash,
				"error", err,
			)
			if !failed || events[i].BlockNumber < minFailedBlock {
				minFailedBlock = events[i].BlockNumber
			}
			failed = true
		}
	}

	advanceTo := currentBlock
	if failed {
		if minFailedBlock == 0 {
			return nil // block unknown, re-scan the whole range next tick
		}
		if minFailedBlock-1 < advanceTo {
			advanceTo = minFailedBlock - 1
		}
	}
	if advanceTo <= w.lastBlock {
		return nil
	}

	w.lastBlock = advanceTo
	if err := w.store.SetCheckpoint(ctx, advanceTo); err != nil {
		w.logger.Warn("failed to persist watcher checkpoint", "block", advanceTo, "error", err)
	}
	return nil
}

func (w *Watcher) processEvent(ctx context.Context, ev *chain.ArenaEvent) error {
	key := ev.TxHash + ":" + ev.Name

	// Skip if already processed
	w.mu.Lock()
	if w.processed[key] {
		w.mu.Unlock()
		return nil
	}
	w.processed[key] = true
	w.mu.Unlock()

	// On failure, unmark so the event is retried on the next scan.
	var succeeded bool
	defer func() {
		if !succeeded {
			w.mu.Lock()
			delete(w.processed, key)
			w.mu.Unlock()
		}
	}()

	var err error
	switch ev.Name {
	case chain.EventArenaCreated:
		err = w.repairCreated(ctx, ev)
	case chain.EventArenaFinalized:
		err = w.repairFinalized(ctx, ev)
	}
	if err != nil {
		return err
	}

	succeeded = true
	return nil
}

// repairCreated persists a mirror record for a confirmed arena the happy
// path never recorded. The owning group is found by matching the creation
// event's topic hash against groups that have no arena yet.
func (w *Watcher) repairCreated(ctx context.Context, ev *chain.ArenaEvent) error {
	if _, err := w.store.GetArenaByID(ctx, ev.ArenaID); err == nil {
		return nil // mirror already has it
	} else if !errors.Is(err, ErrArenaNotFound) {
		return err
	}

	groups, err := w.debates.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	var owner *debate.GroupInfo
	for _, g := range groups {
		if chain.TopicHash(g.Topic) != ev.Created.TopicHash {
			continue
		}
		if _, err := w.store.GetArena(ctx, g.GroupID); errors.Is(err, ErrArenaNotFound) {
			owner = g
			break
		}
	}
	if owner == nil {
		w.logger.Info("arena event matches no local group, skipping",
			"arena_id", ev.ArenaID, "tx", ev.TxHash)
		return nil
	}

	arena := &OnChainArena{
		GroupID:         owner.GroupID,
		ArenaID:         ev.ArenaID,
		TxHash:          ev.TxHash,
		ContractAddress: w.config.ContractAddr,
		StakeAmount:     mon.Format(ev.Created.StakeAmount),
		EndTime:         int64(ev.Created.EndTime),
		CreatedAt:       time.Now(),
	}
	if err := w.store.CreateArena(ctx, arena); err != nil {
		if errors.Is(err, ErrArenaExists) {
			return nil // lost a race with the happy path
		}
		return err
	}

	metrics.MirrorRepairsTotal.Inc()
	w.logger.Info("repaired missing arena record",
		"group_id", owner.GroupID,
		"arena_id", ev.ArenaID,
		"tx", ev.TxHash,
	)
	return nil
}

// repairFinalized writes the finalization record for an arena the ledger
// settled without the mirror noticing, and archives its group.
func (w *Watcher) repairFinalized(ctx context.Context, ev *chain.ArenaEvent) error {
	arena, err := w.store.GetArenaByID(ctx, ev.ArenaID)
	if err != nil {
		if errors.Is(err, ErrArenaNotFound) {
			return nil // not our arena
		}
		return err
	}
	if arena.IsFinalized() {
		return nil
	}

	err = w.store.SetFinalized(ctx, arena.GroupID, Finalization{
		WinningSide: chain.StanceFromSide(ev.Finalized.WinningSide),
		Winner:      ev.Finalized.Winner,
		Payout:      mon.Format(ev.Finalized.Payout),
		TxHash:      ev.TxHash,
		Timestamp:   time.Now(),
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			return nil
		}
		return err
	}

	if err := w.debates.Archive(ctx, arena.GroupID); err != nil && !errors.Is(err, debate.ErrGroupNotFound) {
		w.logger.Warn("failed to archive settled group", "group_id", arena.GroupID, "error", err)
	}

	metrics.MirrorRepairsTotal.Inc()
	w.logger.Info("repaired missing finalization",
		"group_id", arena.GroupID,
		"arena_id", ev.ArenaID,
		"winning_side", chain.StanceFromSide(ev.Finalized.WinningSide),
		"tx", ev.TxHash,
	)
	return nil
}
