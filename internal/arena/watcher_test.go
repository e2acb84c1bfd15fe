package arena

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monclaw/arena/internal/chain"
	"github.com/monclaw/arena/internal/mon"
)

// stubEvents implements EventSource from a canned event list.
type stubEvents struct {
	block  uint64
	events []chain.ArenaEvent
	scans  int
}

func (s *stubEvents) BlockNumber(ctx context.Context) (uint64, error) {
	return s.block, nil
}

func (s *stubEvents) FilterArenaEvents(ctx context.Context, fromBlock, toBlock uint64) ([]chain.ArenaEvent, error) {
	s.scans++
	var out []chain.ArenaEvent
	for _, ev := range s.events {
		if ev.BlockNumber >= fromBlock && ev.BlockNumber <= toBlock {
			out = append(out, ev)
		}
	}
	return out, nil
}

func createdEvent(arenaID uint64, topic string, block uint64) chain.ArenaEvent {
	stake, _ := mon.Parse("0.01")
	return chain.ArenaEvent{
		Name:        chain.EventArenaCreated,
		ArenaID:     arenaID,
		BlockNumber: block,
		TxHash:      "0xcreate1",
		Created: &chain.CreateResult{
			ArenaID:     arenaID,
			TopicHash:   chain.TopicHash(topic),
			StakeAmount: stake,
			EndTime:     uint64(time.Now().Add(time.Hour).Unix()),
		},
	}
}

func finalizedEvent(arenaID uint64, block uint64) chain.ArenaEvent {
	payout, _ := mon.Parse("0.02")
	return chain.ArenaEvent{
		Name:        chain.EventArenaFinalized,
		ArenaID:     arenaID,
		BlockNumber: block,
		TxHash:      "0xfinal1",
		Finalized: &chain.FinalizeResult{
			ArenaID:     arenaID,
			WinningSide: chain.SideCon,
			Winner:      "0x4444444444444444444444444444444444444444",
			Payout:      payout,
		},
	}
}

func newTestWatcher(source EventSource, store Store, debates DebateDirectory, startBlock uint64) *Watcher {
	cfg := DefaultWatcherConfig()
	cfg.StartBlock = startBlock
	cfg.ContractAddr = "0x1111111111111111111111111111111111111111"
	return NewWatcher(source, store, debates, cfg, testLogger())
}

func TestWatcher_RepairsMissingArena(t *testing.T) {
	debates := newStubDebates("g1")
	source := &stubEvents{
		block:  20,
		events: []chain.ArenaEvent{createdEvent(7, "topic for g1", 15)},
	}
	store := NewMemoryStore()
	w := newTestWatcher(source, store, debates, 10)
	w.lastBlock = 10

	require.NoError(t, w.Scan(context.Background()))

	arena, err := store.GetArena(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), arena.ArenaID)
	assert.Equal(t, "0.01", arena.StakeAmount)
	assert.Equal(t, "0xcreate1", arena.TxHash)

	// The checkpoint advanced.
	cp, err := store.Checkpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(20), cp)
}

// flakyStore fails CreateArena a set number of times before delegating.
type flakyStore struct {
	*MemoryStore
	createFails int
}

func (f *flakyStore) CreateArena(ctx context.Context, arena *OnChainArena) error {
	if f.createFails > 0 {
		f.createFails--
		return errors.New("store unavailable")
	}
	return f.MemoryStore.CreateArena(ctx, arena)
}

func TestWatcher_RetriesFailedRepairNextScan(t *testing.T) {
	ctx := context.Background()
	debates := newStubDebates("tech")
	source := &stubEvents{
		block:  10,
		events: []chain.ArenaEvent{createdEvent(7, "topic for tech", 10)},
	}
	store := &flakyStore{MemoryStore: NewMemoryStore(), createFails: 1}
	w := newTestWatcher(source, store, debates, 5)
	w.lastBlock = 5

	// First scan hits the store failure. The checkpoint must stop short
	// of the failed event's block so the repair is not dropped.
	require.NoError(t, w.Scan(ctx))
	_, err := store.GetArena(ctx, "tech")
	require.ErrorIs(t, err, ErrArenaNotFound)
	assert.Equal(t, uint64(9), w.lastBlock)
	cp, err := store.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), cp)

	// The next scan re-fetches block 10 and completes the repair.
	source.block = 11
	require.NoError(t, w.Scan(ctx))
	arena, err := store.GetArena(ctx, "tech")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), arena.ArenaID)

	cp, err = store.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), cp)
}

func TestWatcher_SkipsKnownArena(t *testing.T) {
	debates := newStubDebates("g1")
	source := &stubEvents{
		block:  20,
		events: []chain.ArenaEvent{createdEvent(7, "topic for g1", 15)},
	}
	store := NewMemoryStore()
	require.NoError(t, store.CreateArena(context.Background(), &OnChainArena{
		GroupID: "g1", ArenaID: 7, TxHash: "0xoriginal", StakeAmount: "0.01",
	}))

	w := newTestWatcher(source, store, debates, 10)
	w.lastBlock = 10
	require.NoError(t, w.Scan(context.Background()))

	arena, err := store.GetArena(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "0xoriginal", arena.TxHash, "existing mirror record untouched")
}

func TestWatcher_SkipsUnknownTopic(t *testing.T) {
	debates := newStubDebates("g1")
	source := &stubEvents{
		block:  20,
		events: []chain.ArenaEvent{createdEvent(7, "some other topic", 15)},
	}
	store := NewMemoryStore()
	w := newTestWatcher(source, store, debates, 10)
	w.lastBlock = 10

	require.NoError(t, w.Scan(context.Background()))
	assert.Equal(t, 0, mustLen(t, store, context.Background()))
}

func TestWatcher_RepairsMissingFinalization(t *testing.T) {
	debates := newStubDebates("g1")
	source := &stubEvents{
		block:  30,
		events: []chain.ArenaEvent{finalizedEvent(7, 25)},
	}
	store := NewMemoryStore()
	require.NoError(t, store.CreateArena(context.Background(), &OnChainArena{
		GroupID: "g1", ArenaID: 7, TxHash: "0xaaa", StakeAmount: "0.01",
	}))

	w := newTestWatcher(source, store, debates, 20)
	w.lastBlock = 20
	require.NoError(t, w.Scan(context.Background()))

	arena, err := store.GetArena(context.Background(), "g1")
	require.NoError(t, err)
	require.True(t, arena.IsFinalized())
	assert.Equal(t, "con", arena.Finalized.WinningSide)
	assert.Equal(t, "0.02", arena.Finalized.Payout)
	assert.Equal(t, []string{"g1"}, debates.archived)

	// A rescan of the same event is a no-op.
	source.block = 31
	w.lastBlock = 20
	require.NoError(t, w.Scan(context.Background()))
	assert.Equal(t, []string{"g1"}, debates.archived)
}

func TestWatcher_NoNewBlocks(t *testing.T) {
	source := &stubEvents{block: 10}
	store := NewMemoryStore()
	w := newTestWatcher(source, store, newStubDebates(), 10)
	w.lastBlock = 10

	require.NoError(t, w.Scan(context.Background()))
	assert.Equal(t, 0, source.scans, "no filter call when the chain has not advanced")
}
