package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/monclaw/arena/internal/debate"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.DiscardHandler))
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: EventMessagePosted, GroupID: "tech", Timestamp: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventMessagePosted, EventVoteRecorded},
	}}

	messageEvent := &Event{Type: EventMessagePosted}
	voteEvent := &Event{Type: EventVoteRecorded}
	archiveEvent := &Event{Type: EventGroupArchived}

	if !h.shouldSend(client, messageEvent) {
		t.Error("Should receive message_posted events")
	}
	if !h.shouldSend(client, voteEvent) {
		t.Error("Should receive vote_recorded events")
	}
	if h.shouldSend(client, archiveEvent) {
		t.Error("Should NOT receive group_archived events")
	}
}

func TestShouldSend_GroupFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		GroupIDs: []string{"tech"},
	}}

	if !h.shouldSend(client, &Event{Type: EventMessagePosted, GroupID: "tech"}) {
		t.Error("Should receive events for watched group")
	}
	if h.shouldSend(client, &Event{Type: EventMessagePosted, GroupID: "crypto"}) {
		t.Error("Should NOT receive events for other groups")
	}
}

func TestShouldSend_CombinedFilters(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventArenaFinalized},
		GroupIDs:   []string{"tech"},
	}}

	if !h.shouldSend(client, &Event{Type: EventArenaFinalized, GroupID: "tech"}) {
		t.Error("Should receive matching type and group")
	}
	if h.shouldSend(client, &Event{Type: EventArenaFinalized, GroupID: "crypto"}) {
		t.Error("Group filter should still apply")
	}
	if h.shouldSend(client, &Event{Type: EventMessagePosted, GroupID: "tech"}) {
		t.Error("Type filter should still apply")
	}
}

// ---------------------------------------------------------------------------
// Notifier fan-out
// ---------------------------------------------------------------------------

func TestNotifierEventsReachClients(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	client := &Client{hub: h, send: make(chan []byte, 8), sub: Subscription{AllEvents: true}}
	h.register <- client

	h.MessagePosted("tech", &debate.Message{ID: 1, GroupID: "tech", Content: "hello"})
	h.VoteRecorded("tech", 1, "watcher", 1)
	h.GroupArchived("tech")

	for i := 0; i < 3; i++ {
		select {
		case <-client.send:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i+1)
		}
	}
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	h := testHub()
	// Run is not started: the broadcast channel fills and Broadcast must not block.
	for i := 0; i < 300; i++ {
		h.Broadcast(&Event{Type: EventMessagePosted, GroupID: "tech"})
	}
}

func TestStats(t *testing.T) {
	h := testHub()
	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("expected 0 connected clients, got %v", stats["connectedClients"])
	}
}
