package eventlog_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mesgd/pkg/apperr"
	"mesgd/pkg/directory"
	"mesgd/pkg/eventlog"
	"mesgd/pkg/models"
	"mesgd/pkg/store"
)

func newFixture(t *testing.T) (*directory.Directory, *eventlog.Log) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	dir := directory.New(st)
	return dir, eventlog.New(st, dir)
}

func text(s string) models.Payload {
	return models.Payload{Type: models.PayloadText, Text: s}
}

func TestAppendAssignsContiguousSeqs(t *testing.T) {
	dir, log := newFixture(t)
	ctx := context.Background()
	conv, _ := dir.CreateConversation(ctx, []string{"alice", "bob"}, false, "", "")

	for i := 1; i <= 5; i++ {
		m, err := log.Append(ctx, conv.ID, "alice", text("msg"))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if m.Seq != uint64(i) {
			t.Fatalf("expected seq %d, got %d", i, m.Seq)
		}
		if len(m.ReadBy) != 1 || m.ReadBy[0] != "alice" {
			t.Fatalf("sender must seed readBy, got %v", m.ReadBy)
		}
	}
}

func TestAppendConcurrentTotalOrder(t *testing.T) {
	dir, log := newFixture(t)
	ctx := context.Background()
	conv, _ := dir.CreateConversation(ctx, []string{"alice", "bob", "carol"}, true, "load", "")

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	senders := []string{"alice", "bob", "carol"}
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := log.Append(ctx, conv.ID, senders[w%len(senders)], text("x")); err != nil {
					t.Errorf("append: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	msgs, err := log.ReadSince(ctx, conv.ID, 0, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != writers*perWriter {
		t.Fatalf("expected %d messages, got %d", writers*perWriter, len(msgs))
	}
	for i, m := range msgs {
		if m.Seq != uint64(i+1) {
			t.Fatalf("gap in sequence at index %d: got %d", i, m.Seq)
		}
		if i > 0 && m.TS < msgs[i-1].TS {
			t.Fatalf("timestamps not monotone at seq %d", m.Seq)
		}
	}
	s, err := dir.GetSummary(conv.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.LastSeq != uint64(writers*perWriter) {
		t.Fatalf("summary out of step with log: %d", s.LastSeq)
	}
}

func TestAppendRejections(t *testing.T) {
	dir, log := newFixture(t)
	ctx := context.Background()
	conv, _ := dir.CreateConversation(ctx, []string{"alice", "bob"}, false, "", "")

	if _, err := log.Append(ctx, "conv-missing", "alice", text("x")); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := log.Append(ctx, conv.ID, "mallory", text("x")); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	if _, err := log.Append(ctx, conv.ID, "alice", models.Payload{Type: models.PayloadText}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty payload, got %v", err)
	}
	if _, err := log.Append(ctx, conv.ID, "alice", models.Payload{Type: "poke"}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown type, got %v", err)
	}

	// Nothing must be visible after rejected appends.
	msgs, err := log.ReadSince(ctx, conv.ID, 0, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("rejected appends leaked %d messages", len(msgs))
	}
}

func TestReadSinceWindowAndLimit(t *testing.T) {
	dir, log := newFixture(t)
	ctx := context.Background()
	conv, _ := dir.CreateConversation(ctx, []string{"alice", "bob"}, false, "", "")
	for i := 0; i < 10; i++ {
		if _, err := log.Append(ctx, conv.ID, "alice", text("m")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	msgs, err := log.ReadSince(ctx, conv.ID, 4, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != 6 || msgs[0].Seq != 5 || msgs[5].Seq != 10 {
		t.Fatalf("unexpected window: %d messages, first %d", len(msgs), msgs[0].Seq)
	}

	msgs, err = log.ReadSince(ctx, conv.ID, 0, 3)
	if err != nil {
		t.Fatalf("read limited: %v", err)
	}
	if len(msgs) != 3 || msgs[2].Seq != 3 {
		t.Fatalf("limit not honored: %d messages", len(msgs))
	}

	msgs, err = log.ReadSince(ctx, conv.ID, 10, 0)
	if err != nil {
		t.Fatalf("read past head: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty window, got %d", len(msgs))
	}
}

func TestReactions(t *testing.T) {
	dir, log := newFixture(t)
	ctx := context.Background()
	conv, _ := dir.CreateConversation(ctx, []string{"alice", "bob"}, false, "", "")
	m, err := log.Append(ctx, conv.ID, "alice", text("react to me"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := log.React(ctx, m.ID, "👍", "bob")
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	if len(got.Reactions["👍"]) != 1 {
		t.Fatalf("reaction missing: %v", got.Reactions)
	}
	// Repeat is a no-op.
	got, err = log.React(ctx, m.ID, "👍", "bob")
	if err != nil {
		t.Fatalf("repeat react: %v", err)
	}
	if len(got.Reactions["👍"]) != 1 {
		t.Fatalf("repeat duplicated the reaction: %v", got.Reactions)
	}

	if _, err := log.React(ctx, m.ID, "👍", "mallory"); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}

	got, err = log.Unreact(ctx, m.ID, "👍", "bob")
	if err != nil {
		t.Fatalf("unreact: %v", err)
	}
	if len(got.Reactions["👍"]) != 0 {
		t.Fatalf("reaction not removed: %v", got.Reactions)
	}

	// Summary must be untouched by reactions.
	s, _ := dir.GetSummary(conv.ID)
	if s.LastSeq != 1 || s.Unread["bob"] != 1 {
		t.Fatalf("reactions disturbed the summary: %+v", s)
	}
}

type captureSink struct {
	mu   sync.Mutex
	msgs []*models.Message
}

func (c *captureSink) Publish(m *models.Message) {
	c.mu.Lock()
	c.msgs = append(c.msgs, m)
	c.mu.Unlock()
}

func TestAppendPublishesInOrder(t *testing.T) {
	dir, log := newFixture(t)
	ctx := context.Background()
	sink := &captureSink{}
	log.SetSink(sink)

	conv, _ := dir.CreateConversation(ctx, []string{"alice", "bob"}, false, "", "")
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if _, err := log.Append(ctx, conv.ID, "alice", text("n")); err != nil {
					t.Errorf("append: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.msgs) != 40 {
		t.Fatalf("expected 40 published messages, got %d", len(sink.msgs))
	}
	for i, m := range sink.msgs {
		if m.Seq != uint64(i+1) {
			t.Fatalf("publish order broken at index %d: seq %d", i, m.Seq)
		}
	}
}
