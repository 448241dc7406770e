package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"mesgd/pkg/apperr"
	"mesgd/pkg/directory"
	"mesgd/pkg/logger"
	"mesgd/pkg/models"
	"mesgd/pkg/store"
	"mesgd/pkg/telemetry"
	"mesgd/pkg/utils"
	"mesgd/pkg/validation"
)

// Sink receives every committed message; the hub implements it.
type Sink interface {
	Publish(*models.Message)
}

// Log is the append-only message record of every conversation. Sequence
// numbers are assigned under a per-conversation lock, and the message
// row, its id index, the conversation meta and the summary all commit in
// one synced batch, so a message is never observable without its
// summary update.
type Log struct {
	store *store.Store
	dir   *directory.Directory
	sink  Sink
	now   func() time.Time
}

// msgPointer is the value stored under the message-id index; it locates
// the single copy of the message inside its conversation run.
type msgPointer struct {
	Conversation string `json:"conversation"`
	Seq          uint64 `json:"seq"`
}

func New(st *store.Store, dir *directory.Directory) *Log {
	return &Log{store: st, dir: dir, now: time.Now}
}

// SetSink wires the fan-out destination for committed messages.
func (l *Log) SetSink(s Sink) { l.sink = s }

// WithClock overrides the time source; used by tests.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// Append validates, sequences and durably stores one message, then hands
// it to the sink. The sender is recorded in readBy immediately.
func (l *Log) Append(ctx context.Context, convID, senderID string, payload models.Payload) (*models.Message, error) {
	if senderID == "" {
		return nil, fmt.Errorf("%w: missing sender", apperr.ErrInvalidInput)
	}
	if err := validation.ValidateMessagePayload(payload); err != nil {
		telemetry.AppendsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	lock := l.store.ConvLock(convID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := l.dir.GetConversation(convID)
	if err != nil {
		telemetry.AppendsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		telemetry.AppendsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %s is not a participant of %s", apperr.ErrNotAuthorized, senderID, convID)
	}

	msg := &models.Message{
		ID:           utils.GenMessageID(),
		Conversation: convID,
		Seq:          conv.LastSeq + 1,
		Sender:       senderID,
		TS:           l.now().UTC().UnixNano(),
		Payload:      payload,
		ReadBy:       []string{senderID},
	}
	conv.LastSeq = msg.Seq

	b := l.store.NewBatch()
	if err := store.BatchSetJSON(b, store.MsgKey(convID, msg.Seq), msg); err != nil {
		return nil, err
	}
	if err := store.BatchSetJSON(b, store.MsgIDKey(msg.ID), msgPointer{Conversation: convID, Seq: msg.Seq}); err != nil {
		return nil, err
	}
	if err := store.BatchSetJSON(b, store.ConvMetaKey(convID), conv); err != nil {
		return nil, err
	}
	if err := l.dir.ApplyAppend(b, conv, msg); err != nil {
		return nil, err
	}
	if err := l.store.ApplyBatch(b, true); err != nil {
		telemetry.AppendsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	telemetry.AppendsTotal.WithLabelValues("ok").Inc()
	logger.Debug("message_appended", "conversation", convID, "seq", msg.Seq, "sender", senderID, "type", payload.Type)

	// Published while still holding the lock so every subscriber sees
	// sequence order.
	if l.sink != nil {
		l.sink.Publish(msg)
	}
	return msg, nil
}

// ReadSince returns messages with Seq > afterSeq in ascending sequence
// order. limit <= 0 means no limit.
func (l *Log) ReadSince(ctx context.Context, convID string, afterSeq uint64, limit int) ([]models.Message, error) {
	if _, err := l.dir.GetConversation(convID); err != nil {
		return nil, err
	}
	var out []models.Message
	err := l.store.IterRange(store.MsgKey(convID, afterSeq+1), store.MsgKey(convID, ^uint64(0)), func(_, value []byte) bool {
		var m models.Message
		if uerr := json.Unmarshal(value, &m); uerr != nil {
			return false
		}
		out = append(out, m)
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetMessage resolves a message by its id through the index.
func (l *Log) GetMessage(msgID string) (*models.Message, error) {
	var ptr msgPointer
	if err := l.store.GetJSON(store.MsgIDKey(msgID), &ptr); err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown message %s", apperr.ErrNotFound, msgID)
		}
		return nil, err
	}
	var m models.Message
	if err := l.store.GetJSON(store.MsgKey(ptr.Conversation, ptr.Seq), &m); err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown message %s", apperr.ErrNotFound, msgID)
		}
		return nil, err
	}
	return &m, nil
}

// React adds identity under the emoji on a message. Reactions do not
// touch the summary or unread counters. Adding the same reaction twice
// is a no-op.
func (l *Log) React(ctx context.Context, msgID, emoji, identity string) (*models.Message, error) {
	return l.mutateReactions(msgID, identity, func(m *models.Message) bool {
		return m.AddReaction(emoji, identity)
	})
}

// Unreact removes identity from the emoji on a message.
func (l *Log) Unreact(ctx context.Context, msgID, emoji, identity string) (*models.Message, error) {
	return l.mutateReactions(msgID, identity, func(m *models.Message) bool {
		return m.RemoveReaction(emoji, identity)
	})
}

func (l *Log) mutateReactions(msgID, identity string, mutate func(*models.Message) bool) (*models.Message, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: missing identity", apperr.ErrInvalidInput)
	}
	m, err := l.GetMessage(msgID)
	if err != nil {
		return nil, err
	}

	lock := l.store.ConvLock(m.Conversation)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock.
	m, err = l.GetMessage(msgID)
	if err != nil {
		return nil, err
	}
	conv, err := l.dir.GetConversation(m.Conversation)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(identity) {
		return nil, fmt.Errorf("%w: %s is not a participant of %s", apperr.ErrNotAuthorized, identity, m.Conversation)
	}
	if !mutate(m) {
		return m, nil
	}
	if err := l.store.SetJSON(store.MsgKey(m.Conversation, m.Seq), m, true); err != nil {
		return nil, err
	}
	return m, nil
}
