package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"

	"mesgd/pkg/apperr"
	"mesgd/pkg/logger"
	"mesgd/pkg/models"
	"mesgd/pkg/store"
	"mesgd/pkg/utils"
	"mesgd/pkg/validation"
)

// Directory maintains one summary record per conversation: the
// last-message snapshot and per-participant unread counters. Summaries
// are derived data, rebuildable from the event log by replay; they are
// refreshed inside the same batch as each accepted append.
type Directory struct {
	store *store.Store
	now   func() time.Time
}

func New(st *store.Store) *Directory {
	return &Directory{store: st, now: time.Now}
}

// WithClock overrides the time source; used by tests.
func (d *Directory) WithClock(now func() time.Time) *Directory {
	d.now = now
	return d
}

// CreateConversation registers a new conversation. For two-party
// conversations an existing one between the same pair is returned instead
// of creating a duplicate, mirroring "created on first message between two
// identities".
func (d *Directory) CreateConversation(ctx context.Context, participants []string, isGroup bool, groupName, groupPhoto string) (*models.Conversation, error) {
	if err := validation.ValidateParticipants(participants, isGroup); err != nil {
		return nil, err
	}

	if !isGroup {
		pairKey := store.DirectPairKey(participants[0], participants[1])
		if id, err := d.store.Get(pairKey); err == nil {
			return d.GetConversation(string(id))
		} else if !errors.Is(err, pebble.ErrNotFound) {
			return nil, err
		}
	}

	conv := &models.Conversation{
		ID:           utils.GenConversationID(),
		Participants: append([]string(nil), participants...),
		IsGroup:      isGroup,
		GroupName:    groupName,
		GroupPhoto:   groupPhoto,
		CreatedTS:    d.now().UTC().UnixNano(),
	}
	summary := &models.ConversationSummary{
		Conversation: conv.ID,
		Unread:       make(map[string]int, len(participants)),
	}
	for _, p := range participants {
		summary.Unread[p] = 0
	}

	b := d.store.NewBatch()
	if err := store.BatchSetJSON(b, store.ConvMetaKey(conv.ID), conv); err != nil {
		return nil, err
	}
	if err := store.BatchSetJSON(b, store.ConvSummaryKey(conv.ID), summary); err != nil {
		return nil, err
	}
	for _, p := range participants {
		if err := b.Set(store.UserConvKey(p, conv.ID), nil, nil); err != nil {
			return nil, err
		}
	}
	if !isGroup {
		if err := b.Set(store.DirectPairKey(participants[0], participants[1]), []byte(conv.ID), nil); err != nil {
			return nil, err
		}
	}
	if err := d.store.ApplyBatch(b, true); err != nil {
		return nil, err
	}
	logger.Info("conversation_created", "conversation", conv.ID, "participants", len(participants), "group", isGroup)
	return conv, nil
}

// GetConversation returns the conversation record.
func (d *Directory) GetConversation(convID string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := d.store.GetJSON(store.ConvMetaKey(convID), &conv); err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown conversation %s", apperr.ErrNotFound, convID)
		}
		return nil, err
	}
	return &conv, nil
}

// GetSummary returns the summary record; it always reflects the latest
// committed append.
func (d *Directory) GetSummary(convID string) (*models.ConversationSummary, error) {
	var s models.ConversationSummary
	if err := d.store.GetJSON(store.ConvSummaryKey(convID), &s); err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown conversation %s", apperr.ErrNotFound, convID)
		}
		return nil, err
	}
	return &s, nil
}

// ApplyAppend folds a freshly assigned message into the summary and stages
// the result on the batch. The caller holds the conversation lock and
// commits the batch together with the message itself.
func (d *Directory) ApplyAppend(b *pebble.Batch, conv *models.Conversation, msg *models.Message) error {
	summary, err := d.GetSummary(conv.ID)
	if err != nil {
		return err
	}
	summary.LastSender = msg.Sender
	summary.LastPreview = msg.Payload.Preview()
	summary.LastSeq = msg.Seq
	summary.LastTS = msg.TS
	if summary.Unread == nil {
		summary.Unread = make(map[string]int, len(conv.Participants))
	}
	for _, p := range conv.Participants {
		if p != msg.Sender {
			summary.Unread[p]++
		}
	}
	return store.BatchSetJSON(b, store.ConvSummaryKey(conv.ID), summary)
}

// MarkRead records that reader has seen every message up to uptoSeq. It
// adds the reader to readBy on messages sent by others, and resets the
// reader's unread counter to the count of newer messages from others.
// Calling it twice with the same uptoSeq is a no-op the second time;
// racing calls resolve by last-write-wins on uptoSeq.
func (d *Directory) MarkRead(ctx context.Context, convID, readerID string, uptoSeq uint64) error {
	conv, err := d.GetConversation(convID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(readerID) {
		return fmt.Errorf("%w: %s is not a participant of %s", apperr.ErrNotAuthorized, readerID, convID)
	}

	lock := d.store.ConvLock(convID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: an append may have landed meanwhile.
	conv, err = d.GetConversation(convID)
	if err != nil {
		return err
	}
	if uptoSeq > conv.LastSeq {
		uptoSeq = conv.LastSeq
	}

	b := d.store.NewBatch()
	touched := false
	var iterErr error
	err = d.store.IterRange(store.MsgKey(convID, 1), store.MsgKey(convID, uptoSeq+1), func(key, value []byte) bool {
		var m models.Message
		if uerr := json.Unmarshal(value, &m); uerr != nil {
			iterErr = uerr
			return false
		}
		if m.Sender != readerID && m.AddReader(readerID) {
			touched = true
			if serr := store.BatchSetJSON(b, append([]byte(nil), key...), &m); serr != nil {
				iterErr = serr
				return false
			}
		}
		return true
	})
	if err == nil {
		err = iterErr
	}
	if err != nil {
		return err
	}

	unread := 0
	if cerr := d.store.IterRange(store.MsgKey(convID, uptoSeq+1), store.MsgKey(convID, ^uint64(0)), func(_, value []byte) bool {
		var m models.Message
		if uerr := json.Unmarshal(value, &m); uerr == nil && m.Sender != readerID {
			unread++
		}
		return true
	}); cerr != nil {
		return cerr
	}

	summary, err := d.GetSummary(convID)
	if err != nil {
		return err
	}
	if summary.Unread == nil {
		summary.Unread = map[string]int{}
	}
	if summary.Unread[readerID] != unread {
		touched = true
	}
	summary.Unread[readerID] = unread
	if !touched {
		return nil
	}
	if err := store.BatchSetJSON(b, store.ConvSummaryKey(convID), summary); err != nil {
		return err
	}
	if err := d.store.ApplyBatch(b, true); err != nil {
		return err
	}
	logger.Debug("conversation_marked_read", "conversation", convID, "reader", readerID, "upto_seq", uptoSeq, "unread", unread)
	return nil
}

// ListForUser returns the summaries of every conversation userID belongs
// to, ordered by last-message timestamp descending, conversation id
// ascending on ties.
func (d *Directory) ListForUser(userID string) ([]models.ConversationSummary, error) {
	var ids []string
	if err := d.store.IterPrefix(store.UserConvPrefix(userID), func(key, _ []byte) bool {
		if id := store.ConvIDFromUserKey(key); id != "" {
			ids = append(ids, id)
		}
		return true
	}); err != nil {
		return nil, err
	}

	out := make([]models.ConversationSummary, 0, len(ids))
	for _, id := range ids {
		s, err := d.GetSummary(id)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastTS != out[j].LastTS {
			return out[i].LastTS > out[j].LastTS
		}
		return out[i].Conversation < out[j].Conversation
	})
	return out, nil
}
