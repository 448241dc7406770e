package facade

import (
	"context"
	"fmt"
	"time"

	"mesgd/pkg/apperr"
	"mesgd/pkg/directory"
	"mesgd/pkg/eventlog"
	"mesgd/pkg/hub"
	"mesgd/pkg/models"
	"mesgd/pkg/status"
	"mesgd/pkg/store"
)

// Facade is the single entry point the transport layer talks to. It owns
// the wiring between the event log, the conversation directory, the
// fan-out hub and the status store, and enforces participant checks
// before handing a caller a live subscription.
type Facade struct {
	log      *eventlog.Log
	dir      *directory.Directory
	hub      *hub.Hub
	statuses *status.Store
}

// New wires the components together; the log publishes every committed
// message into the hub.
func New(st *store.Store, hubBuffer int, statusTTL time.Duration) *Facade {
	dir := directory.New(st)
	log := eventlog.New(st, dir)
	h := hub.New(hubBuffer)
	log.SetSink(h)
	return &Facade{
		log:      log,
		dir:      dir,
		hub:      h,
		statuses: status.New(st, statusTTL),
	}
}

// Components exposes the underlying parts for tests and background jobs.
func (f *Facade) Components() (*eventlog.Log, *directory.Directory, *hub.Hub, *status.Store) {
	return f.log, f.dir, f.hub, f.statuses
}

// Close shuts down live subscriptions. The store is closed by its owner.
func (f *Facade) Close() {
	f.hub.Close()
}

// CreateConversation registers a conversation; direct pairs are reused.
func (f *Facade) CreateConversation(ctx context.Context, participants []string, isGroup bool, groupName, groupPhoto string) (*models.Conversation, error) {
	return f.dir.CreateConversation(ctx, participants, isGroup, groupName, groupPhoto)
}

// GetConversation returns conversation metadata; callerID must be a
// participant.
func (f *Facade) GetConversation(ctx context.Context, convID, callerID string) (*models.Conversation, error) {
	conv, err := f.dir.GetConversation(convID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(callerID) {
		return nil, fmt.Errorf("%w: %s is not a participant of %s", apperr.ErrNotAuthorized, callerID, convID)
	}
	return conv, nil
}

// SendMessage appends one message and fans it out to subscribers.
func (f *Facade) SendMessage(ctx context.Context, convID, senderID string, payload models.Payload) (*models.Message, error) {
	return f.log.Append(ctx, convID, senderID, payload)
}

// FetchHistory returns messages after afterSeq in order; callerID must be
// a participant.
func (f *Facade) FetchHistory(ctx context.Context, convID, callerID string, afterSeq uint64, limit int) ([]models.Message, error) {
	if _, err := f.GetConversation(ctx, convID, callerID); err != nil {
		return nil, err
	}
	return f.log.ReadSince(ctx, convID, afterSeq, limit)
}

// Subscribe attaches callerID to the live feed of a conversation. The
// usual catch-up pattern is FetchHistory after Subscribe so that nothing
// falls between the two.
func (f *Facade) Subscribe(ctx context.Context, convID, callerID string) (*hub.Subscription, error) {
	if _, err := f.GetConversation(ctx, convID, callerID); err != nil {
		return nil, err
	}
	return f.hub.Subscribe(convID, callerID), nil
}

// MarkRead advances callerID's read position to uptoSeq.
func (f *Facade) MarkRead(ctx context.Context, convID, callerID string, uptoSeq uint64) error {
	return f.dir.MarkRead(ctx, convID, callerID, uptoSeq)
}

// ListConversations returns callerID's conversations, most recent
// activity first.
func (f *Facade) ListConversations(ctx context.Context, callerID string) ([]models.ConversationSummary, error) {
	return f.dir.ListForUser(callerID)
}

// GetSummary returns the last-message snapshot and unread counters of a
// conversation; callerID must be a participant.
func (f *Facade) GetSummary(ctx context.Context, convID, callerID string) (*models.ConversationSummary, error) {
	if _, err := f.GetConversation(ctx, convID, callerID); err != nil {
		return nil, err
	}
	return f.dir.GetSummary(convID)
}

// React adds a reaction; Unreact removes it.
func (f *Facade) React(ctx context.Context, msgID, emoji, callerID string) (*models.Message, error) {
	return f.log.React(ctx, msgID, emoji, callerID)
}

func (f *Facade) Unreact(ctx context.Context, msgID, emoji, callerID string) (*models.Message, error) {
	return f.log.Unreact(ctx, msgID, emoji, callerID)
}

// PostStatus publishes an ephemeral status for callerID.
func (f *Facade) PostStatus(ctx context.Context, callerID string, payload models.Payload, ttl time.Duration) (*models.StatusPost, error) {
	return f.statuses.Post(ctx, callerID, payload, ttl)
}

// ListStatuses returns other users' visible statuses grouped by owner.
func (f *Facade) ListStatuses(ctx context.Context, callerID string) ([]models.StatusGroup, error) {
	return f.statuses.ListVisible(callerID)
}

// ListOwnStatuses returns callerID's own visible posts with viewer lists.
func (f *Facade) ListOwnStatuses(ctx context.Context, callerID string) ([]models.StatusPost, error) {
	return f.statuses.ListOwner(callerID)
}

// ViewStatus records callerID as a viewer of a post.
func (f *Facade) ViewStatus(ctx context.Context, postID, callerID string) error {
	return f.statuses.MarkViewed(ctx, postID, callerID)
}

// DeleteStatus removes callerID's own post.
func (f *Facade) DeleteStatus(ctx context.Context, postID, callerID string) error {
	return f.statuses.Delete(ctx, postID, callerID)
}

// PurgeExpiredStatuses is invoked by the sweeper.
func (f *Facade) PurgeExpiredStatuses(ctx context.Context, batchSize int) (int, error) {
	return f.statuses.PurgeExpired(ctx, batchSize)
}
