package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"mesgd/pkg/apperr"
	"mesgd/pkg/logger"
	"mesgd/pkg/models"
	"mesgd/pkg/store"
	"mesgd/pkg/telemetry"
	"mesgd/pkg/utils"
	"mesgd/pkg/validation"
)

// DefaultTTL is applied when a post does not specify a lifetime.
const DefaultTTL = 24 * time.Hour

// Store holds ephemeral status posts. Expiry is enforced on every read
// by comparing against the clock, so a post past its TTL is invisible
// even before the sweeper physically removes it.
type Store struct {
	store      *store.Store
	defaultTTL time.Duration
	now        func() time.Time
	locks      sync.Map // post id -> *sync.Mutex
}

func New(st *store.Store, defaultTTL time.Duration) *Store {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Store{store: st, defaultTTL: defaultTTL, now: time.Now}
}

// WithClock overrides the time source; used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) postLock(id string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Post publishes a new status for ownerID. ttl zero means the default
// lifetime; expiry is fixed at publish time and never extended.
func (s *Store) Post(ctx context.Context, ownerID string, payload models.Payload, ttl time.Duration) (*models.StatusPost, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing owner", apperr.ErrInvalidInput)
	}
	if err := validation.ValidateStatusPayload(payload); err != nil {
		return nil, err
	}
	if err := validation.ValidateTTL(ttl); err != nil {
		return nil, err
	}
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	ts := s.now().UTC().UnixNano()
	post := &models.StatusPost{
		ID:        utils.GenStatusID(),
		Owner:     ownerID,
		Payload:   payload,
		TS:        ts,
		ExpiresAt: ts + ttl.Nanoseconds(),
	}
	if err := s.store.SetJSON(store.StatusKey(post.ID), post, true); err != nil {
		return nil, err
	}
	logger.Info("status_posted", "status", post.ID, "owner", ownerID, "ttl", ttl.String())
	return post, nil
}

// Get returns a post regardless of expiry; callers that care about
// visibility check Visible themselves.
func (s *Store) Get(postID string) (*models.StatusPost, error) {
	var p models.StatusPost
	if err := s.store.GetJSON(store.StatusKey(postID), &p); err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown status %s", apperr.ErrNotFound, postID)
		}
		return nil, err
	}
	return &p, nil
}

// ListVisible returns every unexpired post not owned by excludeOwner,
// grouped by owner with each owner's posts newest first. Owners are
// sorted for a stable listing.
func (s *Store) ListVisible(excludeOwner string) ([]models.StatusGroup, error) {
	nowNS := s.now().UTC().UnixNano()
	byOwner := map[string][]models.StatusPost{}
	if err := s.store.IterPrefix(store.StatusPrefix(), func(_, value []byte) bool {
		var p models.StatusPost
		if uerr := json.Unmarshal(value, &p); uerr != nil {
			return true
		}
		if p.Owner == excludeOwner || !p.Visible(nowNS) {
			return true
		}
		byOwner[p.Owner] = append(byOwner[p.Owner], p)
		return true
	}); err != nil {
		return nil, err
	}

	owners := make([]string, 0, len(byOwner))
	for o := range byOwner {
		owners = append(owners, o)
	}
	sort.Strings(owners)
	out := make([]models.StatusGroup, 0, len(owners))
	for _, o := range owners {
		posts := byOwner[o]
		sort.Slice(posts, func(i, j int) bool {
			if posts[i].TS != posts[j].TS {
				return posts[i].TS > posts[j].TS
			}
			return posts[i].ID < posts[j].ID
		})
		out = append(out, models.StatusGroup{Owner: o, Posts: posts})
	}
	return out, nil
}

// ListOwner returns the owner's own unexpired posts, newest first, with
// viewer lists intact.
func (s *Store) ListOwner(ownerID string) ([]models.StatusPost, error) {
	nowNS := s.now().UTC().UnixNano()
	var out []models.StatusPost
	if err := s.store.IterPrefix(store.StatusPrefix(), func(_, value []byte) bool {
		var p models.StatusPost
		if uerr := json.Unmarshal(value, &p); uerr != nil {
			return true
		}
		if p.Owner == ownerID && p.Visible(nowNS) {
			out = append(out, p)
		}
		return true
	}); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TS != out[j].TS {
			return out[i].TS > out[j].TS
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// MarkViewed records that viewerID has seen the post. Repeat views and
// views by the owner are no-ops; an expired post reports as gone.
func (s *Store) MarkViewed(ctx context.Context, postID, viewerID string) error {
	if viewerID == "" {
		return fmt.Errorf("%w: missing viewer", apperr.ErrInvalidInput)
	}
	lock := s.postLock(postID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.Get(postID)
	if err != nil {
		return err
	}
	if !p.Visible(s.now().UTC().UnixNano()) {
		return fmt.Errorf("%w: status %s", apperr.ErrExpired, postID)
	}
	if viewerID == p.Owner || p.ViewedBy(viewerID) {
		return nil
	}
	p.Viewers = append(p.Viewers, viewerID)
	return s.store.SetJSON(store.StatusKey(postID), p, true)
}

// Delete removes a post; only its owner may do so.
func (s *Store) Delete(ctx context.Context, postID, requesterID string) error {
	p, err := s.Get(postID)
	if err != nil {
		return err
	}
	if p.Owner != requesterID {
		return fmt.Errorf("%w: only the owner may delete status %s", apperr.ErrNotAuthorized, postID)
	}
	if err := s.store.Delete(store.StatusKey(postID), true); err != nil {
		return err
	}
	s.locks.Delete(postID)
	logger.Info("status_deleted", "status", postID, "owner", requesterID)
	return nil
}

// PurgeExpired physically deletes every post past its expiry, in batches
// of batchSize deletes. Returns the number purged.
func (s *Store) PurgeExpired(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 256
	}
	nowNS := s.now().UTC().UnixNano()
	var expired []string
	if err := s.store.IterPrefix(store.StatusPrefix(), func(_, value []byte) bool {
		var p models.StatusPost
		if uerr := json.Unmarshal(value, &p); uerr != nil {
			return true
		}
		if !p.Visible(nowNS) {
			expired = append(expired, p.ID)
		}
		return true
	}); err != nil {
		return 0, err
	}

	purged := 0
	for start := 0; start < len(expired); start += batchSize {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		end := start + batchSize
		if end > len(expired) {
			end = len(expired)
		}
		b := s.store.NewBatch()
		for _, id := range expired[start:end] {
			if err := b.Delete(store.StatusKey(id), nil); err != nil {
				return purged, err
			}
		}
		if err := s.store.ApplyBatch(b, true); err != nil {
			return purged, err
		}
		for _, id := range expired[start:end] {
			s.locks.Delete(id)
		}
		purged += end - start
	}
	if purged > 0 {
		telemetry.StatusesPurgedTotal.Add(float64(purged))
		logger.Info("statuses_purged", "count", purged)
	}
	return purged, nil
}
