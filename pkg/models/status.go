package models

// StatusPost is an ephemeral post that becomes invisible once its TTL
// elapses. ExpiresAt is always CreatedTS + TTL; the read path filters by
// it regardless of purge timing.
type StatusPost struct {
	ID        string  `json:"id"`
	Owner     string  `json:"owner"`
	Payload   Payload `json:"payload"`
	TS        int64   `json:"ts"`
	ExpiresAt int64   `json:"expires_at"`
	// Viewers is idempotent: re-viewing is a no-op.
	Viewers []string `json:"viewers"`
}

// Visible reports whether the post is still visible at the given time (ns).
func (s *StatusPost) Visible(nowNS int64) bool {
	return nowNS < s.ExpiresAt
}

// ViewedBy reports whether id already viewed the post.
func (s *StatusPost) ViewedBy(id string) bool {
	for _, v := range s.Viewers {
		if v == id {
			return true
		}
	}
	return false
}

// StatusGroup bundles one owner's visible posts, newest first.
type StatusGroup struct {
	Owner string       `json:"owner"`
	Posts []StatusPost `json:"posts"`
}
