package models

type Message struct {
	ID           string  `json:"id"`
	Conversation string  `json:"conversation"`
	// Seq is assigned by the event log and is strictly increasing within
	// a conversation.
	Seq    uint64  `json:"seq"`
	Sender string  `json:"sender"`
	// TS is server-assigned (ns); client timestamps are never trusted.
	TS      int64   `json:"ts"`
	Payload Payload `json:"payload"`
	// ReadBy grows monotonically and is seeded with the sender.
	ReadBy []string `json:"read_by"`
	// Reactions maps emoji -> identities, idempotent per pair.
	Reactions map[string][]string `json:"reactions,omitempty"`
}

// ReadByUser reports whether id is present in the read set.
func (m *Message) ReadByUser(id string) bool {
	for _, r := range m.ReadBy {
		if r == id {
			return true
		}
	}
	return false
}

// AddReader adds id to the read set; returns false if already present.
func (m *Message) AddReader(id string) bool {
	if m.ReadByUser(id) {
		return false
	}
	m.ReadBy = append(m.ReadBy, id)
	return true
}

// ReadByOther reports whether anyone other than the sender has read the
// message. This is the sender-perspective read receipt.
func (m *Message) ReadByOther() bool {
	for _, r := range m.ReadBy {
		if r != m.Sender {
			return true
		}
	}
	return false
}

// AddReaction records identity under emoji; returns false when the pair
// was already present.
func (m *Message) AddReaction(emoji, identity string) bool {
	if m.Reactions == nil {
		m.Reactions = map[string][]string{}
	}
	for _, id := range m.Reactions[emoji] {
		if id == identity {
			return false
		}
	}
	m.Reactions[emoji] = append(m.Reactions[emoji], identity)
	return true
}

// RemoveReaction removes identity from emoji; returns false when absent.
func (m *Message) RemoveReaction(emoji, identity string) bool {
	ids := m.Reactions[emoji]
	for i, id := range ids {
		if id == identity {
			ids = append(ids[:i], ids[i+1:]...)
			if len(ids) == 0 {
				delete(m.Reactions, emoji)
			} else {
				m.Reactions[emoji] = ids
			}
			return true
		}
	}
	return false
}
