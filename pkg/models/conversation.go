package models

// Conversation is a fixed set of participants exchanging ordered messages.
// The participant list is insertion-stable and immutable after creation.
type Conversation struct {
	ID           string   `json:"id"`
	Participants []string `json:"participants"`
	IsGroup      bool     `json:"is_group"`
	GroupName    string   `json:"group_name,omitempty"`
	GroupPhoto   string   `json:"group_photo,omitempty"`
	CreatedTS    int64    `json:"created_ts"`
	// LastSeq is the sequence number of the most recent accepted append;
	// maintained by the event log inside the append transaction.
	LastSeq uint64 `json:"last_seq"`
}

// HasParticipant reports whether id belongs to the conversation.
func (c *Conversation) HasParticipant(id string) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// ConversationSummary is the derived per-conversation record shown in list
// views: last-message snapshot plus per-participant unread counters. It is
// rebuildable from the event log by replay.
type ConversationSummary struct {
	Conversation string `json:"conversation"`
	LastSender   string `json:"last_sender"`
	LastPreview  string `json:"last_preview"`
	LastSeq      uint64 `json:"last_seq"`
	// LastTS never decreases; it tracks the newest accepted append.
	LastTS int64          `json:"last_ts"`
	Unread map[string]int `json:"unread"`
}
