package utils

import "github.com/google/uuid"

// GenMessageID returns a new unique message identifier.
func GenMessageID() string { return "msg-" + uuid.NewString() }

// GenConversationID returns a new unique conversation identifier.
func GenConversationID() string { return "conv-" + uuid.NewString() }

// GenStatusID returns a new unique status post identifier.
func GenStatusID() string { return "status-" + uuid.NewString() }

// GenSubscriptionID returns a new unique subscription identifier.
func GenSubscriptionID() string { return "sub-" + uuid.NewString() }
