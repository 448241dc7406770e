package store

import (
	"fmt"
	"strings"
)

// Key layout. Message keys embed a zero-padded sequence number so that
// prefix iteration yields messages in append order.
//
//	conv:<convID>:meta                 conversation record
//	conv:<convID>:summary              derived summary record
//	conv:<convID>:msg:<seq %020d>      message by sequence
//	msgid:<msgID>                      message id -> {conversation, seq}
//	user:<userID>:conv:<convID>        membership index
//	directpair:<a>|<b>                 two-party conversation dedupe
//	status:post:<postID>               status post

func ConvMetaKey(convID string) []byte {
	return []byte("conv:" + convID + ":meta")
}

func ConvSummaryKey(convID string) []byte {
	return []byte("conv:" + convID + ":summary")
}

func MsgPrefix(convID string) []byte {
	return []byte("conv:" + convID + ":msg:")
}

func MsgKey(convID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("conv:%s:msg:%020d", convID, seq))
}

func MsgIDKey(msgID string) []byte {
	return []byte("msgid:" + msgID)
}

func UserConvPrefix(userID string) []byte {
	return []byte("user:" + userID + ":conv:")
}

func UserConvKey(userID, convID string) []byte {
	return []byte("user:" + userID + ":conv:" + convID)
}

// DirectPairKey is order-insensitive: the two participant ids are sorted
// lexicographically before joining.
func DirectPairKey(a, b string) []byte {
	if b < a {
		a, b = b, a
	}
	return []byte("directpair:" + a + "|" + b)
}

func StatusKey(postID string) []byte {
	return []byte("status:post:" + postID)
}

func StatusPrefix() []byte {
	return []byte("status:post:")
}

// ConvIDFromUserKey extracts the conversation id from a membership index
// key produced by UserConvKey.
func ConvIDFromUserKey(key []byte) string {
	s := string(key)
	i := strings.Index(s, ":conv:")
	if i < 0 {
		return ""
	}
	return s[i+len(":conv:"):]
}
