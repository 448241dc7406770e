package validation

import (
	"fmt"
	"time"

	"mesgd/pkg/apperr"
	"mesgd/pkg/models"
)

// Limits holds process-wide validation tunables, set once at startup.
type Limits struct {
	// MaxPayloadBytes caps the text length of a payload; 0 means no cap.
	MaxPayloadBytes int64
	MinTTL          time.Duration
	MaxTTL          time.Duration
}

var limits Limits

// SetLimits installs the validation limits.
func SetLimits(l Limits) { limits = l }

var messageTypes = map[string]struct{}{
	models.PayloadText:  {},
	models.PayloadImage: {},
	models.PayloadFile:  {},
}

var statusTypes = map[string]struct{}{
	models.PayloadText:  {},
	models.PayloadImage: {},
	models.PayloadVideo: {},
}

// ValidateMessagePayload rejects payloads a send must never accept:
// empty content, unknown type, oversized text. All checks run before any
// mutation.
func ValidateMessagePayload(p models.Payload) error {
	if p.Empty() {
		return fmt.Errorf("%w: payload requires text or media_ref", apperr.ErrInvalidInput)
	}
	if p.Type != "" {
		if _, ok := messageTypes[p.Type]; !ok {
			return fmt.Errorf("%w: unknown payload type %q", apperr.ErrInvalidInput, p.Type)
		}
	}
	if limits.MaxPayloadBytes > 0 && int64(len(p.Text)) > limits.MaxPayloadBytes {
		return fmt.Errorf("%w: text exceeds %d bytes", apperr.ErrInvalidInput, limits.MaxPayloadBytes)
	}
	return nil
}

// ValidateStatusPayload applies the same gate for status posts.
func ValidateStatusPayload(p models.Payload) error {
	if p.Empty() {
		return fmt.Errorf("%w: payload requires text or media_ref", apperr.ErrInvalidInput)
	}
	if p.Type != "" {
		if _, ok := statusTypes[p.Type]; !ok {
			return fmt.Errorf("%w: unknown payload type %q", apperr.ErrInvalidInput, p.Type)
		}
	}
	if limits.MaxPayloadBytes > 0 && int64(len(p.Text)) > limits.MaxPayloadBytes {
		return fmt.Errorf("%w: text exceeds %d bytes", apperr.ErrInvalidInput, limits.MaxPayloadBytes)
	}
	return nil
}

// ValidateTTL checks a caller-supplied ttl against configured bounds.
// A zero ttl is valid and means "use the default".
func ValidateTTL(ttl time.Duration) error {
	if ttl == 0 {
		return nil
	}
	if ttl < 0 {
		return fmt.Errorf("%w: negative ttl", apperr.ErrInvalidInput)
	}
	if limits.MinTTL > 0 && ttl < limits.MinTTL {
		return fmt.Errorf("%w: ttl below minimum %s", apperr.ErrInvalidInput, limits.MinTTL)
	}
	if limits.MaxTTL > 0 && ttl > limits.MaxTTL {
		return fmt.Errorf("%w: ttl above maximum %s", apperr.ErrInvalidInput, limits.MaxTTL)
	}
	return nil
}

// ValidateParticipants checks a conversation creation request.
func ValidateParticipants(participants []string, isGroup bool) error {
	if len(participants) < 2 {
		return fmt.Errorf("%w: conversation requires at least 2 participants", apperr.ErrInvalidInput)
	}
	if !isGroup && len(participants) != 2 {
		return fmt.Errorf("%w: direct conversation requires exactly 2 participants", apperr.ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		if p == "" {
			return fmt.Errorf("%w: empty participant id", apperr.ErrInvalidInput)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: duplicate participant %s", apperr.ErrInvalidInput, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}
