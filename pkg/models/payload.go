package models

import "strings"

// Payload kinds for messages and statuses.
const (
	PayloadText  = "text"
	PayloadImage = "image"
	PayloadFile  = "file"
	PayloadVideo = "video"
)

// Payload is the content of a message or status post. Media bytes live in
// an external blob store; MediaRef is an opaque URL returned by it and is
// never inspected here.
type Payload struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MediaRef string `json:"media_ref,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

// Empty reports whether the payload carries neither text nor a media
// reference.
func (p Payload) Empty() bool {
	return strings.TrimSpace(p.Text) == "" && strings.TrimSpace(p.MediaRef) == ""
}

// Preview returns a short human-readable snippet for conversation
// summaries.
func (p Payload) Preview() string {
	if t := strings.TrimSpace(p.Text); t != "" {
		const max = 120
		if len(t) > max {
			return t[:max]
		}
		return t
	}
	switch p.Type {
	case PayloadImage:
		return "[image]"
	case PayloadVideo:
		return "[video]"
	case PayloadFile:
		if p.FileName != "" {
			return "[file] " + p.FileName
		}
		return "[file]"
	}
	return ""
}
