package domain

import (
	"time"
)

// AttachmentKind classifies a staged or committed attachment.
type AttachmentKind string

const (
	AttachmentImage   AttachmentKind = "image"
	AttachmentGeneric AttachmentKind = "generic"
)

// Attachment describes a lightweight file reference carried by a message.
// URL is only set for image attachments; generic files keep their name and
// kind but are not retrievable (no upload pipeline).
type Attachment struct {
	Kind     AttachmentKind `json:"kind"`
	FileName string         `json:"file_name"`
	URL      *string        `json:"url,omitempty"`
	Caption  *string        `json:"caption,omitempty"`
	Width    int            `json:"width,omitempty"`
	Height   int            `json:"height,omitempty"`
}

// Message is a single committed or in-flight chat message. Once the log has
// committed it, the message is immutable.
type Message struct {
	ID          string      `json:"id,omitempty"`
	ClientKey   string      `json:"client_key,omitempty"`
	AuthorID    string      `json:"author_id"`
	AuthorName  string      `json:"author_name"`
	Text        *string     `json:"text,omitempty"`
	Attachment  *Attachment `json:"attachment,omitempty"`
	CommittedAt *time.Time  `json:"committed_at,omitempty"`
}

// Pending reports whether the message is still waiting for its
// server-assigned commit timestamp.
func (m *Message) Pending() bool {
	return m.CommittedAt == nil
}

// Empty reports whether the message carries neither text nor attachment.
// Such a message violates the model invariant and must never be written.
func (m *Message) Empty() bool {
	return (m.Text == nil || *m.Text == "") && m.Attachment == nil
}
