package logstore

import (
	"context"
	"time"

	"github.com/dkovac/brim/internal/domain"
)

// Record is the raw wire form of one log entry. A record missing
// committed_at has not been stamped by the server yet.
type Record struct {
	ID          string             `json:"id,omitempty"`
	ClientKey   string             `json:"client_key,omitempty"`
	AuthorID    string             `json:"author_id"`
	AuthorName  string             `json:"author_name"`
	Text        *string            `json:"text,omitempty"`
	Attachment  *domain.Attachment `json:"attachment,omitempty"`
	CommittedAt *time.Time         `json:"committed_at,omitempty"`
}

// Log is the client-side contract of the ordered append-only store. The
// store never updates or removes entries in this system's usage.
type Log interface {
	// Append submits one record. The commit timestamp is assigned by the
	// store; the record echoes back through the subscription once
	// committed. Append never retries on its own.
	Append(ctx context.Context, rec Record) error

	// Subscribe opens the single live subscription. Every update delivers
	// the full ordered record set. Failures surface through onError and
	// never silently stop delivery. The returned stop function tears the
	// subscription down.
	Subscribe(ctx context.Context, onSnapshot func([]Record), onError func(error)) (stop func())
}
