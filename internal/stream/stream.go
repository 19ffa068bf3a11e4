package stream

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/dkovac/brim/internal/domain"
	"github.com/dkovac/brim/internal/logstore"
)

// Stream is the one live message subscription. Every store update is
// re-normalized into a complete ordered []domain.Message; there is no
// incremental diffing, correctness comes from idempotent full replacement.
type Stream struct {
	store logstore.Log
	log   *zap.Logger

	mu   sync.Mutex
	stop func()
}

func New(store logstore.Log, log *zap.Logger) *Stream {
	return &Stream{store: store, log: log}
}

// Start opens the subscription, tearing down any previous one first so a
// re-authenticated identity never holds two. onUpdate receives the full
// ordered message list on the initial load and on every change.
func (s *Stream) Start(ctx context.Context, onUpdate func([]domain.Message), onError func(error)) {
	s.mu.Lock()
	if s.stop != nil {
		s.stop()
	}
	s.stop = s.store.Subscribe(ctx, func(recs []logstore.Record) {
		msgs := Normalize(recs)
		s.log.Debug("snapshot_received", zap.Int("messages", len(msgs)))
		onUpdate(msgs)
	}, onError)
	s.mu.Unlock()
}

// Stop tears down the subscription if one is open.
func (s *Stream) Stop() {
	s.mu.Lock()
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.mu.Unlock()
}

// Normalize converts raw records into typed messages ordered by the
// server-assigned commit timestamp. The store usually delivers them
// ordered already, but snapshots with records inserted anywhere must be
// tolerated, so ordering is re-derived here. Records without a commit
// timestamp are pending: they sort after all committed records and keep
// their relative wire order among themselves.
func Normalize(recs []logstore.Record) []domain.Message {
	msgs := make([]domain.Message, 0, len(recs))
	for _, rec := range recs {
		msgs = append(msgs, domain.Message{
			ID:          rec.ID,
			ClientKey:   rec.ClientKey,
			AuthorID:    rec.AuthorID,
			AuthorName:  rec.AuthorName,
			Text:        rec.Text,
			Attachment:  rec.Attachment,
			CommittedAt: rec.CommittedAt,
		})
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		switch {
		case a.Pending() && b.Pending():
			return false // keep wire order
		case a.Pending():
			return false
		case b.Pending():
			return true
		default:
			return a.CommittedAt.Before(*b.CommittedAt)
		}
	})

	return msgs
}
