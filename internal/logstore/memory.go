package logstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Log used by tests and offline mode. It assigns
// ids and commit timestamps the way the real store would and pushes a
// full snapshot to every subscriber after each append.
type Memory struct {
	// Now is the commit clock, swappable in tests.
	Now func() time.Time

	mu      sync.Mutex
	version uint64
	records []Record
	subs    map[int]*memorySub
	nextSub int
}

// memorySub serializes snapshot delivery for one subscriber and drops
// any snapshot older than the last one it delivered, so a slow delivery
// can never overwrite a newer view.
type memorySub struct {
	mu        sync.Mutex
	delivered uint64
	fn        func([]Record)
}

func (s *memorySub) deliver(version uint64, snapshot []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version <= s.delivered {
		return
	}
	s.delivered = version
	s.fn(snapshot)
}

func NewMemory() *Memory {
	return &Memory{
		Now:     time.Now,
		version: 1,
		subs:    make(map[int]*memorySub),
	}
}

func (m *Memory) Append(ctx context.Context, rec Record) error {
	m.mu.Lock()
	rec.ID = uuid.New().String()
	ts := m.Now().UTC()
	rec.CommittedAt = &ts
	m.records = append(m.records, rec)
	m.version++
	version := m.version
	snapshot := m.snapshotLocked()
	subs := make([]*memorySub, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(version, snapshot)
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, onSnapshot func([]Record), onError func(error)) func() {
	sub := &memorySub{fn: onSnapshot}

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = sub
	version := m.version
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	// initial load delivers the current full view
	sub.deliver(version, snapshot)

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Memory) snapshotLocked() []Record {
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}
