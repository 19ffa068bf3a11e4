package stream

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dkovac/brim/internal/domain"
	"github.com/dkovac/brim/internal/logstore"
)

// fakeLog captures subscriptions so tests can drive snapshots by hand.
type fakeLog struct {
	onSnapshot func([]logstore.Record)
	onError    func(error)
	stopped    int
}

func (f *fakeLog) Append(ctx context.Context, rec logstore.Record) error { return nil }

func (f *fakeLog) Subscribe(ctx context.Context, onSnapshot func([]logstore.Record), onError func(error)) func() {
	f.onSnapshot = onSnapshot
	f.onError = onError
	return func() { f.stopped++ }
}

func recAt(id string, committed time.Time) logstore.Record {
	c := committed
	text := "m-" + id
	return logstore.Record{ID: id, AuthorID: "u", AuthorName: "Ana", Text: &text, CommittedAt: &c}
}

func pendingRec(key string) logstore.Record {
	text := "pending-" + key
	return logstore.Record{ClientKey: key, AuthorID: "u", AuthorName: "Ana", Text: &text}
}

func TestNormalize_SortsByCommitTimestamp(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	// store contract is ascending order, but tolerate records inserted anywhere
	msgs := Normalize([]logstore.Record{
		recAt("c", base.Add(2*time.Minute)),
		recAt("a", base),
		recAt("b", base.Add(time.Minute)),
	})

	want := []string{"a", "b", "c"}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, msgs[i].ID, id)
		}
	}
}

func TestNormalize_PendingAfterCommitted(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	msgs := Normalize([]logstore.Record{
		pendingRec("p1"),
		recAt("a", base),
		pendingRec("p2"),
		recAt("b", base.Add(time.Minute)),
	})

	if msgs[0].ID != "a" || msgs[1].ID != "b" {
		t.Fatalf("committed records should lead: %+v", msgs)
	}
	if !msgs[2].Pending() || !msgs[3].Pending() {
		t.Fatalf("pending records should trail")
	}
	if msgs[2].ClientKey != "p1" || msgs[3].ClientKey != "p2" {
		t.Fatalf("pending relative order not preserved: %s, %s", msgs[2].ClientKey, msgs[3].ClientKey)
	}
}

func TestNormalize_Empty(t *testing.T) {
	if msgs := Normalize(nil); len(msgs) != 0 {
		t.Fatalf("expected empty, got %d", len(msgs))
	}
}

func TestStream_DeliversFullSnapshots(t *testing.T) {
	fake := &fakeLog{}
	s := New(fake, zap.NewNop())

	var got [][]domain.Message
	s.Start(context.Background(), func(msgs []domain.Message) {
		got = append(got, msgs)
	}, func(error) {})

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	fake.onSnapshot([]logstore.Record{recAt("a", base)})
	fake.onSnapshot([]logstore.Record{recAt("a", base), recAt("b", base.Add(time.Second))})

	if len(got) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(got))
	}
	if len(got[0]) != 1 || len(got[1]) != 2 {
		t.Fatalf("each update must be the complete view: %d, %d", len(got[0]), len(got[1]))
	}
}

func TestStream_RestartTearsDownPreviousSubscription(t *testing.T) {
	fake := &fakeLog{}
	s := New(fake, zap.NewNop())

	noUpdate := func([]domain.Message) {}
	noError := func(error) {}

	s.Start(context.Background(), noUpdate, noError)
	if fake.stopped != 0 {
		t.Fatalf("first start should not stop anything")
	}

	s.Start(context.Background(), noUpdate, noError)
	if fake.stopped != 1 {
		t.Fatalf("restart must tear down the previous subscription, stopped=%d", fake.stopped)
	}

	s.Stop()
	if fake.stopped != 2 {
		t.Fatalf("stop must tear down the active subscription, stopped=%d", fake.stopped)
	}
	s.Stop()
	if fake.stopped != 2 {
		t.Fatalf("second stop must be a no-op, stopped=%d", fake.stopped)
	}
}
