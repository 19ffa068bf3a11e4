package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dkovac/brim/internal/auth"
	"github.com/dkovac/brim/internal/logstore"
	"github.com/dkovac/brim/internal/stream"
)

type fakeProvider struct {
	userID string
	err    error
}

func (f *fakeProvider) Authenticate(ctx context.Context) (string, error) {
	return f.userID, f.err
}

type fakeNames struct {
	names     map[string]string
	synthetic string
	ensured   int
	err       error
}

func newFakeNames() *fakeNames {
	return &fakeNames{names: make(map[string]string), synthetic: "Guest-1234"}
}

func (f *fakeNames) EnsureName(userID string) (string, error) {
	f.ensured++
	if f.err != nil {
		return "", f.err
	}
	if name, ok := f.names[userID]; ok {
		return name, nil
	}
	f.names[userID] = f.synthetic
	return f.synthetic, nil
}

func (f *fakeNames) SetName(userID, name string) error {
	f.names[userID] = name
	return nil
}

type fakeLog struct {
	onSnapshot func([]logstore.Record)
	onError    func(error)
	subs       int
}

func (f *fakeLog) Append(ctx context.Context, rec logstore.Record) error { return nil }

func (f *fakeLog) Subscribe(ctx context.Context, onSnapshot func([]logstore.Record), onError func(error)) func() {
	f.subs++
	f.onSnapshot = onSnapshot
	f.onError = onError
	return func() {}
}

func newController(provider auth.Provider, names NameStore, log *fakeLog) *Controller {
	session := auth.NewSession(provider, zap.NewNop())
	str := stream.New(log, zap.NewNop())
	return New(session, names, str, time.UTC, zap.NewNop())
}

func textRec(id, text string, committed time.Time) logstore.Record {
	c := committed
	txt := text
	return logstore.Record{ID: id, AuthorID: "u2", AuthorName: "Bo", Text: &txt, CommittedAt: &c}
}

func TestStart_ReachesReadyWithResolvedIdentity(t *testing.T) {
	names := newFakeNames()
	flog := &fakeLog{}
	c := newController(&fakeProvider{userID: "u1"}, names, flog)

	c.Start(context.Background())

	view := c.Snapshot()
	if view.State != StateReady {
		t.Fatalf("expected ready, got %s", view.State)
	}
	if view.Identity.UserID != "u1" || view.Identity.DisplayName != "Guest-1234" {
		t.Fatalf("identity not resolved: %+v", view.Identity)
	}
	if flog.subs != 1 {
		t.Fatalf("expected one live subscription, got %d", flog.subs)
	}
	if names.ensured != 1 {
		t.Fatalf("name must be resolved exactly once at startup, got %d", names.ensured)
	}
}

func TestStart_ReusesPersistedName(t *testing.T) {
	names := newFakeNames()
	names.names["u1"] = "Ana"
	c := newController(&fakeProvider{userID: "u1"}, names, &fakeLog{})

	c.Start(context.Background())

	if got := c.Snapshot().Identity.DisplayName; got != "Ana" {
		t.Fatalf("expected stored name reused, got %q", got)
	}
}

func TestStart_AuthFailureDegrades(t *testing.T) {
	flog := &fakeLog{}
	c := newController(&fakeProvider{err: errors.New("provider down")}, newFakeNames(), flog)

	c.Start(context.Background())

	view := c.Snapshot()
	if view.State != StateDegraded {
		t.Fatalf("expected degraded, got %s", view.State)
	}
	if view.Err == "" {
		t.Fatalf("degraded state needs a visible error")
	}
	if flog.subs != 0 {
		t.Fatalf("no stream without identity")
	}
}

func TestReauthNameStoreError_StaysReady(t *testing.T) {
	names := newFakeNames()
	flog := &fakeLog{}
	c := newController(&fakeProvider{userID: "u1"}, names, flog)
	c.Start(context.Background())

	names.err = errors.New("kv store unavailable")
	c.handleIdentityChange(context.Background(), "u1")

	view := c.Snapshot()
	if view.State != StateReady {
		t.Fatalf("a storage error after startup must not degrade, got %s", view.State)
	}
	if view.Err == "" {
		t.Fatalf("storage failure needs a visible error")
	}
	if view.Identity.UserID != "u1" {
		t.Fatalf("resolved identity must survive a failed refresh: %+v", view.Identity)
	}
}

func TestSnapshot_GroupsMessages(t *testing.T) {
	flog := &fakeLog{}
	c := newController(&fakeProvider{userID: "u1"}, newFakeNames(), flog)
	c.Start(context.Background())

	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	flog.onSnapshot([]logstore.Record{
		textRec("a", "yesterday's", day.AddDate(0, 0, -1)),
		textRec("b", "today's", day),
	})

	view := c.Snapshot()
	if len(view.Groups) != 2 {
		t.Fatalf("expected 2 date groups, got %d", len(view.Groups))
	}
	if view.Groups[0].DateKey != "2026-03-09" || view.Groups[1].DateKey != "2026-03-10" {
		t.Fatalf("groups out of order: %s, %s", view.Groups[0].DateKey, view.Groups[1].DateKey)
	}
}

func TestStreamError_RetainsLastKnownMessages(t *testing.T) {
	flog := &fakeLog{}
	c := newController(&fakeProvider{userID: "u1"}, newFakeNames(), flog)
	c.Start(context.Background())

	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	flog.onSnapshot([]logstore.Record{textRec("a", "hello", day)})
	flog.onError(errors.New("subscription lost"))

	view := c.Snapshot()
	if view.State != StateReady {
		t.Fatalf("stream errors never leave ready, got %s", view.State)
	}
	if len(view.Groups) != 1 || len(view.Groups[0].Messages) != 1 {
		t.Fatalf("stale data must stay rendered: %+v", view.Groups)
	}
	if view.Err == "" {
		t.Fatalf("stream failure needs a visible indicator")
	}

	// a later successful snapshot clears the banner
	flog.onSnapshot([]logstore.Record{textRec("a", "hello", day)})
	if view := c.Snapshot(); view.Err != "" {
		t.Fatalf("successful snapshot must clear the error, got %q", view.Err)
	}
}

func TestEditFlow_EmptySaveRejected(t *testing.T) {
	c := newController(&fakeProvider{userID: "u1"}, newFakeNames(), &fakeLog{})
	c.Start(context.Background())

	c.BeginEdit()
	if view := c.Snapshot(); !view.Editing || view.EditBuffer != "Guest-1234" {
		t.Fatalf("edit mode should open with the committed name: %+v", view)
	}

	c.SetEditBuffer("   ")
	if err := c.SaveEdit(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}

	view := c.Snapshot()
	if !view.Editing {
		t.Fatalf("rejected save must stay in editing")
	}
	if view.Identity.DisplayName != "Guest-1234" {
		t.Fatalf("committed name must be unchanged, got %q", view.Identity.DisplayName)
	}
	if view.Err == "" {
		t.Fatalf("empty name needs a visible validation error")
	}
}

func TestEditFlow_SaveCommitsAndPersists(t *testing.T) {
	names := newFakeNames()
	c := newController(&fakeProvider{userID: "u1"}, names, &fakeLog{})
	c.Start(context.Background())

	c.BeginEdit()
	c.SetEditBuffer("  Ana  ")
	if err := c.SaveEdit(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	view := c.Snapshot()
	if view.Editing {
		t.Fatalf("save must return to viewing")
	}
	if view.Identity.DisplayName != "Ana" {
		t.Fatalf("expected trimmed committed name, got %q", view.Identity.DisplayName)
	}
	if names.names["u1"] != "Ana" {
		t.Fatalf("name not persisted: %q", names.names["u1"])
	}
	if view.Err != "" {
		t.Fatalf("save must clear the error slot")
	}
}

func TestEditFlow_CancelRestores(t *testing.T) {
	c := newController(&fakeProvider{userID: "u1"}, newFakeNames(), &fakeLog{})
	c.Start(context.Background())

	c.BeginEdit()
	c.SetEditBuffer("something else")
	c.CancelEdit()

	view := c.Snapshot()
	if view.Editing {
		t.Fatalf("cancel must leave editing")
	}
	if view.Identity.DisplayName != "Guest-1234" {
		t.Fatalf("cancel must keep the committed name, got %q", view.Identity.DisplayName)
	}

	// re-entering edit shows the committed name again, not the discarded buffer
	c.BeginEdit()
	if view := c.Snapshot(); view.EditBuffer != "Guest-1234" {
		t.Fatalf("discarded buffer leaked: %q", view.EditBuffer)
	}
}

func TestReportError_OverwritesAndClears(t *testing.T) {
	c := newController(&fakeProvider{userID: "u1"}, newFakeNames(), &fakeLog{})
	c.Start(context.Background())

	c.ReportError(errors.New("first"))
	c.ReportError(errors.New("second"))
	if got := c.Snapshot().Err; got != "second" {
		t.Fatalf("most recent error wins, got %q", got)
	}

	c.ClearError()
	if got := c.Snapshot().Err; got != "" {
		t.Fatalf("expected cleared slot, got %q", got)
	}
}

func TestOnRender_FiresOnTransitions(t *testing.T) {
	c := newController(&fakeProvider{userID: "u1"}, newFakeNames(), &fakeLog{})
	var renders int
	c.OnRender(func() { renders++ })

	c.Start(context.Background())
	c.BeginEdit()
	c.CancelEdit()

	if renders < 3 {
		t.Fatalf("expected a render per transition, got %d", renders)
	}
}
