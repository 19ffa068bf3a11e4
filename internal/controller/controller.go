package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dkovac/brim/internal/auth"
	"github.com/dkovac/brim/internal/domain"
	"github.com/dkovac/brim/internal/grouping"
	"github.com/dkovac/brim/internal/stream"
	"github.com/dkovac/brim/pkg/validator"
)

// State is the top-level lifecycle of the session.
type State string

const (
	// StateLoading holds until the first identity resolution.
	StateLoading State = "loading"
	// StateReady is sticky: stream errors keep the session ready with an
	// error banner, never back to loading.
	StateReady State = "ready"
	// StateDegraded means authentication failed. Terminal until an
	// external condition changes (e.g. restart).
	StateDegraded State = "degraded"
)

var ErrEmptyName = errors.New("display name must not be empty")

// NameStore is the slice of identity persistence the controller drives.
type NameStore interface {
	EnsureName(userID string) (string, error)
	SetName(userID, name string) error
}

// View is an immutable snapshot of everything a renderer needs.
type View struct {
	State      State
	Identity   domain.Identity
	Groups     []domain.DateGroup
	Editing    bool
	EditBuffer string
	Err        string
}

// Controller owns the reactive state and reacts to auth, stream and user
// events. All mutation goes through named transitions; external event
// sources never write fields directly.
type Controller struct {
	session *auth.Session
	names   NameStore
	stream  *stream.Stream
	loc     *time.Location
	log     *zap.Logger

	mu         sync.RWMutex
	state      State
	identity   domain.Identity
	groups     []domain.DateGroup
	editing    bool
	editBuffer string
	errMsg     string
	onRender   func()
}

func New(session *auth.Session, names NameStore, str *stream.Stream, loc *time.Location, log *zap.Logger) *Controller {
	return &Controller{
		session: session,
		names:   names,
		stream:  str,
		loc:     loc,
		log:     log,
		state:   StateLoading,
	}
}

// OnRender registers the hook fired after every state transition.
func (c *Controller) OnRender(fn func()) {
	c.mu.Lock()
	c.onRender = fn
	c.mu.Unlock()
}

// Start resolves an identity and opens the message stream. On auth
// failure the controller degrades: no identity, no stream, visible error,
// process alive.
func (c *Controller) Start(ctx context.Context) {
	c.session.OnChange(func(userID string) {
		c.handleIdentityChange(ctx, userID)
	})

	if _, err := c.session.Start(ctx); err != nil {
		c.toDegraded(err)
		return
	}
	// handleIdentityChange ran via the OnChange listener and did the rest.
}

// Snapshot returns a copy of the current view state.
func (c *Controller) Snapshot() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return View{
		State:      c.state,
		Identity:   c.identity,
		Groups:     c.groups,
		Editing:    c.editing,
		EditBuffer: c.editBuffer,
		Err:        c.errMsg,
	}
}

// Current implements composer.IdentitySource.
func (c *Controller) Current() (domain.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity, c.identity.UserID != ""
}

// --- identity edit sub-state (viewing ⇄ editing) ---

// BeginEdit enters editing mode with the committed name in the buffer.
func (c *Controller) BeginEdit() {
	c.mu.Lock()
	c.editing = true
	c.editBuffer = c.identity.DisplayName
	c.mu.Unlock()
	c.render()
}

// SetEditBuffer replaces the in-progress name. No-op outside editing.
func (c *Controller) SetEditBuffer(s string) {
	c.mu.Lock()
	if c.editing {
		c.editBuffer = s
	}
	c.mu.Unlock()
}

// SaveEdit persists the buffer and returns to viewing. An empty post-trim
// name is rejected with a visible error and the session stays in editing
// with the committed name unchanged.
func (c *Controller) SaveEdit() error {
	c.mu.Lock()
	name := strings.TrimSpace(c.editBuffer)
	userID := c.identity.UserID
	c.mu.Unlock()

	if errs := validator.ValidateDisplayName(name); errs.HasErrors() {
		c.setError(errs.First())
		return ErrEmptyName
	}

	if err := c.names.SetName(userID, name); err != nil {
		// persistence is fire-and-forget; keep the live rename anyway
		c.log.Warn("name_persist_failed", zap.Error(err))
	}

	c.mu.Lock()
	c.identity.DisplayName = name
	c.editing = false
	c.editBuffer = ""
	c.errMsg = ""
	c.mu.Unlock()
	c.log.Info("display_name_changed", zap.String("user_id", userID), zap.String("name", name))
	c.render()
	return nil
}

// CancelEdit discards the buffer and restores the committed name.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.editing = false
	c.editBuffer = ""
	c.mu.Unlock()
	c.render()
}

// --- error slot ---

// ReportError overwrites the single user-visible error slot. Previously
// delivered messages stay rendered alongside it.
func (c *Controller) ReportError(err error) {
	if err == nil {
		return
	}
	c.setError(err.Error())
}

// ClearError empties the slot after a successful operation.
func (c *Controller) ClearError() {
	c.mu.Lock()
	c.errMsg = ""
	c.mu.Unlock()
	c.render()
}

// --- internal transitions ---

func (c *Controller) handleIdentityChange(ctx context.Context, userID string) {
	if userID == "" {
		c.stream.Stop()
		c.mu.Lock()
		c.identity = domain.Identity{}
		c.mu.Unlock()
		c.render()
		return
	}

	name, err := c.names.EnsureName(userID)
	if err != nil {
		c.mu.RLock()
		loading := c.state == StateLoading
		c.mu.RUnlock()
		if loading {
			c.toDegraded(err)
		} else {
			// already ready: a storage hiccup on re-auth is not an auth
			// failure, keep the session alive with a visible error
			c.ReportError(err)
		}
		return
	}

	c.mu.Lock()
	c.identity = domain.Identity{UserID: userID, DisplayName: name}
	if c.state == StateLoading {
		c.state = StateReady
	}
	c.mu.Unlock()
	c.render()

	// exactly one subscription per identity; Start tears down the old one
	c.stream.Start(ctx, c.applySnapshot, c.ReportError)
}

// applySnapshot replaces the grouped view from a full message snapshot.
// A successful snapshot clears any prior stream error.
func (c *Controller) applySnapshot(msgs []domain.Message) {
	groups := grouping.Group(msgs, c.loc)
	c.mu.Lock()
	c.groups = groups
	c.errMsg = ""
	c.mu.Unlock()
	c.render()
}

func (c *Controller) toDegraded(err error) {
	c.log.Error("session_degraded", zap.Error(err))
	c.mu.Lock()
	c.state = StateDegraded
	c.errMsg = err.Error()
	c.mu.Unlock()
	c.render()
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	c.errMsg = msg
	c.mu.Unlock()
	c.render()
}

func (c *Controller) render() {
	c.mu.RLock()
	fn := c.onRender
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
