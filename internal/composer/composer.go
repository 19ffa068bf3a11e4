package composer

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkovac/brim/internal/domain"
	"github.com/dkovac/brim/internal/logstore"
	"github.com/dkovac/brim/pkg/validator"
)

var (
	ErrEmptyMessage = errors.New("message needs text or an attachment")
	ErrNoIdentity   = errors.New("no authenticated identity yet")
)

const (
	captionMaxLen      = 20
	placeholderWidth   = 480
	placeholderHeight  = 360
	placeholderURLBase = "https://picsum.photos/seed"
)

// IdentitySource supplies the author fields captured at send time.
type IdentitySource interface {
	Current() (domain.Identity, bool)
}

// Composer validates and submits outgoing messages and owns the single
// staged-attachment slot of the draft.
type Composer struct {
	store logstore.Log
	ident IdentitySource
	log   *zap.Logger

	mu     sync.Mutex
	staged *domain.Attachment
}

func New(store logstore.Log, ident IdentitySource, log *zap.Logger) *Composer {
	return &Composer{store: store, ident: ident, log: log}
}

// Stage classifies a file by media type and keeps its descriptor in the
// draft slot, replacing any previous one. Image files get a deterministic
// placeholder URL standing in for a real upload pipeline; other files
// keep only kind and name (there is no generic file storage).
func (c *Composer) Stage(fileName, mediaType string) domain.Attachment {
	att := buildAttachment(fileName, mediaType)
	c.mu.Lock()
	c.staged = &att
	c.mu.Unlock()
	c.log.Debug("attachment_staged", zap.String("file", fileName), zap.String("kind", string(att.Kind)))
	return att
}

// ClearAttachment empties the staged slot.
func (c *Composer) ClearAttachment() {
	c.mu.Lock()
	c.staged = nil
	c.mu.Unlock()
}

// Staged returns a copy of the staged attachment, if any.
func (c *Composer) Staged() (domain.Attachment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staged == nil {
		return domain.Attachment{}, false
	}
	return *c.staged, true
}

// Submit validates the draft and appends it to the log. On success the
// staged attachment is cleared; on failure the draft is left untouched so
// the user can retry without re-typing.
func (c *Composer) Submit(ctx context.Context, text string) error {
	c.mu.Lock()
	staged := c.staged
	c.mu.Unlock()

	if errs := validator.ValidateDraft(text, staged != nil); errs.HasErrors() {
		return ErrEmptyMessage
	}

	ident, ok := c.ident.Current()
	if !ok || ident.DisplayName == "" {
		return ErrNoIdentity
	}

	rec := logstore.Record{
		ClientKey:  uuid.New().String(),
		AuthorID:   ident.UserID,
		AuthorName: ident.DisplayName,
		Attachment: staged,
		// CommittedAt stays empty; the store assigns it on commit.
	}
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		rec.Text = &trimmed
	}

	if err := c.store.Append(ctx, rec); err != nil {
		c.log.Warn("submit_failed", zap.Error(err))
		return fmt.Errorf("submitting message: %w", err)
	}

	c.ClearAttachment()
	return nil
}

func buildAttachment(fileName, mediaType string) domain.Attachment {
	att := domain.Attachment{
		Kind:     domain.AttachmentGeneric,
		FileName: fileName,
	}
	if strings.HasPrefix(mediaType, "image/") {
		att.Kind = domain.AttachmentImage
		url := placeholderURL(fileName)
		caption := truncateCaption(fileName)
		att.URL = &url
		att.Caption = &caption
		att.Width = placeholderWidth
		att.Height = placeholderHeight
	}
	return att
}

// placeholderURL is deterministic in the filename so re-staging the same
// file renders the same image.
func placeholderURL(fileName string) string {
	h := fnv.New64a()
	h.Write([]byte(fileName))
	return fmt.Sprintf("%s/%x/%d/%d", placeholderURLBase, h.Sum64(), placeholderWidth, placeholderHeight)
}

func truncateCaption(fileName string) string {
	runes := []rune(fileName)
	if len(runes) <= captionMaxLen {
		return fileName
	}
	return string(runes[:captionMaxLen]) + "…"
}
