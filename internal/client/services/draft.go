package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/client/repositories/drafts"
	"github.com/dmitrijs2005/promptvault/internal/logging"
)

// DraftGuard autosaves the create form on every field change and restores
// it when the form is opened again. Storage problems are logged and never
// reach the user.
type DraftGuard struct {
	store  drafts.Store
	key    string
	logger logging.Logger

	mu      sync.Mutex
	draft   models.Draft
	mounted bool
}

func NewDraftGuard(store drafts.Store, logger logging.Logger) *DraftGuard {
	return &DraftGuard{store: store, key: DraftKey, logger: logger}
}

// Mount opens the form and restores whatever fields the stored draft holds.
func (g *DraftGuard) Mount() models.Draft {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.draft = g.restore()
	g.mounted = true
	return g.draft
}

// restore decodes the stored blob field by field. Fields that are missing
// or not strings are left empty; an unparsable blob yields an empty draft.
func (g *DraftGuard) restore() models.Draft {
	var d models.Draft

	blob, ok := g.store.Get(g.key)
	if !ok {
		return d
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &fields); err != nil {
		g.logger.Debug(context.Background(), "ignoring malformed draft", "error", err)
		return d
	}

	for _, name := range models.DraftFields {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		d.Set(name, v)
	}
	return d
}

// Set changes one field and saves the whole draft.
func (g *DraftGuard) Set(field, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.mounted {
		return ErrDraftClosed
	}
	if !g.draft.Set(field, value) {
		return fmt.Errorf("%w: %s (expected one of %s)", ErrUnknownField, field, strings.Join(models.DraftFields, ", "))
	}
	g.save()
	return nil
}

func (g *DraftGuard) save() {
	b, err := json.Marshal(g.draft)
	if err != nil {
		g.logger.Warn(context.Background(), "encode draft", "error", err)
		return
	}
	if err := g.store.Set(g.key, string(b)); err != nil {
		g.logger.Warn(context.Background(), "save draft", "error", err)
	}
}

// Draft returns the current form values.
func (g *DraftGuard) Draft() models.Draft {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.draft
}

// Unmount closes the form and keeps the stored draft for the next session.
func (g *DraftGuard) Unmount() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mounted = false
}

// Commit adds the draft to the catalog and clears it. On failure the draft
// is kept.
func (g *DraftGuard) Commit(catalog *Catalog) (models.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.mounted {
		return models.Record{}, ErrDraftClosed
	}
	if strings.TrimSpace(g.draft.Prompt) == "" {
		return models.Record{}, ErrEmptyDraft
	}

	r, err := catalog.Add(g.draft.ToRecord())
	if err != nil {
		return models.Record{}, err
	}
	g.clear()
	return r, nil
}

// Cancel discards the draft and closes the form.
func (g *DraftGuard) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clear()
}

func (g *DraftGuard) clear() {
	if err := g.store.Delete(g.key); err != nil {
		g.logger.Warn(context.Background(), "delete draft", "error", err)
	}
	g.draft = models.Draft{}
	g.mounted = false
}
