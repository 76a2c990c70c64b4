// Package services holds the local-first persistence engine of the catalog
// client: the record catalog, the reconciliation loader, the write-back
// scheduler, the import merge engine and the draft guard.
package services

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/google/uuid"
)

const (
	// CollectionKey is the local store key holding the full record array.
	CollectionKey = "prompts"
	// DraftKey is the draft store key holding the create-form blob.
	DraftKey = "promptDraft"
)

// ChangeFunc is called after every change of the record collection.
type ChangeFunc func()

// Catalog is the in-memory record collection shared by the loader, the
// write-back scheduler, the importer and the command layer.
//
// Records keep insertion order; Sorted gives the newest-first view. The
// catalog becomes writable for the command layer once MarkReady was called
// by the loader.
type Catalog struct {
	mu      sync.RWMutex
	records []models.Record

	readyOnce sync.Once
	ready     chan struct{}

	// ids present when the catalog became ready, plus remote records
	// merged in later by the loader
	loaded map[string]struct{}

	lmu       sync.Mutex
	listeners map[int]ChangeFunc
	nextID    int

	now   func() time.Time
	newID func() string
}

func NewCatalog() *Catalog {
	return &Catalog{
		ready:     make(chan struct{}),
		listeners: make(map[int]ChangeFunc),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// MarkReady opens the readiness gate. Only the first call has an effect;
// it reports whether this call opened the gate.
func (c *Catalog) MarkReady() bool {
	opened := false
	c.readyOnce.Do(func() {
		c.mu.Lock()
		c.loaded = make(map[string]struct{}, len(c.records))
		c.mu.Unlock()
		c.addLoaded(c.Snapshot())
		close(c.ready)
		opened = true
	})
	return opened
}

func (c *Catalog) addLoaded(records []models.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		c.loaded[r.ID] = struct{}{}
	}
}

// wasLoaded reports whether id came from a store rather than from this
// session's edits.
func (c *Catalog) wasLoaded(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.loaded[id]
	return ok
}

func (c *Catalog) Ready() bool {
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

// ReadyC is closed when the catalog becomes ready.
func (c *Catalog) ReadyC() <-chan struct{} {
	return c.ready
}

// OnChange registers fn and returns a function removing it.
func (c *Catalog) OnChange(fn ChangeFunc) func() {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.lmu.Lock()
		defer c.lmu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Catalog) changed() {
	c.lmu.Lock()
	fns := make([]ChangeFunc, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.lmu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Snapshot returns a deep copy of the collection in insertion order.
func (c *Catalog) Snapshot() []models.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.CloneAll(c.records)
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Replace swaps the whole collection. The loader uses it before the
// catalog is ready.
func (c *Catalog) Replace(records []models.Record) {
	c.mu.Lock()
	c.records = models.CloneAll(records)
	c.mu.Unlock()
	c.changed()
}

// Swap atomically replaces the collection with fn(current). fn receives a
// copy it may keep or modify.
func (c *Catalog) Swap(fn func(current []models.Record) []models.Record) error {
	if !c.Ready() {
		return ErrNotReady
	}
	c.mu.Lock()
	c.records = models.CloneAll(fn(models.CloneAll(c.records)))
	c.mu.Unlock()
	c.changed()
	return nil
}

// Get returns a copy of the record with the given id.
func (c *Catalog) Get(id string) (models.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := c.indexOf(id)
	if i < 0 {
		return models.Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return c.records[i].Clone(), nil
}

// Find resolves a full id or a unique id prefix.
func (c *Catalog) Find(ref string) (models.Record, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Record{}, fmt.Errorf("%w: empty id", ErrRecordNotFound)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	found := -1
	for i, r := range c.records {
		if r.ID == ref {
			return r.Clone(), nil
		}
		if strings.HasPrefix(r.ID, ref) {
			if found >= 0 {
				return models.Record{}, fmt.Errorf("%w: ambiguous id %q", ErrRecordNotFound, ref)
			}
			found = i
		}
	}
	if found < 0 {
		return models.Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, ref)
	}
	return c.records[found].Clone(), nil
}

func (c *Catalog) indexOf(id string) int {
	return slices.IndexFunc(c.records, func(r models.Record) bool { return r.ID == id })
}

// Add stores a new record with a fresh id, the current time, zero usage and
// an empty history. The new record goes first.
func (c *Catalog) Add(r models.Record) (models.Record, error) {
	if !c.Ready() {
		return models.Record{}, ErrNotReady
	}

	r = r.Clone()
	r.ID = c.newID()
	r.CreatedAt = c.now().UnixMilli()
	r.UsageCount = 0
	r.GenerationHistory = []models.HistoryEntry{}

	c.mu.Lock()
	c.records = append([]models.Record{r}, c.records...)
	c.mu.Unlock()
	c.changed()

	return r.Clone(), nil
}

// mutate applies fn to the record with the given id under the write lock.
func (c *Catalog) mutate(id string, fn func(r *models.Record)) (models.Record, error) {
	if !c.Ready() {
		return models.Record{}, ErrNotReady
	}

	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return models.Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	fn(&c.records[i])
	out := c.records[i].Clone()
	c.mu.Unlock()

	c.changed()
	return out, nil
}

// Update replaces the payload of a record. Identity, creation time, usage
// and history of the stored record are kept.
func (c *Catalog) Update(id string, payload models.Record) (models.Record, error) {
	payload = payload.Clone()
	return c.mutate(id, func(r *models.Record) {
		payload.ID = r.ID
		payload.CreatedAt = r.CreatedAt
		payload.UsageCount = r.UsageCount
		payload.GenerationHistory = r.GenerationHistory
		*r = payload
	})
}

func (c *Catalog) SetCategory(id, category string) (models.Record, error) {
	return c.mutate(id, func(r *models.Record) {
		r.Category = category
	})
}

func (c *Catalog) IncrementUsage(id string) (models.Record, error) {
	return c.mutate(id, func(r *models.Record) {
		r.UsageCount++
	})
}

func (c *Catalog) AppendHistory(id string, e models.HistoryEntry) (models.Record, error) {
	if e.CreatedAt == 0 {
		e.CreatedAt = c.now().UnixMilli()
	}
	return c.mutate(id, func(r *models.Record) {
		r.AppendHistory(e)
	})
}

func (c *Catalog) Delete(id string) error {
	if !c.Ready() {
		return ErrNotReady
	}

	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	c.records = slices.Delete(c.records, i, i+1)
	c.mu.Unlock()

	c.changed()
	return nil
}

// Sorted returns the collection newest first, optionally limited to one
// category (case-insensitive).
func (c *Catalog) Sorted(category string) []models.Record {
	out := c.Snapshot()
	if category != "" {
		out = slices.DeleteFunc(out, func(r models.Record) bool {
			return !strings.EqualFold(r.Category, category)
		})
	}
	slices.SortStableFunc(out, func(a, b models.Record) int {
		return cmp.Compare(b.CreatedAt, a.CreatedAt)
	})
	return out
}

// Categories returns the distinct categories in use, sorted.
func (c *Catalog) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, r := range c.records {
		if r.Category == "" {
			continue
		}
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		out = append(out, r.Category)
	}
	slices.Sort(out)
	return out
}

// Export renders the collection as an indented JSON array in insertion order.
func (c *Catalog) Export() ([]byte, error) {
	records := c.Snapshot()
	if records == nil {
		records = []models.Record{}
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return b, nil
}
