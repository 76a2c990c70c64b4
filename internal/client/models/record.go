// Package models defines the catalog record, its generation history and the
// create-form draft.
package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// MaxHistory caps GenerationHistory; older entries are evicted first.
const MaxHistory = 5

// Variants maps a variant name (language or style) to prompt text.
type Variants map[string]string

// HistoryEntry references one generated image. Keys other than url,
// provider and createdAt are kept in Extra.
type HistoryEntry struct {
	URL       string
	Provider  string
	CreatedAt int64

	Extra map[string]json.RawMessage
}

const (
	historyURL       = "url"
	historyProvider  = "provider"
	historyCreatedAt = "createdAt"
)

// Clone returns a deep copy of e.
func (e HistoryEntry) Clone() HistoryEntry {
	e.Extra = cloneRaw(e.Extra)
	return e
}

func (e HistoryEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+3)
	for k, v := range e.Extra {
		out[k] = v
	}
	putString(out, historyURL, e.URL)
	putString(out, historyProvider, e.Provider)
	if e.CreatedAt != 0 {
		out[historyCreatedAt] = e.CreatedAt
	}
	return json.Marshal(out)
}

func (e *HistoryEntry) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("history entry must be a JSON object")
	}

	var entry HistoryEntry
	if err := decodeFields(raw, map[string]any{
		historyURL:       &entry.URL,
		historyProvider:  &entry.Provider,
		historyCreatedAt: &entry.CreatedAt,
	}, &entry.Extra); err != nil {
		return err
	}

	*e = entry
	return nil
}

// Record is one prompt entry of the catalog.
//
// ID, CreatedAt, UsageCount and GenerationHistory are managed by the catalog;
// the remaining fields are payload. Fields this client does not know about are
// kept in Extra so snapshots written by newer clients survive a round trip.
type Record struct {
	ID                string
	CreatedAt         int64
	UsageCount        int
	GenerationHistory []HistoryEntry

	Title    string
	Category string
	Variants Variants
	Note     string
	ImageURL string

	Extra map[string]json.RawMessage
}

const (
	fieldID         = "id"
	fieldCreatedAt  = "createdAt"
	fieldUsageCount = "usageCount"
	fieldHistory    = "generationHistory"
	fieldTitle      = "title"
	fieldCategory   = "category"
	fieldVariants   = "variants"
	fieldNote       = "note"
	fieldImageURL   = "imageUrl"
)

// AppendHistory puts e at the front of the history and evicts the oldest
// entries beyond MaxHistory.
func (r *Record) AppendHistory(e HistoryEntry) {
	h := make([]HistoryEntry, 0, MaxHistory)
	h = append(h, e)
	for _, old := range r.GenerationHistory {
		if len(h) == MaxHistory {
			break
		}
		h = append(h, old)
	}
	r.GenerationHistory = h
}

// HasPayload reports whether the record carries at least one variant text.
func (r *Record) HasPayload() bool {
	for _, v := range r.Variants {
		if v != "" {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	c := r
	if r.GenerationHistory != nil {
		c.GenerationHistory = make([]HistoryEntry, len(r.GenerationHistory))
		for i, e := range r.GenerationHistory {
			c.GenerationHistory[i] = e.Clone()
		}
	}
	if r.Variants != nil {
		c.Variants = maps.Clone(r.Variants)
	}
	c.Extra = cloneRaw(r.Extra)
	return c
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}

// CloneAll deep-copies a slice of records.
func CloneAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+9)
	for k, v := range r.Extra {
		out[k] = v
	}

	if r.ID != "" {
		out[fieldID] = r.ID
	}
	out[fieldCreatedAt] = r.CreatedAt
	out[fieldUsageCount] = r.UsageCount

	history := r.GenerationHistory
	if history == nil {
		history = []HistoryEntry{}
	}
	out[fieldHistory] = history

	putString(out, fieldTitle, r.Title)
	putString(out, fieldCategory, r.Category)
	putString(out, fieldNote, r.Note)
	putString(out, fieldImageURL, r.ImageURL)
	if len(r.Variants) > 0 {
		out[fieldVariants] = r.Variants
	}

	return json.Marshal(out)
}

func putString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("record must be a JSON object")
	}

	var rec Record
	if err := decodeFields(raw, map[string]any{
		fieldID:         &rec.ID,
		fieldCreatedAt:  &rec.CreatedAt,
		fieldUsageCount: &rec.UsageCount,
		fieldHistory:    &rec.GenerationHistory,
		fieldTitle:      &rec.Title,
		fieldCategory:   &rec.Category,
		fieldVariants:   &rec.Variants,
		fieldNote:       &rec.Note,
		fieldImageURL:   &rec.ImageURL,
	}, &rec.Extra); err != nil {
		return err
	}

	if rec.UsageCount < 0 {
		return fmt.Errorf("field %q: negative value %d", fieldUsageCount, rec.UsageCount)
	}
	if len(rec.GenerationHistory) > MaxHistory {
		rec.GenerationHistory = rec.GenerationHistory[:MaxHistory]
	}

	*r = rec
	return nil
}

// decodeFields unmarshals the known keys of raw into targets and collects
// the rest into extra.
func decodeFields(raw map[string]json.RawMessage, targets map[string]any, extra *map[string]json.RawMessage) error {
	for key, value := range raw {
		target, known := targets[key]
		if !known {
			if *extra == nil {
				*extra = make(map[string]json.RawMessage)
			}
			(*extra)[key] = value
			continue
		}
		if err := json.Unmarshal(value, target); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	return nil
}
