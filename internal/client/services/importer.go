package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/logging"
	"github.com/google/uuid"
)

// legacy keys accepted by Normalize
var (
	legacyPromptKeys = []string{"prompt", "text"}
	legacyAliases    = map[string]string{
		"usage":   "usageCount",
		"history": "generationHistory",
	}
)

// ImportResult summarizes one import.
type ImportResult struct {
	Added   int
	Updated int
	Dropped int
	Total   int
}

// ParseImport checks that data is a JSON array and splits it into raw
// entries.
func ParseImport(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrImportFormat
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFormat, err)
	}
	return entries, nil
}

// Normalize turns raw import entries into records. Entries that are not
// objects, fail to decode or carry no variants are dropped. Missing ids
// are minted with newID; missing usage and history get their zero values.
func Normalize(entries []json.RawMessage, newID func() string) (records []models.Record, dropped int) {
	records = make([]models.Record, 0, len(entries))
	for _, raw := range entries {
		r, ok := normalizeEntry(raw)
		if !ok {
			dropped++
			continue
		}
		if r.ID == "" {
			r.ID = newID()
		}
		if r.GenerationHistory == nil {
			r.GenerationHistory = []models.HistoryEntry{}
		}
		records = append(records, r)
	}
	return records, dropped
}

func normalizeEntry(raw json.RawMessage) (models.Record, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return models.Record{}, false
	}

	for legacy, key := range legacyAliases {
		if v, ok := fields[legacy]; ok {
			if _, has := fields[key]; !has {
				fields[key] = v
			}
			delete(fields, legacy)
		}
	}

	if _, has := fields["variants"]; !has {
		for _, key := range legacyPromptKeys {
			var text string
			if v, ok := fields[key]; ok && json.Unmarshal(v, &text) == nil && text != "" {
				b, _ := json.Marshal(models.Variants{"original": text})
				fields["variants"] = b
				delete(fields, key)
				break
			}
		}
	}

	b, err := json.Marshal(fields)
	if err != nil {
		return models.Record{}, false
	}
	var r models.Record
	if err := json.Unmarshal(b, &r); err != nil {
		return models.Record{}, false
	}
	if !r.HasPayload() {
		return models.Record{}, false
	}
	return r, true
}

// Merge folds incoming into current by id. Existing records keep their
// position; a record with a known id is overwritten in place, a new id is
// appended. Inputs are not modified.
func Merge(current, incoming []models.Record) []models.Record {
	out := make([]models.Record, 0, len(current)+len(incoming))
	pos := make(map[string]int, len(current)+len(incoming))

	put := func(r models.Record) {
		if i, ok := pos[r.ID]; ok {
			out[i] = r.Clone()
			return
		}
		pos[r.ID] = len(out)
		out = append(out, r.Clone())
	}

	for _, r := range current {
		put(r)
	}
	for _, r := range incoming {
		put(r)
	}
	return out
}

// Importer merges external record arrays into the catalog.
type Importer struct {
	catalog *Catalog
	logger  logging.Logger
	newID   func() string
}

func NewImporter(catalog *Catalog, logger logging.Logger) *Importer {
	return &Importer{catalog: catalog, logger: logger, newID: uuid.NewString}
}

// Import validates, normalizes and merges data into the catalog.
func (i *Importer) Import(ctx context.Context, data []byte) (ImportResult, error) {
	if !i.catalog.Ready() {
		return ImportResult{}, ErrNotReady
	}

	entries, err := ParseImport(data)
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	err = i.catalog.Swap(func(current []models.Record) []models.Record {
		known := make(map[string]struct{}, len(current))
		minted := make(map[string]struct{})
		for _, r := range current {
			known[r.ID] = struct{}{}
		}

		records, dropped := Normalize(entries, func() string {
			for {
				id := i.newID()
				_, exists := known[id]
				_, reused := minted[id]
				if id != "" && !exists && !reused {
					minted[id] = struct{}{}
					return id
				}
			}
		})

		res = ImportResult{Dropped: dropped}
		seen := make(map[string]struct{}, len(records))
		for _, r := range records {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			if _, ok := known[r.ID]; ok {
				res.Updated++
			} else {
				res.Added++
			}
		}

		merged := Merge(current, records)
		res.Total = len(merged)
		return merged
	})
	if err != nil {
		return ImportResult{}, err
	}

	i.logger.Info(ctx, "import merged", "added", res.Added, "updated", res.Updated, "dropped", res.Dropped, "total", res.Total)
	return res, nil
}

// ImportFile reads path and imports its content.
func (i *Importer) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read import file: %w", err)
	}
	return i.Import(ctx, data)
}
