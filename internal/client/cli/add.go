package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
)

var fieldLabels = map[string]string{
	"title":    "Title",
	"category": "Category",
	"prompt":   "Prompt text",
	"note":     "Note",
	"imageUrl": "Image URL",
}

// Add walks through the create form. Every answer is saved to the draft
// immediately, so leaving the form (or losing the session) keeps the input
// for the next "add".
func (a *App) Add(ctx context.Context, args []string) error {
	d := a.drafts.Mount()
	if !d.IsEmpty() {
		fmt.Fprintln(a.out, "Restored unsaved draft. Press Enter to keep a value.")
	}

	for _, field := range models.DraftFields {
		label := fieldLabels[field]
		if cur := d.Get(field); cur != "" {
			label = fmt.Sprintf("%s [%s]", label, cur)
		}

		var value string
		var err error
		if field == "prompt" {
			value, err = GetMultiline(a.reader, label, a.out)
		} else {
			value, err = GetSimpleText(a.reader, label, a.out)
		}
		if err != nil {
			a.drafts.Unmount()
			return err
		}
		if value == "" {
			continue
		}
		if err := a.drafts.Set(field, value); err != nil {
			a.drafts.Unmount()
			return err
		}
	}

	answer, err := GetSimpleText(a.reader, "Save? (y)es / (n)o, keep draft / (c)ancel", a.out)
	if err != nil {
		a.drafts.Unmount()
		return err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		r, err := a.drafts.Commit(a.catalog)
		if err != nil {
			a.drafts.Unmount()
			return err
		}
		fmt.Fprintf(a.out, "Saved %s\n", shortID(r.ID))
	case "c", "cancel":
		a.drafts.Cancel()
		fmt.Fprintln(a.out, "Draft discarded.")
	default:
		a.drafts.Unmount()
		fmt.Fprintln(a.out, "Draft kept.")
	}
	return nil
}
