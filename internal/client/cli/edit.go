package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
)

// Edit asks for new values of every payload field. Empty answers keep the
// current value, "-" clears it.
func (a *App) Edit(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("edit <id>")
	}
	r, err := a.catalog.Find(args[0])
	if err != nil {
		return err
	}

	ask := func(label string, cur *string) error {
		v, err := GetSimpleText(a.reader, fmt.Sprintf("%s [%s]", label, *cur), a.out)
		if err != nil {
			return err
		}
		switch v {
		case "":
		case "-":
			*cur = ""
		default:
			*cur = v
		}
		return nil
	}

	payload := r.Clone()
	for _, f := range []struct {
		label string
		value *string
	}{
		{"Title", &payload.Title},
		{"Category", &payload.Category},
		{"Note", &payload.Note},
		{"Image URL", &payload.ImageURL},
	} {
		if err := ask(f.label, f.value); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(payload.Variants))
	for name := range payload.Variants {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		v, err := GetMultiline(a.reader, fmt.Sprintf("Variant %q (empty keeps current):\n%s", name, payload.Variants[name]), a.out)
		if err != nil {
			return err
		}
		if v != "" {
			payload.Variants[name] = v
		}
	}

	if _, err := a.catalog.Update(r.ID, payload); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s\n", shortID(r.ID))
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("delete <id>")
	}
	r, err := a.catalog.Find(args[0])
	if err != nil {
		return err
	}
	if err := a.catalog.Delete(r.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", shortID(r.ID))
	return nil
}

func (a *App) Category(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage("category <id> <name>")
	}
	r, err := a.catalog.Find(args[0])
	if err != nil {
		return err
	}
	if _, err := a.catalog.SetCategory(r.ID, strings.Join(args[1:], " ")); err != nil {
		return err
	}
	return nil
}

// Use prints the prompt text for copying and counts the use.
func (a *App) Use(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage("use <id> [variant]")
	}
	r, err := a.catalog.Find(args[0])
	if err != nil {
		return err
	}

	text := primaryText(r)
	if len(args) == 2 {
		v, ok := r.Variants[args[1]]
		if !ok {
			return fmt.Errorf("no variant %q", args[1])
		}
		text = v
	}

	if _, err := a.catalog.IncrementUsage(r.ID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, text)
	return nil
}

func (a *App) History(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 3 {
		return errUsage("history <id> [url [provider]]")
	}
	r, err := a.catalog.Find(args[0])
	if err != nil {
		return err
	}

	if len(args) > 1 {
		e := models.HistoryEntry{URL: args[1]}
		if len(args) == 3 {
			e.Provider = args[2]
		}
		if r, err = a.catalog.AppendHistory(r.ID, e); err != nil {
			return err
		}
	}

	if len(r.GenerationHistory) == 0 {
		fmt.Fprintln(a.out, "No generated images.")
		return nil
	}
	for i, h := range r.GenerationHistory {
		line := fmt.Sprintf("%d. %s", i+1, h.URL)
		if h.Provider != "" {
			line += " (" + h.Provider + ")"
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}
