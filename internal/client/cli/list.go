package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
)

const shortIDLen = 8

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// primaryText picks the text shown for a record: the "original" variant
// if present, otherwise the first variant by name.
func primaryText(r models.Record) string {
	if v, ok := r.Variants["original"]; ok && v != "" {
		return v
	}
	names := make([]string, 0, len(r.Variants))
	for name := range r.Variants {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if r.Variants[name] != "" {
			return r.Variants[name]
		}
	}
	return ""
}

func displayTitle(r models.Record) string {
	if r.Title != "" {
		return r.Title
	}
	text := strings.Join(strings.Fields(primaryText(r)), " ")
	if len(text) > 40 {
		return text[:40] + "..."
	}
	return text
}

func (a *App) List(ctx context.Context, args []string) error {
	category := strings.Join(args, " ")
	records := a.catalog.Sorted(category)
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No prompts.")
		return nil
	}

	for _, r := range records {
		cat := r.Category
		if cat == "" {
			cat = "-"
		}
		fmt.Fprintf(a.out, "%-8s  %-14s  %s  (used %d)\n", shortID(r.ID), cat, displayTitle(r), r.UsageCount)
	}
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("show <id>")
	}
	r, err := a.catalog.Find(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "ID:       %s\n", r.ID)
	fmt.Fprintf(a.out, "Title:    %s\n", r.Title)
	fmt.Fprintf(a.out, "Category: %s\n", r.Category)
	fmt.Fprintf(a.out, "Created:  %s\n", time.UnixMilli(r.CreatedAt).Format(time.DateTime))
	fmt.Fprintf(a.out, "Used:     %d\n", r.UsageCount)
	if r.ImageURL != "" {
		fmt.Fprintf(a.out, "Image:    %s\n", r.ImageURL)
	}
	if r.Note != "" {
		fmt.Fprintf(a.out, "Note:     %s\n", r.Note)
	}

	names := make([]string, 0, len(r.Variants))
	for name := range r.Variants {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(a.out, "[%s]\n%s\n", name, r.Variants[name])
	}

	if len(r.GenerationHistory) > 0 {
		fmt.Fprintln(a.out, "Generated:")
		for i, h := range r.GenerationHistory {
			fmt.Fprintf(a.out, "  %d. %s\n", i+1, h.URL)
		}
	}
	return nil
}

func (a *App) Categories(ctx context.Context, args []string) error {
	cats := a.catalog.Categories()
	if len(cats) == 0 {
		fmt.Fprintln(a.out, "No categories.")
		return nil
	}
	for _, c := range cats {
		fmt.Fprintln(a.out, c)
	}
	return nil
}
