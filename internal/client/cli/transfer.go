package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/promptvault/internal/filex"
)

func (a *App) Import(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("import <file>")
	}
	res, err := a.importer.ImportFile(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Imported: %d added, %d updated, %d skipped, %d total\n", res.Added, res.Updated, res.Dropped, res.Total)
	return nil
}

// Export writes the catalog to a file, or to the terminal without one.
func (a *App) Export(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return errUsage("export [file]")
	}
	data, err := a.catalog.Export()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Fprintln(a.out, string(data))
		return nil
	}
	if err := filex.WriteFileAtomic(args[0], data, 0o600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(a.out, "Exported %d prompts to %s\n", a.catalog.Len(), args[0])
	return nil
}
