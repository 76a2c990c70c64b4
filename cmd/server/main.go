package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dmitrijs2005/promptvault/internal/flagx"
	"github.com/dmitrijs2005/promptvault/internal/logging"
	"github.com/dmitrijs2005/promptvault/internal/server"
	"github.com/dmitrijs2005/promptvault/internal/server/config"
)

// Usage:
//
//	server [flags]                         run the snapshot service
//	server token -user alice [-admin] [-s secret]   print an access token
func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.New(os.Stdout, "json", cfg.LogLevel)

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(cfg, os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		return
	}

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "start server", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "server stopped", "error", err)
		os.Exit(1)
	}
}

func issueToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	user := fs.String("user", "", "user name")
	admin := fs.Bool("admin", false, "grant write access to the primary snapshot")

	if err := fs.Parse(flagx.FilterArgs(args, []string{"-user", "-admin"})); err != nil {
		return err
	}
	if *user == "" {
		return fmt.Errorf("token: -user is required")
	}

	tok, err := server.IssueToken(cfg, *user, *admin)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
