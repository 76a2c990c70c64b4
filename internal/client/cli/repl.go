package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Add(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Category(ctx context.Context, args []string) error
	Categories(ctx context.Context, args []string) error
	Use(ctx context.Context, args []string) error
	History(ctx context.Context, args []string) error
	Import(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error
	Save(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	Connect(ctx context.Context, args []string) error
	RemoveFile(ctx context.Context, args []string) error
	pendingNotices() []string
}

const helpText = `Available commands:
  (l)ist [category]        list prompts, newest first
  show <id>                show one prompt
  add                      create a prompt (unsaved input is kept as a draft)
  edit <id>                edit a prompt
  delete <id>              delete a prompt
  category <id> <name>     change the category of a prompt
  categories               list categories in use
  use <id>                 print the prompt text and count a use
  history <id> [url]       show or add generated images
  import <file>            merge a JSON array of prompts
  export [file]            write all prompts as JSON
  save                     write the catalog now
  status                   show sync status
  connect [token]          set the remote access token
  rmfile <path>            delete a remote attachment
  exit | quit              leave the program`

// runREPL reads commands line by line from reader and dispatches them to a.
// Notices raised by background work are printed before every prompt. The
// loop exits on EOF, on "exit"/"quit" or when ctx is done.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		for _, n := range a.pendingNotices() {
			printlnFn(n)
		}

		printlnFn(fmt.Sprintf("pv %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "l", "list":
			cmdErr = a.List(ctx, args)
		case "show":
			cmdErr = a.Show(ctx, args)
		case "add":
			cmdErr = a.Add(ctx, args)
		case "edit":
			cmdErr = a.Edit(ctx, args)
		case "delete", "rm":
			cmdErr = a.Delete(ctx, args)
		case "category":
			cmdErr = a.Category(ctx, args)
		case "categories":
			cmdErr = a.Categories(ctx, args)
		case "use":
			cmdErr = a.Use(ctx, args)
		case "history":
			cmdErr = a.History(ctx, args)
		case "import":
			cmdErr = a.Import(ctx, args)
		case "export":
			cmdErr = a.Export(ctx, args)
		case "save", "sync":
			cmdErr = a.Save(ctx, args)
		case "status":
			cmdErr = a.Status(ctx, args)
		case "connect":
			cmdErr = a.Connect(ctx, args)
		case "rmfile":
			cmdErr = a.RemoveFile(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
		if err != nil {
			return
		}
	}
}

// errUsage reports wrong command arguments.
type errUsage string

func (e errUsage) Error() string { return "usage: " + string(e) }
