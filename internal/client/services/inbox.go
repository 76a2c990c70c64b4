package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/filex"
	"github.com/dmitrijs2005/promptvault/internal/logging"
	"github.com/fsnotify/fsnotify"
)

const (
	inboxProcessed = "processed"
	inboxFailed    = "failed"
	inboxSettle    = 300 * time.Millisecond
)

// Inbox watches a directory and imports every *.json file dropped into it.
// Imported files move to processed/, rejected ones to failed/.
type Inbox struct {
	dir      string
	importer *Importer
	notices  Notices
	logger   logging.Logger
	settle   time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func NewInbox(dir string, importer *Importer, notices Notices, logger logging.Logger) *Inbox {
	return &Inbox{
		dir:      dir,
		importer: importer,
		notices:  notices,
		logger:   logger,
		settle:   inboxSettle,
		pending:  make(map[string]*time.Timer),
	}
}

// Run imports files already present and then watches the directory until
// ctx is done. It waits for the catalog to become ready first.
func (in *Inbox) Run(ctx context.Context) error {
	dir, err := filex.EnsureDir(in.dir)
	if err != nil {
		return fmt.Errorf("inbox dir: %w", err)
	}
	in.dir = dir

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	select {
	case <-in.importer.catalog.ReadyC():
	case <-ctx.Done():
		return nil
	}

	if err := in.scan(ctx); err != nil {
		in.logger.Warn(ctx, "inbox scan", "error", err)
	}

	defer in.wg.Wait()
	defer in.cancelPending()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				in.schedule(ctx, ev.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			in.logger.Warn(ctx, "inbox watcher", "error", err)
		}
	}
}

func (in *Inbox) scan(ctx context.Context) error {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		in.process(ctx, filepath.Join(in.dir, e.Name()))
	}
	return nil
}

// schedule processes name once no event arrived for it during the settle
// period, so half-written files are not read.
func (in *Inbox) schedule(ctx context.Context, name string) {
	if !isImportFile(name) {
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if t, ok := in.pending[name]; ok {
		if t.Stop() {
			in.wg.Done()
		}
	}
	in.wg.Add(1)
	in.pending[name] = time.AfterFunc(in.settle, func() {
		defer in.wg.Done()
		in.mu.Lock()
		delete(in.pending, name)
		in.mu.Unlock()
		in.process(ctx, name)
	})
}

func (in *Inbox) cancelPending() {
	in.mu.Lock()
	defer in.mu.Unlock()
	for name, t := range in.pending {
		if t.Stop() {
			in.wg.Done()
		}
		delete(in.pending, name)
	}
}

func (in *Inbox) process(ctx context.Context, path string) {
	if !isImportFile(path) {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}

	base := filepath.Base(path)
	res, err := in.importer.ImportFile(ctx, path)
	if err != nil {
		in.logger.Warn(ctx, "inbox import failed", "file", base, "error", err)
		in.notices.Notify(NoticeError, "Import of %s failed: %v", base, err)
		in.move(ctx, path, inboxFailed)
		return
	}

	in.notices.Notify(NoticeInfo, "Imported %s: %d added, %d updated, %d skipped", base, res.Added, res.Updated, res.Dropped)
	in.move(ctx, path, inboxProcessed)
}

func (in *Inbox) move(ctx context.Context, path, sub string) {
	dst, err := filex.EnsureDir(filepath.Join(in.dir, sub))
	if err != nil {
		in.logger.Warn(ctx, "inbox move", "error", err)
		return
	}
	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(path))
	if err := os.Rename(path, filepath.Join(dst, name)); err != nil {
		in.logger.Warn(ctx, "inbox move", "file", path, "error", err)
	}
}

func isImportFile(name string) bool {
	base := filepath.Base(name)
	return strings.EqualFold(filepath.Ext(base), ".json") && !strings.HasPrefix(base, ".")
}
