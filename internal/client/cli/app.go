package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/client"
	"github.com/dmitrijs2005/promptvault/internal/client/config"
	"github.com/dmitrijs2005/promptvault/internal/client/notify"
	"github.com/dmitrijs2005/promptvault/internal/client/repositories/blobs"
	"github.com/dmitrijs2005/promptvault/internal/client/repositories/drafts"
	"github.com/dmitrijs2005/promptvault/internal/client/services"
	"github.com/dmitrijs2005/promptvault/internal/filex"
	"github.com/dmitrijs2005/promptvault/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
	ModeLocal   Mode = "local"
)

// App wires the catalog engine to an interactive prompt.
type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	remote  client.Client
	session *services.Session

	catalog    *services.Catalog
	loader     *services.Loader
	writeBack  *services.WriteBack
	importer   *services.Importer
	drafts     *services.DraftGuard
	notices    *services.NoticeBoard
	dispatcher *notify.Dispatcher

	modeMu sync.Mutex
	Mode   Mode

	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens the local store and builds every component from c.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if _, err := filex.EnsureDir(c.DataDir); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	db, err := client.InitDatabase(ctx, c.DatabasePath())
	if err != nil {
		logger.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	draftStore, err := drafts.NewFileStore(c.DraftDir())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("draft store: %w", err)
	}

	var remote client.Client
	if c.RemoteURL != "" {
		remote, err = client.NewHTTPClient(c.RemoteURL, c.AccessToken, c.RequestTimeout)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	session := services.NewSession(c.User, c.AccessToken, c.Privileged())
	dispatcher := notify.NewDispatcher(c.NotifyEndpoint(), c.AccessToken, c.NotifyEvery, logger)

	a := newApp(c, logger, blobs.NewSQLiteRepository(db), remote, session, draftStore, dispatcher)
	a.db = db
	return a, nil
}

// newApp assembles an App from ready-made collaborators. remote may be nil.
func newApp(c *config.Config, logger logging.Logger, local blobs.Repository, remote client.Client,
	session *services.Session, draftStore drafts.Store, dispatcher *notify.Dispatcher) *App {

	catalog := services.NewCatalog()
	notices := services.NewNoticeBoard(c.NoticeTTL)
	loader := services.NewLoader(catalog, local, remote, session, notices, logger)

	opts := services.WriteBackOptions{
		Catalog:  catalog,
		Local:    local,
		Remote:   remote,
		Session:  session,
		Notices:  notices,
		Logger:   logger,
		Interval: c.FlushInterval,

		HoldRemote: loader.Pending,
	}
	if dispatcher != nil {
		opts.Notifier = dispatcher
	}

	mode := ModeLocal
	if remote != nil {
		mode = ModeOnline
	}

	return &App{
		config:     c,
		logger:     logger,
		remote:     remote,
		session:    session,
		catalog:    catalog,
		loader:     loader,
		writeBack:  services.NewWriteBack(opts),
		importer:   services.NewImporter(catalog, logger),
		drafts:     services.NewDraftGuard(draftStore, logger),
		notices:    notices,
		dispatcher: dispatcher,
		Mode:       mode,
		reader:     bufio.NewReader(os.Stdin),
		out:        os.Stdout,
	}
}

func (a *App) setMode(mode Mode) {
	a.modeMu.Lock()
	defer a.modeMu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		a.logger.Info(context.Background(), "switched mode", "mode", string(mode))
	}
}

func (a *App) mode() Mode {
	a.modeMu.Lock()
	defer a.modeMu.Unlock()
	return a.Mode
}

// Run loads the catalog, starts background work and blocks in the REPL
// until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	res, err := a.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	fmt.Fprintf(a.out, "Loaded %d prompts (%s)\n", res.Count, res.Source)
	if a.remote != nil && !a.session.Online() {
		a.setMode(ModeOffline)
	}

	if err := a.writeBack.Start(ctx); err != nil {
		return err
	}

	bg, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	if a.remote != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			services.WatchOnline(bg, a.remote, a.session, a.config.OnlineCheckInterval, a.logger, a.onlineChanged)
		}()
	}

	if a.config.InboxDir != "" {
		inbox := services.NewInbox(a.config.InboxDir, a.importer, a.notices, a.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := inbox.Run(bg); err != nil {
				a.logger.Error(bg, "import inbox stopped", "error", err)
			}
		}()
	}

	fmt.Fprintln(a.out, "PromptVault (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
	return nil
}

// onlineChanged pushes local changes made while offline once the remote
// store is back. If the load never reached the remote store, its snapshot
// is read and merged first; while that read keeps failing nothing is pushed.
func (a *App) onlineChanged(online bool) {
	if !online {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
	ctx := context.Background()

	n, err := a.loader.Retry(ctx)
	if err != nil {
		a.logger.Warn(ctx, "remote read after reconnect", "error", err)
		if a.loader.Pending() {
			// the watcher switches online again and retries on its next ping
			a.session.SetOnline(false)
			a.setMode(ModeOffline)
			return
		}
	}
	if n > 0 {
		a.notices.Notify(services.NoticeInfo, "Merged %d prompts from the remote database", n)
	}

	if err := a.writeBack.Flush(ctx, services.TriggerManual); err != nil {
		a.logger.Warn(ctx, "flush after reconnect", "error", err)
	}
}

// close stops the scheduler, writes the final state and releases the store.
func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.writeBack.Stop(); err != nil {
		a.logger.Warn(ctx, "stop write-back", "error", err)
	}
	a.writeBack.Wait()
	if a.catalog.Ready() {
		if err := a.writeBack.Flush(ctx, services.TriggerManual); err != nil {
			a.logger.Warn(ctx, "final flush", "error", err)
		}
	}
	if a.dispatcher != nil {
		a.dispatcher.Wait()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *App) getStatus() string {
	return fmt.Sprintf("%s@%s", a.session.User(), a.mode())
}

// pendingNotices returns notices raised since the last prompt.
func (a *App) pendingNotices() []string {
	var out []string
	for _, n := range a.notices.Take() {
		out = append(out, n.String())
	}
	return out
}
