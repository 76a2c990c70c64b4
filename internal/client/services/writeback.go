package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/client"
	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/client/notify"
	"github.com/dmitrijs2005/promptvault/internal/client/repositories/blobs"
	"github.com/dmitrijs2005/promptvault/internal/logging"
	"github.com/go-co-op/gocron/v2"
	"golang.org/x/crypto/blake2b"
)

// DefaultFlushInterval is the period of the safety flush.
const DefaultFlushInterval = 30 * time.Second

type Trigger string

const (
	TriggerChange   Trigger = "change"
	TriggerInterval Trigger = "interval"
	TriggerManual   Trigger = "manual"
)

// WriteStatus describes the last successful write.
type WriteStatus struct {
	At      time.Time
	Trigger Trigger
	Count   int
	Digest  string
	Remote  bool
	Path    string
}

// WriteBackOptions wires a WriteBack. Remote and Notifier may be nil.
type WriteBackOptions struct {
	Catalog  *Catalog
	Local    blobs.Repository
	Remote   client.Client
	Session  *Session
	Notifier notify.Notifier
	Notices  Notices
	Logger   logging.Logger
	Interval time.Duration

	// HoldRemote, if set, reports that remote writes must wait; the local
	// store is still written.
	HoldRemote func() bool
}

// WriteBack keeps the local store and, when the session allows it, the
// remote store in line with the catalog. Every write is a full snapshot.
//
// Writes are serialized and always take the catalog state at write time,
// so the state persisted last is never older than the one before it.
// Failed writes are reported as notices and not retried; the next trigger
// writes again.
type WriteBack struct {
	opts WriteBackOptions

	writeMu sync.Mutex

	statusMu sync.RWMutex
	status   WriteStatus

	// ids in the last successful remote write; guarded by writeMu
	sent map[string]struct{}

	sched       gocron.Scheduler
	unsubscribe func()
	ctx         context.Context
	stopped     atomic.Bool
	wg          sync.WaitGroup

	now func() time.Time
}

func NewWriteBack(opts WriteBackOptions) *WriteBack {
	if opts.Interval <= 0 {
		opts.Interval = DefaultFlushInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &WriteBack{opts: opts, now: time.Now, ctx: context.Background()}
}

// Start subscribes to catalog changes and schedules the interval flush.
// ctx supplies values to background writes; its cancellation does not
// abort them.
func (w *WriteBack) Start(ctx context.Context) error {
	w.ctx = context.WithoutCancel(ctx)

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(w.opts.Interval),
		gocron.NewTask(func() {
			w.run(TriggerInterval)
		}),
		gocron.WithName("flush-catalog"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule flush: %w", err)
	}

	w.sched = sched
	w.unsubscribe = w.opts.Catalog.OnChange(w.onChange)
	sched.Start()

	w.opts.Logger.Debug(ctx, "write-back started", "interval", w.opts.Interval.String())
	return nil
}

// Stop cancels future triggers. Writes already started run to completion;
// use Wait to block on them.
func (w *WriteBack) Stop() error {
	if !w.stopped.CompareAndSwap(false, true) {
		return nil
	}
	if w.unsubscribe != nil {
		w.unsubscribe()
	}
	if w.sched != nil {
		if err := w.sched.Shutdown(); err != nil {
			return fmt.Errorf("stop scheduler: %w", err)
		}
	}
	return nil
}

// Wait blocks until background writes dispatched so far have finished.
func (w *WriteBack) Wait() {
	w.wg.Wait()
}

func (w *WriteBack) onChange() {
	if w.stopped.Load() || !w.opts.Catalog.Ready() {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(TriggerChange)
	}()
}

func (w *WriteBack) run(trigger Trigger) {
	if w.stopped.Load() {
		return
	}
	// failures are already reported as notices
	_ = w.Flush(w.ctx, trigger)
}

// Flush writes the current collection. Before the catalog is ready it
// does nothing and returns ErrNotReady. An empty collection is written only
// by the change trigger, when a user emptied it; interval and manual
// flushes of an empty collection are skipped so an empty load never
// overwrites stored snapshots.
func (w *WriteBack) Flush(ctx context.Context, trigger Trigger) error {
	if !w.opts.Catalog.Ready() {
		w.opts.Logger.Debug(ctx, "write skipped, catalog not ready", "trigger", string(trigger))
		return ErrNotReady
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	records := w.opts.Catalog.Snapshot()
	if trigger != TriggerChange && len(records) == 0 {
		w.opts.Logger.Debug(ctx, "write skipped, catalog empty", "trigger", string(trigger))
		return nil
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	var errs []error

	if err := w.opts.Local.Put(ctx, CollectionKey, data); err != nil {
		w.opts.Logger.Error(ctx, "local write failed", "trigger", string(trigger), "error", err)
		w.notify(NoticeError, "Could not save locally: %v", err)
		errs = append(errs, err)
	}

	remote := false
	path := ""
	if w.opts.Remote != nil && w.opts.Session.CloudEnabled() && !w.remoteHeld() {
		path = w.opts.Session.RemotePath()
		if err := w.opts.Remote.Upload(ctx, path, records); err != nil {
			w.opts.Logger.Error(ctx, "remote write failed", "trigger", string(trigger), "path", path, "error", err)
			w.notify(NoticeError, "Could not save to the cloud: %v", err)
			errs = append(errs, err)
		} else {
			remote = true
			added := w.countAdded(records)
			w.sent = make(map[string]struct{}, len(records))
			for _, r := range records {
				w.sent[r.ID] = struct{}{}
			}
			w.afterRemoteWrite(ctx, path, added)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	sum := blake2b.Sum256(data)
	st := WriteStatus{
		At:      w.now(),
		Trigger: trigger,
		Count:   len(records),
		Digest:  hex.EncodeToString(sum[:]),
		Remote:  remote,
		Path:    path,
	}

	w.statusMu.Lock()
	w.status = st
	w.statusMu.Unlock()

	w.opts.Logger.Debug(ctx, "catalog written", "trigger", string(trigger), "count", st.Count, "remote", remote)
	return nil
}

// countAdded counts records that were neither loaded nor part of the last
// successful remote write.
func (w *WriteBack) countAdded(records []models.Record) int {
	n := 0
	for _, r := range records {
		if _, ok := w.sent[r.ID]; ok {
			continue
		}
		if w.opts.Catalog.wasLoaded(r.ID) {
			continue
		}
		n++
	}
	return n
}

// afterRemoteWrite alerts the administrator about writes of
// non-privileged users. added is the number of new records.
func (w *WriteBack) afterRemoteWrite(ctx context.Context, path string, added int) {
	if w.opts.Notifier == nil || w.opts.Session.Privileged() {
		return
	}
	w.opts.Notifier.Dispatch(ctx, notify.Notification{
		User:     w.opts.Session.User(),
		Filename: path,
		Count:    added,
	})
}

func (w *WriteBack) remoteHeld() bool {
	return w.opts.HoldRemote != nil && w.opts.HoldRemote()
}

func (w *WriteBack) notify(level NoticeLevel, format string, args ...any) {
	if w.opts.Notices != nil {
		w.opts.Notices.Notify(level, format, args...)
	}
}

// LastWrite returns the status of the last successful write; ok is false
// if nothing was written yet.
func (w *WriteBack) LastWrite() (WriteStatus, bool) {
	w.statusMu.RLock()
	defer w.statusMu.RUnlock()
	return w.status, !w.status.At.IsZero()
}
