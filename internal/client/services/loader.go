package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dmitrijs2005/promptvault/internal/client/client"
	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/client/repositories/blobs"
	"github.com/dmitrijs2005/promptvault/internal/common"
	"github.com/dmitrijs2005/promptvault/internal/logging"
)

type LoadSource string

const (
	SourceRemote LoadSource = "remote"
	SourceLocal  LoadSource = "local"
	SourceEmpty  LoadSource = "empty"
)

// LoadResult describes where the collection came from.
type LoadResult struct {
	Source  LoadSource
	Count   int
	Warning string
}

// Loader reconciles the catalog once per session: the remote primary
// snapshot wins when it is reachable and non-empty, the local copy is the
// fallback, an empty collection is the last resort.
type Loader struct {
	catalog *Catalog
	local   blobs.Repository
	remote  client.Client
	session *Session
	notices Notices
	logger  logging.Logger

	// set when the load could not reach the remote store
	pending atomic.Bool
}

// NewLoader creates a loader. remote may be nil when no remote store is
// configured.
func NewLoader(catalog *Catalog, local blobs.Repository, remote client.Client, session *Session, notices Notices, logger logging.Logger) *Loader {
	return &Loader{catalog: catalog, local: local, remote: remote, session: session, notices: notices, logger: logger}
}

// Load materializes the collection and opens the catalog readiness gate.
// The gate is opened on every path, including failures.
func (l *Loader) Load(ctx context.Context) (LoadResult, error) {
	if l.catalog.Ready() {
		return LoadResult{}, ErrAlreadyLoaded
	}
	defer l.catalog.MarkReady()

	var warning string

	if l.remote != nil && l.session.Authorized() {
		records, err := l.remote.Download(ctx, common.PrimaryPath)
		switch {
		case err == nil && len(records) > 0:
			l.catalog.Replace(records)
			l.mirror(ctx, records)
			l.logger.Info(ctx, "catalog loaded from remote", "count", len(records))
			return LoadResult{Source: SourceRemote, Count: len(records)}, nil

		case err == nil, errors.Is(err, client.ErrNotFound):
			l.logger.Debug(ctx, "remote snapshot is empty")

		case errors.Is(err, client.ErrMalformedPayload):
			warning = "Remote database is damaged, using the local copy"
			l.logger.Warn(ctx, "remote snapshot malformed", "error", err)

		default:
			warning = "Could not reach the remote database, using the local copy"
			l.logger.Warn(ctx, "remote snapshot unavailable", "error", err)
			l.pending.Store(true)
			l.session.SetOnline(false)
		}
	}

	res := l.loadLocal(ctx)
	if warning != "" {
		res.Warning = warning
		l.notices.Notify(NoticeWarn, "%s", warning)
	}
	return res, nil
}

func (l *Loader) loadLocal(ctx context.Context) LoadResult {
	var records []models.Record
	err := blobs.GetJSON(ctx, l.local, CollectionKey, &records)

	switch {
	case err == nil && len(records) > 0:
		l.catalog.Replace(records)
		l.logger.Info(ctx, "catalog loaded from local store", "count", len(records))
		return LoadResult{Source: SourceLocal, Count: len(records)}

	case err == nil, errors.Is(err, common.ErrorNotFound):
		l.logger.Info(ctx, "catalog is empty")

	default:
		l.logger.Error(ctx, "local copy unreadable", "error", err)
		l.notices.Notify(NoticeError, "Local copy could not be read: %v", err)
	}

	l.catalog.Replace(nil)
	return LoadResult{Source: SourceEmpty}
}

// mirror copies a remote snapshot into the local store for offline use.
func (l *Loader) mirror(ctx context.Context, records []models.Record) {
	if err := blobs.PutJSON(ctx, l.local, CollectionKey, records); err != nil {
		l.logger.Error(ctx, "mirror remote snapshot", "error", err)
		l.notices.Notify(NoticeError, "Could not save an offline copy: %v", err)
	}
}

// Pending reports whether the remote snapshot still has to be read because
// the load could not reach the remote store.
func (l *Loader) Pending() bool {
	return l.pending.Load()
}

// Retry reads the primary snapshot that the load could not reach and folds
// the current catalog into it, so records edited offline win by id and
// remote records are kept. It is a no-op unless a retry is pending. A
// transport failure keeps the retry pending; any other outcome clears it.
// The returned count is the number of remote records taken in.
func (l *Loader) Retry(ctx context.Context) (int, error) {
	if !l.pending.Load() || l.remote == nil || !l.session.Authorized() {
		return 0, nil
	}

	records, err := l.remote.Download(ctx, common.PrimaryPath)
	switch {
	case err == nil, errors.Is(err, client.ErrNotFound):
	case client.IsTransport(err):
		return 0, fmt.Errorf("retry remote read: %w", err)
	default:
		l.pending.Store(false)
		l.logger.Warn(ctx, "remote snapshot malformed on retry", "error", err)
		return 0, fmt.Errorf("retry remote read: %w", err)
	}

	l.pending.Store(false)
	if len(records) == 0 {
		return 0, nil
	}

	l.catalog.addLoaded(records)
	if err := l.catalog.Swap(func(current []models.Record) []models.Record {
		return Merge(records, current)
	}); err != nil {
		return 0, err
	}
	l.logger.Info(ctx, "remote snapshot merged after reconnect", "count", len(records))
	return len(records), nil
}
