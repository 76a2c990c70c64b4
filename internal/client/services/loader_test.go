package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/promptvault/internal/client/client"
	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/client/repositories/blobs"
	"github.com/dmitrijs2005/promptvault/internal/common"
	"github.com/dmitrijs2005/promptvault/internal/logging"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loaderFixture struct {
	catalog *Catalog
	local   *memBlobs
	remote  *fakeRemote
	notices *noticeLog
	loader  *Loader
}

func newLoaderFixture(token string) *loaderFixture {
	f := &loaderFixture{
		catalog: NewCatalog(),
		local:   newMemBlobs(),
		remote:  newFakeRemote(),
		notices: &noticeLog{},
	}
	f.loader = NewLoader(f.catalog, f.local, f.remote, NewSession("alice", token, true), f.notices, logging.Nop())
	return f
}

func (f *loaderFixture) seedLocal(t *testing.T, records ...models.Record) {
	t.Helper()
	require.NoError(t, blobs.PutJSON(context.Background(), f.local, CollectionKey, records))
}

func TestLoad_RemoteHitMirrorsLocally(t *testing.T) {
	f := newLoaderFixture("tok")
	remote := []models.Record{rec("a", "p")}
	f.remote.snapshots[common.PrimaryPath] = remote

	res, err := f.loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, LoadResult{Source: SourceRemote, Count: 1}, res)
	assert.True(t, f.catalog.Ready())
	if diff := cmp.Diff(remote, f.catalog.Snapshot()); diff != "" {
		t.Fatalf("catalog mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(remote, f.local.records(t)); diff != "" {
		t.Fatalf("local mirror mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, f.notices.levels())
}

func TestLoad_TransportFailureFallsBackWithWarning(t *testing.T) {
	f := newLoaderFixture("tok")
	f.remote.downloadErr = fmt.Errorf("%w: dial tcp: refused", client.ErrUnavailable)
	f.seedLocal(t, rec("b", "q"))

	res, err := f.loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourceLocal, res.Source)
	assert.NotEmpty(t, res.Warning)
	require.Len(t, f.catalog.Snapshot(), 1)
	assert.Equal(t, "b", f.catalog.Snapshot()[0].ID)
	assert.Equal(t, []NoticeLevel{NoticeWarn}, f.notices.levels())
}

func TestLoad_RemoteFallbacks(t *testing.T) {
	tests := []struct {
		name        string
		token       string
		setup       func(f *loaderFixture)
		wantWarning bool
	}{
		{
			name:  "not found",
			token: "tok",
		},
		{
			name:  "remote empty array",
			token: "tok",
			setup: func(f *loaderFixture) { f.remote.snapshots[common.PrimaryPath] = []models.Record{} },
		},
		{
			name:  "not authorized skips remote",
			token: "",
			setup: func(f *loaderFixture) { f.remote.downloadErr = errors.New("must not be called") },
		},
		{
			name:        "malformed remote",
			token:       "tok",
			setup:       func(f *loaderFixture) { f.remote.downloadErr = client.ErrMalformedPayload },
			wantWarning: true,
		},
		{
			name:        "unauthorized",
			token:       "tok",
			setup:       func(f *loaderFixture) { f.remote.downloadErr = client.ErrUnauthorized },
			wantWarning: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLoaderFixture(tt.token)
			if tt.setup != nil {
				tt.setup(f)
			}
			f.seedLocal(t, rec("local", "p"))

			res, err := f.loader.Load(context.Background())
			require.NoError(t, err)

			assert.Equal(t, SourceLocal, res.Source)
			assert.Equal(t, 1, res.Count)
			assert.Equal(t, tt.wantWarning, res.Warning != "")
			assert.True(t, f.catalog.Ready())
		})
	}
}

func TestLoad_NothingAnywhereGivesEmptyCollection(t *testing.T) {
	f := newLoaderFixture("tok")
	f.remote.downloadErr = client.ErrUnavailable

	res, err := f.loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourceEmpty, res.Source)
	assert.NotEmpty(t, res.Warning)
	assert.Zero(t, f.catalog.Len())
	assert.True(t, f.catalog.Ready())
	assert.False(t, f.local.has(CollectionKey), "loader must not write an empty collection")
}

func TestLoad_UnreadableLocalCopy(t *testing.T) {
	f := newLoaderFixture("")
	f.local.getErr = fmt.Errorf("%w: disk gone", blobs.ErrStorage)

	res, err := f.loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceEmpty, res.Source)
	assert.Equal(t, []NoticeLevel{NoticeError}, f.notices.levels())
	assert.True(t, f.catalog.Ready())
}

func TestLoad_MirrorFailureStillSucceeds(t *testing.T) {
	f := newLoaderFixture("tok")
	f.remote.snapshots[common.PrimaryPath] = []models.Record{rec("a", "p")}
	f.local.putErr = blobs.ErrStorage

	res, err := f.loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, res.Source)
	assert.Equal(t, []NoticeLevel{NoticeError}, f.notices.levels())
}

func TestLoad_OnlyOnce(t *testing.T) {
	f := newLoaderFixture("")
	_, err := f.loader.Load(context.Background())
	require.NoError(t, err)

	_, err = f.loader.Load(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyLoaded)
}

func TestLoad_NoRemoteConfigured(t *testing.T) {
	catalog := NewCatalog()
	local := newMemBlobs()
	loader := NewLoader(catalog, local, nil, NewSession("", "tok", false), &noticeLog{}, logging.Nop())

	res, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceEmpty, res.Source)
}

func TestLoad_TransportFailureThenEmptyFlushKeepsRemote(t *testing.T) {
	f := newLoaderFixture("tok")
	f.remote.snapshots[common.PrimaryPath] = []models.Record{rec("a", "p")}
	f.remote.downloadErr = client.ErrUnavailable

	res, err := f.loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceEmpty, res.Source)
	assert.True(t, f.loader.Pending())
	assert.False(t, f.loader.session.Online())

	wb := NewWriteBack(WriteBackOptions{
		Catalog:    f.catalog,
		Local:      f.local,
		Remote:     f.remote,
		Session:    f.loader.session,
		Logger:     logging.Nop(),
		HoldRemote: f.loader.Pending,
	})

	f.remote.downloadErr = nil
	f.loader.session.SetOnline(true)
	for _, trigger := range []Trigger{TriggerManual, TriggerInterval} {
		require.NoError(t, wb.Flush(context.Background(), trigger))
	}

	assert.Empty(t, f.remote.uploadPaths())
	if diff := cmp.Diff([]models.Record{rec("a", "p")}, f.remote.snapshots[common.PrimaryPath]); diff != "" {
		t.Fatalf("remote snapshot changed (-want +got):\n%s", diff)
	}
}

func TestRetry_MergesRemoteWithOfflineEdits(t *testing.T) {
	f := newLoaderFixture("tok")
	f.remote.downloadErr = client.ErrUnavailable
	_, err := f.loader.Load(context.Background())
	require.NoError(t, err)

	_, err = f.catalog.Add(models.Record{Variants: models.Variants{"original": "offline"}})
	require.NoError(t, err)

	// still unreachable: retry stays pending
	n, err := f.loader.Retry(context.Background())
	require.ErrorIs(t, err, client.ErrUnavailable)
	assert.Zero(t, n)
	assert.True(t, f.loader.Pending())

	f.remote.downloadErr = nil
	f.remote.snapshots[common.PrimaryPath] = []models.Record{rec("a", "p"), rec("b", "q")}

	n, err = f.loader.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, f.loader.Pending())

	got := f.catalog.Snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "offline", got[2].Variants["original"])

	// nothing pending any more
	n, err = f.loader.Retry(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRetry_NotPendingAfterRemoteLoad(t *testing.T) {
	f := newLoaderFixture("tok")
	f.remote.snapshots[common.PrimaryPath] = []models.Record{rec("a", "p")}
	_, err := f.loader.Load(context.Background())
	require.NoError(t, err)

	assert.False(t, f.loader.Pending())
	n, err := f.loader.Retry(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
