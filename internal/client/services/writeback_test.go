package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/client"
	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/client/notify"
	"github.com/dmitrijs2005/promptvault/internal/client/repositories/blobs"
	"github.com/dmitrijs2005/promptvault/internal/common"
	"github.com/dmitrijs2005/promptvault/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

type wbFixture struct {
	catalog  *Catalog
	local    *memBlobs
	remote   *fakeRemote
	session  *Session
	notifier *fakeNotifier
	notices  *noticeLog
	wb       *WriteBack
}

func newWBFixture(t *testing.T, session *Session, interval time.Duration) *wbFixture {
	t.Helper()
	f := &wbFixture{
		catalog:  NewCatalog(),
		local:    newMemBlobs(),
		remote:   newFakeRemote(),
		session:  session,
		notifier: &fakeNotifier{},
		notices:  &noticeLog{},
	}
	f.wb = NewWriteBack(WriteBackOptions{
		Catalog:  f.catalog,
		Local:    f.local,
		Remote:   f.remote,
		Session:  session,
		Notifier: f.notifier,
		Notices:  f.notices,
		Logger:   logging.Nop(),
		Interval: interval,
	})
	return f
}

func TestFlush_IntervalBeforeReadyLeavesLocalUntouched(t *testing.T) {
	f := newWBFixture(t, NewSession("alice", "", true), time.Hour)

	err := f.wb.Flush(context.Background(), TriggerInterval)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.False(t, f.local.has(CollectionKey))

	_, ok := f.wb.LastWrite()
	assert.False(t, ok)
}

func TestFlush_IntervalSkipsEmptyCollection(t *testing.T) {
	f := newWBFixture(t, NewSession("alice", "tok", true), time.Hour)
	f.catalog.MarkReady()

	require.NoError(t, f.wb.Flush(context.Background(), TriggerInterval))
	assert.False(t, f.local.has(CollectionKey))
	assert.Empty(t, f.remote.uploadPaths())

	// a change to an empty collection is a real state and is written
	require.NoError(t, f.wb.Flush(context.Background(), TriggerChange))
	assert.True(t, f.local.has(CollectionKey))
}

func TestFlush_ManualSkipsEmptyCollection(t *testing.T) {
	f := newWBFixture(t, NewSession("root", "tok", true), time.Hour)
	f.remote.snapshots[common.PrimaryPath] = []models.Record{rec("a", "p")}
	f.catalog.MarkReady()

	require.NoError(t, f.wb.Flush(context.Background(), TriggerManual))

	assert.Empty(t, f.remote.uploadPaths())
	assert.Len(t, f.remote.snapshots[common.PrimaryPath], 1)
	_, ok := f.wb.LastWrite()
	assert.False(t, ok)
}

func TestFlush_HeldRemoteWritesLocalOnly(t *testing.T) {
	f := newWBFixture(t, NewSession("root", "tok", true), time.Hour)
	held := true
	f.wb.opts.HoldRemote = func() bool { return held }
	f.catalog.Replace([]models.Record{rec("a", "p")})
	f.catalog.MarkReady()

	require.NoError(t, f.wb.Flush(context.Background(), TriggerManual))
	assert.Empty(t, f.remote.uploadPaths())
	assert.True(t, f.local.has(CollectionKey))

	held = false
	require.NoError(t, f.wb.Flush(context.Background(), TriggerManual))
	assert.Equal(t, []string{common.PrimaryPath}, f.remote.uploadPaths())
}

func TestFlush_PrivilegedWritesPrimary(t *testing.T) {
	f := newWBFixture(t, NewSession("admin", "tok", true), time.Hour)
	f.catalog.Replace([]models.Record{rec("a", "p")})
	f.catalog.MarkReady()
	f.wb.now = fixedClock(5000)

	require.NoError(t, f.wb.Flush(context.Background(), TriggerManual))

	assert.Equal(t, []string{common.PrimaryPath}, f.remote.uploadPaths())
	assert.Len(t, f.local.records(t), 1)
	assert.Empty(t, f.notifier.sent())

	st, ok := f.wb.LastWrite()
	require.True(t, ok)
	assert.Equal(t, time.UnixMilli(5000), st.At)
	assert.Equal(t, TriggerManual, st.Trigger)
	assert.Equal(t, 1, st.Count)
	assert.True(t, st.Remote)
	assert.Equal(t, common.PrimaryPath, st.Path)

	data, err := json.Marshal(f.catalog.Snapshot())
	require.NoError(t, err)
	sum := blake2b.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), st.Digest)
}

func TestFlush_ContributorWritesSuggestionAndNotifies(t *testing.T) {
	f := newWBFixture(t, NewSession("Bob Smith", "tok", false), time.Hour)
	f.catalog.Replace([]models.Record{rec("a", "p"), rec("b", "q")})
	f.catalog.MarkReady()
	f.catalog.newID = sequentialIDs("new")
	ctx := context.Background()

	_, err := f.catalog.Add(models.Record{Variants: models.Variants{"original": "one"}})
	require.NoError(t, err)
	_, err = f.catalog.Add(models.Record{Variants: models.Variants{"original": "two"}})
	require.NoError(t, err)
	require.NoError(t, f.wb.Flush(ctx, TriggerManual))

	want := common.SuggestionPath("Bob Smith")
	assert.Equal(t, []string{want}, f.remote.uploadPaths())
	assert.Len(t, f.remote.snapshots[want], 4)
	_, primaryWritten := f.remote.snapshots[common.PrimaryPath]
	assert.False(t, primaryWritten)

	// edits only, then one more record
	_, err = f.catalog.IncrementUsage("a")
	require.NoError(t, err)
	require.NoError(t, f.wb.Flush(ctx, TriggerManual))
	_, err = f.catalog.Add(models.Record{Variants: models.Variants{"original": "three"}})
	require.NoError(t, err)
	require.NoError(t, f.wb.Flush(ctx, TriggerManual))

	assert.Equal(t, []notify.Notification{
		{User: "Bob Smith", Filename: want, Count: 2},
		{User: "Bob Smith", Filename: want, Count: 0},
		{User: "Bob Smith", Filename: want, Count: 1},
	}, f.notifier.sent())
}

func TestFlush_OfflineWritesLocalOnly(t *testing.T) {
	s := NewSession("alice", "tok", true)
	s.SetOnline(false)
	f := newWBFixture(t, s, time.Hour)
	f.catalog.Replace([]models.Record{rec("a", "p")})
	f.catalog.MarkReady()

	require.NoError(t, f.wb.Flush(context.Background(), TriggerManual))
	assert.Empty(t, f.remote.uploadPaths())
	assert.True(t, f.local.has(CollectionKey))

	st, ok := f.wb.LastWrite()
	require.True(t, ok)
	assert.False(t, st.Remote)
}

func TestFlush_FailuresAreReportedNotRetried(t *testing.T) {
	f := newWBFixture(t, NewSession("alice", "tok", true), time.Hour)
	f.catalog.Replace([]models.Record{rec("a", "p")})
	f.catalog.MarkReady()
	f.local.putErr = blobs.ErrStorage
	f.remote.uploadErr = client.ErrUnavailable

	err := f.wb.Flush(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.ErrorIs(t, err, blobs.ErrStorage)
	assert.ErrorIs(t, err, client.ErrUnavailable)
	assert.Equal(t, []NoticeLevel{NoticeError, NoticeError}, f.notices.levels())
	assert.Zero(t, f.local.putCount())

	_, ok := f.wb.LastWrite()
	assert.False(t, ok)
}

func TestWriteBack_ChangeTriggerAfterReadyOnly(t *testing.T) {
	f := newWBFixture(t, NewSession("alice", "", true), time.Hour)
	require.NoError(t, f.wb.Start(context.Background()))
	defer f.wb.Stop()

	// loader replacing the collection before ready must not write
	f.catalog.Replace([]models.Record{})
	f.wb.Wait()
	assert.False(t, f.local.has(CollectionKey))

	f.catalog.MarkReady()
	_, err := f.catalog.Add(rec("", "hello"))
	require.NoError(t, err)
	f.wb.Wait()

	got := f.local.records(t)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Variants["original"])

	st, ok := f.wb.LastWrite()
	require.True(t, ok)
	assert.Equal(t, TriggerChange, st.Trigger)
}

func TestWriteBack_IntervalFlush(t *testing.T) {
	f := newWBFixture(t, NewSession("alice", "", true), 50*time.Millisecond)
	f.catalog.Replace([]models.Record{rec("a", "p")})
	f.catalog.MarkReady()

	require.NoError(t, f.wb.Start(context.Background()))
	defer f.wb.Stop()

	require.Eventually(t, func() bool {
		st, ok := f.wb.LastWrite()
		return ok && st.Trigger == TriggerInterval
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, f.local.has(CollectionKey))
}

func TestWriteBack_StopCancelsFutureTriggers(t *testing.T) {
	f := newWBFixture(t, NewSession("alice", "", true), time.Hour)
	f.catalog.MarkReady()
	require.NoError(t, f.wb.Start(context.Background()))

	require.NoError(t, f.wb.Stop())
	require.NoError(t, f.wb.Stop())

	_, err := f.catalog.Add(rec("", "p"))
	require.NoError(t, err)
	f.wb.Wait()
	assert.False(t, f.local.has(CollectionKey))
}

func TestWriteBack_CancelledStartContextDoesNotAbortWrites(t *testing.T) {
	f := newWBFixture(t, NewSession("alice", "", true), time.Hour)
	f.catalog.MarkReady()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.wb.Start(ctx))
	defer f.wb.Stop()
	cancel()

	_, err := f.catalog.Add(rec("", "p"))
	require.NoError(t, err)
	f.wb.Wait()
	assert.True(t, f.local.has(CollectionKey))
}
