package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/client"
	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/client/notify"
	"github.com/dmitrijs2005/promptvault/internal/client/repositories/blobs"
	"github.com/dmitrijs2005/promptvault/internal/common"
	"github.com/stretchr/testify/require"
)

// ---- local store ----

type memBlobs struct {
	mu     sync.Mutex
	data   map[string][]byte
	puts   int
	putErr error
	getErr error
}

func newMemBlobs() *memBlobs { return &memBlobs{data: map[string][]byte{}} }

func (m *memBlobs) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return v, nil
}

func (m *memBlobs) records(t *testing.T) []models.Record {
	t.Helper()
	var out []models.Record
	require.NoError(t, blobs.GetJSON(context.Background(), m, CollectionKey, &out))
	return out
}

func (m *memBlobs) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *memBlobs) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// ---- remote store ----

type fakeRemote struct {
	mu          sync.Mutex
	snapshots   map[string][]models.Record
	downloadErr error
	uploadErr   error
	pingErr     error
	uploads     []string
}

var _ client.Client = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote { return &fakeRemote{snapshots: map[string][]models.Record{}} }

func (f *fakeRemote) Download(_ context.Context, path string) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	recs, ok := f.snapshots[path]
	if !ok {
		return nil, client.ErrNotFound
	}
	return models.CloneAll(recs), nil
}

func (f *fakeRemote) Upload(_ context.Context, path string, records []models.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, path)
	f.snapshots[path] = models.CloneAll(records)
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snapshots, path)
	return nil
}

func (f *fakeRemote) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeRemote) SetAccessToken(string) {}

func (f *fakeRemote) setPingErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

func (f *fakeRemote) uploadPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

// ---- notifications ----

type fakeNotifier struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (f *fakeNotifier) Dispatch(_ context.Context, n notify.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, n)
}

func (f *fakeNotifier) sent() []notify.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Notification(nil), f.got...)
}

type noticeLog struct {
	mu    sync.Mutex
	items []Notice
}

func (n *noticeLog) Notify(level NoticeLevel, format string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, Notice{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (n *noticeLog) levels() []NoticeLevel {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []NoticeLevel
	for _, it := range n.items {
		out = append(out, it.Level)
	}
	return out
}

// ---- helpers ----

func rec(id string, prompt string) models.Record {
	return models.Record{
		ID:                id,
		CreatedAt:         1700000000000,
		GenerationHistory: []models.HistoryEntry{},
		Title:             "title " + id,
		Variants:          models.Variants{"original": prompt},
	}
}

func readyCatalog(t *testing.T, records ...models.Record) *Catalog {
	t.Helper()
	c := NewCatalog()
	c.Replace(records)
	require.True(t, c.MarkReady())
	return c
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func rawEntries(t *testing.T, v any) []json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	entries, err := ParseImport(b)
	require.NoError(t, err)
	return entries
}
