package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/logging"
	"github.com/dmitrijs2005/promptvault/internal/server/auth"
	"github.com/dmitrijs2005/promptvault/internal/server/notify"
	"github.com/dmitrijs2005/promptvault/internal/server/snapshots"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (f *fakeNotifier) Notify(_ context.Context, e notify.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

type brokenBackend struct{ snapshots.Backend }

func (brokenBackend) Get(context.Context, string) ([]byte, error) { return nil, errors.New("disk on fire") }
func (brokenBackend) Put(context.Context, string, []byte, string) error {
	return errors.New("disk on fire")
}
func (brokenBackend) Ping(context.Context) error { return errors.New("disk on fire") }

// keyRecorder keeps every path handed to the backend.
type keyRecorder struct {
	snapshots.Backend
	mu   sync.Mutex
	keys []string
}

func (k *keyRecorder) Get(ctx context.Context, path string) ([]byte, error) {
	k.mu.Lock()
	k.keys = append(k.keys, path)
	k.mu.Unlock()
	return k.Backend.Get(ctx, path)
}

func (k *keyRecorder) Delete(ctx context.Context, path string) error {
	k.mu.Lock()
	k.keys = append(k.keys, path)
	k.mu.Unlock()
	return k.Backend.Delete(ctx, path)
}

type fixture struct {
	app      *fiber.App
	store    snapshots.Backend
	notifier *fakeNotifier
	metrics  *Metrics
}

func newFixture(t *testing.T, store snapshots.Backend) *fixture {
	t.Helper()
	if store == nil {
		store = snapshots.NewMemory()
	}
	f := &fixture{
		app:      fiber.New(),
		store:    store,
		notifier: &fakeNotifier{},
		metrics:  NewMetrics(prometheus.NewRegistry()),
	}
	New(store, f.notifier, f.metrics, logging.Nop()).Register(f.app, testSecret)
	return f
}

func token(t *testing.T, user string, admin bool) string {
	t.Helper()
	tok, err := auth.GenerateToken(user, admin, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, target, tok, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestHealth(t *testing.T) {
	status, body := newFixture(t, nil).do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	status, _ = newFixture(t, brokenBackend{}).do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestAPIRequiresToken(t *testing.T) {
	f := newFixture(t, nil)

	status, body := f.do(t, http.MethodGet, "/api/db?path=db.json", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, `"error"`)
}

func TestGetSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	tok := token(t, "bob", false)

	status, body := f.do(t, http.MethodGet, "/api/db?path=db.json", tok, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"error":"not found"}`, body)

	require.NoError(t, f.store.Put(context.Background(), "db.json", []byte(`[{"id":"a"}]`), "root"))

	status, body = f.do(t, http.MethodGet, "/api/db?path=db.json", tok, "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"id":"a"}]`, body)

	status, _ = f.do(t, http.MethodGet, "/api/db", tok, "")
	assert.Equal(t, http.StatusOK, status, "empty path means the primary snapshot")

	status, _ = f.do(t, http.MethodGet, "/api/db?path=../etc/passwd", tok, "")
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SnapshotReads.WithLabelValues("not_found")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SnapshotReads.WithLabelValues("ok")))
}

func TestGetSnapshot_StorageError(t *testing.T) {
	f := newFixture(t, brokenBackend{})

	status, body := f.do(t, http.MethodGet, "/api/db?path=db.json", token(t, "bob", false), "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotContains(t, body, "disk on fire")
}

func TestPutSnapshot_Permissions(t *testing.T) {
	tests := []struct {
		name       string
		user       string
		admin      bool
		filename   string
		wantStatus int
	}{
		{name: "admin writes primary", user: "root", admin: true, filename: "db.json", wantStatus: http.StatusOK},
		{name: "admin writes any json", user: "root", admin: true, filename: "suggestions/bob.json", wantStatus: http.StatusOK},
		{name: "contributor writes own suggestion", user: "Bob", filename: "suggestions/bob.json", wantStatus: http.StatusOK},
		{name: "contributor cannot write primary", user: "bob", filename: "db.json", wantStatus: http.StatusForbidden},
		{name: "contributor cannot write others", user: "bob", filename: "suggestions/alice.json", wantStatus: http.StatusForbidden},
		{name: "non json filename", user: "root", admin: true, filename: "db.txt", wantStatus: http.StatusBadRequest},
		{name: "escaping path", user: "root", admin: true, filename: "../db.json", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			body := `{"content":[{"id":"a"},{"id":"b"}],"filename":"` + tt.filename + `"}`

			status, _ := f.do(t, http.MethodPost, "/api/db", token(t, tt.user, tt.admin), body)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestPutSnapshot_StoresContent(t *testing.T) {
	f := newFixture(t, nil)

	body := `{"content": [ {"id": "a", "variants": {"original": "x"}} ], "filename": "db.json"}`
	status, resp := f.do(t, http.MethodPost, "/api/db", token(t, "root", true), body)
	require.Equal(t, http.StatusOK, status, resp)
	assert.JSONEq(t, `{"path":"db.json","count":1}`, resp)

	got, err := f.store.Get(context.Background(), "db.json")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a","variants":{"original":"x"}}]`, string(got))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SnapshotWrites.WithLabelValues("primary", "ok")))
}

func TestPutSnapshot_RejectsNonArrays(t *testing.T) {
	f := newFixture(t, nil)
	tok := token(t, "root", true)

	for _, body := range []string{
		`{"content":{"id":"a"},"filename":"db.json"}`,
		`{"content":"[]","filename":"db.json"}`,
		`{"filename":"db.json"}`,
		`not json`,
	} {
		status, resp := f.do(t, http.MethodPost, "/api/db", tok, body)
		assert.Equal(t, http.StatusBadRequest, status, body)

		var e map[string]string
		require.NoError(t, json.Unmarshal([]byte(resp), &e), body)
		assert.NotEmpty(t, e["error"], body)
	}

	_, err := f.store.Get(context.Background(), "db.json")
	require.ErrorIs(t, err, snapshots.ErrNotFound)
}

func TestPutSnapshot_StorageError(t *testing.T) {
	f := newFixture(t, brokenBackend{})

	status, _ := f.do(t, http.MethodPost, "/api/db", token(t, "root", true), `{"content":[],"filename":"db.json"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SnapshotWrites.WithLabelValues("primary", "error")))
}

func TestDeleteSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.Put(ctx, "images/cat.json", []byte(`[]`), "root"))
	require.NoError(t, f.store.Put(ctx, "suggestions/bob.json", []byte(`[]`), "bob"))

	status, _ := f.do(t, http.MethodDelete, "/api/db?path=images/cat.json", token(t, "bob", false), "")
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = f.do(t, http.MethodDelete, "/api/db?path=images/cat.json", token(t, "root", true), "")
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = f.do(t, http.MethodDelete, "/api/db?path=images/cat.json", token(t, "root", true), "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodDelete, "/api/db?path=suggestions/bob.json", token(t, "bob", false), "")
	assert.Equal(t, http.StatusNoContent, status)
}

func TestNotify(t *testing.T) {
	f := newFixture(t, nil)

	body := `{"user":"mallory","filename":"suggestions/bob.json","count":4}`
	status, resp := f.do(t, http.MethodPost, "/api/notify", token(t, "bob", false), body)
	assert.Equal(t, http.StatusAccepted, status)
	assert.JSONEq(t, `{"status":"sent"}`, resp)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, notify.Event{User: "bob", Filename: "suggestions/bob.json", Count: 4}, f.notifier.events[0])
}

func TestNotify_DeliveryOutcomes(t *testing.T) {
	body := `{"filename":"suggestions/bob.json","count":1}`

	t.Run("throttled", func(t *testing.T) {
		f := newFixture(t, nil)
		f.notifier.err = notify.ErrThrottled

		status, resp := f.do(t, http.MethodPost, "/api/notify", token(t, "bob", false), body)
		assert.Equal(t, http.StatusAccepted, status)
		assert.JSONEq(t, `{"status":"throttled"}`, resp)
	})

	t.Run("failed", func(t *testing.T) {
		f := newFixture(t, nil)
		f.notifier.err = errors.New("telegram down")

		status, _ := f.do(t, http.MethodPost, "/api/notify", token(t, "bob", false), body)
		assert.Equal(t, http.StatusBadGateway, status)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Notifications.WithLabelValues("error")))
	})

	t.Run("invalid", func(t *testing.T) {
		f := newFixture(t, nil)

		status, _ := f.do(t, http.MethodPost, "/api/notify", token(t, "bob", false), `{"filename":"a.json","count":-1}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Empty(t, f.notifier.events)
	})
}

func TestSnapshotPathsOutliveTheRequest(t *testing.T) {
	rec := &keyRecorder{Backend: snapshots.NewMemory()}
	f := newFixture(t, rec)
	admin := token(t, "root", true)

	want := []string{"aa.json", "bb.json", "cc.json", "dd.json"}
	for _, p := range want[:2] {
		f.do(t, http.MethodGet, "/api/db?path="+p, admin, "")
	}
	for _, p := range want[2:] {
		f.do(t, http.MethodDelete, "/api/db?path="+p, admin, "")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, want, rec.keys)
}
