package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-dev/atelier/internal/artifact"
	"github.com/atelier-dev/atelier/internal/extract"
	"github.com/atelier-dev/atelier/internal/ingest"
	"github.com/atelier-dev/atelier/internal/run"
	"github.com/atelier-dev/atelier/internal/style"
	"github.com/atelier-dev/atelier/internal/testutil"
)

// testFixture is a fully wired server over in-memory persistence and a
// scripted model backend.
type testFixture struct {
	db      *testutil.MemoryDB
	client  *testutil.ScriptedBackend
	store   *artifact.Store
	tracker *run.Tracker
	server  *Server
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	db := testutil.NewMemoryDB()
	client := &testutil.ScriptedBackend{}
	logger := testutil.DiscardLogger()

	store := artifact.New(db, nil, logger)
	tracker := run.NewTracker(db, logger)
	resolver := style.NewResolver(db, logger)
	rerunner := artifact.NewRerunner(store, tracker, client)

	controller, err := ingest.NewController(ingest.Config{
		Querier:   db,
		Runs:      tracker,
		Artifacts: store,
		Styles:    resolver,
		Backend:   client,
		Policy:    extract.Policy{},
		Logger:    logger,
	})
	require.NoError(t, err)

	server, err := NewServer(ServerConfig{
		Logger:     logger,
		Artifacts:  store,
		Rerunner:   rerunner,
		Styles:     resolver,
		Controller: controller,
	})
	require.NoError(t, err)

	return &testFixture{
		db:      db,
		client:  client,
		store:   store,
		tracker: tracker,
		server:  server,
	}
}

func (f *testFixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func TestNewServer_RequiredComponents(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestServer_Health(t *testing.T) {
	f := newTestFixture(t)

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServer_Ready_NoPool(t *testing.T) {
	f := newTestFixture(t)

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
}

func TestServer_UnknownRoute(t *testing.T) {
	f := newTestFixture(t)

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_RequestIDHeader(t *testing.T) {
	f := newTestFixture(t)

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/styles", nil))

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_CORSPreflight(t *testing.T) {
	db := testutil.NewMemoryDB()
	client := &testutil.ScriptedBackend{}
	logger := testutil.DiscardLogger()
	store := artifact.New(db, nil, logger)
	tracker := run.NewTracker(db, logger)
	resolver := style.NewResolver(db, logger)

	controller, err := ingest.NewController(ingest.Config{
		Querier:   db,
		Runs:      tracker,
		Artifacts: store,
		Styles:    resolver,
		Backend:   client,
		Logger:    logger,
	})
	require.NoError(t, err)

	server, err := NewServer(ServerConfig{
		Logger:      logger,
		Artifacts:   store,
		Rerunner:    artifact.NewRerunner(store, tracker, client),
		Styles:      resolver,
		Controller:  controller,
		CORSOrigins: []string{"https://app.example.com"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_DisallowedOriginGetsNoCORSHeaders(t *testing.T) {
	f := newTestFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/styles", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := f.do(t, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
