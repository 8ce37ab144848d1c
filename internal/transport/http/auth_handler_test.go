package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passauth/internal/infrastructure"
	"passauth/internal/passcode"
	"passauth/internal/store"
)

type testServer struct {
	srv   *httptest.Server
	store *store.Store
	now   *time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	now := time.Date(2024, 1, 31, 14, 0, 0, 0, time.UTC)
	ts := &testServer{store: st, now: &now}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := passcode.NewEngine(st.Stores(), st, logger,
		passcode.WithClock(func() time.Time { return *ts.now }))

	handler := NewAuthHandler(engine, st, infrastructure.NewMetrics(), logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Mount("/", handler.Routes())
	})

	ts.srv = httptest.NewServer(r)
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) seed(t *testing.T, code string, months int) {
	t.Helper()
	require.NoError(t, ts.store.Stores().Passcodes.Insert(context.Background(), code, months))
}

func (ts *testServer) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(ts.srv.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	return resp.StatusCode, decodeBody(t, resp)
}

func (ts *testServer) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(ts.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	return resp.StatusCode, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestValidateEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "ABCD1234", 1)

	code, body := ts.post(t, "/api/validate", map[string]string{
		"passcode": "ABCD1234", "machineId": "MACHINE-A",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "2024-02-29", body["expiry_date"])
	assert.Len(t, body["sessionToken"], 64)
}

func TestValidateEndpointMissingFields(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.post(t, "/api/validate", map[string]string{"passcode": "ABCD1234"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
}

func TestValidateEndpointUnknownPasscode(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.post(t, "/api/validate", map[string]string{
		"passcode": "NOPE0000", "machineId": "MACHINE-A",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Invalid passcode", body["error"])
}

func TestValidateEndpointMachineMismatch(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "ABCD1234", 1)

	code, _ := ts.post(t, "/api/validate", map[string]string{
		"passcode": "ABCD1234", "machineId": "MACHINE-A",
	})
	require.Equal(t, http.StatusOK, code)

	code, body := ts.post(t, "/api/validate", map[string]string{
		"passcode": "ABCD1234", "machineId": "MACHINE-B",
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Passcode already bound to different machine", body["error"])
}

func TestValidateEndpointExpiredEchoesDate(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "ABCD1234", 1)

	code, _ := ts.post(t, "/api/validate", map[string]string{
		"passcode": "ABCD1234", "machineId": "MACHINE-A",
	})
	require.Equal(t, http.StatusOK, code)

	*ts.now = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	code, body := ts.post(t, "/api/validate", map[string]string{
		"passcode": "ABCD1234", "machineId": "MACHINE-A",
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Passcode expired", body["error"])
	assert.Equal(t, "2024-02-29", body["expiry_date"])
}

func TestCheckSessionEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "ABCD1234", 1)

	code, body := ts.post(t, "/api/validate", map[string]string{
		"passcode": "ABCD1234", "machineId": "MACHINE-A",
	})
	require.Equal(t, http.StatusOK, code)
	token := body["sessionToken"].(string)

	code, body = ts.post(t, "/api/check-session", map[string]string{
		"sessionToken": token, "machineId": "MACHINE-A",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, false, body["is_expired"])
	assert.Equal(t, "2024-02-29", body["expiry_date"])

	// Wrong machine.
	code, body = ts.post(t, "/api/check-session", map[string]string{
		"sessionToken": token, "machineId": "MACHINE-B",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid session", body["error"])

	// Session past its own window.
	*ts.now = ts.now.Add(25 * time.Hour)
	code, body = ts.post(t, "/api/check-session", map[string]string{
		"sessionToken": token, "machineId": "MACHINE-A",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Session expired", body["error"])
}

func TestStatsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "ABCD1234", 1)
	ts.seed(t, "EFGH5678", 1)

	// Stats compares against the wall clock, so the engine clock must not
	// lag it or the freshly issued session would count as expired.
	*ts.now = time.Now().UTC()

	code, _ := ts.post(t, "/api/validate", map[string]string{
		"passcode": "ABCD1234", "machineId": "MACHINE-A",
	})
	require.Equal(t, http.StatusOK, code)

	code, body := ts.get(t, "/api/stats")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	stats, ok := body["stats"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, stats["total_passcodes"])
	assert.EqualValues(t, 1, stats["used_passcodes"])
	assert.EqualValues(t, 1, stats["active_sessions"])
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.get(t, "/api/health")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, ServiceName, body["service"])
}
