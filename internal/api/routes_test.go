package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mediabatch/mediabatch-agent/internal/app"
	"github.com/mediabatch/mediabatch-agent/internal/backend"
	"github.com/mediabatch/mediabatch-agent/internal/jobs"
	"github.com/mediabatch/mediabatch-agent/internal/playback"
	"github.com/mediabatch/mediabatch-agent/internal/store"
	"github.com/mediabatch/mediabatch-agent/internal/view"
)

const testToken = "test-token-0123456789"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeRepo struct {
	mu     sync.Mutex
	config map[string]string
}

func (f *fakeRepo) GetConfig(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config[key], nil
}

func (f *fakeRepo) SetConfig(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config[key] = value
	return nil
}

// mediaBackend answers the folder scan endpoints.
func mediaBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/scan-folder":
			var req struct {
				FolderPath string `json:"folder_path"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			if req.FolderPath == "/missing" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"Folder does not exist"}`))
				return
			}
			w.Write([]byte(`{"videos":[{"name":"a.mp4","duration":65},{"name":"b.mp4","duration":3}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	cfg     ServerConfig
	router  http.Handler
	outputs string
}

func newTestEnv(t *testing.T, features ...jobs.Feature) *testEnv {
	t.Helper()
	if len(features) == 0 {
		features = jobs.AllFeatures
	}
	be := mediaBackend(t)

	bus := jobs.NewEventBus(100)
	alerts := app.NewAlertQueue(10, bus)
	ctrl := app.New(context.Background(), app.Options{
		Client:       backend.NewHTTPClient(be.URL, 5*time.Second, testLogger()),
		State:        jobs.NewState(bus),
		View:         view.New(be.URL, features, bus),
		Alerter:      alerts,
		PollInterval: 10 * time.Millisecond,
		Logger:       testLogger(),
	})
	t.Cleanup(ctrl.Shutdown)

	outputs := t.TempDir()
	cfg := ServerConfig{
		Controller: ctrl,
		Alerts:     alerts,
		Bus:        bus,
		Outputs:    playback.NewServer(outputs, testLogger()),
		Repository: &fakeRepo{config: map[string]string{store.KeyAuthToken: testToken}},
		Logger:     testLogger(),
		StartTime:  time.Now(),
		ClientID:   "client-1",
		Version:    "test",
	}
	return &testEnv{cfg: cfg, router: NewRouter(cfg), outputs: outputs}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "127.0.0.1:50000"
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestHealth_NoAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" || body["client_id"] != "client-1" {
		t.Fatalf("body = %v", body)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", "", http.StatusUnauthorized},
		{"bearer", "Bearer " + testToken, "", http.StatusOK},
		{"query", "", "?token=" + testToken, http.StatusOK},
		{"wrong query", "", "?token=nope", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/view"+tt.query, nil)
			req.RemoteAddr = "127.0.0.1:1234"
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			env.router.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestLoopbackGuard_RejectsRemote(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.168.1.20:4000"
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestIsLoopbackRemoteAddr(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:12345":  true,
		"[::1]:12345":      true,
		"127.0.0.1":        true,
		"8.8.8.8:12345":    false,
		"192.168.1.1:8080": false,
		"not-an-ip:1234":   false,
		"":                 false,
	} {
		if got := isLoopbackRemoteAddr(addr); got != want {
			t.Errorf("isLoopbackRemoteAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}

func TestIsAllowedOrigin(t *testing.T) {
	for origin, want := range map[string]bool{
		"http://localhost:8788":    true,
		"http://127.0.0.1:8788":    true,
		"http://localhost":         true,
		"http://[::1]:8788":        true,
		"https://localhost:8788":   false,
		"http://evil.com":          false,
		"http://localhost.evil.io": false,
		"http://192.168.1.1:8788":  false,
		"http://localhost:8788/x":  false,
		"":                         false,
	} {
		if got := isAllowedOrigin(origin); got != want {
			t.Errorf("isAllowedOrigin(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestPage_EmbedsTokenAndActivePane(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	html := rr.Body.String()
	if !strings.Contains(html, `data-token="`+testToken+`"`) {
		t.Error("page does not carry the access token")
	}
	if !strings.Contains(html, `id="batch" class="tab-pane active"`) {
		t.Error("batch pane should start active")
	}
}

func TestFieldsAndTabs(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/fields/"+view.FieldInputFolder, `{"value":"/videos"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("set field status = %d: %s", rr.Code, rr.Body.String())
	}
	if got := env.cfg.Controller.View().Snapshot().Batch.Form.InputFolder; got != "/videos" {
		t.Fatalf("input folder = %q", got)
	}

	rr = env.do(t, http.MethodPost, "/fields/"+view.FieldVideoTrim, `{"value":"sideways"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid option status = %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/fields/"+view.FieldInputFolder, `not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad body status = %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/tabs/merge", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("tab status = %d", rr.Code)
	}
	if got := env.cfg.Controller.View().Snapshot().ActiveTab(); got != jobs.FeatureMerge {
		t.Fatalf("active tab = %q", got)
	}

	rr = env.do(t, http.MethodPost, "/tabs/bogus", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown tab status = %d", rr.Code)
	}
}

func TestVolume(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/voice/volume", `{"value":35}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := env.cfg.Controller.View().Snapshot().Voice.VolumeLabel; got != "35%" {
		t.Fatalf("volume label = %q", got)
	}

	if rr := env.do(t, http.MethodPost, "/voice/volume", `{}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing value status = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/voice/volume", `{"value":250}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("out of range status = %d", rr.Code)
	}
}

func TestActions_ValidationQueuesAlert(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/actions/process-batch", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["error"] != "Please select an input folder first" {
		t.Fatalf("body = %v", body)
	}

	rr = env.do(t, http.MethodGet, "/alerts", "")
	var alerts AlertsResponse
	json.Unmarshal(rr.Body.Bytes(), &alerts)
	if len(alerts.Alerts) != 1 || alerts.Alerts[0].Message != "Please select an input folder first" {
		t.Fatalf("alerts = %+v", alerts)
	}

	rr = env.do(t, http.MethodGet, "/alerts", "")
	if !strings.Contains(rr.Body.String(), `"alerts":[]`) {
		t.Fatalf("second drain = %s", rr.Body.String())
	}
}

func TestActions_ScanBatch(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/fields/"+view.FieldInputFolder, `{"value":"/videos"}`)

	rr := env.do(t, http.MethodPost, "/actions/scan-batch", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/fragments/batch", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("fragment status = %d", rr.Code)
	}
	html := rr.Body.String()
	if !strings.Contains(html, "Found 2 videos") || !strings.Contains(html, "1:05") {
		t.Fatalf("fragment missing scan results: %s", html)
	}
}

func TestActions_BackendErrorVerbatim(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/fields/"+view.FieldInputFolder, `{"value":"/missing"}`)

	rr := env.do(t, http.MethodPost, "/actions/scan-batch", "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := env.cfg.Alerts.Drain(); len(got) != 1 || got[0].Message != "Error: Folder does not exist" {
		t.Fatalf("alerts = %+v", got)
	}
}

func TestActions_UnknownAndDisabled(t *testing.T) {
	env := newTestEnv(t, jobs.FeatureBatch)

	if rr := env.do(t, http.MethodPost, "/actions/explode", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown action status = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/actions/scan-merge", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("disabled feature status = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/fragments/voice", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("disabled fragment status = %d", rr.Code)
	}
}

func TestView_ListsEnabledSessions(t *testing.T) {
	env := newTestEnv(t, jobs.FeatureBatch)

	rr := env.do(t, http.MethodGet, "/view", "")
	var resp ViewResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sessions) != 1 || resp.Sessions[0].Feature != "batch" || resp.Sessions[0].Phase != "idle" {
		t.Fatalf("sessions = %+v", resp.Sessions)
	}
	if resp.View.Merge != nil || len(resp.View.Tabs) != 1 {
		t.Fatalf("legacy view = %+v", resp.View)
	}
}

func TestOutputs_ListAndServe(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(filepath.Join(env.outputs, "out_1.mp4"), []byte("abcdef"), 0o644); err != nil {
		t.Fatal(err)
	}

	rr := env.do(t, http.MethodGet, "/outputs", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var list OutputsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Outputs) != 1 || list.Outputs[0].Name != "out_1.mp4" {
		t.Fatalf("outputs = %+v", list.Outputs)
	}

	req := httptest.NewRequest(http.MethodGet, "/outputs/out_1.mp4", nil)
	req.RemoteAddr = "127.0.0.1:50000"
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Range", "bytes=1-3")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusPartialContent || rec.Body.String() != "bcd" {
		t.Fatalf("range = %d %q", rec.Code, rec.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/outputs/nope.mp4", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", rr.Code)
	}
	if got := decodeJSONBody(t, rr)["code"]; got != "NOT_FOUND" {
		t.Errorf("code = %v", got)
	}

	unauth := httptest.NewRequest(http.MethodGet, "/outputs/out_1.mp4", nil)
	unauth.RemoteAddr = "127.0.0.1:50000"
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, unauth)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}
}
