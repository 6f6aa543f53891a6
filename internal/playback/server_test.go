package playback

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mediabatch/mediabatch-agent/internal/logging"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	return NewServer(dir, logging.Discard()), dir
}

func writeFile(t *testing.T, path, body string, mod time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestList_SkipsPartialsAndSortsNewestFirst(t *testing.T) {
	s, dir := newTestServer(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writeFile(t, filepath.Join(dir, "old.mp4"), "aa", base)
	writeFile(t, filepath.Join(dir, "new.mp3"), "bbbb", base.Add(time.Hour))
	writeFile(t, filepath.Join(dir, "pending.mp4.part"), "c", base.Add(2*time.Hour))
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Name != "new.mp3" || got[0].Size != 4 || got[0].Type != "audio/mpeg" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Name != "old.mp4" || got[1].Type != "video/mp4" {
		t.Errorf("second = %+v", got[1])
	}
}

func TestList_MissingDirIsEmpty(t *testing.T) {
	s := NewServer(filepath.Join(t.TempDir(), "absent"), logging.Discard())
	got, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("got %v, want empty slice", got)
	}
}

func TestServeOutput(t *testing.T) {
	s, dir := newTestServer(t)
	writeFile(t, filepath.Join(dir, "clip 1.mp4"), "0123456789", time.Now())

	tests := []struct {
		name        string
		file        string
		rangeHeader string
		wantStatus  int
		wantBody    string
		wantRange   string
	}{
		{"whole file", "clip 1.mp4", "", http.StatusOK, "0123456789", ""},
		{"partial", "clip 1.mp4", "bytes=2-5", http.StatusPartialContent, "2345", "bytes 2-5/10"},
		{"suffix", "clip 1.mp4", "bytes=-3", http.StatusPartialContent, "789", "bytes 7-9/10"},
		{"malformed range sends all", "clip 1.mp4", "pages=1", http.StatusOK, "0123456789", ""},
		{"unsatisfiable", "clip 1.mp4", "bytes=20-", http.StatusRequestedRangeNotSatisfiable, "", "bytes */10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/outputs/x", nil)
			if tt.rangeHeader != "" {
				req.Header.Set("Range", tt.rangeHeader)
			}
			rec := httptest.NewRecorder()
			if err := s.ServeOutput(rec, req, tt.file); err != nil {
				t.Fatalf("ServeOutput: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Content-Range"); got != tt.wantRange {
				t.Errorf("Content-Range = %q, want %q", got, tt.wantRange)
			}
			if tt.wantBody != "" {
				body, _ := io.ReadAll(rec.Body)
				if string(body) != tt.wantBody {
					t.Errorf("body = %q, want %q", body, tt.wantBody)
				}
				if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
					t.Errorf("Content-Type = %q", ct)
				}
			}
		})
	}
}

func TestServeOutput_RejectsUnsafeNames(t *testing.T) {
	s, dir := newTestServer(t)
	writeFile(t, filepath.Join(dir, "done.mp4.part"), "x", time.Now())

	for _, name := range []string{"", "..", "../secret", "a/b.mp4", "done.mp4.part", "missing.mp4"} {
		rec := httptest.NewRecorder()
		err := s.ServeOutput(rec, httptest.NewRequest(http.MethodGet, "/", nil), name)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%q: err = %v, want ErrNotFound", name, err)
		}
	}
}
