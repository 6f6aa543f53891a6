package poller

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mediabatch/mediabatch-agent/internal/backend"
	"github.com/mediabatch/mediabatch-agent/internal/jobs"
)

const testInterval = 5 * time.Millisecond

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type scriptedSource struct {
	mu      sync.Mutex
	scripts map[string][]result
	calls   map[string]int
}

type result struct {
	status *backend.Status
	err    error
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{scripts: map[string][]result{}, calls: map[string]int{}}
}

func (s *scriptedSource) script(batchID string, rs ...result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[batchID] = rs
}

func (s *scriptedSource) Status(ctx context.Context, batchID string) (*backend.Status, error) {
	s.mu.Lock()
	s.calls[batchID]++
	n := s.calls[batchID]
	rs := s.scripts[batchID]
	s.mu.Unlock()

	if len(rs) == 0 {
		// keep the job running forever
		return &backend.Status{Status: "processing", Progress: 1}, nil
	}
	if n > len(rs) {
		n = len(rs)
	}
	r := rs[n-1]
	return r.status, r.err
}

func (s *scriptedSource) callCount(batchID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[batchID]
}

type recorder struct {
	mu        sync.Mutex
	progress  []float64
	completed chan []string
	failed    chan string
}

func newRecorder() *recorder {
	return &recorder{completed: make(chan []string, 4), failed: make(chan string, 4)}
}

func (r *recorder) Progress(_ jobs.Feature, _ string, st backend.Status) {
	r.mu.Lock()
	r.progress = append(r.progress, st.Progress)
	r.mu.Unlock()
}

func (r *recorder) Completed(_ jobs.Feature, _ string, outputs []string) {
	r.completed <- outputs
}

func (r *recorder) Failed(_ jobs.Feature, _ string, alert string) {
	r.failed <- alert
}

func startedState(t *testing.T, f jobs.Feature, batchID string) *jobs.State {
	t.Helper()
	state := jobs.NewState(nil)
	if err := state.BeginSubmit(f); err != nil {
		t.Fatalf("BeginSubmit: %v", err)
	}
	if err := state.StartJob(f, batchID); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	return state
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPoller_ScriptedCompletion(t *testing.T) {
	src := newScriptedSource()
	src.script("b1",
		result{status: &backend.Status{Status: "processing", Progress: 10}},
		result{status: &backend.Status{Status: "processing", Progress: 55}},
		result{status: &backend.Status{Status: "completed", Progress: 100, Outputs: []string{"out.mp4"}}},
	)
	state := startedState(t, jobs.FeatureBatch, "b1")
	rec := newRecorder()
	p := New(src, state, rec, testInterval, testLogger())

	p.Start(context.Background(), jobs.FeatureBatch, "b1")

	select {
	case outputs := <-rec.completed:
		if len(outputs) != 1 || outputs[0] != "out.mp4" {
			t.Fatalf("outputs = %v", outputs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller never completed")
	}

	waitFor(t, func() bool { return !p.Running(jobs.FeatureBatch) })
	time.Sleep(5 * testInterval)

	if n := src.callCount("b1"); n != 3 {
		t.Fatalf("status calls = %d, want exactly 3", n)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.progress) != 3 || rec.progress[0] != 10 || rec.progress[1] != 55 {
		t.Fatalf("progress = %v", rec.progress)
	}
	if sess := state.Session(jobs.FeatureBatch); sess.Phase != jobs.PhaseDone {
		t.Fatalf("phase = %s, want done", sess.Phase)
	}
}

func TestPoller_JobErrorStopsImmediately(t *testing.T) {
	src := newScriptedSource()
	src.script("b1", result{status: &backend.Status{Status: "error", Error: "disk full"}})
	state := startedState(t, jobs.FeatureBatch, "b1")
	rec := newRecorder()
	p := New(src, state, rec, testInterval, testLogger())

	p.Start(context.Background(), jobs.FeatureBatch, "b1")

	select {
	case alert := <-rec.failed:
		if !strings.Contains(alert, "disk full") || !strings.HasPrefix(alert, PrefixProcessing) {
			t.Fatalf("alert = %q", alert)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller never failed")
	}

	waitFor(t, func() bool { return !p.Running(jobs.FeatureBatch) })
	time.Sleep(5 * testInterval)
	if n := src.callCount("b1"); n != 1 {
		t.Fatalf("status calls = %d, want 1", n)
	}
	if sess := state.Session(jobs.FeatureBatch); sess.Phase != jobs.PhaseError || sess.Error != "disk full" {
		t.Fatalf("session = %+v", sess)
	}
}

func TestPoller_StatusErrorIsFailFast(t *testing.T) {
	src := newScriptedSource()
	src.script("b1", result{err: &backend.APIError{StatusCode: 404, Message: "Batch not found"}})
	state := startedState(t, jobs.FeatureMerge, "b1")
	rec := newRecorder()
	p := New(src, state, rec, testInterval, testLogger())

	p.Start(context.Background(), jobs.FeatureMerge, "b1")

	select {
	case alert := <-rec.failed:
		if alert != "Status error: Batch not found" {
			t.Fatalf("alert = %q", alert)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller never failed")
	}
	waitFor(t, func() bool { return !p.Running(jobs.FeatureMerge) })
	if n := src.callCount("b1"); n != 1 {
		t.Fatalf("status calls = %d, want 1 (no retry)", n)
	}
}

func TestPoller_NetworkErrorIsFailFast(t *testing.T) {
	src := newScriptedSource()
	src.script("b1", result{err: &backend.NetworkError{Op: "GET /api/status/b1", Err: errors.New("connection refused")}})
	state := startedState(t, jobs.FeatureVoice, "b1")
	rec := newRecorder()
	p := New(src, state, rec, testInterval, testLogger())

	p.Start(context.Background(), jobs.FeatureVoice, "b1")

	select {
	case alert := <-rec.failed:
		if alert != "Network error: connection refused" {
			t.Fatalf("alert = %q", alert)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller never failed")
	}
}

func TestPoller_FeaturesAreIndependent(t *testing.T) {
	src := newScriptedSource()
	src.script("b-new", result{status: &backend.Status{Status: "completed", Outputs: []string{"x.mp4"}}})

	state := jobs.NewState(nil)
	for f, id := range map[jobs.Feature]string{jobs.FeatureMerge: "va-1", jobs.FeatureBatch: "b-new"} {
		state.BeginSubmit(f)
		state.StartJob(f, id)
	}

	rec := newRecorder()
	p := New(src, state, rec, testInterval, testLogger())
	defer p.StopAll()

	p.Start(context.Background(), jobs.FeatureMerge, "va-1")
	p.Start(context.Background(), jobs.FeatureBatch, "b-new")

	select {
	case <-rec.completed:
	case <-time.After(2 * time.Second):
		t.Fatal("batch poller never completed")
	}

	if !p.Running(jobs.FeatureMerge) {
		t.Fatal("merge poller was interrupted")
	}
	if sess := state.Session(jobs.FeatureMerge); sess.BatchID != "va-1" || sess.Phase != jobs.PhasePolling {
		t.Fatalf("merge session = %+v", sess)
	}
}

func TestPoller_RestartSupersedesPreviousLoop(t *testing.T) {
	src := newScriptedSource()
	state := startedState(t, jobs.FeatureBatch, "old")
	rec := newRecorder()
	p := New(src, state, rec, testInterval, testLogger())
	defer p.StopAll()

	p.Start(context.Background(), jobs.FeatureBatch, "old")
	waitFor(t, func() bool { return src.callCount("old") >= 1 })

	p.mu.Lock()
	old := p.polls[jobs.FeatureBatch]
	p.mu.Unlock()

	state.BeginSubmit(jobs.FeatureBatch)
	state.StartJob(jobs.FeatureBatch, "new")
	p.Start(context.Background(), jobs.FeatureBatch, "new")
	<-old.done
	waitFor(t, func() bool { return src.callCount("new") >= 1 })

	oldCalls := src.callCount("old")
	time.Sleep(5 * testInterval)
	if src.callCount("old") != oldCalls {
		t.Fatal("superseded loop kept polling")
	}
	if p.ActiveCount() != 1 {
		t.Fatalf("active loops = %d, want 1", p.ActiveCount())
	}
}

func TestPoller_StopAll(t *testing.T) {
	src := newScriptedSource()
	state := startedState(t, jobs.FeatureBatch, "b1")
	p := New(src, state, newRecorder(), testInterval, testLogger())

	p.Start(context.Background(), jobs.FeatureBatch, "b1")
	p.StopAll()

	if p.Running(jobs.FeatureBatch) {
		t.Fatal("loop still registered after StopAll")
	}
}
