// Package poller follows submitted jobs until they finish. Each feature has
// at most one poll loop; starting a new one replaces the old.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mediabatch/mediabatch-agent/internal/backend"
	"github.com/mediabatch/mediabatch-agent/internal/jobs"
	"github.com/mediabatch/mediabatch-agent/internal/logging"
)

// Alert prefixes for failures seen while polling.
const (
	PrefixProcessing = "Processing error: "
	PrefixStatus     = "Status error: "
	PrefixNetwork    = "Network error: "
)

// StatusSource is the part of the backend client the poller needs.
type StatusSource interface {
	Status(ctx context.Context, batchID string) (*backend.Status, error)
}

// Listener receives the outcome of every applied tick. Calls happen on the
// poll goroutine and never for a superseded batch.
type Listener interface {
	Progress(f jobs.Feature, batchID string, st backend.Status)
	Completed(f jobs.Feature, batchID string, outputs []string)
	Failed(f jobs.Feature, batchID string, alert string)
}

type poll struct {
	batchID string
	cancel  context.CancelFunc
	done    chan struct{}
}

// Poller runs one status loop per feature. There is no retry: the first
// failed tick ends the loop.
type Poller struct {
	source   StatusSource
	state    *jobs.State
	listener Listener
	interval time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	polls map[jobs.Feature]*poll
	wg    sync.WaitGroup
}

func New(source StatusSource, state *jobs.State, listener Listener, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		source:   source,
		state:    state,
		listener: listener,
		interval: interval,
		logger:   logging.WithComponent(logger, "poller"),
		polls:    make(map[jobs.Feature]*poll),
	}
}

// Start begins polling batchID for feature f, cancelling any loop already
// running for f. Loops of other features are not touched.
func (p *Poller) Start(ctx context.Context, f jobs.Feature, batchID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.polls[f]; ok {
		prev.cancel()
		p.logger.Info("poll superseded", "feature", f, "batch_id", prev.batchID, "next_batch_id", batchID)
	}

	pctx, cancel := context.WithCancel(ctx)
	pl := &poll{batchID: batchID, cancel: cancel, done: make(chan struct{})}
	p.polls[f] = pl

	p.wg.Add(1)
	go p.run(pctx, f, pl)
}

// Stop cancels f's loop if one is running.
func (p *Poller) Stop(f jobs.Feature) {
	p.mu.Lock()
	pl, ok := p.polls[f]
	if ok {
		delete(p.polls, f)
	}
	p.mu.Unlock()

	if ok {
		pl.cancel()
		<-pl.done
	}
}

// StopAll cancels every loop and waits for them to exit.
func (p *Poller) StopAll() {
	p.mu.Lock()
	for f, pl := range p.polls {
		pl.cancel()
		delete(p.polls, f)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Running reports whether f has a live loop.
func (p *Poller) Running(f jobs.Feature) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.polls[f]
	return ok
}

// ActiveCount is the number of live loops across features.
func (p *Poller) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.polls)
}

func (p *Poller) run(ctx context.Context, f jobs.Feature, pl *poll) {
	defer p.wg.Done()
	defer close(pl.done)
	defer p.finish(f, pl)

	log := logging.WithBatchID(p.logger, pl.batchID).With("feature", f)
	log.Info("polling started", "interval_ms", p.interval.Milliseconds())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("polling cancelled", "ticks", ticks)
			return
		case <-ticker.C:
			ticks++
			if p.tick(ctx, f, pl.batchID, log) {
				log.Info("polling stopped", "ticks", ticks)
				return
			}
		}
	}
}

// tick performs one status request and reports whether the loop should end.
func (p *Poller) tick(ctx context.Context, f jobs.Feature, batchID string, log *slog.Logger) bool {
	st, err := p.source.Status(ctx, batchID)
	if ctx.Err() != nil {
		// superseded or shutting down mid-request
		return true
	}

	if err != nil {
		alert := PrefixNetwork + backend.ErrorMessage(err)
		if !backend.IsNetworkError(err) {
			alert = PrefixStatus + backend.ErrorMessage(err)
		}
		if ferr := p.state.FailJob(f, batchID, alert); ferr != nil {
			if !errors.Is(ferr, jobs.ErrStaleBatch) {
				log.Warn("record poll failure", "error", ferr)
			}
			return true
		}
		log.Warn("status poll failed", "error", err)
		p.listener.Failed(f, batchID, alert)
		return true
	}

	if _, err := p.state.UpdateStatus(f, batchID, *st); err != nil {
		if !errors.Is(err, jobs.ErrStaleBatch) {
			log.Warn("apply status", "status", st.Status, "error", err)
		}
		return true
	}

	p.listener.Progress(f, batchID, *st)

	switch st.Status {
	case backend.StatusCompleted:
		log.Info("job completed", "outputs", len(st.Outputs))
		p.listener.Completed(f, batchID, st.Outputs)
		return true
	case backend.StatusError:
		log.Warn("job failed", "error", st.Error)
		p.listener.Failed(f, batchID, PrefixProcessing+st.Error)
		return true
	}
	return false
}

func (p *Poller) finish(f jobs.Feature, pl *poll) {
	pl.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.polls[f]; ok && cur == pl {
		delete(p.polls, f)
	}
}
