package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/mediabatch/mediabatch-agent/internal/backend"
)

type slot struct {
	session Session
	// phase to return to when a scan fails
	restore Phase
}

// State holds the three feature slots. All mutation goes through its methods;
// starting or updating one feature never touches another.
type State struct {
	mu    sync.RWMutex
	slots map[Feature]*slot
	bus   *EventBus
	now   func() time.Time
}

// NewState creates a state with every feature idle. bus may be nil.
func NewState(bus *EventBus) *State {
	s := &State{
		slots: make(map[Feature]*slot, len(AllFeatures)),
		bus:   bus,
		now:   time.Now,
	}
	for _, f := range AllFeatures {
		s.slots[f] = &slot{session: Session{Feature: f, Phase: PhaseIdle, UpdatedAt: s.now()}}
	}
	return s
}

// Session returns a snapshot of feature's slot.
func (s *State) Session(f Feature) Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(f)
}

// Sessions returns snapshots for all features in tab order.
func (s *State) Sessions() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(AllFeatures))
	for _, f := range AllFeatures {
		out = append(out, s.snapshot(f))
	}
	return out
}

func (s *State) snapshot(f Feature) Session {
	sl, ok := s.slots[f]
	if !ok {
		return Session{Feature: f, Phase: PhaseIdle}
	}
	sess := sl.session
	sess.Outputs = append([]string(nil), sl.session.Outputs...)
	return sess
}

// BeginScan marks a folder scan as running. A scan while a job is polling
// leaves the job's phase alone.
func (s *State) BeginScan(f Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slot(f)
	if err != nil {
		return err
	}
	if sl.session.Scanning || sl.session.Submitting {
		return ErrBusy
	}

	sl.session.Scanning = true
	if sl.session.Phase != PhasePolling {
		sl.restore = sl.session.Phase
		if err := s.transition(sl, PhaseScanning); err != nil {
			sl.session.Scanning = false
			return err
		}
	}
	s.publish(sl, EventTypePhase, "")
	return nil
}

// FinishScan ends a scan. On success the feature moves to configuring; on
// failure it returns to where it was before the scan.
func (s *State) FinishScan(f Feature, ok bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slot(f)
	if err != nil {
		return err
	}
	if !sl.session.Scanning {
		return fmt.Errorf("%w: no scan running for %s", ErrInvalidTransition, f)
	}
	sl.session.Scanning = false

	if sl.session.Phase == PhaseScanning {
		if ok {
			if err := s.transition(sl, PhaseConfiguring); err != nil {
				return err
			}
		} else {
			sl.session.Phase = sl.restore
			sl.session.UpdatedAt = s.now()
		}
	}
	s.publish(sl, EventTypePhase, "")
	return nil
}

// BeginSubmit marks a submission as in flight. Without a job being polled
// the feature moves to submitting and its progress is reset; a polled job
// keeps its phase, handle and poll updates until StartJob replaces it.
func (s *State) BeginSubmit(f Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slot(f)
	if err != nil {
		return err
	}
	if sl.session.Scanning || sl.session.Submitting {
		return ErrBusy
	}

	if sl.session.Phase != PhasePolling {
		if err := s.transition(sl, PhaseSubmitting); err != nil {
			return err
		}
		sl.session.Progress = 0
		sl.session.Message = ""
		sl.session.Error = ""
	}
	sl.session.Submitting = true
	s.publish(sl, EventTypePhase, "")
	return nil
}

// FailSubmit records a rejected submission. Whatever the previous job did
// meanwhile (still polling, finished or failed) is left as it is.
func (s *State) FailSubmit(f Feature, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slot(f)
	if err != nil {
		return err
	}
	if !sl.session.Submitting {
		return fmt.Errorf("%w: no submission running for %s", ErrInvalidTransition, f)
	}
	sl.session.Submitting = false

	if sl.session.Phase == PhaseSubmitting {
		if err := s.transition(sl, PhaseError); err != nil {
			return err
		}
		sl.session.Error = msg
	}
	s.publish(sl, EventTypeError, msg)
	return nil
}

// StartJob stores the handle returned by a successful submission and moves
// the feature to polling. Any previous handle for the feature is replaced,
// so updates for it become stale.
func (s *State) StartJob(f Feature, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slot(f)
	if err != nil {
		return err
	}
	if !sl.session.Submitting {
		return fmt.Errorf("%w: no submission running for %s", ErrInvalidTransition, f)
	}
	sl.session.Submitting = false

	if sl.session.Phase == PhaseSubmitting {
		if err := s.transition(sl, PhasePolling); err != nil {
			return err
		}
	} else {
		// the replaced job may have finished or failed while the request ran
		sl.session.Phase = PhasePolling
	}

	now := s.now()
	sl.session.BatchID = batchID
	sl.session.Progress = 0
	sl.session.Message = ""
	sl.session.Outputs = nil
	sl.session.Error = ""
	sl.session.StartedAt = now
	sl.session.UpdatedAt = now
	s.publish(sl, EventTypePhase, "")
	return nil
}

// UpdateStatus applies one poll result. Updates for a batch other than the
// current one return ErrStaleBatch and change nothing.
func (s *State) UpdateStatus(f Feature, batchID string, st backend.Status) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slot(f)
	if err != nil {
		return Session{}, err
	}
	if sl.session.BatchID != batchID {
		return Session{}, ErrStaleBatch
	}
	if sl.session.Phase != PhasePolling {
		return Session{}, fmt.Errorf("%w: %s is %s, not polling", ErrInvalidTransition, f, sl.session.Phase)
	}

	sl.session.Progress = st.Progress
	sl.session.Message = st.DisplayMessage()
	sl.session.UpdatedAt = s.now()

	switch st.Status {
	case backend.StatusCompleted:
		sl.session.Outputs = append([]string(nil), st.Outputs...)
		if err := s.transition(sl, PhaseDone); err != nil {
			return Session{}, err
		}
		s.publish(sl, EventTypeResult, "")
	case backend.StatusError:
		sl.session.Error = st.Error
		if err := s.transition(sl, PhaseError); err != nil {
			return Session{}, err
		}
		s.publish(sl, EventTypeError, st.Error)
	default:
		s.publish(sl, EventTypeProgress, "")
	}
	return s.snapshot(f), nil
}

// FailJob ends polling for batchID with an error that did not come from the
// job itself (bad status response, transport failure).
func (s *State) FailJob(f Feature, batchID, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slot(f)
	if err != nil {
		return err
	}
	if sl.session.BatchID != batchID {
		return ErrStaleBatch
	}
	if err := s.transition(sl, PhaseError); err != nil {
		return err
	}
	sl.session.Error = msg
	s.publish(sl, EventTypeError, msg)
	return nil
}

// ClearJob drops the feature's handle and returns it to idle.
func (s *State) ClearJob(f Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slot(f)
	if err != nil {
		return err
	}
	if sl.session.Active() || sl.session.Scanning {
		return ErrBusy
	}
	sl.session = Session{Feature: f, Phase: PhaseIdle, UpdatedAt: s.now()}
	sl.restore = PhaseIdle
	s.publish(sl, EventTypePhase, "")
	return nil
}

func (s *State) slot(f Feature) (*slot, error) {
	sl, ok := s.slots[f]
	if !ok {
		return nil, fmt.Errorf("unknown feature %q", f)
	}
	return sl, nil
}

func (s *State) transition(sl *slot, to Phase) error {
	from := sl.session.Phase
	if from == to {
		return nil
	}
	if !isValidTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	sl.session.Phase = to
	sl.session.UpdatedAt = s.now()
	return nil
}

func (s *State) publish(sl *slot, typ EventType, msg string) {
	if s.bus == nil {
		return
	}
	sess := sl.session
	s.bus.Publish(Event{
		Feature:  sess.Feature,
		Type:     typ,
		Phase:    sess.Phase,
		BatchID:  sess.BatchID,
		Progress: sess.Progress,
		Message:  firstNonEmpty(msg, sess.Message),
		Outputs:  append([]string(nil), sess.Outputs...),
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
