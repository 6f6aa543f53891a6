// Package jobs owns the per-feature session records: which phase each feature
// is in, the batch it is tracking and the last status seen for it.
package jobs

import (
	"errors"
	"fmt"
	"time"
)

// Feature identifies one of the independent job slots.
type Feature string

const (
	FeatureBatch Feature = "batch"
	FeatureMerge Feature = "merge"
	FeatureVoice Feature = "voice"
)

// AllFeatures lists the slots in tab order.
var AllFeatures = []Feature{FeatureBatch, FeatureMerge, FeatureVoice}

// ParseFeature maps a tab or command argument to a Feature.
func ParseFeature(s string) (Feature, error) {
	switch Feature(s) {
	case FeatureBatch, FeatureMerge, FeatureVoice:
		return Feature(s), nil
	}
	return "", fmt.Errorf("unknown feature %q", s)
}

// Phase is a feature's position in its scan/submit/poll lifecycle.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseScanning    Phase = "scanning"
	PhaseConfiguring Phase = "configuring"
	PhaseSubmitting  Phase = "submitting"
	PhasePolling     Phase = "polling"
	PhaseDone        Phase = "done"
	PhaseError       Phase = "error"
)

var (
	// ErrInvalidTransition is returned when a mutation does not fit the
	// feature's current phase.
	ErrInvalidTransition = errors.New("invalid phase transition")

	// ErrBusy is returned when the feature's triggering action is already
	// in flight.
	ErrBusy = errors.New("operation already in progress")

	// ErrStaleBatch is returned for updates about a batch that is no longer
	// the feature's current one.
	ErrStaleBatch = errors.New("batch is not current")
)

// Session is a snapshot of one feature's slot. Scanning and Submitting are
// set while a request is in flight; the phase only follows them when no job
// is being polled.
type Session struct {
	Feature    Feature   `json:"feature"`
	Phase      Phase     `json:"phase"`
	Scanning   bool      `json:"scanning"`
	Submitting bool      `json:"submitting"`
	BatchID    string    `json:"batch_id,omitempty"`
	Progress   float64   `json:"progress"`
	Message    string    `json:"message,omitempty"`
	Outputs    []string  `json:"outputs,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Active reports whether a job is being submitted or polled.
func (s Session) Active() bool {
	return s.Submitting || s.Phase == PhaseSubmitting || s.Phase == PhasePolling
}

// isValidTransition enforces the per-feature state machine edges.
func isValidTransition(from, to Phase) bool {
	switch from {
	case PhaseIdle:
		return to == PhaseScanning || to == PhaseSubmitting
	case PhaseScanning:
		return to == PhaseConfiguring || to == PhaseIdle
	case PhaseConfiguring:
		return to == PhaseScanning || to == PhaseSubmitting || to == PhaseIdle
	case PhaseSubmitting:
		return to == PhasePolling || to == PhaseError
	case PhasePolling:
		return to == PhaseDone || to == PhaseError
	case PhaseDone, PhaseError:
		return to == PhaseScanning || to == PhaseSubmitting || to == PhaseIdle || to == PhaseConfiguring
	default:
		return false
	}
}
