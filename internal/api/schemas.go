package api

import (
	"time"

	"github.com/mediabatch/mediabatch-agent/internal/app"
	"github.com/mediabatch/mediabatch-agent/internal/jobs"
	"github.com/mediabatch/mediabatch-agent/internal/playback"
	"github.com/mediabatch/mediabatch-agent/internal/view"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	ClientID string `json:"client_id"`
	Backend  string `json:"backend_url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type FieldRequest struct {
	Value string `json:"value"`
}

type VolumeRequest struct {
	Value *int `json:"value"`
}

type FileRequest struct {
	Path string `json:"path"`
}

// ViewResponse is the whole page state plus the job sessions behind it.
type ViewResponse struct {
	View     view.State        `json:"view"`
	Sessions []SessionResponse `json:"sessions"`
}

type SessionResponse struct {
	Feature    string   `json:"feature"`
	Phase      string   `json:"phase"`
	Scanning   bool     `json:"scanning,omitempty"`
	Submitting bool     `json:"submitting,omitempty"`
	BatchID    string   `json:"batch_id,omitempty"`
	Progress   float64  `json:"progress"`
	Message    string   `json:"message,omitempty"`
	Outputs    []string `json:"outputs,omitempty"`
	Error      string   `json:"error,omitempty"`
	StartedAt  string   `json:"started_at,omitempty"`
	UpdatedAt  string   `json:"updated_at"`
}

type ActionResponse struct {
	Action string   `json:"action"`
	Paths  []string `json:"paths,omitempty"`
}

type AlertsResponse struct {
	Alerts []app.Alert `json:"alerts"`
}

func SessionToResponse(s jobs.Session) SessionResponse {
	resp := SessionResponse{
		Feature:    string(s.Feature),
		Phase:      string(s.Phase),
		Scanning:   s.Scanning,
		Submitting: s.Submitting,
		BatchID:    s.BatchID,
		Progress:   s.Progress,
		Message:    s.Message,
		Outputs:    s.Outputs,
		Error:      s.Error,
		UpdatedAt:  s.UpdatedAt.Format(time.RFC3339),
	}
	if !s.StartedAt.IsZero() {
		resp.StartedAt = s.StartedAt.Format(time.RFC3339)
	}
	return resp
}

type OutputsResponse struct {
	Outputs []playback.Output `json:"outputs"`
}
