package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mediabatch/mediabatch-agent/internal/app"
	"github.com/mediabatch/mediabatch-agent/internal/backend"
	"github.com/mediabatch/mediabatch-agent/internal/jobs"
	"github.com/mediabatch/mediabatch-agent/internal/playback"
	"github.com/mediabatch/mediabatch-agent/internal/store"
	"github.com/mediabatch/mediabatch-agent/internal/view"
)

const maxRequestBody = 64 * 1024

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackGuard(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/", pageHandler(cfg))
		r.Get("/view", viewHandler(cfg))
		r.Get("/fragments/{section}", fragmentHandler(cfg))
		r.Post("/tabs/{tab}", tabHandler(cfg))
		r.Post("/fields/{field}", fieldHandler(cfg))
		r.Post("/actions/{action}", actionHandler(cfg))
		r.Post("/voice/files/{kind}", voiceFileHandler(cfg))
		r.Post("/voice/volume", volumeHandler(cfg))
		r.Get("/alerts", alertsHandler(cfg))
		r.Get("/outputs", outputsHandler(cfg))
		r.Get("/outputs/{name}", outputFileHandler(cfg))
		r.Get("/ws", wsHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  uptime,
			ClientID: cfg.ClientID,
			Backend:  cfg.Controller.View().BaseURL(),
		})
	}
}

func pageHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := cfg.Repository.GetConfig(r.Context(), store.KeyAuthToken)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "auth configuration error", "INTERNAL_ERROR")
			return
		}

		var buf bytes.Buffer
		if err := view.RenderPage(&buf, cfg.Controller.View().Snapshot(), token); err != nil {
			cfg.Logger.Error("render page failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "render failed", "INTERNAL_ERROR")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(buf.Bytes())
	}
}

func viewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeView(w, cfg)
	}
}

func writeView(w http.ResponseWriter, cfg ServerConfig) {
	sessions := cfg.Controller.State().Sessions()
	resp := ViewResponse{
		View:     cfg.Controller.View().Snapshot(),
		Sessions: make([]SessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		if cfg.Controller.View().Enabled(s.Feature) {
			resp.Sessions = append(resp.Sessions, SessionToResponse(s))
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

func fragmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		section := chi.URLParam(r, "section")

		var buf bytes.Buffer
		err := view.RenderFragment(&buf, section, cfg.Controller.View().Snapshot())
		if errors.Is(err, view.ErrUnknownFragment) {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}
		if err != nil {
			cfg.Logger.Error("render fragment failed", "section", section, "error", err)
			WriteError(w, http.StatusInternalServerError, "render failed", "INTERNAL_ERROR")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	}
}

func tabHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Controller.ActivateTab(chi.URLParam(r, "tab")); err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}
		writeView(w, cfg)
	}
}

func fieldHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FieldRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := cfg.Controller.SetField(chi.URLParam(r, "field"), req.Value); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		writeView(w, cfg)
	}
}

func volumeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VolumeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Value == nil {
			WriteError(w, http.StatusBadRequest, "value is required", "BAD_REQUEST")
			return
		}
		if err := cfg.Controller.SetVolume(*req.Value); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		writeView(w, cfg)
	}
}

func voiceFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FileRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Path) == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}
		if err := cfg.Controller.SelectVoiceFile(chi.URLParam(r, "kind"), req.Path); err != nil {
			writeActionError(w, err)
			return
		}
		writeView(w, cfg)
	}
}

// actionHandler runs a button press. Failures the user must see are also
// queued as alerts by the controller; the status code only tells the page
// the action did not go through.
func actionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := chi.URLParam(r, "action")
		ctx := r.Context()
		c := cfg.Controller

		var (
			paths []string
			err   error
		)
		switch {
		case action == "scan-batch":
			err = c.ScanFolder(ctx)
		case action == "scan-merge":
			err = c.ScanVAFolders(ctx)
		case action == "process-batch":
			err = c.StartProcessing(ctx)
		case action == "process-merge":
			err = c.StartVAProcessing(ctx)
		case action == "process-voice":
			err = c.StartVoiceProcessing(ctx)
		case strings.HasPrefix(action, "browse-"):
			err = c.BrowseFolder(ctx, strings.TrimPrefix(action, "browse-"))
		case strings.HasPrefix(action, "download-"):
			var f jobs.Feature
			if f, err = jobs.ParseFeature(strings.TrimPrefix(action, "download-")); err == nil {
				paths, err = c.DownloadOutputs(ctx, f)
			}
		default:
			WriteError(w, http.StatusNotFound, "unknown action "+action, "NOT_FOUND")
			return
		}

		if err != nil {
			writeActionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ActionResponse{Action: action, Paths: paths})
	}
}

func writeActionError(w http.ResponseWriter, err error) {
	var verr *app.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteError(w, http.StatusUnprocessableEntity, verr.Message, "VALIDATION_ERROR")
	case errors.Is(err, app.ErrFeatureDisabled):
		WriteError(w, http.StatusNotFound, err.Error(), "FEATURE_DISABLED")
	case errors.Is(err, jobs.ErrBusy):
		WriteError(w, http.StatusConflict, err.Error(), "BUSY")
	case backend.IsNetworkError(err):
		WriteError(w, http.StatusBadGateway, backend.ErrorMessage(err), "BACKEND_UNREACHABLE")
	default:
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			WriteError(w, http.StatusBadGateway, apiErr.Message, "BACKEND_ERROR")
			return
		}
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	}
}

func alertsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alerts := cfg.Alerts.Drain()
		if alerts == nil {
			alerts = []app.Alert{}
		}
		WriteJSON(w, http.StatusOK, AlertsResponse{Alerts: alerts})
	}
}

func outputsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Outputs == nil {
			WriteJSON(w, http.StatusOK, OutputsResponse{Outputs: []playback.Output{}})
			return
		}
		outputs, err := cfg.Outputs.List()
		if err != nil {
			cfg.Logger.Error("failed to list outputs", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to list outputs", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, OutputsResponse{Outputs: outputs})
	}
}

func outputFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Outputs == nil {
			WriteError(w, http.StatusNotFound, "output not found", "NOT_FOUND")
			return
		}
		err := cfg.Outputs.ServeOutput(w, r, chi.URLParam(r, "name"))
		switch {
		case err == nil:
		case errors.Is(err, playback.ErrNotFound):
			WriteError(w, http.StatusNotFound, "output not found", "NOT_FOUND")
		default:
			cfg.Logger.Error("failed to serve output", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to serve output", "INTERNAL_ERROR")
		}
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}
