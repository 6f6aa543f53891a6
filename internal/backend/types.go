// Package backend is the HTTP client for the media processing service. The
// service does the trimming, merging and encoding; this package only submits
// jobs, reads their status and fetches outputs.
package backend

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

const (
	TrimModeFixed  = "fixed"
	TrimModeRandom = "random"

	SelectionUnique = "unique"
	SelectionRandom = "random"
)

// MediaFile is one entry of a folder scan.
type MediaFile struct {
	Name     string  `json:"name"`
	Path     string  `json:"path,omitempty"`
	Duration float64 `json:"duration"`
}

type scanRequest struct {
	FolderPath string `json:"folder_path"`
}

type scanVideosResponse struct {
	Videos []MediaFile `json:"videos"`
}

type scanAudiosResponse struct {
	Audios []MediaFile `json:"audios"`
}

// BatchTrimRequest is the body of POST /api/process-batch.
type BatchTrimRequest struct {
	InputFolderPath  string  `json:"input_folder_path"`
	OutputFolderPath string  `json:"output_folder_path"`
	VideoCount       int     `json:"video_count"`
	VideoDuration    float64 `json:"video_duration"`
	VideoTrimMode    string  `json:"video_trim_mode"`
	OutputCount      int     `json:"output_count"`
}

// MergeRequest is the body of POST /api/process-video-audio-batch.
type MergeRequest struct {
	VideoFolderPath    string `json:"video_folder_path"`
	AudioFolderPath    string `json:"audio_folder_path"`
	OutputFolderPath   string `json:"output_folder_path"`
	AudioTrimMode      string `json:"audio_trim_mode"`
	AudioSelectionMode string `json:"audio_selection_mode"`
}

// VoiceOverlayRequest is sent as multipart/form-data because it carries the
// file contents, not paths on the backend host.
type VoiceOverlayRequest struct {
	VideoFile           LocalFile
	AudioFile           LocalFile
	OutputFolderPath    string
	OriginalAudioVolume int
}

// LocalFile is a file on the agent's machine selected for upload.
type LocalFile struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"type"`
}

// JobHandle is the opaque id returned by a successful submission.
type JobHandle struct {
	BatchID string `json:"batch_id"`
	Message string `json:"message,omitempty"`
}

// Status is one poll of GET /api/status/{batch_id}.
type Status struct {
	Status   string   `json:"status"`
	Progress float64  `json:"progress,omitempty"`
	Message  string   `json:"message,omitempty"`
	Outputs  []string `json:"outputs,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// IsTerminal reports whether polling should stop after this status.
func (s Status) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusError
}

// DisplayMessage falls back to the raw status when the backend sent no message.
func (s Status) DisplayMessage() string {
	if s.Message != "" {
		return s.Message
	}
	return s.Status
}

type errorResponse struct {
	Error string `json:"error"`
}
