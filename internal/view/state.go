// Package view holds the declarative state of the control page: which tab is
// open, what each pane shows, and the raw values of its form fields. Front-ends
// mutate it through View and render snapshots of it.
package view

import (
	"errors"

	"github.com/mediabatch/mediabatch-agent/internal/backend"
	"github.com/mediabatch/mediabatch-agent/internal/jobs"
)

// Field ids. They match the form controls of the control page.
const (
	FieldInputFolder  = "input-folder-path"
	FieldOutputFolder = "output-folder-path"
	FieldVideoCount   = "videos-per-output"
	FieldVideoDur     = "video-duration"
	FieldVideoTrim    = "video-trim-mode"
	FieldOutputCount  = "output-count"

	FieldVideoFolder    = "video-folder-path"
	FieldAudioFolder    = "audio-folder-path"
	FieldOutputFolderVA = "output-folder-path-va"
	FieldAudioTrim      = "audio-trim-mode"
	FieldAudioSelection = "audio-selection-mode"

	FieldOutputFolderVoice = "output-folder-path-voice"
	FieldVolume            = "original-audio-volume"
)

// FieldIDs lists every form field in page order.
var FieldIDs = []string{
	FieldInputFolder, FieldOutputFolder, FieldVideoCount, FieldVideoDur, FieldVideoTrim, FieldOutputCount,
	FieldVideoFolder, FieldAudioFolder, FieldOutputFolderVA, FieldAudioTrim, FieldAudioSelection,
	FieldOutputFolderVoice, FieldVolume,
}

// FolderFields are the fields filled by the folder resolver.
var FolderFields = []string{
	FieldInputFolder, FieldOutputFolder,
	FieldVideoFolder, FieldAudioFolder, FieldOutputFolderVA,
	FieldOutputFolderVoice,
}

const (
	DefaultVideoCount    = "5"
	DefaultVideoDuration = "10"
	DefaultOutputCount   = "1"
	DefaultVolume        = 100

	StartingMessage = "Starting processing..."
)

const (
	trimDescFixed  = "Each video will be cut to this duration (start from 0s)"
	trimDescRandom = "Each video will be cut to this duration (random start position)"
)

// Tab is one entry of the tab bar.
type Tab struct {
	ID     jobs.Feature `json:"id"`
	Label  string       `json:"label"`
	Active bool         `json:"active"`
}

// Button is a triggering control. Busy buttons are disabled and carry the
// busy label.
type Button struct {
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

type Progress struct {
	Visible bool    `json:"visible"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// FileItem is one rendered row of a scanned folder.
type FileItem struct {
	Name     string `json:"name"`
	Duration string `json:"duration"`
}

type FileList struct {
	CountLabel string     `json:"count_label"`
	Items      []FileItem `json:"items"`
}

// FileInfo is the info panel of a selected upload.
type FileInfo struct {
	Name string `json:"name"`
	Size string `json:"size"`
	Type string `json:"type"`
}

type Link struct {
	Name string `json:"name"`
	Href string `json:"href"`
}

type Results struct {
	Visible bool   `json:"visible"`
	Links   []Link `json:"links"`
}

// JobPanel is the part every pane shares: the action button, the progress
// bar and the download links.
type JobPanel struct {
	ProcessButton Button   `json:"process_button"`
	Progress      Progress `json:"progress"`
	Results       Results  `json:"results"`
}

type BatchForm struct {
	InputFolder   string `json:"input_folder_path"`
	OutputFolder  string `json:"output_folder_path"`
	VideoCount    string `json:"video_count"`
	VideoDuration string `json:"video_duration"`
	TrimMode      string `json:"video_trim_mode"`
	OutputCount   string `json:"output_count"`
}

type BatchPane struct {
	Form            BatchForm `json:"form"`
	ScanButton      Button    `json:"scan_button"`
	VideoListShown  bool      `json:"video_list_visible"`
	Videos          FileList  `json:"videos"`
	ConfigShown     bool      `json:"config_visible"`
	TrimDescription string    `json:"trim_description"`
	JobPanel
}

type MergeForm struct {
	VideoFolder   string `json:"video_folder_path"`
	AudioFolder   string `json:"audio_folder_path"`
	OutputFolder  string `json:"output_folder_path"`
	TrimMode      string `json:"audio_trim_mode"`
	SelectionMode string `json:"audio_selection_mode"`
}

type MergePane struct {
	Form          MergeForm `json:"form"`
	ScanButton    Button    `json:"scan_button"`
	FileListShown bool      `json:"file_list_visible"`
	Videos        FileList  `json:"videos"`
	Audios        FileList  `json:"audios"`
	ProcessShown  bool      `json:"process_visible"`
	JobPanel
}

type VoiceForm struct {
	VideoFile    *backend.LocalFile `json:"video_file,omitempty"`
	AudioFile    *backend.LocalFile `json:"audio_file,omitempty"`
	OutputFolder string             `json:"output_folder_path"`
	Volume       int                `json:"original_audio_volume"`
}

type VoicePane struct {
	Form          VoiceForm `json:"form"`
	VideoInfo     *FileInfo `json:"video_info,omitempty"`
	AudioInfo     *FileInfo `json:"audio_info,omitempty"`
	FileInfoShown bool      `json:"file_info_visible"`
	VolumeLabel   string    `json:"volume_label"`
	JobPanel
}

// State is a full snapshot of the page. Panes of disabled features are nil.
type State struct {
	Tabs  []Tab      `json:"tabs"`
	Batch *BatchPane `json:"batch,omitempty"`
	Merge *MergePane `json:"merge,omitempty"`
	Voice *VoicePane `json:"voice,omitempty"`
}

// ActiveTab returns the id of the active tab.
func (s State) ActiveTab() jobs.Feature {
	for _, t := range s.Tabs {
		if t.Active {
			return t.ID
		}
	}
	return ""
}

// ErrUnknownFragment is returned for fragment names that are not rendered
// for the current feature set.
var ErrUnknownFragment = errors.New("unknown fragment")
