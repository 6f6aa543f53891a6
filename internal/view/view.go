package view

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/mediabatch/mediabatch-agent/internal/backend"
	"github.com/mediabatch/mediabatch-agent/internal/jobs"
)

// Voice upload slots.
const (
	FileKindVideo = "video"
	FileKindAudio = "audio"
)

const (
	labelScanning   = "Scanning..."
	labelProcessing = "Processing..."
)

var tabLabels = map[jobs.Feature]string{
	jobs.FeatureBatch: "Batch Video Creator",
	jobs.FeatureMerge: "Video + Audio Merger",
	jobs.FeatureVoice: "Voice Adder",
}

var fieldFeatures = map[string]jobs.Feature{
	FieldInputFolder:       jobs.FeatureBatch,
	FieldOutputFolder:      jobs.FeatureBatch,
	FieldVideoCount:        jobs.FeatureBatch,
	FieldVideoDur:          jobs.FeatureBatch,
	FieldVideoTrim:         jobs.FeatureBatch,
	FieldOutputCount:       jobs.FeatureBatch,
	FieldVideoFolder:       jobs.FeatureMerge,
	FieldAudioFolder:       jobs.FeatureMerge,
	FieldOutputFolderVA:    jobs.FeatureMerge,
	FieldAudioTrim:         jobs.FeatureMerge,
	FieldAudioSelection:    jobs.FeatureMerge,
	FieldOutputFolderVoice: jobs.FeatureVoice,
	FieldVolume:            jobs.FeatureVoice,
}

// FieldFeature reports which pane owns a field id.
func FieldFeature(field string) (jobs.Feature, bool) {
	f, ok := fieldFeatures[field]
	return f, ok
}

// View is the mutable page state. It is safe for concurrent use; every
// mutation is announced on the event bus as a view event.
type View struct {
	mu      sync.RWMutex
	baseURL string
	state   State
	bus     *jobs.EventBus
}

// New builds the initial page for the enabled features. The first feature's
// tab starts active. bus may be nil.
func New(baseURL string, features []jobs.Feature, bus *jobs.EventBus) *View {
	v := &View{baseURL: baseURL, bus: bus}

	for i, f := range features {
		v.state.Tabs = append(v.state.Tabs, Tab{ID: f, Label: tabLabels[f], Active: i == 0})
		switch f {
		case jobs.FeatureBatch:
			v.state.Batch = &BatchPane{
				Form: BatchForm{
					VideoCount:    DefaultVideoCount,
					VideoDuration: DefaultVideoDuration,
					TrimMode:      backend.TrimModeFixed,
					OutputCount:   DefaultOutputCount,
				},
				ScanButton:      idleButton(f, false),
				TrimDescription: trimDescription(backend.TrimModeFixed),
				JobPanel:        JobPanel{ProcessButton: idleButton(f, true)},
			}
		case jobs.FeatureMerge:
			v.state.Merge = &MergePane{
				Form: MergeForm{
					TrimMode:      backend.TrimModeFixed,
					SelectionMode: backend.SelectionUnique,
				},
				ScanButton: idleButton(f, false),
				JobPanel:   JobPanel{ProcessButton: idleButton(f, true)},
			}
		case jobs.FeatureVoice:
			v.state.Voice = &VoicePane{
				Form:        VoiceForm{Volume: DefaultVolume},
				VolumeLabel: volumeLabel(DefaultVolume),
				JobPanel:    JobPanel{ProcessButton: idleButton(f, true)},
			}
		}
	}
	return v
}

// BaseURL is the backend origin download links point at.
func (v *View) BaseURL() string {
	return v.baseURL
}

// Enabled reports whether feature has a pane.
func (v *View) Enabled(f jobs.Feature) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.enabled(f)
}

func (v *View) enabled(f jobs.Feature) bool {
	for _, t := range v.state.Tabs {
		if t.ID == f {
			return true
		}
	}
	return false
}

// Features lists the enabled features in tab order.
func (v *View) Features() []jobs.Feature {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]jobs.Feature, 0, len(v.state.Tabs))
	for _, t := range v.state.Tabs {
		out = append(out, t.ID)
	}
	return out
}

// Snapshot returns a deep copy of the page state.
func (v *View) Snapshot() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.clone()
}

// ActivateTab makes id the only active tab.
func (v *View) ActivateTab(id jobs.Feature) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.enabled(id) {
		return fmt.Errorf("tab %q is not available", id)
	}
	for i := range v.state.Tabs {
		v.state.Tabs[i].Active = v.state.Tabs[i].ID == id
	}
	v.changed(id)
	return nil
}

// SetField stores the raw value of a form field. Select fields only accept
// their listed options.
func (v *View) SetField(field, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	f, ok := fieldFeatures[field]
	if !ok {
		return fmt.Errorf("unknown field %q", field)
	}
	if !v.enabled(f) {
		return fmt.Errorf("field %q belongs to disabled feature %s", field, f)
	}

	switch field {
	case FieldInputFolder:
		v.state.Batch.Form.InputFolder = value
	case FieldOutputFolder:
		v.state.Batch.Form.OutputFolder = value
	case FieldVideoCount:
		v.state.Batch.Form.VideoCount = value
	case FieldVideoDur:
		v.state.Batch.Form.VideoDuration = value
	case FieldVideoTrim:
		if err := checkOption(field, value, backend.TrimModeFixed, backend.TrimModeRandom); err != nil {
			return err
		}
		v.state.Batch.Form.TrimMode = value
		v.state.Batch.TrimDescription = trimDescription(value)
	case FieldOutputCount:
		v.state.Batch.Form.OutputCount = value
	case FieldVideoFolder:
		v.state.Merge.Form.VideoFolder = value
	case FieldAudioFolder:
		v.state.Merge.Form.AudioFolder = value
	case FieldOutputFolderVA:
		v.state.Merge.Form.OutputFolder = value
	case FieldAudioTrim:
		if err := checkOption(field, value, backend.TrimModeFixed, backend.TrimModeRandom); err != nil {
			return err
		}
		v.state.Merge.Form.TrimMode = value
	case FieldAudioSelection:
		if err := checkOption(field, value, backend.SelectionUnique, backend.SelectionRandom); err != nil {
			return err
		}
		v.state.Merge.Form.SelectionMode = value
	case FieldOutputFolderVoice:
		v.state.Voice.Form.OutputFolder = value
	case FieldVolume:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid volume %q", value)
		}
		return v.setVolume(n)
	}
	v.changed(f)
	return nil
}

// SetVolume updates the voice overlay's original-audio volume and its echo
// label.
func (v *View) SetVolume(percent int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.enabled(jobs.FeatureVoice) {
		return fmt.Errorf("feature %s is disabled", jobs.FeatureVoice)
	}
	return v.setVolume(percent)
}

func (v *View) setVolume(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", percent)
	}
	v.state.Voice.Form.Volume = percent
	v.state.Voice.VolumeLabel = volumeLabel(percent)
	v.changed(jobs.FeatureVoice)
	return nil
}

// SetScanBusy toggles the scan button between its idle and busy look.
func (v *View) SetScanBusy(f jobs.Feature, busy bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var b *Button
	switch f {
	case jobs.FeatureBatch:
		if v.state.Batch != nil {
			b = &v.state.Batch.ScanButton
		}
	case jobs.FeatureMerge:
		if v.state.Merge != nil {
			b = &v.state.Merge.ScanButton
		}
	}
	if b == nil {
		return
	}
	if busy {
		*b = Button{Label: labelScanning, Disabled: true}
	} else {
		*b = idleButton(f, false)
	}
	v.changed(f)
}

// SetProcessBusy toggles the process button between its idle and busy look.
func (v *View) SetProcessBusy(f jobs.Feature, busy bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	p := v.panel(f)
	if p == nil {
		return
	}
	if busy {
		p.ProcessButton = Button{Label: labelProcessing, Disabled: true}
	} else {
		p.ProcessButton = idleButton(f, true)
	}
	v.changed(f)
}

// ShowVideos renders a batch scan and reveals the configuration section.
func (v *View) ShowVideos(videos []backend.MediaFile) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state.Batch == nil {
		return
	}
	v.state.Batch.Videos = FileList{
		CountLabel: fmt.Sprintf("Found %d videos", len(videos)),
		Items:      fileItems(videos),
	}
	v.state.Batch.VideoListShown = true
	v.state.Batch.ConfigShown = true
	v.changed(jobs.FeatureBatch)
}

// ShowMergeFiles renders both merge scans and reveals the process button.
func (v *View) ShowMergeFiles(videos, audios []backend.MediaFile) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state.Merge == nil {
		return
	}
	v.state.Merge.Videos = FileList{
		CountLabel: fmt.Sprintf("Found %d videos", len(videos)),
		Items:      fileItems(videos),
	}
	v.state.Merge.Audios = FileList{
		CountLabel: fmt.Sprintf("Found %d audio files", len(audios)),
		Items:      fileItems(audios),
	}
	v.state.Merge.FileListShown = true
	v.state.Merge.ProcessShown = true
	v.changed(jobs.FeatureMerge)
}

// SelectVoiceFile records an upload and fills its info panel. The info
// section appears once both files are chosen.
func (v *View) SelectVoiceFile(kind string, file backend.LocalFile) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state.Voice == nil {
		return fmt.Errorf("feature %s is disabled", jobs.FeatureVoice)
	}

	info := &FileInfo{Name: file.Name, Size: FormatFileSize(file.Size), Type: file.ContentType}
	switch kind {
	case FileKindVideo:
		v.state.Voice.Form.VideoFile = &file
		v.state.Voice.VideoInfo = info
	case FileKindAudio:
		v.state.Voice.Form.AudioFile = &file
		v.state.Voice.AudioInfo = info
	default:
		return fmt.Errorf("unknown file kind %q", kind)
	}

	if v.state.Voice.Form.VideoFile != nil && v.state.Voice.Form.AudioFile != nil {
		v.state.Voice.FileInfoShown = true
	}
	v.changed(jobs.FeatureVoice)
	return nil
}

// ShowProgress reveals the progress section at 0% and hides old results.
func (v *View) ShowProgress(f jobs.Feature) {
	v.mu.Lock()
	defer v.mu.Unlock()

	p := v.panel(f)
	if p == nil {
		return
	}
	p.Progress = Progress{Visible: true, Percent: 0, Message: StartingMessage}
	p.Results.Visible = false
	v.changed(f)
}

// UpdateProgress moves the bar and replaces the status message.
func (v *View) UpdateProgress(f jobs.Feature, percent float64, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	p := v.panel(f)
	if p == nil {
		return
	}
	p.Progress.Percent = percent
	p.Progress.Message = message
	v.changed(f)
}

func (v *View) HideProgress(f jobs.Feature) {
	v.mu.Lock()
	defer v.mu.Unlock()

	p := v.panel(f)
	if p == nil {
		return
	}
	p.Progress.Visible = false
	v.changed(f)
}

// ShowResults renders download links for a finished batch. The voice pane
// only ever shows the first output.
func (v *View) ShowResults(f jobs.Feature, batchID string, outputs []string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	p := v.panel(f)
	if p == nil {
		return
	}
	if f == jobs.FeatureVoice && len(outputs) > 1 {
		outputs = outputs[:1]
	}

	links := make([]Link, 0, len(outputs))
	for _, name := range outputs {
		links = append(links, Link{Name: name, Href: backend.DownloadURL(v.baseURL, batchID, name)})
	}
	p.Results = Results{Visible: true, Links: links}
	v.changed(f)
}

func (v *View) panel(f jobs.Feature) *JobPanel {
	switch f {
	case jobs.FeatureBatch:
		if v.state.Batch != nil {
			return &v.state.Batch.JobPanel
		}
	case jobs.FeatureMerge:
		if v.state.Merge != nil {
			return &v.state.Merge.JobPanel
		}
	case jobs.FeatureVoice:
		if v.state.Voice != nil {
			return &v.state.Voice.JobPanel
		}
	}
	return nil
}

func (v *View) changed(f jobs.Feature) {
	if v.bus != nil {
		v.bus.Publish(jobs.Event{Type: jobs.EventTypeView, Feature: f})
	}
}

func idleButton(f jobs.Feature, process bool) Button {
	switch {
	case !process && f == jobs.FeatureMerge:
		return Button{Label: "Scan Folders"}
	case !process:
		return Button{Label: "Scan Folder"}
	case f == jobs.FeatureVoice:
		return Button{Label: "Process Video"}
	default:
		return Button{Label: "Start Processing"}
	}
}

func trimDescription(mode string) string {
	if mode == backend.TrimModeFixed {
		return trimDescFixed
	}
	return trimDescRandom
}

func volumeLabel(percent int) string {
	return strconv.Itoa(percent) + "%"
}

func checkOption(field, value string, options ...string) error {
	for _, o := range options {
		if value == o {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q: must be one of %s", field, value, strings.Join(options, ", "))
}

func fileItems(files []backend.MediaFile) []FileItem {
	items := make([]FileItem, 0, len(files))
	for _, f := range files {
		items = append(items, FileItem{Name: f.Name, Duration: FormatDuration(f.Duration)})
	}
	return items
}

func (s State) clone() State {
	out := State{Tabs: append([]Tab(nil), s.Tabs...)}
	if s.Batch != nil {
		b := *s.Batch
		b.Videos.Items = append([]FileItem(nil), s.Batch.Videos.Items...)
		b.JobPanel = s.Batch.JobPanel.clone()
		out.Batch = &b
	}
	if s.Merge != nil {
		m := *s.Merge
		m.Videos.Items = append([]FileItem(nil), s.Merge.Videos.Items...)
		m.Audios.Items = append([]FileItem(nil), s.Merge.Audios.Items...)
		m.JobPanel = s.Merge.JobPanel.clone()
		out.Merge = &m
	}
	if s.Voice != nil {
		vp := *s.Voice
		if s.Voice.Form.VideoFile != nil {
			f := *s.Voice.Form.VideoFile
			vp.Form.VideoFile = &f
		}
		if s.Voice.Form.AudioFile != nil {
			f := *s.Voice.Form.AudioFile
			vp.Form.AudioFile = &f
		}
		if s.Voice.VideoInfo != nil {
			i := *s.Voice.VideoInfo
			vp.VideoInfo = &i
		}
		if s.Voice.AudioInfo != nil {
			i := *s.Voice.AudioInfo
			vp.AudioInfo = &i
		}
		vp.JobPanel = s.Voice.JobPanel.clone()
		out.Voice = &vp
	}
	return out
}

func (p JobPanel) clone() JobPanel {
	p.Results.Links = append([]Link(nil), p.Results.Links...)
	return p
}
