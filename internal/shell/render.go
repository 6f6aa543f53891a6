package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/mediabatch/mediabatch-agent/internal/backend"
	"github.com/mediabatch/mediabatch-agent/internal/jobs"
	"github.com/mediabatch/mediabatch-agent/internal/view"
)

const progressWidth = 30

func (s *Shell) printPane() {
	st := s.ctrl.View().Snapshot()

	var b strings.Builder
	b.WriteString(renderTabs(st.Tabs))
	switch st.ActiveTab() {
	case jobs.FeatureBatch:
		renderBatch(&b, st.Batch)
	case jobs.FeatureMerge:
		renderMerge(&b, st.Merge)
	case jobs.FeatureVoice:
		renderVoice(&b, st.Voice)
	}
	s.printf("%s", b.String())
}

func renderTabs(tabs []view.Tab) string {
	parts := make([]string, 0, len(tabs))
	for _, t := range tabs {
		if t.Active {
			parts = append(parts, "["+t.Label+"]")
		} else {
			parts = append(parts, " "+t.Label+" ")
		}
	}
	return strings.Join(parts, " ") + "\n\n"
}

func field(b *strings.Builder, id, value string) {
	fmt.Fprintf(b, "  %-26s %s\n", id, value)
}

func renderBatch(b *strings.Builder, p *view.BatchPane) {
	field(b, view.FieldInputFolder, p.Form.InputFolder)
	if p.VideoListShown {
		renderList(b, p.Videos)
	}
	field(b, view.FieldOutputFolder, p.Form.OutputFolder)
	field(b, view.FieldVideoCount, p.Form.VideoCount)
	field(b, view.FieldVideoDur, p.Form.VideoDuration)
	field(b, view.FieldVideoTrim, p.Form.TrimMode+"  ("+p.TrimDescription+")")
	field(b, view.FieldOutputCount, p.Form.OutputCount)
	renderJob(b, p.JobPanel)
}

func renderMerge(b *strings.Builder, p *view.MergePane) {
	field(b, view.FieldVideoFolder, p.Form.VideoFolder)
	field(b, view.FieldAudioFolder, p.Form.AudioFolder)
	if p.FileListShown {
		renderList(b, p.Videos)
		renderList(b, p.Audios)
	}
	field(b, view.FieldOutputFolderVA, p.Form.OutputFolder)
	field(b, view.FieldAudioTrim, p.Form.TrimMode)
	field(b, view.FieldAudioSelection, p.Form.SelectionMode)
	renderJob(b, p.JobPanel)
}

func renderVoice(b *strings.Builder, p *view.VoicePane) {
	renderFileInfo(b, "video", p.VideoInfo)
	renderFileInfo(b, "audio", p.AudioInfo)
	field(b, view.FieldOutputFolderVoice, p.Form.OutputFolder)
	field(b, view.FieldVolume, p.VolumeLabel)
	renderJob(b, p.JobPanel)
}

func renderFileInfo(b *strings.Builder, kind string, info *view.FileInfo) {
	if info == nil {
		field(b, kind+" file", "(none)")
		return
	}
	field(b, kind+" file", fmt.Sprintf("%s  %s  %s", info.Name, info.Size, info.Type))
}

func renderList(b *strings.Builder, l view.FileList) {
	fmt.Fprintf(b, "    %s\n", l.CountLabel)
	for _, item := range l.Items {
		fmt.Fprintf(b, "      %-40s %s\n", item.Name, item.Duration)
	}
}

func renderJob(b *strings.Builder, p view.JobPanel) {
	if p.Progress.Visible {
		fmt.Fprintf(b, "\n  %s\n", renderProgress(p.Progress))
	}
	if p.Results.Visible {
		b.WriteString("\n  Outputs:\n")
		for _, l := range p.Results.Links {
			fmt.Fprintf(b, "    %s  %s\n", l.Name, l.Href)
		}
	}
	b.WriteString("\n")
}

// renderProgress draws a fixed width bar, e.g. [#######-------] 50% Trimming.
func renderProgress(p view.Progress) string {
	pct := p.Percent
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * progressWidth)
	bar := strings.Repeat("#", filled) + strings.Repeat("-", progressWidth-filled)
	return fmt.Sprintf("[%s] %s %s", bar, view.FormatPercent(pct), p.Message)
}

func (s *Shell) printSessions() {
	var b strings.Builder
	b.WriteString("Jobs:\n")
	for _, sess := range s.ctrl.State().Sessions() {
		if !s.ctrl.View().Enabled(sess.Feature) {
			continue
		}
		fmt.Fprintf(&b, "  %-6s %-12s", sess.Feature, sess.Phase)
		if sess.BatchID != "" {
			fmt.Fprintf(&b, " %s", sess.BatchID)
		}
		if sess.Phase == jobs.PhasePolling {
			fmt.Fprintf(&b, " %s", view.FormatPercent(sess.Progress))
		}
		if sess.Phase == jobs.PhaseDone {
			fmt.Fprintf(&b, " %s", pluralOutputs(len(sess.Outputs)))
		}
		if sess.Error != "" {
			fmt.Fprintf(&b, " %q", sess.Error)
		}
		fmt.Fprintf(&b, "  (updated %s)\n", humanize.Time(sess.UpdatedAt))
	}
	s.printf("%s\n", b.String())
}

func pluralOutputs(n int) string {
	if n == 1 {
		return "1 output"
	}
	return humanize.Comma(int64(n)) + " outputs"
}

func fieldValue(st view.State, id string) string {
	switch id {
	case view.FieldInputFolder:
		if st.Batch != nil {
			return st.Batch.Form.InputFolder
		}
	case view.FieldOutputFolder:
		if st.Batch != nil {
			return st.Batch.Form.OutputFolder
		}
	case view.FieldVideoFolder:
		if st.Merge != nil {
			return st.Merge.Form.VideoFolder
		}
	case view.FieldAudioFolder:
		if st.Merge != nil {
			return st.Merge.Form.AudioFolder
		}
	case view.FieldOutputFolderVA:
		if st.Merge != nil {
			return st.Merge.Form.OutputFolder
		}
	case view.FieldOutputFolderVoice:
		if st.Voice != nil {
			return st.Voice.Form.OutputFolder
		}
	case view.FieldVolume:
		if st.Voice != nil {
			return strconv.Itoa(st.Voice.Form.Volume)
		}
	}
	return ""
}

// describeFile is a saved path followed by its size.
func describeFile(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return path
	}
	return fmt.Sprintf("%s (%s)", filepath.Clean(path), humanize.IBytes(uint64(info.Size())))
}

func isBackendError(err error) bool {
	var apiErr *backend.APIError
	return errors.As(err, &apiErr) || backend.IsNetworkError(err)
}

// watch announces finished and failed jobs between prompts.
func (s *Shell) watch(ctx context.Context, signal <-chan struct{}, last int64) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signal:
			if !ok {
				return
			}
		}
		for _, ev := range s.bus.Since(last) {
			last = ev.Seq
			if ev.Type == jobs.EventTypeResult {
				s.printf("\n%s job %s finished: %s ready (type 'status' or 'download')\n",
					ev.Feature, ev.BatchID, pluralOutputs(len(ev.Outputs)))
			}
		}
	}
}
