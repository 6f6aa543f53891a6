// Package app is the controller between the front-ends and the backend: it
// validates forms, submits jobs, starts pollers and keeps the view in step.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mediabatch/mediabatch-agent/internal/backend"
	"github.com/mediabatch/mediabatch-agent/internal/jobs"
	"github.com/mediabatch/mediabatch-agent/internal/logging"
	"github.com/mediabatch/mediabatch-agent/internal/poller"
	"github.com/mediabatch/mediabatch-agent/internal/resolver"
	"github.com/mediabatch/mediabatch-agent/internal/view"
)

const (
	PrefixError   = "Error: "
	PrefixNetwork = "Network error: "
)

// ErrFeatureDisabled is returned for actions on a feature without a pane.
var ErrFeatureDisabled = errors.New("feature is disabled")

// ValidationError is a form check that failed before any request was made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Options wires a Controller.
type Options struct {
	Client       backend.Client
	State        *jobs.State
	View         *view.View
	Resolver     *resolver.Resolver
	Alerter      Alerter
	PollInterval time.Duration
	DownloadDir  string
	Logger       *slog.Logger
}

type Controller struct {
	client      backend.Client
	state       *jobs.State
	view        *view.View
	resolver    *resolver.Resolver
	alerter     Alerter
	poller      *poller.Poller
	downloadDir string
	logger      *slog.Logger

	// pollers outlive the request that submitted their job
	baseCtx context.Context
}

// New builds a controller. ctx bounds every poll loop it starts.
func New(ctx context.Context, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	alerter := opts.Alerter
	if alerter == nil {
		alerter = AlertFunc(func(string) {})
	}

	c := &Controller{
		client:      opts.Client,
		state:       opts.State,
		view:        opts.View,
		resolver:    opts.Resolver,
		alerter:     alerter,
		downloadDir: opts.DownloadDir,
		logger:      logging.WithComponent(logger, "controller"),
		baseCtx:     ctx,
	}
	c.poller = poller.New(opts.Client, opts.State, c, opts.PollInterval, logger)
	return c
}

func (c *Controller) View() *view.View { return c.view }

func (c *Controller) State() *jobs.State { return c.state }

func (c *Controller) Poller() *poller.Poller { return c.poller }

// Shutdown stops every poll loop.
func (c *Controller) Shutdown() {
	c.poller.StopAll()
}

// ActivateTab switches the visible pane.
func (c *Controller) ActivateTab(tab string) error {
	f, err := jobs.ParseFeature(tab)
	if err != nil {
		return err
	}
	return c.view.ActivateTab(f)
}

// SetField stores a form value typed by the user.
func (c *Controller) SetField(field, value string) error {
	return c.view.SetField(field, value)
}

// SetVolume moves the voice overlay volume slider.
func (c *Controller) SetVolume(percent int) error {
	return c.view.SetVolume(percent)
}

// SelectVoiceFile picks a local file for one of the voice overlay uploads.
func (c *Controller) SelectVoiceFile(kind, path string) error {
	if !c.view.Enabled(jobs.FeatureVoice) {
		return ErrFeatureDisabled
	}
	file, err := backend.StatLocalFile(strings.TrimSpace(path))
	if err != nil {
		return fmt.Errorf("select %s file: %w", kind, err)
	}
	return c.view.SelectVoiceFile(kind, file)
}

// ScanFolder lists the videos of the batch input folder.
func (c *Controller) ScanFolder(ctx context.Context) error {
	f := jobs.FeatureBatch
	if !c.view.Enabled(f) {
		return ErrFeatureDisabled
	}

	path := strings.TrimSpace(c.view.Snapshot().Batch.Form.InputFolder)
	if path == "" {
		return c.invalid("Please enter an input folder path")
	}

	if err := c.state.BeginScan(f); err != nil {
		return err
	}
	c.view.SetScanBusy(f, true)

	videos, err := c.client.ScanFolder(ctx, path)

	c.view.SetScanBusy(f, false)
	if ferr := c.state.FinishScan(f, err == nil); ferr != nil {
		c.logger.Warn("record scan result", "feature", f, "error", ferr)
	}

	if err != nil {
		c.alert(err)
		return err
	}
	c.view.ShowVideos(videos)
	c.logger.Info("folder scanned", "feature", f, "path", logging.SanitizePath(path), "videos", len(videos))
	return nil
}

// ScanVAFolders scans the merge video and audio folders in parallel.
func (c *Controller) ScanVAFolders(ctx context.Context) error {
	f := jobs.FeatureMerge
	if !c.view.Enabled(f) {
		return ErrFeatureDisabled
	}

	form := c.view.Snapshot().Merge.Form
	videoPath := strings.TrimSpace(form.VideoFolder)
	audioPath := strings.TrimSpace(form.AudioFolder)
	if videoPath == "" {
		return c.invalid("Please enter a video folder path")
	}
	if audioPath == "" {
		return c.invalid("Please enter an audio folder path")
	}

	if err := c.state.BeginScan(f); err != nil {
		return err
	}
	c.view.SetScanBusy(f, true)

	var (
		wg                 sync.WaitGroup
		videos, audios     []backend.MediaFile
		videoErr, audioErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		videos, videoErr = c.client.ScanFolder(ctx, videoPath)
	}()
	go func() {
		defer wg.Done()
		audios, audioErr = c.client.ScanAudioFolder(ctx, audioPath)
	}()
	wg.Wait()

	err := mergeScanError(videoErr, audioErr)

	c.view.SetScanBusy(f, false)
	if ferr := c.state.FinishScan(f, err == nil); ferr != nil {
		c.logger.Warn("record scan result", "feature", f, "error", ferr)
	}

	if err != nil {
		c.alert(err)
		return err
	}
	c.view.ShowMergeFiles(videos, audios)
	c.logger.Info("folders scanned", "feature", f, "videos", len(videos), "audios", len(audios))
	return nil
}

// mergeScanError picks the error the user sees when either scan failed: a
// transport failure first, then the video folder's server error, then the
// audio folder's.
func mergeScanError(videoErr, audioErr error) error {
	for _, err := range []error{videoErr, audioErr} {
		if err != nil && backend.IsNetworkError(err) {
			return err
		}
	}
	if videoErr != nil {
		return videoErr
	}
	return audioErr
}

// StartProcessing submits a batch trim job.
func (c *Controller) StartProcessing(ctx context.Context) error {
	f := jobs.FeatureBatch
	if !c.view.Enabled(f) {
		return ErrFeatureDisabled
	}

	form := c.view.Snapshot().Batch.Form
	req := backend.BatchTrimRequest{
		InputFolderPath:  strings.TrimSpace(form.InputFolder),
		OutputFolderPath: strings.TrimSpace(form.OutputFolder),
		VideoTrimMode:    form.TrimMode,
	}
	if req.InputFolderPath == "" {
		return c.invalid("Please select an input folder first")
	}
	if req.OutputFolderPath == "" {
		return c.invalid("Please select an output folder first")
	}

	var ok bool
	if req.VideoCount, ok = parsePositiveInt(form.VideoCount); !ok {
		return c.invalid("Please enter a valid number of videos per output")
	}
	if req.VideoDuration, ok = parsePositiveFloat(form.VideoDuration); !ok {
		return c.invalid("Please enter a valid video duration")
	}
	if req.OutputCount, ok = parsePositiveInt(form.OutputCount); !ok {
		return c.invalid("Please enter a valid number of outputs")
	}

	return c.submit(ctx, f, func(ctx context.Context) (*backend.JobHandle, error) {
		return c.client.ProcessBatch(ctx, req)
	})
}

// StartVAProcessing submits a video+audio merge job.
func (c *Controller) StartVAProcessing(ctx context.Context) error {
	f := jobs.FeatureMerge
	if !c.view.Enabled(f) {
		return ErrFeatureDisabled
	}

	form := c.view.Snapshot().Merge.Form
	req := backend.MergeRequest{
		VideoFolderPath:    strings.TrimSpace(form.VideoFolder),
		AudioFolderPath:    strings.TrimSpace(form.AudioFolder),
		OutputFolderPath:   strings.TrimSpace(form.OutputFolder),
		AudioTrimMode:      form.TrimMode,
		AudioSelectionMode: form.SelectionMode,
	}
	if req.VideoFolderPath == "" {
		return c.invalid("Please select a video folder first")
	}
	if req.AudioFolderPath == "" {
		return c.invalid("Please select an audio folder first")
	}
	if req.OutputFolderPath == "" {
		return c.invalid("Please select an output folder first")
	}

	return c.submit(ctx, f, func(ctx context.Context) (*backend.JobHandle, error) {
		return c.client.ProcessVideoAudioBatch(ctx, req)
	})
}

// StartVoiceProcessing uploads both files and submits a voice overlay job.
func (c *Controller) StartVoiceProcessing(ctx context.Context) error {
	f := jobs.FeatureVoice
	if !c.view.Enabled(f) {
		return ErrFeatureDisabled
	}

	form := c.view.Snapshot().Voice.Form
	if form.VideoFile == nil {
		return c.invalid("Please select a video file")
	}
	if form.AudioFile == nil {
		return c.invalid("Please select a voice audio file")
	}
	output := strings.TrimSpace(form.OutputFolder)
	if output == "" {
		return c.invalid("Please select an output folder")
	}

	req := backend.VoiceOverlayRequest{
		VideoFile:           *form.VideoFile,
		AudioFile:           *form.AudioFile,
		OutputFolderPath:    output,
		OriginalAudioVolume: form.Volume,
	}
	return c.submit(ctx, f, func(ctx context.Context) (*backend.JobHandle, error) {
		return c.client.ProcessVoiceAdder(ctx, req)
	})
}

func (c *Controller) submit(ctx context.Context, f jobs.Feature, send func(context.Context) (*backend.JobHandle, error)) error {
	if err := c.state.BeginSubmit(f); err != nil {
		return err
	}
	c.view.SetProcessBusy(f, true)
	defer c.view.SetProcessBusy(f, false)

	c.view.ShowProgress(f)

	handle, err := send(ctx)
	if err != nil {
		msg := c.alert(err)
		c.view.HideProgress(f)
		if ferr := c.state.FailSubmit(f, msg); ferr != nil {
			c.logger.Warn("record submission failure", "feature", f, "error", ferr)
		}
		c.logger.Warn("job submission failed", "feature", f, "error", err)
		return err
	}

	if err := c.state.StartJob(f, handle.BatchID); err != nil {
		c.logger.Warn("record submitted job", "feature", f, "batch_id", handle.BatchID, "error", err)
		return err
	}
	// a replaced job may have hidden the bar or shown its links meanwhile
	c.view.ShowProgress(f)
	c.poller.Start(c.baseCtx, f, handle.BatchID)
	c.logger.Info("job submitted", "feature", f, "batch_id", handle.BatchID)
	return nil
}

// BrowseFolder runs the folder resolver for a path field and writes the
// accepted path into that field only.
func (c *Controller) BrowseFolder(ctx context.Context, field string) error {
	purpose, ok := folderPurpose(field)
	if !ok {
		return fmt.Errorf("%q is not a folder field", field)
	}
	if feature, _ := view.FieldFeature(field); !c.view.Enabled(feature) {
		return ErrFeatureDisabled
	}
	if c.resolver == nil {
		return errors.New("folder browsing is not available")
	}

	path, ok, err := c.resolver.Resolve(ctx, purpose)
	if err != nil {
		return fmt.Errorf("browse %s: %w", field, err)
	}
	if !ok {
		return nil
	}
	return c.view.SetField(field, path)
}

// DownloadOutputs saves a finished job's outputs into the download folder
// and returns their local paths.
func (c *Controller) DownloadOutputs(ctx context.Context, f jobs.Feature) ([]string, error) {
	sess := c.state.Session(f)
	if sess.Phase != jobs.PhaseDone || len(sess.Outputs) == 0 {
		return nil, fmt.Errorf("no finished outputs for %s", f)
	}

	outputs := sess.Outputs
	if f == jobs.FeatureVoice {
		outputs = outputs[:1]
	}

	paths := make([]string, 0, len(outputs))
	for _, name := range outputs {
		p, err := c.client.Download(ctx, sess.BatchID, name, c.downloadDir)
		if err != nil {
			c.alert(err)
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Progress, Completed and Failed receive poll results.
func (c *Controller) Progress(f jobs.Feature, _ string, st backend.Status) {
	c.view.UpdateProgress(f, st.Progress, st.DisplayMessage())
}

func (c *Controller) Completed(f jobs.Feature, batchID string, outputs []string) {
	c.view.ShowResults(f, batchID, outputs)
}

func (c *Controller) Failed(f jobs.Feature, _ string, alert string) {
	c.alerter.Alert(alert)
	c.view.HideProgress(f)
}

func (c *Controller) invalid(msg string) error {
	c.alerter.Alert(msg)
	return &ValidationError{Message: msg}
}

// alert shows a backend failure and returns the text shown.
func (c *Controller) alert(err error) string {
	msg := PrefixError + backend.ErrorMessage(err)
	if backend.IsNetworkError(err) {
		msg = PrefixNetwork + backend.ErrorMessage(err)
	}
	c.alerter.Alert(msg)
	return msg
}

func folderPurpose(field string) (resolver.Purpose, bool) {
	switch field {
	case view.FieldInputFolder, view.FieldVideoFolder, view.FieldAudioFolder:
		return resolver.PurposeInput, true
	case view.FieldOutputFolder, view.FieldOutputFolderVA, view.FieldOutputFolderVoice:
		return resolver.PurposeOutput, true
	}
	return "", false
}

func parsePositiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func parsePositiveFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}
