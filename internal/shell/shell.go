// Package shell is the interactive terminal front-end. Alerts are printed,
// modal dialogs become prompts, and panes are rendered as text.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"

	"github.com/mediabatch/mediabatch-agent/internal/app"
	"github.com/mediabatch/mediabatch-agent/internal/jobs"
	"github.com/mediabatch/mediabatch-agent/internal/logging"
	"github.com/mediabatch/mediabatch-agent/internal/playback"
	"github.com/mediabatch/mediabatch-agent/internal/view"
)

const prompt = "mediabatch> "

// LineReader is the part of a readline instance the shell uses.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

type Config struct {
	Reader LineReader
	Out    io.Writer
	Logger *slog.Logger
	// Bus, when set, is watched for finished jobs so the shell can announce
	// them between commands.
	Bus *jobs.EventBus
	// Outputs lists files already saved by download.
	Outputs *playback.Server
}

type Shell struct {
	rl      LineReader
	bus     *jobs.EventBus
	outputs *playback.Server
	logger  *slog.Logger

	// mu serialises output; poll results arrive on other goroutines
	mu  sync.Mutex
	out io.Writer

	ctrl *app.Controller
}

func New(cfg Config) *Shell {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Shell{
		rl:      cfg.Reader,
		out:     cfg.Out,
		bus:     cfg.Bus,
		outputs: cfg.Outputs,
		logger:  logging.WithComponent(logger, "shell"),
	}
}

// OpenReadline creates the terminal line editor with history and command
// completion.
func OpenReadline(historyFile string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

func completer() readline.AutoCompleter {
	features := func() []readline.PrefixCompleterInterface {
		items := make([]readline.PrefixCompleterInterface, 0, len(jobs.AllFeatures))
		for _, f := range jobs.AllFeatures {
			items = append(items, readline.PcItem(string(f)))
		}
		return items
	}
	items := func(ids []string) []readline.PrefixCompleterInterface {
		out := make([]readline.PrefixCompleterInterface, 0, len(ids))
		for _, id := range ids {
			out = append(out, readline.PcItem(id))
		}
		return out
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("tab", features()...),
		readline.PcItem("set", items(view.FieldIDs)...),
		readline.PcItem("browse", items(view.FolderFields)...),
		readline.PcItem("scan"),
		readline.PcItem("process"),
		readline.PcItem("file",
			readline.PcItem(view.FileKindVideo),
			readline.PcItem(view.FileKindAudio),
		),
		readline.PcItem("volume"),
		readline.PcItem("status"),
		readline.PcItem("download", features()...),
		readline.PcItem("outputs"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

// Run reads commands until exit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context, ctrl *app.Controller) error {
	s.ctrl = ctrl

	if s.bus != nil {
		signal, unsubscribe := s.bus.Subscribe()
		defer unsubscribe()
		go s.watch(ctx, signal, s.bus.LastSeq())
	}

	s.printf("=== mediabatch shell ===\n")
	s.printCommands()
	s.printPane()

	for {
		if ctx.Err() != nil {
			return nil
		}
		s.rl.SetPrompt(prompt)
		input, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				s.printf("\nExiting shell...\n")
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !s.HandleCommand(ctx, input) {
			return nil
		}
	}
}

// HandleCommand runs one command line. It returns false on exit.
func (s *Shell) HandleCommand(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	var err error
	switch cmd {
	case "exit", "quit":
		return false
	case "help":
		s.printCommands()
	case "tab":
		err = s.cmdTab(args)
	case "set":
		err = s.cmdSet(input, args)
	case "browse":
		err = s.cmdBrowse(ctx, args)
	case "scan":
		err = s.cmdScan(ctx)
	case "process":
		err = s.cmdProcess(ctx)
	case "file":
		err = s.cmdFile(input, args)
	case "volume":
		err = s.cmdVolume(args)
	case "status":
		s.printPane()
		s.printSessions()
	case "download":
		err = s.cmdDownload(ctx, args)
	case "outputs":
		err = s.cmdOutputs()
	default:
		s.printf("Unknown command: %s (type 'help')\n", cmd)
	}

	if err != nil && !reported(err) {
		s.printf("Error: %v\n", err)
	}
	return true
}

// reported tells whether the controller already alerted the user about err.
func reported(err error) bool {
	var verr *app.ValidationError
	if errors.As(err, &verr) {
		return true
	}
	return isBackendError(err)
}

func (s *Shell) printCommands() {
	s.printf("\nCommands:\n")
	s.printf("  tab <batch|merge|voice>      Switch the active feature\n")
	s.printf("  set <field> <value>          Set a form field (see 'status' for ids)\n")
	s.printf("  browse <field>               Resolve a folder path for a field\n")
	s.printf("  scan                         Scan the active feature's folders\n")
	s.printf("  process                      Submit the active feature's job\n")
	s.printf("  file <video|audio> <path>    Select a voice overlay file\n")
	s.printf("  volume <0-100>               Set the original audio volume\n")
	s.printf("  status                       Show the active pane and all jobs\n")
	s.printf("  download [feature]           Save finished outputs locally\n")
	s.printf("  outputs                      List saved outputs\n")
	s.printf("  help                         Show this help\n")
	s.printf("  exit                         Exit the shell\n\n")
}

func (s *Shell) cmdTab(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: tab <batch|merge|voice>")
	}
	if err := s.ctrl.ActivateTab(strings.ToLower(args[0])); err != nil {
		return err
	}
	s.printPane()
	return nil
}

// cmdSet keeps the value verbatim after the field id so paths with spaces
// survive.
func (s *Shell) cmdSet(input string, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: set <field> <value>")
	}
	value := restAfter(input, 2)
	if err := s.ctrl.SetField(args[0], value); err != nil {
		return err
	}
	s.printf("%s = %q\n", args[0], value)
	return nil
}

func (s *Shell) cmdBrowse(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: browse <field>")
	}
	before := fieldValue(s.ctrl.View().Snapshot(), args[0])
	if err := s.ctrl.BrowseFolder(ctx, args[0]); err != nil {
		return err
	}
	if after := fieldValue(s.ctrl.View().Snapshot(), args[0]); after != before {
		s.printf("%s = %q\n", args[0], after)
	} else {
		s.printf("%s unchanged\n", args[0])
	}
	return nil
}

func (s *Shell) cmdScan(ctx context.Context) error {
	var err error
	switch s.activeFeature() {
	case jobs.FeatureBatch:
		err = s.ctrl.ScanFolder(ctx)
	case jobs.FeatureMerge:
		err = s.ctrl.ScanVAFolders(ctx)
	default:
		return errors.New("nothing to scan on this tab; use 'file' to pick uploads")
	}
	if err == nil {
		s.printPane()
	}
	return err
}

func (s *Shell) cmdProcess(ctx context.Context) error {
	var err error
	switch f := s.activeFeature(); f {
	case jobs.FeatureBatch:
		err = s.ctrl.StartProcessing(ctx)
	case jobs.FeatureMerge:
		err = s.ctrl.StartVAProcessing(ctx)
	case jobs.FeatureVoice:
		s.printf("Uploading files...\n")
		err = s.ctrl.StartVoiceProcessing(ctx)
	}
	if err == nil {
		sess := s.ctrl.State().Session(s.activeFeature())
		s.printf("Job %s submitted. %s\n", sess.BatchID, view.StartingMessage)
	}
	return err
}

func (s *Shell) cmdFile(input string, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: file <video|audio> <path>")
	}
	kind := strings.ToLower(args[0])
	if err := s.ctrl.SelectVoiceFile(kind, restAfter(input, 2)); err != nil {
		return err
	}
	voice := s.ctrl.View().Snapshot().Voice
	info := voice.VideoInfo
	if kind == view.FileKindAudio {
		info = voice.AudioInfo
	}
	if info != nil {
		s.printf("%s: %s (%s, %s)\n", kind, info.Name, info.Size, info.Type)
	}
	return nil
}

func (s *Shell) cmdVolume(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: volume <0-100>")
	}
	n, err := strconv.Atoi(strings.TrimSuffix(args[0], "%"))
	if err != nil {
		return fmt.Errorf("invalid volume %q", args[0])
	}
	if err := s.ctrl.SetVolume(n); err != nil {
		return err
	}
	s.printf("Original audio volume: %s\n", s.ctrl.View().Snapshot().Voice.VolumeLabel)
	return nil
}

func (s *Shell) cmdDownload(ctx context.Context, args []string) error {
	f := s.activeFeature()
	if len(args) > 0 {
		var err error
		if f, err = jobs.ParseFeature(strings.ToLower(args[0])); err != nil {
			return err
		}
	}
	paths, err := s.ctrl.DownloadOutputs(ctx, f)
	for _, p := range paths {
		s.printf("  saved %s\n", describeFile(p))
	}
	return err
}

func (s *Shell) cmdOutputs() error {
	if s.outputs == nil {
		return errors.New("no download directory configured")
	}
	outputs, err := s.outputs.List()
	if err != nil {
		return err
	}
	if len(outputs) == 0 {
		s.printf("No saved outputs.\n")
		return nil
	}
	for _, o := range outputs {
		s.printf("  %s  %s  %s\n", o.Name, humanize.IBytes(uint64(o.Size)), humanize.Time(o.Modified))
	}
	return nil
}

func (s *Shell) activeFeature() jobs.Feature {
	return s.ctrl.View().Snapshot().ActiveTab()
}

func (s *Shell) printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// restAfter returns input with its first n whitespace separated words
// removed, keeping inner spacing of the remainder.
func restAfter(input string, n int) string {
	rest := strings.TrimSpace(input)
	for i := 0; i < n && rest != ""; i++ {
		j := strings.IndexAny(rest, " \t")
		if j < 0 {
			return ""
		}
		rest = strings.TrimLeft(rest[j:], " \t")
	}
	return rest
}
