package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type fakePicker struct {
	dir   PickedDir
	err   error
	calls int
	mode  AccessMode
}

func (p *fakePicker) PickDirectory(_ context.Context, mode AccessMode) (PickedDir, error) {
	p.calls++
	p.mode = mode
	return p.dir, p.err
}

type fakeFiles struct {
	results [][]PickedFile
	err     error
	calls   int
}

func (f *fakeFiles) PickFromDirectory(context.Context) ([]PickedFile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	out := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return out, nil
}

type fakeDialogs struct {
	confirm      ConfirmResult
	construct    ConstructResult
	choices      []InstructionChoice
	confirmed    string
	options      []string
	dirName      string
	instructions int
}

func (d *fakeDialogs) ConfirmPath(_ context.Context, _ Purpose, suggested string) (ConfirmResult, error) {
	d.confirmed = suggested
	return d.confirm, nil
}

func (d *fakeDialogs) ConstructPath(_ context.Context, _ Purpose, dirName string, options []string) (ConstructResult, error) {
	d.dirName = dirName
	d.options = options
	return d.construct, nil
}

func (d *fakeDialogs) Instructions(context.Context, Instructions) (InstructionChoice, error) {
	d.instructions++
	if len(d.choices) == 0 {
		return ChoiceClose, nil
	}
	c := d.choices[0]
	d.choices = d.choices[1:]
	return c, nil
}

type fakeClipboard struct{ text string }

func (c *fakeClipboard) WriteText(_ context.Context, text string) error {
	c.text = text
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolve_ModernPickerConfirmed(t *testing.T) {
	picker := &fakePicker{dir: PickedDir{Name: "Videos"}}
	dialogs := &fakeDialogs{confirm: ConfirmResult{Path: "  /Users/me/Videos  "}}
	r := &Resolver{Picker: picker, Dialogs: dialogs, Logger: quietLogger()}

	path, ok, err := r.Resolve(context.Background(), PurposeOutput)
	if err != nil || !ok {
		t.Fatalf("Resolve() = %q, %v, %v", path, ok, err)
	}
	if path != "/Users/me/Videos" {
		t.Errorf("path = %q, want trimmed confirmed path", path)
	}
	if dialogs.confirmed != "/path/to/Videos" {
		t.Errorf("suggested = %q", dialogs.confirmed)
	}
	if picker.mode != ModeReadWrite {
		t.Errorf("mode = %q, want readwrite for output", picker.mode)
	}
}

func TestResolve_ModernPickerResolvedPath(t *testing.T) {
	picker := &fakePicker{dir: PickedDir{Name: "Videos", Path: "/data/Videos"}}
	dialogs := &fakeDialogs{confirm: ConfirmResult{Path: "/data/Videos"}}
	r := &Resolver{Picker: picker, Dialogs: dialogs, Logger: quietLogger()}

	r.Resolve(context.Background(), PurposeInput)
	if dialogs.confirmed != "/data/Videos" {
		t.Errorf("suggested = %q, want resolved path", dialogs.confirmed)
	}
	if picker.mode != ModeRead {
		t.Errorf("mode = %q, want read for input", picker.mode)
	}
}

func TestResolve_CancelledPickerFallsThroughToLegacy(t *testing.T) {
	picker := &fakePicker{err: ErrCancelled}
	files := &fakeFiles{results: [][]PickedFile{{{RelativePath: "Clips/a.mp4"}}}}
	dialogs := &fakeDialogs{construct: ConstructResult{Path: "/Users/Clips"}}
	r := &Resolver{Picker: picker, Files: files, Dialogs: dialogs, Platform: PlatformMac, Logger: quietLogger()}

	path, ok, err := r.Resolve(context.Background(), PurposeInput)
	if err != nil {
		t.Fatalf("cancellation must not surface as an error: %v", err)
	}
	if !ok || path != "/Users/Clips" {
		t.Fatalf("Resolve() = %q, %v", path, ok)
	}
	if files.calls != 1 {
		t.Errorf("legacy picker calls = %d, want 1", files.calls)
	}
	if dialogs.dirName != "Clips" {
		t.Errorf("dirName = %q", dialogs.dirName)
	}
	if len(dialogs.options) != 5 || dialogs.options[0] != "/Users/Clips" || dialogs.options[4] != "/Volumes/Clips" {
		t.Errorf("options = %v", dialogs.options)
	}
}

func TestResolve_PickerFailureFallsThrough(t *testing.T) {
	picker := &fakePicker{err: errors.New("not allowed")}
	files := &fakeFiles{results: [][]PickedFile{{{AbsPath: `C:\media\in\a.mp4`}}}}
	r := &Resolver{Picker: picker, Files: files, Logger: quietLogger()}

	path, ok, err := r.Resolve(context.Background(), PurposeInput)
	if err != nil || !ok {
		t.Fatalf("Resolve() = %q, %v, %v", path, ok, err)
	}
	if path != `C:\media\in` {
		t.Errorf("path = %q, want parent directory", path)
	}
}

func TestResolve_AbsolutePathSkipsDialogs(t *testing.T) {
	files := &fakeFiles{results: [][]PickedFile{{{RelativePath: "in/a.mp4", AbsPath: "/srv/media/in/a.mp4"}}}}
	dialogs := &fakeDialogs{}
	r := &Resolver{Files: files, Dialogs: dialogs, Logger: quietLogger()}

	path, ok, _ := r.Resolve(context.Background(), PurposeInput)
	if !ok || path != "/srv/media/in" {
		t.Fatalf("Resolve() = %q, %v", path, ok)
	}
	if dialogs.dirName != "" || dialogs.instructions != 0 {
		t.Error("no dialog should be shown when the absolute path is known")
	}
}

func TestResolve_ConstructCancelShowsInstructionsThenRetry(t *testing.T) {
	files := &fakeFiles{results: [][]PickedFile{
		{{RelativePath: "Out/x.mp4"}},
		{{AbsPath: "/home/me/Out/x.mp4"}},
	}}
	dialogs := &fakeDialogs{
		construct: ConstructResult{Cancelled: true},
		choices:   []InstructionChoice{ChoiceCopyExample, ChoiceRetry},
	}
	clip := &fakeClipboard{}
	r := &Resolver{Files: files, Dialogs: dialogs, Clipboard: clip, Platform: PlatformWindows, Logger: quietLogger()}

	path, ok, err := r.Resolve(context.Background(), PurposeOutput)
	if err != nil || !ok {
		t.Fatalf("Resolve() = %q, %v, %v", path, ok, err)
	}
	if path != "/home/me/Out" {
		t.Errorf("path = %q", path)
	}
	if clip.text != "/Users/username/Desktop/outputs" {
		t.Errorf("clipboard = %q", clip.text)
	}
	if dialogs.instructions != 2 {
		t.Errorf("instructions shown %d times, want 2", dialogs.instructions)
	}
	if files.calls != 2 {
		t.Errorf("legacy picker calls = %d, want 2 (retry restarts there)", files.calls)
	}
	if dialogs.options[0] != `C:\Users\Out` {
		t.Errorf("windows guess = %q", dialogs.options[0])
	}
}

func TestResolve_EditManuallyShowsInstructions(t *testing.T) {
	picker := &fakePicker{dir: PickedDir{Name: "V"}}
	dialogs := &fakeDialogs{confirm: ConfirmResult{EditManually: true}}
	r := &Resolver{Picker: picker, Dialogs: dialogs, Logger: quietLogger()}

	_, ok, err := r.Resolve(context.Background(), PurposeInput)
	if err != nil || ok {
		t.Fatalf("closing the instructions should yield no path, got ok=%v err=%v", ok, err)
	}
	if dialogs.instructions != 1 {
		t.Errorf("instructions shown %d times", dialogs.instructions)
	}
}

func TestResolve_LegacyCancelledDoesNothing(t *testing.T) {
	files := &fakeFiles{err: ErrCancelled}
	dialogs := &fakeDialogs{}
	r := &Resolver{Files: files, Dialogs: dialogs, Logger: quietLogger()}

	_, ok, err := r.Resolve(context.Background(), PurposeInput)
	if err != nil || ok {
		t.Fatalf("Resolve() ok=%v err=%v", ok, err)
	}
	if dialogs.instructions != 0 {
		t.Error("cancelling the file picker should not show instructions")
	}
}

func TestResolve_EmptyConfirmLeavesFieldAlone(t *testing.T) {
	picker := &fakePicker{dir: PickedDir{Name: "V"}}
	dialogs := &fakeDialogs{confirm: ConfirmResult{Path: "   "}}
	r := &Resolver{Picker: picker, Dialogs: dialogs, Logger: quietLogger()}

	if _, ok, _ := r.Resolve(context.Background(), PurposeInput); ok {
		t.Fatal("blank confirmation must not produce a path")
	}
}

func TestResolve_NoCapabilitiesNotifiesInstructions(t *testing.T) {
	var got Instructions
	r := &Resolver{
		Dialogs:  AutoDialogs{Notify: func(in Instructions) { got = in }},
		Platform: PlatformMac,
		Logger:   quietLogger(),
	}

	_, ok, err := r.Resolve(context.Background(), PurposeInput)
	if err != nil || ok {
		t.Fatalf("Resolve() ok=%v err=%v", ok, err)
	}
	if got.Title != "Select Input Folder" || got.OSName != "Mac" {
		t.Fatalf("instructions = %+v", got)
	}
	text := FormatInstructions(got)
	if !strings.Contains(text, "Open Finder") || !strings.Contains(text, "Cmd+C") || !strings.Contains(text, "/Users/username/Videos") {
		t.Fatalf("formatted instructions = %q", text)
	}
}

func TestParsePlatform(t *testing.T) {
	tests := map[string]Platform{
		"darwin":  PlatformMac,
		"linux":   PlatformLinux,
		"windows": PlatformWindows,
		"plan9":   PlatformWindows,
	}
	for in, want := range tests {
		if got := ParsePlatform(in); got != want {
			t.Errorf("ParsePlatform(%q) = %q, want %q", in, got, want)
		}
	}
}
