// Package resolver turns a "browse" click into an absolute folder path. It
// tries a native directory picker, then a file-from-folder picker, then
// falls back to telling the user how to copy the path by hand.
package resolver

import (
	"context"
	"errors"
)

// ErrCancelled is returned by pickers and dialogs when the user backs out.
var ErrCancelled = errors.New("selection cancelled")

// Purpose says which kind of folder is being chosen.
type Purpose string

const (
	PurposeInput  Purpose = "input"
	PurposeOutput Purpose = "output"
)

// AccessMode is the intent passed to a directory picker.
type AccessMode string

const (
	ModeRead      AccessMode = "read"
	ModeReadWrite AccessMode = "readwrite"
)

// Mode returns the picker intent for a purpose.
func (p Purpose) Mode() AccessMode {
	if p == PurposeOutput {
		return ModeReadWrite
	}
	return ModeRead
}

// PickedDir is what a directory picker disclosed. Path is empty when the
// environment only reveals the folder name.
type PickedDir struct {
	Name string
	Path string
}

// PickedFile is one file chosen from a folder. RelativePath starts with the
// chosen folder's name; AbsPath is set when the environment exposes it.
type PickedFile struct {
	RelativePath string
	AbsPath      string
}

// DirectoryPicker is the native "choose a folder" capability.
type DirectoryPicker interface {
	PickDirectory(ctx context.Context, mode AccessMode) (PickedDir, error)
}

// FilePicker selects the files of a folder. An empty result means nothing
// was picked.
type FilePicker interface {
	PickFromDirectory(ctx context.Context) ([]PickedFile, error)
}

// Clipboard copies text for the user.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// ConfirmResult is the answer to a path confirmation dialog.
type ConfirmResult struct {
	Path         string
	EditManually bool
}

// ConstructResult is the answer to a path construction dialog.
type ConstructResult struct {
	Path      string
	Cancelled bool
}

// InstructionChoice is the button pressed in the instructions dialog.
type InstructionChoice int

const (
	ChoiceClose InstructionChoice = iota
	ChoiceCopyExample
	ChoiceRetry
)

// Dialogs are the modal prompts the resolver needs. Implementations block
// until the user answers.
type Dialogs interface {
	ConfirmPath(ctx context.Context, purpose Purpose, suggested string) (ConfirmResult, error)
	ConstructPath(ctx context.Context, purpose Purpose, dirName string, options []string) (ConstructResult, error)
	Instructions(ctx context.Context, in Instructions) (InstructionChoice, error)
}
