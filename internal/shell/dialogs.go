package shell

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mediabatch/mediabatch-agent/internal/resolver"
)

// Alert prints a message the user must read. Poll failures arrive here from
// background goroutines.
func (s *Shell) Alert(message string) {
	s.printf("\n! %s\n", message)
}

// ask reads one answer with a temporary prompt. Ctrl-C and EOF cancel.
func (s *Shell) ask(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.rl.SetPrompt(p)
	defer s.rl.SetPrompt(prompt)

	line, err := s.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", resolver.ErrCancelled
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (s *Shell) ConfirmPath(ctx context.Context, purpose resolver.Purpose, suggested string) (resolver.ConfirmResult, error) {
	s.printf("\n%s\n", resolver.ConfirmTitle(purpose))
	s.printf("The folder was selected but its full path is not known. Please confirm or correct it.\n")
	s.printf("  Suggested: %s\n", suggested)

	answer, err := s.ask(ctx, "Path [Enter=accept, e=edit manually, c=cancel]: ")
	if err != nil {
		return resolver.ConfirmResult{}, err
	}
	switch strings.ToLower(answer) {
	case "":
		return resolver.ConfirmResult{Path: suggested}, nil
	case "e":
		return resolver.ConfirmResult{EditManually: true}, nil
	case "c":
		return resolver.ConfirmResult{}, nil
	}
	return resolver.ConfirmResult{Path: answer}, nil
}

func (s *Shell) ConstructPath(ctx context.Context, purpose resolver.Purpose, dirName string, options []string) (resolver.ConstructResult, error) {
	s.printf("\n%s\n", resolver.ConstructTitle(purpose))
	s.printf("Selected folder: %s\n", dirName)
	s.printf("Choose the full path or type it:\n")
	for i, opt := range options {
		s.printf("  %d. %s\n", i+1, opt)
	}

	answer, err := s.ask(ctx, "Path [number or path, Enter=cancel]: ")
	if err != nil {
		return resolver.ConstructResult{}, err
	}
	if answer == "" {
		return resolver.ConstructResult{Cancelled: true}, nil
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n < 1 || n > len(options) {
			s.printf("No option %d.\n", n)
			return resolver.ConstructResult{Cancelled: true}, nil
		}
		return resolver.ConstructResult{Path: options[n-1]}, nil
	}
	return resolver.ConstructResult{Path: answer}, nil
}

func (s *Shell) Instructions(ctx context.Context, in resolver.Instructions) (resolver.InstructionChoice, error) {
	s.printf("\n%s\n", resolver.FormatInstructions(in))

	answer, err := s.ask(ctx, "[c=copy example, r=try again, Enter=close]: ")
	if err != nil {
		return resolver.ChoiceClose, err
	}
	switch strings.ToLower(answer) {
	case "c":
		return resolver.ChoiceCopyExample, nil
	case "r":
		return resolver.ChoiceRetry, nil
	}
	return resolver.ChoiceClose, nil
}

// PickFromDirectory asks for any file inside the wanted folder. An absolute
// answer pins the folder exactly; a relative one such as "Videos/clip.mp4"
// only names the folder and leads to the path construction prompt.
func (s *Shell) PickFromDirectory(ctx context.Context) ([]resolver.PickedFile, error) {
	answer, err := s.ask(ctx, "Path of any file inside the folder (Enter=cancel): ")
	if err != nil {
		return nil, err
	}
	answer = strings.Trim(answer, `"'`)
	if answer == "" {
		return nil, resolver.ErrCancelled
	}
	return []resolver.PickedFile{pickedFile(answer)}, nil
}

func pickedFile(p string) resolver.PickedFile {
	if filepath.IsAbs(p) {
		return resolver.PickedFile{RelativePath: filepath.ToSlash(filepath.Base(filepath.Dir(p)) + "/" + filepath.Base(p)), AbsPath: p}
	}
	clean := filepath.Clean(p)
	if filepath.Dir(clean) == "." {
		if abs, err := filepath.Abs(clean); err == nil {
			return resolver.PickedFile{RelativePath: filepath.ToSlash(filepath.Base(filepath.Dir(abs)) + "/" + clean), AbsPath: abs}
		}
	}
	return resolver.PickedFile{RelativePath: filepath.ToSlash(clean)}
}

// OSC52Clipboard copies through the terminal's OSC 52 escape sequence.
// Terminals without OSC 52 support ignore it.
type OSC52Clipboard struct {
	W io.Writer
}

func (c OSC52Clipboard) WriteText(_ context.Context, text string) error {
	seq := "\x1b]52;c;" + base64.StdEncoding.EncodeToString([]byte(text)) + "\a"
	if _, err := io.WriteString(c.W, seq); err != nil {
		return fmt.Errorf("write clipboard escape: %w", err)
	}
	return nil
}
