package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mediabatch/mediabatch-agent/internal/pathutil"
)

// guessedPrefix stands in for the unknown parent of a natively picked folder.
const guessedPrefix = "/path/to/"

// Resolver runs the fallback chain. Any capability may be nil; missing
// pickers are skipped and missing dialogs end the chain without a path.
type Resolver struct {
	Picker    DirectoryPicker
	Files     FilePicker
	Dialogs   Dialogs
	Clipboard Clipboard
	Platform  Platform
	Logger    *slog.Logger
}

// Resolve returns the folder path the user accepted. ok is false when the
// user ended the flow without choosing one; the caller must then leave the
// field untouched.
func (r *Resolver) Resolve(ctx context.Context, purpose Purpose) (string, bool, error) {
	if r.Picker != nil {
		dir, err := r.Picker.PickDirectory(ctx, purpose.Mode())
		switch {
		case err == nil:
			return r.confirm(ctx, purpose, dir)
		case errors.Is(err, ErrCancelled):
		case ctx.Err() != nil:
			return "", false, ctx.Err()
		default:
			r.logger().Warn("directory picker failed", "purpose", purpose, "error", err)
		}
	}
	return r.legacy(ctx, purpose)
}

func (r *Resolver) confirm(ctx context.Context, purpose Purpose, dir PickedDir) (string, bool, error) {
	suggested := dir.Path
	if suggested == "" && dir.Name != "" {
		suggested = guessedPrefix + dir.Name
	}
	if r.Dialogs == nil {
		return accept(suggested)
	}

	res, err := r.Dialogs.ConfirmPath(ctx, purpose, suggested)
	if err != nil {
		return dialogErr(err)
	}
	if res.EditManually {
		return r.instructions(ctx, purpose)
	}
	return accept(res.Path)
}

// legacy is the file-from-folder picker step. The instructions dialog's
// retry button comes back here.
func (r *Resolver) legacy(ctx context.Context, purpose Purpose) (string, bool, error) {
	if r.Files == nil {
		return r.instructions(ctx, purpose)
	}

	files, err := r.Files.PickFromDirectory(ctx)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return "", false, nil
		}
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		r.logger().Warn("folder file picker failed", "purpose", purpose, "error", err)
		return r.instructions(ctx, purpose)
	}
	if len(files) == 0 {
		return "", false, nil
	}

	first := files[0]
	if first.AbsPath != "" {
		if dir := pathutil.ParentDir(first.AbsPath); dir != "" {
			return dir, true, nil
		}
	}

	dirName := pathutil.TopLevelDir(first.RelativePath)
	if dirName == "" {
		return r.instructions(ctx, purpose)
	}

	options := GuessPaths(r.Platform, dirName)
	if r.Dialogs == nil {
		return accept(options[0])
	}

	res, err := r.Dialogs.ConstructPath(ctx, purpose, dirName, options)
	if err != nil {
		return dialogErr(err)
	}
	if res.Cancelled {
		return r.instructions(ctx, purpose)
	}
	return accept(res.Path)
}

func (r *Resolver) instructions(ctx context.Context, purpose Purpose) (string, bool, error) {
	if r.Dialogs == nil {
		return "", false, nil
	}

	in := BuildInstructions(purpose, r.Platform)
	for {
		choice, err := r.Dialogs.Instructions(ctx, in)
		if err != nil {
			return dialogErr(err)
		}

		switch choice {
		case ChoiceCopyExample:
			if r.Clipboard == nil {
				continue
			}
			if err := r.Clipboard.WriteText(ctx, in.ExamplePath); err != nil {
				r.logger().Warn("copy example path failed", "error", err)
			}
		case ChoiceRetry:
			return r.legacy(ctx, purpose)
		default:
			return "", false, nil
		}
	}
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func accept(path string) (string, bool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", false, nil
	}
	return path, true, nil
}

// dialogErr treats a cancelled dialog like closing it.
func dialogErr(err error) (string, bool, error) {
	if errors.Is(err, ErrCancelled) {
		return "", false, nil
	}
	return "", false, err
}
