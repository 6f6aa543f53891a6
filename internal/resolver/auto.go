package resolver

import (
	"context"
	"fmt"
	"strings"
)

// AutoDialogs answers every dialog without user input: suggestions are
// accepted as-is and instructions are handed to Notify. The HTTP control
// surface uses it since it cannot hold a request open for a modal.
type AutoDialogs struct {
	Notify func(Instructions)
}

func (d AutoDialogs) ConfirmPath(_ context.Context, _ Purpose, suggested string) (ConfirmResult, error) {
	return ConfirmResult{Path: suggested}, nil
}

func (d AutoDialogs) ConstructPath(_ context.Context, _ Purpose, _ string, options []string) (ConstructResult, error) {
	if len(options) == 0 {
		return ConstructResult{Cancelled: true}, nil
	}
	return ConstructResult{Path: options[0]}, nil
}

func (d AutoDialogs) Instructions(_ context.Context, in Instructions) (InstructionChoice, error) {
	if d.Notify != nil {
		d.Notify(in)
	}
	return ChoiceClose, nil
}

// FormatInstructions renders the instructions dialog as plain text.
func FormatInstructions(in Instructions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n\nInstructions for %s:\n", in.Title, in.Description, in.OSName)
	for i, step := range in.Steps {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
	}
	fmt.Fprintf(&b, "\nExample: %s", in.ExamplePath)
	return b.String()
}
