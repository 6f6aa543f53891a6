package ui

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/mediabatch/mediabatch-agent/internal/jobs"
	"github.com/mediabatch/mediabatch-agent/internal/view"
)

var featureNames = map[jobs.Feature]string{
	jobs.FeatureBatch: "Batch",
	jobs.FeatureMerge: "Merge",
	jobs.FeatureVoice: "Voice",
}

// StatusLine is the tray title for one feature, e.g. "Batch: processing 40%".
func StatusLine(s jobs.Session) string {
	name := featureNames[s.Feature]
	switch s.Phase {
	case jobs.PhaseScanning:
		return name + ": scanning"
	case jobs.PhaseSubmitting:
		return name + ": submitting"
	case jobs.PhasePolling:
		if s.Scanning {
			return fmt.Sprintf("%s: processing %s (scanning)", name, view.FormatPercent(s.Progress))
		}
		return fmt.Sprintf("%s: processing %s", name, view.FormatPercent(s.Progress))
	case jobs.PhaseDone:
		return fmt.Sprintf("%s: done (%d ready)", name, len(s.Outputs))
	case jobs.PhaseError:
		return name + ": failed"
	}
	return name + ": idle"
}

// OpenURL hands url to the desktop's default browser.
func OpenURL(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	go cmd.Wait()
	return nil
}
