package resolver

import (
	"fmt"
	"strings"
)

// Platform selects guessed path templates and shortcut guidance.
type Platform string

const (
	PlatformMac     Platform = "darwin"
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
)

// ParsePlatform maps a GOOS-style name to a Platform. Anything unknown is
// treated as Windows.
func ParsePlatform(goos string) Platform {
	switch strings.ToLower(goos) {
	case "darwin", "mac", "macos":
		return PlatformMac
	case "linux", "freebsd", "openbsd", "netbsd":
		return PlatformLinux
	default:
		return PlatformWindows
	}
}

// GuessPaths returns candidate absolute paths for a folder whose name is all
// we know. The first entry is the default.
func GuessPaths(p Platform, dirName string) []string {
	switch p {
	case PlatformMac:
		return []string{
			"/Users/" + dirName,
			"/Users/username/" + dirName,
			"/Users/admin/" + dirName,
			"/Users/" + dirName,
			"/Volumes/" + dirName,
		}
	case PlatformLinux:
		return []string{
			"/home/" + dirName,
			"/home/username/" + dirName,
			"/root/" + dirName,
			"/mnt/" + dirName,
			"/media/" + dirName,
		}
	default:
		return []string{
			`C:\Users\` + dirName,
			`C:\Users\username\` + dirName,
			`C:\Users\admin\` + dirName,
			`D:\` + dirName,
			`E:\` + dirName,
		}
	}
}

// Instructions is the content of the manual path entry dialog.
type Instructions struct {
	Purpose     Purpose
	Title       string
	Description string
	OSName      string
	Steps       []string
	ExamplePath string
}

// BuildInstructions assembles the guidance for copying a folder path out of
// the system file browser.
func BuildInstructions(purpose Purpose, p Platform) Instructions {
	var osName, explorer, copyKey, pasteKey string
	switch p {
	case PlatformMac:
		osName, explorer, copyKey, pasteKey = "Mac", "Finder", "Cmd+C", "Cmd+V"
	case PlatformLinux:
		osName, explorer, copyKey, pasteKey = "Linux", "your file manager", "Ctrl+C", "Ctrl+V"
	default:
		osName, explorer, copyKey, pasteKey = "Windows", "File Explorer", "Ctrl+C", "Ctrl+V"
	}

	in := Instructions{Purpose: purpose, OSName: osName}
	target := "folder containing your videos"
	if purpose == PurposeInput {
		in.Title = "Select Input Folder"
		in.Description = "For the best experience, please select a folder containing your video files."
		in.ExamplePath = "/Users/username/Videos"
	} else {
		in.Title = "Select Output Folder"
		in.Description = "Please enter the path where you want to save the merged video files."
		in.ExamplePath = "/Users/username/Desktop/outputs"
		target = "folder where you want to save outputs"
	}

	in.Steps = []string{
		"Open " + explorer,
		"Navigate to the " + target,
		"Click on the address bar to highlight the full path",
		fmt.Sprintf("Copy the path (%s)", copyKey),
		fmt.Sprintf("Paste it into the input field (%s)", pasteKey),
	}
	return in
}

// ConfirmTitle and ConstructTitle are the dialog headings for a purpose.
func ConfirmTitle(purpose Purpose) string {
	if purpose == PurposeInput {
		return "Confirm Input Folder Path"
	}
	return "Confirm Output Folder Path"
}

func ConstructTitle(purpose Purpose) string {
	if purpose == PurposeInput {
		return "Complete Input Folder Path"
	}
	return "Complete Output Folder Path"
}
