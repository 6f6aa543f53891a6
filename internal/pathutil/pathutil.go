// Package pathutil holds the small path helpers shared by the folder resolver
// and the download code.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeName makes a backend-supplied file name safe to create locally.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	if strings.Trim(cleaned, ".") == "" {
		return ""
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

// ValidateDownloadDir checks that dir is an existing, clean directory.
func ValidateDownloadDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("download dir is required")
	}

	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("download dir cannot contain path traversal")
		}
	}

	if filepath.Clean(dir) != dir {
		return fmt.Errorf("download dir must be clean path")
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("download dir does not exist")
		}
		return fmt.Errorf("invalid download dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("download dir is not a directory")
	}

	return nil
}

// TopLevelDir returns the first segment of a slash separated relative path,
// e.g. "clips/a/b.mp4" -> "clips".
func TopLevelDir(relativePath string) string {
	rel := strings.TrimLeft(filepath.ToSlash(relativePath), "/")
	if i := strings.Index(rel, "/"); i >= 0 {
		return rel[:i]
	}
	return rel
}

// ParentDir strips the last element of an absolute file path. Both separators
// are accepted because the path may come from another OS.
func ParentDir(filePath string) string {
	i := strings.LastIndexAny(filePath, `/\`)
	if i < 0 {
		return ""
	}
	if i == 0 {
		return filePath[:1]
	}
	return filePath[:i]
}
