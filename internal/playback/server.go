// Package playback serves job outputs that were already downloaded into the
// agent's download directory, so the control page can preview them without a
// second trip to the media server.
package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mediabatch/mediabatch-agent/internal/backend"
	"github.com/mediabatch/mediabatch-agent/internal/logging"
	"github.com/mediabatch/mediabatch-agent/internal/pathutil"
)

// ErrNotFound is returned for names that do not resolve to a finished file.
var ErrNotFound = errors.New("output not found")

// partSuffix marks a download that is still in flight.
const partSuffix = ".part"

// Output describes one finished file in the download directory.
type Output struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Type     string    `json:"type"`
	Modified time.Time `json:"modified"`
}

type Server struct {
	root   string
	logger *slog.Logger
}

func NewServer(root string, logger *slog.Logger) *Server {
	return &Server{root: root, logger: logging.WithComponent(logger, "playback")}
}

// resolve maps a requested name onto a path inside root. Names that would
// be changed by sanitising are rejected instead of rewritten.
func (s *Server) resolve(name string) (string, error) {
	if name == "" || strings.HasSuffix(name, partSuffix) {
		return "", ErrNotFound
	}
	if pathutil.SanitizeName(name, 255) != name {
		return "", ErrNotFound
	}
	return filepath.Join(s.root, name), nil
}

// List returns the finished outputs, newest first. A missing download
// directory is an empty list.
func (s *Server) List() ([]Output, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []Output{}, nil
		}
		return nil, fmt.Errorf("read download dir: %w", err)
	}
	out := make([]Output, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), partSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Output{
			Name:     e.Name(),
			Size:     info.Size(),
			Type:     backend.DetectContentType(e.Name()),
			Modified: info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified.After(out[j].Modified) })
	return out, nil
}

// ServeOutput writes the named output, honouring a single-span Range header.
func (s *Server) ServeOutput(w http.ResponseWriter, r *http.Request, name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat output: %w", err)
	}
	if info.IsDir() {
		return ErrNotFound
	}
	size := info.Size()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", backend.DetectContentType(name))

	br, err := ParseByteRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrInvalidRange):
		// Malformed ranges are ignored and the whole file is sent.
		br = nil
	case err != nil:
		return err
	}

	if br == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, f); err != nil {
			s.logger.Debug("output copy interrupted", "file", logging.SanitizePath(path), "error", err)
		}
		return nil
	}

	if _, err := f.Seek(br.Start, io.SeekStart); err != nil {
		return fmt.Errorf("seek output: %w", err)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(br.Length(), 10))
	w.Header().Set("Content-Range", br.Header(size))
	w.WriteHeader(http.StatusPartialContent)
	if _, err := io.CopyN(w, f, br.Length()); err != nil {
		s.logger.Debug("output range copy interrupted", "file", logging.SanitizePath(path), "error", err)
	}
	return nil
}
