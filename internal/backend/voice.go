package backend

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ProcessVoiceAdder uploads both files and the overlay settings as
// multipart/form-data. File parts are streamed from disk.
func (c *HTTPClient) ProcessVoiceAdder(ctx context.Context, req VoiceOverlayRequest) (*JobHandle, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeVoiceForm(mw, req))
	}()

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/process-voice-adder", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var handle JobHandle
	if err := c.doWith(c.transferClient, httpReq, &handle); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}

	c.logger.Info("voice overlay job submitted",
		"batch_id", handle.BatchID,
		"video", req.VideoFile.Name,
		"audio", req.AudioFile.Name,
		"original_audio_volume", req.OriginalAudioVolume,
	)
	return &handle, nil
}

func writeVoiceForm(mw *multipart.Writer, req VoiceOverlayRequest) error {
	if err := writeFilePart(mw, "video_file", req.VideoFile); err != nil {
		return err
	}
	if err := writeFilePart(mw, "audio_file", req.AudioFile); err != nil {
		return err
	}
	if err := mw.WriteField("output_folder_path", req.OutputFolderPath); err != nil {
		return err
	}
	if err := mw.WriteField("original_audio_volume", strconv.Itoa(req.OriginalAudioVolume)); err != nil {
		return err
	}
	return mw.Close()
}

func writeFilePart(mw *multipart.Writer, field string, f LocalFile) error {
	src, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", field, err)
	}
	defer src.Close()

	name := f.Name
	if name == "" {
		name = filepath.Base(f.Path)
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = DetectContentType(name)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("copy %s: %w", field, err)
	}
	return nil
}

var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

// DetectContentType guesses a MIME type from the file extension.
func DetectContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// StatLocalFile describes a local file for upload and for the file info panel.
func StatLocalFile(path string) (LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return LocalFile{}, err
	}
	if info.IsDir() {
		return LocalFile{}, fmt.Errorf("%s is a directory", path)
	}
	return LocalFile{
		Path:        path,
		Name:        info.Name(),
		Size:        info.Size(),
		ContentType: DetectContentType(info.Name()),
	}, nil
}
