package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/z-wentao/docscribe/pkg/models"
)

// MimeMP3 is the exchange format of the recognition service.
const MimeMP3 = "audio/mpeg"

// Extractor turns arbitrary media into an audio file the recognizer accepts.
type Extractor interface {
	Extract(ctx context.Context, src models.Blob) (models.Blob, error)
}

// FFmpegExtractor extracts the soundtrack of a local media file as MP3.
type FFmpegExtractor struct {
	// Binary defaults to "ffmpeg" from PATH.
	Binary  string
	TempDir string
	Bitrate string
}

// NewFFmpegExtractor returns an extractor writing into tempDir.
func NewFFmpegExtractor(tempDir string) *FFmpegExtractor {
	return &FFmpegExtractor{Binary: "ffmpeg", TempDir: tempDir, Bitrate: "128k"}
}

// Extract writes the soundtrack of src to a new temporary MP3 file. The
// caller owns the returned blob and removes it with Cleanup.
func (e *FFmpegExtractor) Extract(ctx context.Context, src models.Blob) (models.Blob, error) {
	if !src.IsLocal() {
		return models.Blob{}, fmt.Errorf("extract %q: media is not a local file", src.Filename)
	}

	out, err := os.CreateTemp(e.TempDir, "soundtrack-*.mp3")
	if err != nil {
		return models.Blob{}, fmt.Errorf("create temp file: %w", err)
	}
	outPath := out.Name()
	out.Close()

	binary := e.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	bitrate := e.Bitrate
	if bitrate == "" {
		bitrate = "128k"
	}

	// ffmpeg -y -i video.mp4 -vn -codec:a libmp3lame -b:a 128k out.mp3
	cmd := exec.CommandContext(ctx, binary,
		"-y",
		"-i", src.Path,
		"-vn",
		"-codec:a", "libmp3lame",
		"-b:a", bitrate,
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.Blob{}, ctx.Err()
		}
		if line := lastLine(stderr.String()); line != "" {
			return models.Blob{}, fmt.Errorf("ffmpeg failed: %s", line)
		}
		return models.Blob{}, fmt.Errorf("ffmpeg failed: %w", err)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return models.Blob{}, fmt.Errorf("stat extracted audio: %w", err)
	}

	name := strings.TrimSuffix(src.Filename, filepath.Ext(src.Filename))
	if name == "" {
		name = "soundtrack"
	}
	return models.Blob{
		Filename:  name + ".mp3",
		MimeType:  MimeMP3,
		Length:    info.Size(),
		Path:      outPath,
		Temporary: true,
	}, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// NeedsExtraction reports whether blob must be converted before it can be
// sent to the recognizer.
func NeedsExtraction(blob models.Blob) bool {
	mime := strings.ToLower(strings.TrimSpace(blob.MimeType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime != MimeMP3
}
