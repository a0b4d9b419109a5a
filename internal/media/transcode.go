package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// Transcoder converts a GIF into an alternate encoding the instance will
// accept. Opaque to the pipeline: bytes in, bytes out or failure.
type Transcoder interface {
	Transcode(ctx context.Context, gif []byte) ([]byte, error)
}

// FFmpeg shells out to an ffmpeg binary for GIF to MP4 conversion. The
// binary is resolved at call time so a missing ffmpeg degrades only the
// fallback path, not startup.
type FFmpeg struct {
	path string
}

func NewFFmpeg(path string) *FFmpeg {
	return &FFmpeg{path: path}
}

func (f *FFmpeg) Transcode(ctx context.Context, gif []byte) ([]byte, error) {
	bin := f.path
	if bin == "" {
		found, err := exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
		}
		bin = found
	}

	dir, err := os.MkdirTemp("", "giffer-transcode-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.gif")
	out := filepath.Join(dir, "out.mp4")

	if err := os.WriteFile(in, gif, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write transcode input: %w", err)
	}

	// Even dimensions are required by yuv420p; the scale filter rounds down.
	cmd := exec.CommandContext(ctx, bin,
		"-y",
		"-i", in,
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-movflags", "+faststart",
		"-pix_fmt", "yuv420p",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "28",
		"-an",
		out,
	)

	if output, err := cmd.CombinedOutput(); err != nil {
		tail := string(output)
		if len(tail) > 400 {
			tail = tail[len(tail)-400:]
		}
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, tail)
	}

	mp4, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcode output: %w", err)
	}

	slog.Info("Converted GIF to MP4", "in_bytes", len(gif), "out_bytes", len(mp4))
	return mp4, nil
}
