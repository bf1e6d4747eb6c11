package recording

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
)

// FFmpegSource captures the default microphone through an ffmpeg child
// process, applying the session constraints where the platform supports
// them. The process writes a webm/opus stream to stdout, which becomes the
// continuous capture stream.
type FFmpegSource struct {
	Binary string // defaults to "ffmpeg"
	Format string // input format; defaults per platform
	Device string // input device; defaults per platform
}

// NewFFmpegSource returns a source for the platform's default microphone.
func NewFFmpegSource() *FFmpegSource {
	src := &FFmpegSource{Binary: "ffmpeg"}
	switch runtime.GOOS {
	case "darwin":
		src.Format = "avfoundation"
		src.Device = ":default"
	case "linux":
		src.Format = "alsa"
		src.Device = "default"
	}
	return src
}

func (f *FFmpegSource) Open(ctx context.Context, c Constraints) (CaptureStream, error) {
	binary := f.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", binary, ErrDeviceUnavailable)
	}
	if f.Format == "" || f.Device == "" {
		return nil, fmt.Errorf("no capture backend for %s: %w", runtime.GOOS, ErrDeviceUnavailable)
	}

	args := []string{
		"-f", f.Format,
		"-i", f.Device,
		"-ac", "1",
		"-ar", strconv.Itoa(c.SampleRate),
		"-c:a", "libopus",
		"-b:a", strconv.Itoa(c.BitsPerSecond),
		"-f", "webm",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open capture pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("start %s: %w", binary, ErrPermissionDenied)
		}
		return nil, fmt.Errorf("start %s: %w", binary, ErrDeviceUnavailable)
	}

	st := &ffmpegStream{
		readerStream: readerStream{
			r:      stdout,
			chunks: make(chan []byte),
			closed: make(chan struct{}),
		},
		cmd: cmd,
	}
	go st.read()
	return st, nil
}

type ffmpegStream struct {
	readerStream
	cmd *exec.Cmd
}

func (s *ffmpegStream) Close() error {
	err := s.readerStream.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return err
}
