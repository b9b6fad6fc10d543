// Package capture grabs still frames from cameras and streams with FFmpeg.
package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// maxFrameSize caps a single JPEG read from ffmpeg.
const maxFrameSize = 10 * 1024 * 1024

// ErrNoFrame is returned when ffmpeg exits without producing an image.
var ErrNoFrame = errors.New("no frame received from ffmpeg")

// Grabber captures single JPEG frames by running ffmpeg.
type Grabber struct {
	// Binary is the ffmpeg executable; empty means "ffmpeg" on PATH.
	Binary string
	// Width scales the frame keeping aspect ratio; 0 keeps the source size.
	Width int
}

// CaptureFrame returns one JPEG frame from source, which may be a V4L2
// device, an RTSP/HTTP URL or a file path.
func (g *Grabber) CaptureFrame(ctx context.Context, source string) ([]byte, error) {
	bin := g.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin, frameArgs(source, g.Width)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	frame, readErr := readFirstJPEG(stdout)
	// Drain so ffmpeg can exit.
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		slog.Warn("ffmpeg stderr", "source", source, "output", msg)
	}
	if readErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if waitErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoFrame, waitErr)
		}
		return nil, readErr
	}
	return frame, nil
}

func frameArgs(source string, width int) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
	}

	switch {
	case strings.HasPrefix(source, "/dev/video"):
		args = append(args, "-f", "v4l2")
	case strings.HasPrefix(source, "rtsp://"), strings.HasPrefix(source, "rtsps://"):
		args = append(args,
			"-rtsp_transport", "tcp",
			"-timeout", "5000000",
		)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		args = append(args,
			"-reconnect", "1",
			"-timeout", "10000000",
		)
	}

	args = append(args, "-i", source, "-frames:v", "1")
	if width > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-1", width))
	}
	return append(args,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)
}

// readFirstJPEG returns the first complete JPEG in r.
func readFirstJPEG(r io.Reader) ([]byte, error) {
	reader := bufio.NewReaderSize(r, 512*1024)

	if err := findJPEGStart(reader); err != nil {
		if err == io.EOF {
			return nil, ErrNoFrame
		}
		return nil, err
	}
	frame, err := readUntilJPEGEnd(reader)
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: truncated jpeg", ErrNoFrame)
		}
		return nil, err
	}
	return frame, nil
}

func findJPEGStart(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0xFF {
			continue
		}
		b, err = r.ReadByte()
		if err != nil {
			return err
		}
		if b == 0xD8 {
			return nil
		}
		if b == 0xFF {
			_ = r.UnreadByte()
		}
	}
}

func readUntilJPEGEnd(r *bufio.Reader) ([]byte, error) {
	data := []byte{0xFF, 0xD8}

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		data = append(data, b)

		if b == 0xFF {
			next, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			data = append(data, next)
			if next == 0xD9 {
				return data, nil
			}
		}

		if len(data) > maxFrameSize {
			return nil, fmt.Errorf("jpeg frame too large: %d bytes", len(data))
		}
	}
}
