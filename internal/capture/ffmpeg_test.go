package capture

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestReadFirstJPEG(t *testing.T) {
	frame := []byte{0xFF, 0xD8, 0x01, 0xFF, 0x00, 0x02, 0xFF, 0xD9}
	second := []byte{0xFF, 0xD8, 0x09, 0xFF, 0xD9}

	tests := []struct {
		name    string
		input   []byte
		want    []byte
		wantErr error
	}{
		{"single frame", frame, frame, nil},
		{"leading garbage", append([]byte{0x00, 0xFF, 0x12, 0xFF}, frame...), frame, nil},
		{"two frames", append(append([]byte{}, frame...), second...), frame, nil},
		{"empty", nil, nil, ErrNoFrame},
		{"truncated", []byte{0xFF, 0xD8, 0x01, 0x02}, nil, ErrNoFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readFirstJPEG(bytes.NewReader(tt.input))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("readFirstJPEG: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got % x, want % x", got, tt.want)
			}
		})
	}
}

func TestFrameArgs(t *testing.T) {
	args := frameArgs("/dev/video0", 640)
	want := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2",
		"-i", "/dev/video0", "-frames:v", "1",
		"-vf", "scale=640:-1",
		"-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "3", "pipe:1",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %v", args)
	}

	rtsp := frameArgs("rtsp://cam/stream", 0)
	if !contains(rtsp, "-rtsp_transport") || contains(rtsp, "-vf") {
		t.Errorf("unexpected rtsp args %v", rtsp)
	}
}

func contains(args []string, s string) bool {
	for _, a := range args {
		if a == s {
			return true
		}
	}
	return false
}
