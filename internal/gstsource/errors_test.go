package gstsource

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		message string
		debug   string
		want    ErrorCategory
	}{
		{
			name:    "missing file",
			message: "Resource not found.",
			debug:   "gstfilesrc.c(532): gst_file_src_start (): No such file \"clip.mp4\"",
			want:    ErrCategoryResource,
		},
		{
			name:    "unsupported uri",
			message: "No URI handler implemented for \"foo\".",
			want:    ErrCategoryResource,
		},
		{
			name:    "missing decoder",
			message: "Your GStreamer installation is missing a plug-in.",
			debug:   "no decoder available for type 'video/x-h265'",
			want:    ErrCategoryCodec,
		},
		{
			name:    "not negotiated",
			message: "Internal data stream error.",
			debug:   "streaming stopped, reason not-negotiated (not negotiated)",
			want:    ErrCategoryCodec,
		},
		{
			name:    "http timeout",
			message: "Could not connect to server",
			debug:   "souphttpsrc: Connection timed out",
			want:    ErrCategoryNetwork,
		},
		{
			name:    "forbidden",
			message: "Forbidden (403)",
			want:    ErrCategoryAuth,
		},
		{
			name:    "unknown",
			message: "Something odd happened",
			want:    ErrCategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.message, tt.debug); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPipelineErrorMessage(t *testing.T) {
	err := &PipelineError{Category: ErrCategoryCodec, Message: "decode failed"}
	if got := err.Error(); !strings.Contains(got, "[codec]") || !strings.Contains(got, "decode failed") {
		t.Errorf("Error() = %q", got)
	}
}

func TestToURI(t *testing.T) {
	abs, err := filepath.Abs("clip.mp4")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://example.com/clip.mp4", want: "https://example.com/clip.mp4"},
		{in: "file:///tmp/clip.mp4", want: "file:///tmp/clip.mp4"},
		{in: "/tmp/clip.mp4", want: "file:///tmp/clip.mp4"},
		{in: "clip.mp4", want: "file://" + filepath.ToSlash(abs)},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToURI(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ToURI(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ToURI(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestToRGBA(t *testing.T) {
	data := make([]byte, 2*2*4)
	for i := range data {
		data[i] = byte(i)
	}

	img, err := toRGBA(data, 2, 2)
	if err != nil {
		t.Fatalf("toRGBA failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Errorf("bounds = %v, want 2x2", b)
	}
	if c := img.RGBAAt(1, 1); c.R != 12 || c.A != 15 {
		t.Errorf("pixel (1,1) = %v, want R=12 A=15", c)
	}

	// The image must not alias the GStreamer buffer.
	data[0] = 255
	if img.Pix[0] == 255 {
		t.Error("image aliases source buffer")
	}

	if _, err := toRGBA(data[:10], 2, 2); err == nil {
		t.Error("expected error for short buffer")
	}
	if _, err := toRGBA(data, 0, 2); err == nil {
		t.Error("expected error for zero width")
	}
}
