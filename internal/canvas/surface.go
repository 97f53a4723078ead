// Package canvas provides the overlay surface and the desktop window that
// hosts it, both on gocv.
//
// Everything here must be used from the thread that owns the window, which
// in the CLI is the event loop running on the locked main thread.
package canvas

import (
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	faceoverlay "github.com/e7canasta/orion-care-sensor/modules/face-overlay"
)

// Presenter displays a finished raster.
type Presenter interface {
	Show(frame gocv.Mat)
}

// Surface is a BGR raster the size of the video.
type Surface struct {
	mat       gocv.Mat
	width     int
	height    int
	presenter Presenter
}

var _ faceoverlay.Surface = (*Surface)(nil)

// NewSurface creates an empty surface. presenter may be nil (headless).
func NewSurface(presenter Presenter) *Surface {
	return &Surface{mat: gocv.NewMat(), presenter: presenter}
}

// Resize reallocates the raster. Contents are cleared.
func (s *Surface) Resize(width, height int) {
	if width == s.width && height == s.height {
		return
	}
	s.mat.Close()
	s.width, s.height = width, height
	if width <= 0 || height <= 0 {
		s.mat = gocv.NewMat()
		return
	}
	s.mat = gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	slog.Debug("canvas: surface resized", "width", width, "height", height)
}

func (s *Surface) Size() (int, int) {
	return s.width, s.height
}

// DrawFrame scales frame to the full surface.
func (s *Surface) DrawFrame(frame image.Image) {
	if s.mat.Empty() || frame == nil {
		return
	}

	src, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		slog.Warn("canvas: frame conversion failed", "error", err)
		return
	}
	defer src.Close()

	if src.Cols() == s.width && src.Rows() == s.height {
		src.CopyTo(&s.mat)
		return
	}
	gocv.Resize(src, &s.mat, image.Pt(s.width, s.height), 0, 0, gocv.InterpolationLinear)
}

// StrokeRect outlines r. Thickness below 1 is drawn as 1.
func (s *Surface) StrokeRect(r faceoverlay.Rectangle, style faceoverlay.StrokeStyle) {
	if s.mat.Empty() {
		return
	}
	gocv.Rectangle(&s.mat, bounds(r), style.Color, max(style.Thickness, 1))
}

// Snapshot copies the raster into an image.
func (s *Surface) Snapshot() image.Image {
	if s.mat.Empty() {
		return nil
	}
	img, err := s.mat.ToImage()
	if err != nil {
		slog.Warn("canvas: snapshot failed", "error", err)
		return nil
	}
	return img
}

// Present hands the raster to the presenter.
func (s *Surface) Present() {
	if s.presenter == nil || s.mat.Empty() {
		return
	}
	s.presenter.Show(s.mat)
}

// Close releases the raster.
func (s *Surface) Close() error {
	s.width, s.height = 0, 0
	return s.mat.Close()
}

func bounds(r faceoverlay.Rectangle) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}
