// Package cascade is a Haar-cascade face and eye detector backed by gocv.
package cascade

import (
	"context"
	"image"
	"log/slog"
	"path/filepath"

	"gocv.io/x/gocv"

	faceoverlay "github.com/e7canasta/orion-care-sensor/modules/face-overlay"
)

// Classifier data files expected under the asset path.
const (
	FaceCascadeFile = "haarcascade_frontalface_default.xml"
	EyeCascadeFile  = "haarcascade_eye.xml"
)

// Params tunes DetectMultiScale.
type Params struct {
	ScaleFactor  float64
	MinNeighbors int
	MinFace      image.Point
}

// DefaultParams are used by New.
var DefaultParams = Params{
	ScaleFactor:  1.1,
	MinNeighbors: 3,
	MinFace:      image.Pt(30, 30),
}

// Detector finds faces, then eyes within the upper half of each face.
type Detector struct {
	assetPath string
	params    Params

	face   gocv.CascadeClassifier
	eye    gocv.CascadeClassifier
	loaded bool
	closed bool
}

var _ faceoverlay.Detector = (*Detector)(nil)

// New is a faceoverlay.DetectorFactory.
func New(assetPath string) (faceoverlay.Detector, error) {
	return &Detector{
		assetPath: assetPath,
		params:    DefaultParams,
		face:      gocv.NewCascadeClassifier(),
		eye:       gocv.NewCascadeClassifier(),
	}, nil
}

// Init loads both classifiers. A missing or unreadable file reports false.
func (d *Detector) Init(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	facePath := filepath.Join(d.assetPath, FaceCascadeFile)
	if !d.face.Load(facePath) {
		slog.Error("cascade: failed to load classifier", "path", facePath)
		return false, nil
	}
	eyePath := filepath.Join(d.assetPath, EyeCascadeFile)
	if !d.eye.Load(eyePath) {
		slog.Error("cascade: failed to load classifier", "path", eyePath)
		return false, nil
	}

	d.loaded = true
	slog.Info("cascade: classifiers loaded", "asset_path", d.assetPath)
	return true, nil
}

// Detect samples the surface raster. Coordinates are surface pixels.
func (d *Detector) Detect(surface faceoverlay.Surface) []faceoverlay.DetectedObject {
	if !d.loaded || d.closed {
		return nil
	}
	img := surface.Snapshot()
	if img == nil || img.Bounds().Empty() {
		return nil
	}

	bgr, err := gocv.ImageToMatRGB(img)
	if err != nil {
		slog.Warn("cascade: snapshot conversion failed", "error", err)
		return nil
	}
	defer bgr.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)

	bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())
	origin := img.Bounds().Min

	faces := d.face.DetectMultiScaleWithParams(gray,
		d.params.ScaleFactor, d.params.MinNeighbors, 0, d.params.MinFace, image.Point{})

	objects := make([]faceoverlay.DetectedObject, 0, len(faces))
	for _, f := range faces {
		f = f.Intersect(bounds)
		if f.Empty() {
			continue
		}

		search := upperHalf(f)
		roi := gray.Region(search)
		eyes := d.eye.DetectMultiScaleWithParams(roi,
			d.params.ScaleFactor, d.params.MinNeighbors, 0, minEye(f), image.Point{})
		roi.Close()

		objects = append(objects, faceoverlay.DetectedObject{
			Rect:     toRect(f.Add(origin)),
			Children: translate(eyes, search.Min.Add(origin)),
		})
	}
	return objects
}

// Dispose closes both classifiers. Idempotent.
func (d *Detector) Dispose() {
	if d.closed {
		return
	}
	d.closed = true
	d.loaded = false
	_ = d.face.Close()
	_ = d.eye.Close()
}

// upperHalf is the eye search band of a face.
func upperHalf(face image.Rectangle) image.Rectangle {
	return image.Rect(face.Min.X, face.Min.Y, face.Max.X, face.Min.Y+face.Dy()/2)
}

// minEye scales the minimum eye size to the face.
func minEye(face image.Rectangle) image.Point {
	side := face.Dx() / 10
	if side < 5 {
		side = 5
	}
	return image.Pt(side, side)
}

func translate(rects []image.Rectangle, offset image.Point) []faceoverlay.Rectangle {
	if len(rects) == 0 {
		return nil
	}
	out := make([]faceoverlay.Rectangle, len(rects))
	for i, r := range rects {
		out[i] = toRect(r.Add(offset))
	}
	return out
}

func toRect(r image.Rectangle) faceoverlay.Rectangle {
	return faceoverlay.Rectangle{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}
