// Package webcam implements faceoverlay.MediaDevices with pion/mediadevices.
//
// Facing mode has no driver-level equivalent on desktop cameras; it is
// mapped onto a device whose label suggests the requested side. Driver
// failures are translated into faceoverlay.DeviceError names so the
// session can classify them.
package webcam

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"syscall"

	"github.com/pion/mediadevices"
	mediadevicescamera "github.com/pion/mediadevices/pkg/driver/camera"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	faceoverlay "github.com/e7canasta/orion-care-sensor/modules/face-overlay"
)

var initOnce sync.Once

// Devices acquires camera streams.
type Devices struct {
	getUserMedia func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)
	enumerate    func() []mediadevices.MediaDeviceInfo
}

var _ faceoverlay.MediaDevices = (*Devices)(nil)

// New registers the camera drivers (once per process) and returns Devices.
func New() *Devices {
	initOnce.Do(mediadevicescamera.Initialize)
	return &Devices{
		getUserMedia: mediadevices.GetUserMedia,
		enumerate:    mediadevices.EnumerateDevices,
	}
}

// Camera describes one video input.
type Camera struct {
	DeviceID string
	Label    string
}

// Cameras lists the available video inputs.
func (d *Devices) Cameras() []Camera {
	var out []Camera
	for _, info := range d.enumerate() {
		if info.Kind == mediadevices.VideoInput {
			out = append(out, Camera{DeviceID: info.DeviceID, Label: info.Label})
		}
	}
	return out
}

// GetUserMedia opens a camera matching c. Audio is never captured.
//
// The driver call does not observe ctx once started; a canceled ctx is
// checked before and after it, and a stream opened after cancellation is
// closed again.
func (d *Devices) GetUserMedia(ctx context.Context, c faceoverlay.Constraints) (faceoverlay.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, &faceoverlay.DeviceError{Name: faceoverlay.DeviceErrAbort, Err: err}
	}
	if c.Video == nil {
		return nil, &faceoverlay.DeviceError{Name: faceoverlay.DeviceErrNotFound, Err: errors.New("no video requested")}
	}

	cameras := d.Cameras()
	deviceID := pickDevice(cameras, c.Video.FacingMode)

	slog.Debug("webcam: requesting camera",
		"cameras", len(cameras),
		"device_id", deviceID,
		"facing_mode", c.Video.FacingMode,
		"width", c.Video.Width,
		"height", c.Video.Height,
		"exact", c.Video.Exact,
	)

	ms, err := d.getUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(mtc *mediadevices.MediaTrackConstraints) {
			applyConstraints(mtc, deviceID, *c.Video)
		},
	})
	if err != nil {
		return nil, deviceError(err, len(cameras) > 0, constraintName(deviceID, *c.Video))
	}

	s, err := newStream(ms)
	if err != nil {
		closeTracks(ms)
		return nil, &faceoverlay.DeviceError{Name: faceoverlay.DeviceErrNotReadable, Err: err}
	}

	if err := ctx.Err(); err != nil {
		s.stopAll()
		return nil, &faceoverlay.DeviceError{Name: faceoverlay.DeviceErrAbort, Err: err}
	}

	slog.Info("webcam: camera opened", "stream_id", s.ID(), "device_id", deviceID)
	return s, nil
}

func applyConstraints(mtc *mediadevices.MediaTrackConstraints, deviceID string, v faceoverlay.VideoConstraints) {
	if deviceID != "" {
		mtc.DeviceID = prop.StringExact(deviceID)
	}
	if v.Width > 0 {
		if v.Exact {
			mtc.Width = prop.IntExact(v.Width)
		} else {
			mtc.Width = prop.Int(v.Width)
		}
	}
	if v.Height > 0 {
		if v.Exact {
			mtc.Height = prop.IntExact(v.Height)
		} else {
			mtc.Height = prop.Int(v.Height)
		}
	}
}

// constraintName names the constraint most likely to have failed.
func constraintName(deviceID string, v faceoverlay.VideoConstraints) string {
	switch {
	case deviceID != "":
		return "facingMode"
	case v.Exact && v.Width > 0:
		return "width"
	case v.Exact && v.Height > 0:
		return "height"
	default:
		return ""
	}
}

var facingLabels = map[string][]string{
	"user":        {"front", "user", "facetime", "integrated", "internal"},
	"environment": {"back", "rear", "environment", "world"},
}

// pickDevice returns the ID of the first camera whose label matches
// facingMode, or "" to let the driver choose.
func pickDevice(cameras []Camera, facingMode string) string {
	keywords := facingLabels[facingMode]
	if len(keywords) == 0 {
		return ""
	}
	for _, cam := range cameras {
		label := strings.ToLower(cam.Label)
		for _, kw := range keywords {
			if strings.Contains(label, kw) {
				return cam.DeviceID
			}
		}
	}
	return ""
}

// deviceError maps a driver failure to a media-device failure name.
func deviceError(err error, haveCameras bool, constraint string) *faceoverlay.DeviceError {
	name := faceoverlay.DeviceErrorName("UnknownError")
	msg := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		name = faceoverlay.DeviceErrAbort
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM), strings.Contains(msg, "permission denied"):
		name = faceoverlay.DeviceErrNotAllowed
	case errors.Is(err, syscall.EBUSY), strings.Contains(msg, "busy"):
		name = faceoverlay.DeviceErrNotReadable
	case errors.Is(err, syscall.ENOENT), errors.Is(err, syscall.ENODEV), strings.Contains(msg, "no such device"):
		name = faceoverlay.DeviceErrNotFound
	case strings.Contains(msg, "fits the constraints"), strings.Contains(msg, "not found"):
		if haveCameras {
			name = faceoverlay.DeviceErrOverconstrained
		} else {
			name = faceoverlay.DeviceErrNotFound
			constraint = ""
		}
	case strings.Contains(msg, "security"):
		name = faceoverlay.DeviceErrSecurity
	}

	if name != faceoverlay.DeviceErrOverconstrained {
		constraint = ""
	}
	return &faceoverlay.DeviceError{Name: name, Constraint: constraint, Err: err}
}

// stream adapts a MediaStream to faceoverlay.Stream.
type stream struct {
	ms     mediadevices.MediaStream
	reader video.Reader
	tracks []faceoverlay.Track
}

func newStream(ms mediadevices.MediaStream) (*stream, error) {
	videoTracks := ms.GetVideoTracks()
	if len(videoTracks) == 0 {
		return nil, fmt.Errorf("webcam: stream has no video track")
	}
	vt, ok := videoTracks[0].(*mediadevices.VideoTrack)
	if !ok {
		return nil, fmt.Errorf("webcam: unexpected track type %T", videoTracks[0])
	}

	s := &stream{
		ms:     ms,
		reader: vt.NewReader(true),
	}
	for _, t := range ms.GetTracks() {
		s.tracks = append(s.tracks, &track{t: t})
	}
	return s, nil
}

func (s *stream) ID() string                   { return s.ms.ID() }
func (s *stream) Tracks() []faceoverlay.Track { return s.tracks }

// ReadFrame blocks until the driver delivers a frame. The reader copies
// frames, so the driver buffer is released immediately.
func (s *stream) ReadFrame() (image.Image, error) {
	img, release, err := s.reader.Read()
	if release != nil {
		release()
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *stream) stopAll() {
	for _, t := range s.tracks {
		_ = t.Stop()
	}
}

// track makes Stop idempotent.
type track struct {
	t    mediadevices.Track
	once sync.Once
	err  error
}

func (t *track) Kind() string { return t.t.Kind().String() }

func (t *track) Stop() error {
	t.once.Do(func() {
		t.err = t.t.Close()
		slog.Debug("webcam: track stopped", "track_id", t.t.ID(), "kind", t.Kind())
	})
	return t.err
}

func closeTracks(ms mediadevices.MediaStream) {
	for _, t := range ms.GetTracks() {
		_ = t.Close()
	}
}
