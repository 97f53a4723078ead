package faceoverlay

import (
	"errors"
	"fmt"
)

// ErrorKind is the user-facing failure category of a session.
type ErrorKind int

const (
	// KindGeneric covers non-device failures without a dedicated category
	KindGeneric ErrorKind = iota
	// KindAcquisitionDenied indicates the user or system refused camera access
	KindAcquisitionDenied
	// KindDeviceAbsent indicates no camera is present
	KindDeviceAbsent
	// KindDeviceBusy indicates the camera exists but cannot be read (in use)
	KindDeviceBusy
	// KindConstraintsUnsatisfiable indicates the requested camera mode is unavailable
	KindConstraintsUnsatisfiable
	// KindUserCanceled indicates the access request was aborted
	KindUserCanceled
	// KindInsecureContext indicates capture is not allowed in this context
	KindInsecureContext
	// KindUnclassifiedDevice is the fallback for unrecognized device failures
	KindUnclassifiedDevice
	// KindPlaybackRejected indicates Play() was refused
	KindPlaybackRejected
	// KindStreamError indicates an element-level media fault
	KindStreamError
	// KindDetectorUnavailable indicates the detector failed to initialize
	KindDetectorUnavailable
	// KindMissingUIElements indicates required host capabilities are absent
	KindMissingUIElements
)

// String returns a stable identifier for logs and telemetry.
func (k ErrorKind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindAcquisitionDenied:
		return "acquisition_denied"
	case KindDeviceAbsent:
		return "device_absent"
	case KindDeviceBusy:
		return "device_busy"
	case KindConstraintsUnsatisfiable:
		return "constraints_unsatisfiable"
	case KindUserCanceled:
		return "user_canceled"
	case KindInsecureContext:
		return "insecure_context"
	case KindUnclassifiedDevice:
		return "unclassified_device"
	case KindPlaybackRejected:
		return "playback_rejected"
	case KindStreamError:
		return "stream_error"
	case KindDetectorUnavailable:
		return "detector_unavailable"
	case KindMissingUIElements:
		return "missing_ui_elements"
	default:
		return "generic"
	}
}

// Error is a failure already attributed to a category.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "face-overlay: " + e.Kind.String()
	}
	return fmt.Sprintf("face-overlay: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// DeviceErrorName is the failure name reported by a media-device backend.
type DeviceErrorName string

const (
	DeviceErrNotAllowed      DeviceErrorName = "NotAllowedError"
	DeviceErrNotFound        DeviceErrorName = "NotFoundError"
	DeviceErrNotReadable     DeviceErrorName = "NotReadableError"
	DeviceErrOverconstrained DeviceErrorName = "OverconstrainedError"
	DeviceErrAbort           DeviceErrorName = "AbortError"
	DeviceErrSecurity        DeviceErrorName = "SecurityError"
)

// DeviceError is returned by MediaDevices implementations.
type DeviceError struct {
	Name DeviceErrorName
	// Constraint names the unsatisfiable constraint for DeviceErrOverconstrained
	Constraint string
	Err        error
}

func (e *DeviceError) Error() string {
	msg := string(e.Name)
	if e.Constraint != "" {
		msg += " (" + e.Constraint + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeviceError) Unwrap() error { return e.Err }

var (
	// ErrDetectorUnavailable is returned when Detector.Init reports false.
	ErrDetectorUnavailable = errors.New("face-overlay: detector unavailable")

	// ErrDisposed is returned by an in-flight Start once the session is disposed.
	ErrDisposed = errors.New("face-overlay: session disposed")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("face-overlay: session already started")
)
