package faceoverlay

import (
	"context"
	"errors"
	"strings"
)

// Classification is the user-facing outcome of a failure.
type Classification struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
}

// genericMessage is shown for failures that carry no usable text.
const genericMessage = "Something went wrong while starting the video preview."

var kindMessages = map[ErrorKind]string{
	KindAcquisitionDenied:        "Camera access was denied. Allow camera access and try again.",
	KindDeviceAbsent:             "No camera was found. Connect a camera and try again.",
	KindDeviceBusy:               "The camera is already in use by another application.",
	KindConstraintsUnsatisfiable: "The requested camera mode is not available on this device.",
	KindUserCanceled:             "Camera access was canceled.",
	KindInsecureContext:          "Camera access requires a secure context (HTTPS).",
	KindUnclassifiedDevice:       "The camera could not be started.",
	KindPlaybackRejected:         "Video playback could not be started.",
	KindStreamError:              "The video stream encountered an error.",
	KindDetectorUnavailable:      "The face detector could not be loaded.",
	KindMissingUIElements:        "The preview could not start: required display elements are missing.",
}

// Classify maps err to a category, a message and the retry decision.
//
// Resolution order:
//  1. *DeviceError by name (unknown names fall back to KindUnclassifiedDevice)
//  2. *Error by its Kind
//  3. ErrDetectorUnavailable, context cancellation
//  4. anything else: KindGeneric with the error text passed through
//
// Only KindConstraintsUnsatisfiable is retryable.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Kind: KindGeneric, Message: genericMessage}
	}

	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return forKind(deviceKind(devErr.Name))
	}

	var typed *Error
	if errors.As(err, &typed) {
		if typed.Kind == KindGeneric {
			return passThrough(typed.Err)
		}
		cls := forKind(typed.Kind)
		if typed.Kind == KindDetectorUnavailable && typed.Err != nil && !errors.Is(typed.Err, ErrDetectorUnavailable) {
			cls.Message = kindMessages[KindDetectorUnavailable] + " (" + typed.Err.Error() + ")"
		}
		return cls
	}

	if errors.Is(err, ErrDetectorUnavailable) {
		return forKind(KindDetectorUnavailable)
	}

	if errors.Is(err, context.Canceled) {
		return forKind(KindUserCanceled)
	}

	return passThrough(err)
}

// Message is shorthand for Classify(err).Message.
func Message(err error) string {
	return Classify(err).Message
}

func forKind(k ErrorKind) Classification {
	return Classification{
		Kind:      k,
		Message:   kindMessages[k],
		Retryable: k == KindConstraintsUnsatisfiable,
	}
}

func passThrough(err error) Classification {
	msg := ""
	if err != nil {
		msg = strings.TrimSpace(err.Error())
	}
	if msg == "" {
		msg = genericMessage
	}
	return Classification{Kind: KindGeneric, Message: msg}
}

func deviceKind(name DeviceErrorName) ErrorKind {
	switch name {
	case DeviceErrNotAllowed:
		return KindAcquisitionDenied
	case DeviceErrNotFound:
		return KindDeviceAbsent
	case DeviceErrNotReadable:
		return KindDeviceBusy
	case DeviceErrOverconstrained:
		return KindConstraintsUnsatisfiable
	case DeviceErrAbort:
		return KindUserCanceled
	case DeviceErrSecurity:
		return KindInsecureContext
	default:
		return KindUnclassifiedDevice
	}
}
