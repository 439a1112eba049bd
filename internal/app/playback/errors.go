package playback

import (
	"fmt"

	"github.com/osa030/musikbox/internal/domain/track"
)

// ErrorKind classifies playback faults for display.
type ErrorKind string

const (
	ErrorKindNetwork    ErrorKind = "network"
	ErrorKindFormat     ErrorKind = "format"
	ErrorKindPermission ErrorKind = "permission" // Reserved: rejected play requests are absorbed, not reported
	ErrorKindUnknown    ErrorKind = "unknown"
)

// Error is a playback fault held in the engine's error slot.
type Error struct {
	Kind    ErrorKind
	Code    MediaErrorCode
	Message string
	Track   *track.Track // Track that was current when the fault occurred
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Track == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Track.Label())
}

// classifyFault maps a resource fault to a playback error.
// A nil fault means the resource reported an error without details.
func classifyFault(fault *MediaFault, current *track.Track) *Error {
	e := &Error{Track: current}
	if fault == nil {
		e.Kind = ErrorKindUnknown
		e.Message = "Playback error"
		return e
	}

	e.Code = fault.Code
	switch fault.Code {
	case MediaErrAborted:
		e.Kind = ErrorKindNetwork
		e.Message = "Loading aborted"
	case MediaErrNetwork:
		e.Kind = ErrorKindNetwork
		e.Message = "Network error while loading track"
	case MediaErrDecode:
		e.Kind = ErrorKindFormat
		e.Message = "Audio decoding failed"
	case MediaErrSrcNotSupported:
		e.Kind = ErrorKindFormat
		e.Message = "Audio format is not supported"
	default:
		e.Kind = ErrorKindUnknown
		e.Message = "Unknown playback error"
	}
	return e
}
