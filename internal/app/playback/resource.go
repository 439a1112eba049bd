package playback

import "time"

// Resource is the single audio output the engine drives.
//
// Implementations must deliver signals to the registered handler
// asynchronously and in order, never from inside one of their own methods:
// the engine holds its lock while calling into the resource.
type Resource interface {
	// Load assigns a media locator and starts loading it, superseding any
	// pending load. Progress is reported through signals.
	Load(url string)
	// Unload drops the current media locator and releases decoded data.
	Unload()
	// Play requests playback. A non-nil error means the request was
	// rejected and playback did not start.
	Play() error
	Pause()
	Seek(pos time.Duration)
	SetVolume(v float64)
	// Position returns the current media position.
	Position() time.Duration
	// OnSignal registers the handler that receives resource signals.
	OnSignal(fn func(Signal))
	Close() error
}

// SignalType identifies a resource notification.
type SignalType int

const (
	SignalTimeUpdate     SignalType = iota // Position advanced
	SignalMetadataLoaded                   // Duration became known
	SignalPlay                             // Playback started
	SignalPause                            // Playback paused
	SignalSeeked                           // Seek completed
	SignalVolumeChange                     // Output volume changed
	SignalEnded                            // Media played to the end
	SignalLoadStart                        // Loading began
	SignalCanPlay                          // Enough data to start playback
	SignalError                            // Load or playback faulted
)

// String returns the string representation of the signal type.
func (s SignalType) String() string {
	switch s {
	case SignalTimeUpdate:
		return "timeupdate"
	case SignalMetadataLoaded:
		return "loadedmetadata"
	case SignalPlay:
		return "play"
	case SignalPause:
		return "pause"
	case SignalSeeked:
		return "seeked"
	case SignalVolumeChange:
		return "volumechange"
	case SignalEnded:
		return "ended"
	case SignalLoadStart:
		return "loadstart"
	case SignalCanPlay:
		return "canplay"
	case SignalError:
		return "error"
	default:
		return "unknown"
	}
}

// Signal is a notification from the resource to the engine.
type Signal struct {
	Type     SignalType
	Position time.Duration // SignalTimeUpdate, SignalSeeked
	Duration time.Duration // SignalMetadataLoaded; <= 0 when unknown or unbounded
	Volume   float64       // SignalVolumeChange
	Fault    *MediaFault   // SignalError; nil when the resource has no details
}

// MediaFault describes a resource fault.
type MediaFault struct {
	Code   MediaErrorCode
	Detail string
}

// MediaErrorCode mirrors the media error codes reported by audio elements.
type MediaErrorCode int

const (
	MediaErrUnknown         MediaErrorCode = 0
	MediaErrAborted         MediaErrorCode = 1
	MediaErrNetwork         MediaErrorCode = 2
	MediaErrDecode          MediaErrorCode = 3
	MediaErrSrcNotSupported MediaErrorCode = 4
)

// String returns the string representation of the code.
func (c MediaErrorCode) String() string {
	switch c {
	case MediaErrAborted:
		return "aborted"
	case MediaErrNetwork:
		return "network"
	case MediaErrDecode:
		return "decode"
	case MediaErrSrcNotSupported:
		return "src_not_supported"
	default:
		return "unknown"
	}
}
