package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"

	"github.com/osa030/musikbox/internal/app/playback"
)

// Format is a detected container format.
type Format string

const (
	FormatUnknown Format = ""
	FormatMP3     Format = "mp3"
	FormatWAV     Format = "wav"
	FormatFLAC    Format = "flac"
	FormatOgg     Format = "ogg"
)

// faultError carries the media error code a load failure maps to.
type faultError struct {
	code  playback.MediaErrorCode
	cause error
}

func (e *faultError) Error() string {
	return fmt.Sprintf("%s: %v", e.code, e.cause)
}

func (e *faultError) Unwrap() error {
	return e.cause
}

func newFault(code playback.MediaErrorCode, err error) error {
	return &faultError{code: code, cause: err}
}

// faultOf converts a load error into the fault reported to the engine.
func faultOf(err error) *playback.MediaFault {
	var fe *faultError
	if errors.As(err, &fe) {
		return &playback.MediaFault{Code: fe.code, Detail: fe.cause.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &playback.MediaFault{Code: playback.MediaErrNetwork, Detail: err.Error()}
	}
	return &playback.MediaFault{Code: playback.MediaErrUnknown, Detail: err.Error()}
}

// fetch reads the media behind a locator: http(s) URLs, file URLs or plain paths.
func fetch(ctx context.Context, client *http.Client, locator string, maxBytes int64) ([]byte, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, newFault(playback.MediaErrSrcNotSupported, errors.Wrapf(err, "invalid media locator %q", locator))
	}

	switch u.Scheme {
	case "http", "https":
		return fetchHTTP(ctx, client, locator, maxBytes)
	case "file":
		return readFile(u.Path, maxBytes)
	case "":
		return readFile(locator, maxBytes)
	default:
		// Windows drive letters parse as a one-letter scheme.
		if len(u.Scheme) == 1 {
			return readFile(locator, maxBytes)
		}
		return nil, newFault(playback.MediaErrSrcNotSupported, errors.Newf("unsupported scheme: %s", u.Scheme))
	}
}

func fetchHTTP(ctx context.Context, client *http.Client, locator string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, newFault(playback.MediaErrSrcNotSupported, errors.Wrap(err, "failed to create request"))
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, newFault(playback.MediaErrAborted, err)
		}
		return nil, newFault(playback.MediaErrNetwork, errors.Wrap(err, "failed to fetch media"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newFault(playback.MediaErrNetwork, errors.Newf("unexpected status: %d", resp.StatusCode))
	}

	data, err := readLimited(resp.Body, maxBytes)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, newFault(playback.MediaErrAborted, err)
		}
		return nil, err
	}
	return data, nil
}

func readFile(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newFault(playback.MediaErrSrcNotSupported, errors.Wrapf(err, "failed to open %s", path))
	}
	defer f.Close()
	return readLimited(f, maxBytes)
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, newFault(playback.MediaErrNetwork, errors.Wrap(err, "failed to read media"))
	}
	if int64(len(data)) > maxBytes {
		return nil, newFault(playback.MediaErrSrcNotSupported, errors.Newf("media exceeds %d bytes", maxBytes))
	}
	return data, nil
}

// sniff detects the container format from magic bytes, falling back to the
// locator's extension for headerless MPEG streams.
func sniff(data []byte, locator string) Format {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatOgg
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	}

	ext := strings.ToLower(locator)
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	if strings.HasSuffix(ext, ".mp3") {
		return FormatMP3
	}
	return FormatUnknown
}

// nopCloser wraps a bytes.Reader to implement io.ReadCloser.
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }

// decode turns a fetched payload into a seekable stream.
func decode(data []byte, locator string) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)

	reader := nopCloser{bytes.NewReader(data)}
	switch f := sniff(data, locator); f {
	case FormatMP3:
		streamer, format, err = mp3.Decode(reader)
	case FormatWAV:
		streamer, format, err = wav.Decode(reader)
	case FormatUnknown:
		return nil, beep.Format{}, newFault(playback.MediaErrSrcNotSupported, errors.New("unrecognized media format"))
	default:
		return nil, beep.Format{}, newFault(playback.MediaErrSrcNotSupported, errors.Newf("%s is not supported", f))
	}
	if err != nil {
		return nil, beep.Format{}, newFault(playback.MediaErrDecode, errors.Wrap(err, "failed to decode media"))
	}
	return streamer, format, nil
}
