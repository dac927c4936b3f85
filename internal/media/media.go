// Package media owns the live capture stream, codec negotiation, and the
// incremental recorder that turns stream audio into answer clips.
package media

import (
	"context"
	"strings"
)

const (
	FormatWebMOpus = "audio/webm;codecs=opus"
	FormatWebM     = "audio/webm"
	FormatOggOpus  = "audio/ogg;codecs=opus"
	FormatMP4      = "audio/mp4"
	FormatWAV      = "audio/wav"

	// FallbackFormat is used when neither the preference list nor the
	// runtime names a format.
	FallbackFormat = FormatWebM
)

// DefaultPreferences is the ordered container/codec preference list.
var DefaultPreferences = []string{FormatWebMOpus, FormatWebM, FormatOggOpus, FormatMP4, FormatWAV}

type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// Track is one device track of an acquired stream.
type Track interface {
	Kind() TrackKind
	Label() string
	Stop()
}

// PCMFormat describes the raw sample layout delivered to subscribers.
type PCMFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Stream is a live capture handle. Subscribers receive raw PCM frames in
// capture order until they unsubscribe or the stream stops.
type Stream interface {
	Tracks() []Track
	PCM() PCMFormat
	Subscribe(fn func([]byte)) (unsubscribe func())
}

type Constraints struct {
	Audio bool
	Video bool
}

// Runtime is the platform capture facility.
type Runtime interface {
	Acquire(ctx context.Context, constraints Constraints) (Stream, error)
	Supports(format string) bool
	DefaultFormat() string
}

// Negotiate picks the first preference the runtime supports, else the
// runtime default, else FallbackFormat.
func Negotiate(preferences []string, supports func(string) bool, runtimeDefault string) string {
	for _, format := range preferences {
		format = strings.TrimSpace(format)
		if format == "" {
			continue
		}
		if supports != nil && supports(format) {
			return format
		}
	}
	if d := strings.TrimSpace(runtimeDefault); d != "" {
		return d
	}
	return FallbackFormat
}

// Extension maps a negotiated format to a file extension for uploads.
func Extension(format string) string {
	base := strings.ToLower(strings.TrimSpace(format))
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = base[:i]
	}
	switch base {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/ogg":
		return "ogg"
	case "audio/mp4":
		return "m4a"
	default:
		return "webm"
	}
}
