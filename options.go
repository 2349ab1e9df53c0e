package room

import "time"

// StreamOptions configures a Codec's size caps, staging buffer sizes, and
// content-spill behavior. Zero-valued fields are replaced by
// DefaultStreamOptions' defaults when passed to NewCodec.
type StreamOptions struct {
	// ReadBufferSize is the size of the codec's internal read staging buffer.
	ReadBufferSize int
	// WriteBufferSize is the size of the codec's write staging buffer.
	WriteBufferSize int

	// MaxVerbLength caps the byte length of a Verb field.
	MaxVerbLength int
	// MaxChannelLength caps the byte length of a Channel field.
	MaxChannelLength int
	// MaxCountLength caps the byte length of a Count field.
	MaxCountLength int
	// MaxContentLength caps the declared Count value.
	MaxContentLength int64

	// MaxFastBuffering is the content length at or below which content is
	// held in memory; larger content spills to a temp file.
	MaxFastBuffering int64
	// TempContentFolder is the directory spilled content files are created
	// under. Empty means os.TempDir().
	TempContentFolder string
}

// DefaultStreamOptions returns the spec-mandated defaults: 1024-byte
// staging buffers, 128/32/32-byte field caps, a 4 MiB content cap, and a
// 1 MiB fast-buffering threshold.
func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		MaxVerbLength:     128,
		MaxChannelLength:  32,
		MaxCountLength:    32,
		MaxContentLength:  4 * 1024 * 1024,
		MaxFastBuffering:  1024 * 1024,
		TempContentFolder: "",
	}
}

// withDefaults fills any zero-valued field with the spec default,
// returning a fully populated copy.
func (o StreamOptions) withDefaults() StreamOptions {
	d := DefaultStreamOptions()
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = d.ReadBufferSize
	}
	if o.WriteBufferSize <= 0 {
		o.WriteBufferSize = d.WriteBufferSize
	}
	if o.MaxVerbLength <= 0 {
		o.MaxVerbLength = d.MaxVerbLength
	}
	if o.MaxChannelLength <= 0 {
		o.MaxChannelLength = d.MaxChannelLength
	}
	if o.MaxCountLength <= 0 {
		o.MaxCountLength = d.MaxCountLength
	}
	if o.MaxContentLength <= 0 {
		o.MaxContentLength = d.MaxContentLength
	}
	if o.MaxFastBuffering <= 0 {
		o.MaxFastBuffering = d.MaxFastBuffering
	}
	return o
}

// ServiceOptions configures the Service's per-stream ingress rate limit
// and optional shared egress throttle.
type ServiceOptions struct {
	// MaxStreamRate is the soft ingress cap, in content bytes per second,
	// applied independently to each listen loop.
	MaxStreamRate int64

	// MaxTransmitRate, if non-zero, throttles the shared transmit loop to
	// at most this many messages per second using a token-bucket limiter.
	// Zero disables the throttle entirely.
	MaxTransmitRate float64

	// TransmitIdleInterval is how long the transmit loop sleeps when the
	// pending queue is empty.
	TransmitIdleInterval time.Duration

	// Logger receives framing/transport error descriptions from listen
	// loops (which then terminate) and from the transmit loop (which then
	// continues). A nil Logger defaults to a slog-backed no-op-safe logger.
	Logger Logger
}

// DefaultServiceOptions returns the spec-mandated 1 MiB/s ingress cap, a
// 100ms idle poll interval, no egress throttle, and the default logger.
func DefaultServiceOptions() ServiceOptions {
	return ServiceOptions{
		MaxStreamRate:        1024 * 1024,
		MaxTransmitRate:      0,
		TransmitIdleInterval: 100 * time.Millisecond,
		Logger:               nil,
	}
}

func (o ServiceOptions) withDefaults() ServiceOptions {
	d := DefaultServiceOptions()
	if o.MaxStreamRate <= 0 {
		o.MaxStreamRate = d.MaxStreamRate
	}
	if o.TransmitIdleInterval <= 0 {
		o.TransmitIdleInterval = d.TransmitIdleInterval
	}
	if o.Logger == nil {
		o.Logger = defaultLogger()
	}
	return o
}
