package room

import (
	"io"
	"strconv"

	"github.com/roomproto/room/internal/lex"
)

// Verb is a non-empty ASCII token naming a message kind, matching
// [A-Za-z_]+. Its bytes are immutable once constructed.
type Verb struct {
	raw []byte
}

// VerifyVerb reports whether view is a lexically valid Verb: non-empty and
// entirely matched by the word character class.
func VerifyVerb(view []byte) bool {
	return len(view) > 0 && lex.ScanWord(view, 0, len(view)) == len(view)
}

// ParseVerb validates b and returns an owned Verb, or a FrameError if b is
// not a legal verb.
func ParseVerb(b []byte) (Verb, error) {
	if !VerifyVerb(b) {
		return Verb{}, newFrameError("verb", "malformed")
	}
	return newVerbUnchecked(b), nil
}

// TryParseVerb is the non-throwing counterpart of ParseVerb.
func TryParseVerb(b []byte) (Verb, bool) {
	if !VerifyVerb(b) {
		return Verb{}, false
	}
	return newVerbUnchecked(b), true
}

// newVerbUnchecked constructs a Verb from already-validated bytes, copying
// them so the Verb does not alias the caller's buffer.
func newVerbUnchecked(b []byte) Verb {
	owned := make([]byte, len(b))
	copy(owned, b)
	return Verb{raw: owned}
}

// Bytes returns the verb's validated byte view. The caller must not modify it.
func (v Verb) Bytes() []byte { return v.raw }

// String reproduces the verb's exact stored bytes as UTF-8 text.
func (v Verb) String() string { return string(v.raw) }

// IsZero reports whether v is the zero Verb (never legal on the wire).
func (v Verb) IsZero() bool { return v.raw == nil }

// Channel is a signed integer identifier encoded as an explicit sign byte
// followed by one or more hex digits, matching [+-][0-9A-Fa-f]+.
type Channel struct {
	raw []byte
}

// VerifyChannel reports whether view is a lexically valid Channel.
func VerifyChannel(view []byte) bool {
	if len(view) < 2 || !lex.IsSign(view[0]) {
		return false
	}
	return 1+lex.ScanHex(view[1:], 0, len(view)-1) == len(view)
}

// ParseChannel validates b and returns an owned Channel, or a FrameError.
func ParseChannel(b []byte) (Channel, error) {
	if !VerifyChannel(b) {
		return Channel{}, newFrameError("channel", "malformed")
	}
	return newChannelUnchecked(b), nil
}

// TryParseChannel is the non-throwing counterpart of ParseChannel.
func TryParseChannel(b []byte) (Channel, bool) {
	if !VerifyChannel(b) {
		return Channel{}, false
	}
	return newChannelUnchecked(b), true
}

func newChannelUnchecked(b []byte) Channel {
	owned := make([]byte, len(b))
	copy(owned, b)
	return Channel{raw: owned}
}

// ChannelFromInt64 formats n as a Channel: "+{hex}" for n >= 0,
// "-{hex}" for n < 0, with a lowercase hex magnitude.
func ChannelFromInt64(n int64) Channel {
	sign := byte('+')
	mag := uint64(n)
	if n < 0 {
		sign = '-'
		mag = uint64(-n)
	}
	raw := append([]byte{sign}, strconv.FormatUint(mag, 16)...)
	return Channel{raw: raw}
}

// Bytes returns the channel's validated byte view. The caller must not modify it.
func (c Channel) Bytes() []byte { return c.raw }

// String reproduces the channel's exact stored bytes as UTF-8 text.
func (c Channel) String() string { return string(c.raw) }

// IsZero reports whether c is the zero Channel (never legal on the wire).
func (c Channel) IsZero() bool { return c.raw == nil }

// Int64 converts the channel to a signed 64-bit integer. The conversion is
// lossless for any value produced by ChannelFromInt64.
func (c Channel) Int64() (int64, error) {
	if c.IsZero() {
		return 0, newFrameError("channel", "empty")
	}
	mag, err := strconv.ParseUint(string(c.raw[1:]), 16, 64)
	if err != nil {
		return 0, newFrameError("channel", "magnitude overflow")
	}
	if c.raw[0] == '-' {
		return -int64(mag), nil
	}
	return int64(mag), nil
}

// Int32 converts the channel to a signed 32-bit integer, failing if the
// value does not fit.
func (c Channel) Int32() (int32, error) {
	n, err := c.Int64()
	if err != nil {
		return 0, err
	}
	if n < -(1<<31) || n > (1<<31)-1 {
		return 0, newFrameError("channel", "does not fit in 32 bits")
	}
	return int32(n), nil
}

// Count is an unsigned decimal integer giving the byte length of a
// message's Content, matching [0-9]+.
type Count struct {
	raw []byte
}

// VerifyCount reports whether view is a lexically valid Count.
func VerifyCount(view []byte) bool {
	return len(view) > 0 && lex.ScanDigit(view, 0, len(view)) == len(view)
}

// ParseCount validates b and returns an owned Count, or a FrameError.
func ParseCount(b []byte) (Count, error) {
	if !VerifyCount(b) {
		return Count{}, newFrameError("count", "malformed")
	}
	return newCountUnchecked(b), nil
}

// TryParseCount is the non-throwing counterpart of ParseCount.
func TryParseCount(b []byte) (Count, bool) {
	if !VerifyCount(b) {
		return Count{}, false
	}
	return newCountUnchecked(b), true
}

func newCountUnchecked(b []byte) Count {
	owned := make([]byte, len(b))
	copy(owned, b)
	return Count{raw: owned}
}

// CountFromUint64 formats n in standard decimal.
func CountFromUint64(n uint64) Count {
	return Count{raw: []byte(strconv.FormatUint(n, 10))}
}

// Bytes returns the count's validated byte view. The caller must not modify it.
func (c Count) Bytes() []byte { return c.raw }

// String reproduces the count's exact stored bytes as UTF-8 text.
func (c Count) String() string { return string(c.raw) }

// IsZero reports whether c is the zero Count (never legal on the wire).
func (c Count) IsZero() bool { return c.raw == nil }

// Uint64 converts the count to an unsigned 64-bit integer.
func (c Count) Uint64() (uint64, error) {
	if c.IsZero() {
		return 0, newFrameError("count", "empty")
	}
	n, err := strconv.ParseUint(string(c.raw), 10, 64)
	if err != nil {
		return 0, newFrameError("count", "value overflow")
	}
	return n, nil
}

// Message is a single Room protocol frame: a verb, a channel, and a
// content stream exactly Count bytes long. After a successful
// Codec.ReadMessage, the Content is owned by the caller and the codec
// retains no reference to it.
type Message struct {
	Verb    Verb
	Channel Channel
	Content ContentBuffer
}

// String renders a short, log-safe description of the message: verb,
// channel, and content length, never the content bytes themselves.
func (m Message) String() string {
	length := int64(0)
	if m.Content != nil {
		length = m.Content.Len()
	}
	return m.Verb.String() + " " + m.Channel.String() + " (" + strconv.FormatInt(length, 10) + " bytes)"
}

// Dump extends String with a preview of up to maxPreview content bytes,
// quoted so control characters stay on one log line. It reads the
// preview and then rewinds Content back to the start, leaving the
// message usable by any later reader. A maxPreview <= 0 is equivalent
// to String.
func (m Message) Dump(maxPreview int) string {
	base := m.String()
	if m.Content == nil || maxPreview <= 0 {
		return base
	}

	preview := make([]byte, maxPreview)
	n, err := io.ReadFull(m.Content, preview)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return base
	}
	if rewindErr := m.Content.Rewind(); rewindErr != nil {
		return base
	}

	suffix := ""
	if int64(n) < m.Content.Len() {
		suffix = "..."
	}
	return base + " " + strconv.Quote(string(preview[:n])) + suffix
}
