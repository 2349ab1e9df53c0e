package room

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roomproto/room/internal/lex"
)

// Codec reads and writes Room messages over a Stream. A Codec must not be
// read from concurrently with itself, nor written to concurrently with
// itself, but one reader and one writer may run concurrently against the
// same Codec.
type Codec interface {
	// ReadMessage reads the next verb/channel/count/content frame from the
	// stream. A FrameError means the peer violated the wire format and the
	// stream should be discarded; errors from the underlying Stream are
	// returned unchanged.
	ReadMessage() (Message, error)

	// WriteMessage validates verb, channel, and count, then serializes
	// and writes the frame. The Count field is always derived from
	// message.Content.Len(), never taken on faith from the caller.
	WriteMessage(message Message) error

	// Close marks the codec disposed. Subsequent ReadMessage or
	// WriteMessage calls return ErrCodecDisposed. Close does not close
	// the underlying Stream.
	Close() error

	// StreamID returns a process-unique identifier for this codec
	// instance, for log correlation.
	StreamID() string

	// IsAlive reports whether the underlying Stream is still open.
	IsAlive() bool
}

// streamCodec is the concrete Codec implementation.
type streamCodec struct {
	stream Stream
	opts   StreamOptions
	id     string

	readBuf     []byte
	pos, length int

	disposed atomic.Bool
}

// NewCodec constructs a Codec over stream using opts (zero-valued fields
// take DefaultStreamOptions' defaults).
func NewCodec(stream Stream, opts StreamOptions) (Codec, error) {
	if stream == nil {
		return nil, errors.New("room: NewCodec: nil stream")
	}
	opts = opts.withDefaults()

	return &streamCodec{
		stream:  stream,
		opts:    opts,
		readBuf: make([]byte, opts.ReadBufferSize),
		id:      uuid.New().String(),
	}, nil
}

func (c *streamCodec) StreamID() string { return c.id }

func (c *streamCodec) IsAlive() bool { return c.stream.IsAlive() }

func (c *streamCodec) Close() error {
	c.disposed.Store(true)
	return nil
}

// nextChunk returns the next unconsumed slice of the staging buffer,
// refilling from the underlying Stream when exhausted. A (nil, nil)
// result means the stream returned a 0-byte read (end-of-stream).
func (c *streamCodec) nextChunk() ([]byte, error) {
	if c.pos >= c.length {
		n, err := c.stream.Read(c.readBuf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		c.pos = 0
		c.length = n
	}
	return c.readBuf[c.pos:c.length], nil
}

// scanPrefixFunc returns the length of the leading run of view that still
// belongs to a field, given that pos bytes of the field were already
// accumulated in earlier chunks.
type scanPrefixFunc func(pos int, view []byte) int

func scanVerbPrefix(_ int, view []byte) int {
	return lex.ScanWord(view, 0, len(view))
}

func scanCountPrefix(_ int, view []byte) int {
	return lex.ScanDigit(view, 0, len(view))
}

func scanChannelPrefix(pos int, view []byte) int {
	if len(view) == 0 {
		return 0
	}
	if pos == 0 {
		if !lex.IsSign(view[0]) {
			return 0
		}
		return 1 + lex.ScanHex(view[1:], 0, len(view)-1)
	}
	return lex.ScanHex(view, 0, len(view))
}

// readField is the shared field-parsing template: accumulate
// class-matching bytes across as many chunks as necessary, stopping at a
// terminator blank or at the first non-matching byte, and reject a field
// whose accumulated length exceeds maxLen before it is ever exposed to
// the caller.
func (c *streamCodec) readField(name string, maxLen int, scan scanPrefixFunc) ([]byte, error) {
	var scratch []byte

	for {
		chunk, err := c.nextChunk()
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			return nil, newFrameError(name, "broken")
		}

		matched := scan(len(scratch), chunk)
		if len(scratch)+matched > maxLen {
			return nil, newFrameError(name, "too large")
		}

		if matched < len(chunk) {
			consumed := matched
			if lex.IsBlank(chunk[matched]) {
				consumed++
			}
			scratch = append(scratch, chunk[:matched]...)
			c.pos += consumed
			return scratch, nil
		}

		scratch = append(scratch, chunk...)
		c.pos += len(chunk)
	}
}

// ReadMessage implements Codec.
func (c *streamCodec) ReadMessage() (Message, error) {
	if c.disposed.Load() {
		return Message{}, ErrCodecDisposed
	}

	verbTok, err := c.readField("verb", c.opts.MaxVerbLength, scanVerbPrefix)
	if err != nil {
		return Message{}, err
	}
	verb, err := ParseVerb(verbTok)
	if err != nil {
		return Message{}, err
	}

	chanTok, err := c.readField("channel", c.opts.MaxChannelLength, scanChannelPrefix)
	if err != nil {
		return Message{}, err
	}
	channel, err := ParseChannel(chanTok)
	if err != nil {
		return Message{}, err
	}

	countTok, err := c.readField("count", c.opts.MaxCountLength, scanCountPrefix)
	if err != nil {
		return Message{}, err
	}
	count, err := ParseCount(countTok)
	if err != nil {
		return Message{}, err
	}

	declared, err := count.Uint64()
	if err != nil {
		return Message{}, err
	}

	content, err := c.readContent(declared)
	if err != nil {
		return Message{}, err
	}

	return Message{Verb: verb, Channel: channel, Content: content}, nil
}

// readContent drains declared bytes of content off the stream into a
// freshly allocated ContentBuffer, closing it on any error along the way.
func (c *streamCodec) readContent(declared uint64) (ContentBuffer, error) {
	if declared == 0 {
		return sharedNullBuffer, nil
	}
	if int64(declared) > c.opts.MaxContentLength {
		return nil, newFrameError("content", "too large")
	}

	buf, err := NewContentBuffer(int64(declared), c.opts)
	if err != nil {
		return nil, err
	}

	remaining := declared
	for remaining > 0 {
		chunk, err := c.nextChunk()
		if err != nil {
			buf.Close()
			return nil, err
		}
		if len(chunk) == 0 {
			buf.Close()
			return nil, newFrameError("content", "broken")
		}

		take := uint64(len(chunk))
		if take > remaining {
			take = remaining
		}
		if _, err := buf.Write(chunk[:take]); err != nil {
			buf.Close()
			return nil, err
		}
		c.pos += int(take)
		remaining -= take
	}

	if err := buf.Rewind(); err != nil {
		buf.Close()
		return nil, err
	}
	return buf, nil
}

// WriteMessage implements Codec. It validates all three header fields
// before emitting any byte, rather than writing a malformed field and
// leaving the peer to reject it.
func (c *streamCodec) WriteMessage(m Message) error {
	if c.disposed.Load() {
		return ErrCodecDisposed
	}

	verbBytes := m.Verb.Bytes()
	if !VerifyVerb(verbBytes) {
		return newFrameError("verb", "malformed")
	}
	if len(verbBytes) > c.opts.MaxVerbLength {
		return newFrameError("verb", "too large")
	}

	channelBytes := m.Channel.Bytes()
	if !VerifyChannel(channelBytes) {
		return newFrameError("channel", "malformed")
	}
	if len(channelBytes) > c.opts.MaxChannelLength {
		return newFrameError("channel", "too large")
	}

	var contentLen int64
	if m.Content != nil {
		contentLen = m.Content.Len()
	}
	if contentLen > c.opts.MaxContentLength {
		return newFrameError("content", "too large")
	}
	countTok := CountFromUint64(uint64(contentLen))
	if len(countTok.Bytes()) > c.opts.MaxCountLength {
		return newFrameError("count", "too large")
	}

	if err := c.writeField("verb", verbBytes); err != nil {
		return err
	}
	if err := c.writeField("channel", channelBytes); err != nil {
		return err
	}
	if err := c.writeField("count", countTok.Bytes()); err != nil {
		return err
	}

	if contentLen == 0 {
		return nil
	}
	if err := m.Content.Rewind(); err != nil {
		return err
	}
	return c.writeContent(m.Content, contentLen)
}

// writeAll retries stream.Write until data is fully consumed. A zero-byte
// write is reported as a "<name> broken" framing error.
func (c *streamCodec) writeAll(name string, data []byte) error {
	for len(data) > 0 {
		n, err := c.stream.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return newFrameError(name, "broken")
		}
		data = data[n:]
	}
	return nil
}

func (c *streamCodec) writeField(name string, field []byte) error {
	if err := c.writeAll(name, field); err != nil {
		return err
	}
	return c.writeAll(name, []byte{' '})
}

func (c *streamCodec) writeContent(content ContentBuffer, total int64) error {
	chunk := make([]byte, c.opts.WriteBufferSize)
	var sent int64

	for sent < total {
		n, err := content.Read(chunk)
		if n > 0 {
			if werr := c.writeAll("content", chunk[:n]); werr != nil {
				return werr
			}
			sent += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		if n == 0 {
			return newFrameError("content", "broken")
		}
	}

	if sent != total {
		return newFrameError("content", "broken")
	}
	return nil
}
