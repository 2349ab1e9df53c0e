package room

import "io"

// ContentBuffer is a seekable byte sink backing a Message's Content. It is
// either held in memory or spilled to a temporary file, depending on its
// declared length relative to StreamOptions.MaxFastBuffering; callers
// never need to know which.
//
// The codec writes exactly Count bytes into a ContentBuffer while reading a
// message, then calls Rewind before handing it to the caller. Close
// releases any backing resources (and, for a file-backed buffer, removes
// the temp file).
type ContentBuffer interface {
	io.Reader
	io.Writer
	io.Closer

	// Len returns the total number of bytes written to the buffer.
	Len() int64

	// Rewind repositions the buffer at offset 0 for reading from the start.
	Rewind() error
}
