package room

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// nullBuffer is the shared, zero-allocation ContentBuffer handed out for
// zero-length content. It is safe for concurrent use precisely because it
// is stateless.
type nullBuffer struct{}

func (nullBuffer) Read([]byte) (int, error)  { return 0, io.EOF }
func (nullBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return 0, errors.New("room: cannot write to a zero-length content buffer")
}
func (nullBuffer) Close() error   { return nil }
func (nullBuffer) Len() int64     { return 0 }
func (nullBuffer) Rewind() error  { return nil }

var sharedNullBuffer ContentBuffer = nullBuffer{}

// memoryBuffer is an in-memory ContentBuffer used for content at or below
// StreamOptions.MaxFastBuffering.
type memoryBuffer struct {
	data []byte
	pos  int
}

func newMemoryBuffer(capacity int64) *memoryBuffer {
	return &memoryBuffer{data: make([]byte, 0, capacity)}
}

func (b *memoryBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *memoryBuffer) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

func (b *memoryBuffer) Len() int64 { return int64(len(b.data)) }

func (b *memoryBuffer) Rewind() error {
	b.pos = 0
	return nil
}

func (b *memoryBuffer) Close() error {
	b.data = nil
	b.pos = 0
	return nil
}

// fileBuffer is a temp-file-backed ContentBuffer used for content above
// StreamOptions.MaxFastBuffering. The backing file is removed on Close.
type fileBuffer struct {
	f      *os.File
	path   string
	length int64
}

func newFileBuffer(folder string) (*fileBuffer, error) {
	if folder == "" {
		folder = os.TempDir()
	}
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, err
	}

	pattern := "room-content-" + uuid.New().String() + "-*"
	f, err := os.CreateTemp(folder, pattern)
	if err != nil {
		return nil, err
	}

	return &fileBuffer{f: f, path: f.Name()}, nil
}

func (b *fileBuffer) Write(p []byte) (int, error) {
	n, err := b.f.Write(p)
	b.length += int64(n)
	return n, err
}

func (b *fileBuffer) Read(p []byte) (int, error) {
	return b.f.Read(p)
}

func (b *fileBuffer) Len() int64 { return b.length }

func (b *fileBuffer) Rewind() error {
	_, err := b.f.Seek(0, io.SeekStart)
	return err
}

func (b *fileBuffer) Close() error {
	closeErr := b.f.Close()
	removeErr := os.Remove(b.path)
	if closeErr != nil {
		return closeErr
	}
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return removeErr
	}
	return nil
}

// Path returns the backing file's path, for diagnostics and tests.
func (b *fileBuffer) Path() string { return b.path }

// NewContentBuffer picks a backing store for content of declaredLength:
// zero-length content shares a stateless null buffer, content at or below
// opts.MaxFastBuffering is held in memory, and larger content spills to a
// uniquely named temp file under opts.TempContentFolder.
func NewContentBuffer(declaredLength int64, opts StreamOptions) (ContentBuffer, error) {
	opts = opts.withDefaults()

	switch {
	case declaredLength == 0:
		return sharedNullBuffer, nil
	case declaredLength <= opts.MaxFastBuffering:
		return newMemoryBuffer(declaredLength), nil
	default:
		fb, err := newFileBuffer(opts.TempContentFolder)
		if err != nil {
			return nil, err
		}
		return fb, nil
	}
}

// tempPathUnder reports whether path lies under folder, used by tests to
// assert spilled content lands in the configured temp folder without
// depending on fileBuffer internals.
func tempPathUnder(path, folder string) bool {
	if folder == "" {
		folder = os.TempDir()
	}
	rel, err := filepath.Rel(folder, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".."
}
