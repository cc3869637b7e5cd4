package chunkupload

import (
	"errors"
	"fmt"
	"io"
)

// WindowReader reads a payload stream in fixed-size windows.
// Every window is completely filled except the last one.
type WindowReader struct {
	reader io.Reader
	size   int64
	offset int64
	done   bool
}

// NewWindowReader creates a WindowReader returning windows of the given size.
func NewWindowReader(reader io.Reader, size int64) *WindowReader {
	return &WindowReader{
		reader: reader,
		size:   size,
	}
}

// Next returns the next window as a chunk starting at the payload offset it was read from.
// It returns io.EOF once the stream is exhausted.
func (w *WindowReader) Next() (Chunk, error) {
	if w.done {
		return Chunk{}, io.EOF
	}

	// Each window gets its own buffer, a chunk must stay intact while it is retried
	buf := make([]byte, w.size)
	n, err := io.ReadFull(w.reader, buf)
	switch {
	case errors.Is(err, io.EOF):
		w.done = true
		return Chunk{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		w.done = true
	case err != nil:
		return Chunk{}, fmt.Errorf("read window at offset %d: %w", w.offset, err)
	}

	chunk := NewChunk(w.offset, buf[:n])
	w.offset += int64(n)
	return chunk, nil
}

// Offset returns the number of bytes read so far.
func (w *WindowReader) Offset() int64 {
	return w.offset
}
