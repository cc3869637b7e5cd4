// Package chunkupload implements a sequential, resumable chunk upload client for byte-range PUT endpoints.
// Every chunk is confirmed by a verification probe before the next one is sent, and short writes are
// resumed from the offset the server reports.
package chunkupload

import (
	"fmt"
	"time"
)

// Target describes the endpoint and the payload of one upload session.
type Target struct {
	Endpoint      string
	ContentLength int64
	ContentType   string
}

// ByteRange is the span of payload bytes a chunk request represents. End is exclusive.
type ByteRange struct {
	Start int64
	End   int64
}

// String renders the range the way it goes into the Content-Range header.
func (r ByteRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Chunk is a read-only view of payload bytes whose first byte sits at offset Start.
// Retries never modify a chunk; they send a smaller view created by Suffix.
type Chunk struct {
	Start int64
	data  []byte
}

// NewChunk wraps data starting at the given payload offset. The caller must not modify data afterwards.
func NewChunk(start int64, data []byte) Chunk {
	return Chunk{Start: start, data: data}
}

// Len returns the number of bytes in the chunk.
func (c Chunk) Len() int64 {
	return int64(len(c.data))
}

// End returns the offset right after the last byte of the chunk.
func (c Chunk) End() int64 {
	return c.Start + c.Len()
}

// Range returns the byte range of the chunk.
func (c Chunk) Range() ByteRange {
	return ByteRange{Start: c.Start, End: c.End()}
}

// Bytes returns the chunk data. It must be treated as read-only.
func (c Chunk) Bytes() []byte {
	return c.data
}

// Suffix returns the part of the chunk that starts at the given payload offset.
func (c Chunk) Suffix(offset int64) (Chunk, error) {
	if offset < c.Start || offset > c.End() {
		return Chunk{}, fmt.Errorf("offset %d is outside of chunk range %s", offset, c.Range())
	}
	return Chunk{Start: offset, data: c.data[offset-c.Start:]}, nil
}

// Result represents the outcome of a successful upload session.
type Result struct {
	// ConfirmedOffset is the number of bytes the server reported as received.
	ConfirmedOffset int64
	// Chunks is the number of payload windows uploaded.
	Chunks int
	// Sends is the number of chunk requests issued, retries included.
	Sends    int
	Duration time.Duration
}
