package chunkupload

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"
)

func TestWindowReader(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		windowSize int64
		wantLens   []int64
	}{
		{name: "empty payload", size: 0, windowSize: 4, wantLens: nil},
		{name: "exact multiple", size: 8, windowSize: 4, wantLens: []int64{4, 4}},
		{name: "short last window", size: 10, windowSize: 4, wantLens: []int64{4, 4, 2}},
		{name: "smaller than window", size: 3, windowSize: 4, wantLens: []int64{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := testPayload(tt.size)
			// OneByteReader makes sure windows are filled across short reads
			reader := NewWindowReader(iotest.OneByteReader(bytes.NewReader(payload)), tt.windowSize)

			var lens []int64
			var joined []byte
			var offset int64
			for {
				chunk, err := reader.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					t.Fatalf("Next() error: %v", err)
				}
				if chunk.Start != offset {
					t.Errorf("Expected chunk start %d, got %d", offset, chunk.Start)
				}
				offset = chunk.End()
				lens = append(lens, chunk.Len())
				joined = append(joined, chunk.Bytes()...)
			}

			if len(lens) != len(tt.wantLens) {
				t.Fatalf("Expected windows %v, got %v", tt.wantLens, lens)
			}
			for i := range lens {
				if lens[i] != tt.wantLens[i] {
					t.Errorf("Window %d: expected %d bytes, got %d", i, tt.wantLens[i], lens[i])
				}
			}
			if !bytes.Equal(joined, payload) {
				t.Error("Windows don't add up to the payload")
			}
			if reader.Offset() != int64(tt.size) {
				t.Errorf("Expected offset %d, got %d", tt.size, reader.Offset())
			}

			// Stays at EOF
			if _, err := reader.Next(); !errors.Is(err, io.EOF) {
				t.Errorf("Expected io.EOF after the last window, got %v", err)
			}
		})
	}
}

func TestWindowReader_ReadError(t *testing.T) {
	readErr := errors.New("disk on fire")
	reader := NewWindowReader(iotest.ErrReader(readErr), 4)

	_, err := reader.Next()
	if !errors.Is(err, readErr) {
		t.Errorf("Expected read error, got %v", err)
	}
}
