package chunkupload

import (
	"sync"
	"time"
)

// Stats tracks upload progress and performance for reporting.
// It is safe to read from another goroutine while an upload runs.
type Stats struct {
	sends          int64
	shortWrites    int64
	transientFails int64
	finishedChunks int64
	confirmed      int64
	sum            time.Duration
	mu             sync.Mutex
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{}
}

// Send records one chunk request.
func (s *Stats) Send() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends++
}

// ShortWrite records a chunk the server confirmed only partially.
func (s *Stats) ShortWrite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shortWrites++
}

// TransientFailure records a failed chunk request.
func (s *Stats) TransientFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transientFails++
}

// Update records a fully confirmed window, its upload duration and the new confirmed offset.
func (s *Stats) Update(d time.Duration, confirmed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sum += d
	s.finishedChunks++
	s.confirmed = confirmed
}

// Average returns the average upload duration of confirmed windows.
func (s *Stats) Average() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finishedChunks == 0 {
		return 0
	}
	return s.sum / time.Duration(s.finishedChunks)
}

// FinishedCount returns the number of confirmed windows.
func (s *Stats) FinishedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedChunks
}

// SendCount returns the number of chunk requests issued, retries included.
func (s *Stats) SendCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sends
}

// ShortWriteCount returns the number of partially confirmed chunk requests.
func (s *Stats) ShortWriteCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shortWrites
}

// TransientFailureCount returns the number of failed chunk requests.
func (s *Stats) TransientFailureCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transientFails
}

// Confirmed returns the last confirmed offset.
func (s *Stats) Confirmed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed
}

// TotalDuration returns the sum of all window upload durations.
func (s *Stats) TotalDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sum
}

// Percent returns the confirmed share of total, rounded to the nearest integer.
func Percent(confirmed, total int64) int {
	if total <= 0 {
		return 100
	}
	return int(float64(confirmed)*100.0/float64(total) + 0.5)
}
