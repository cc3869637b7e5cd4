package chunkupload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

// ChunkSender sends one chunk and returns the offset the server confirmed afterwards.
type ChunkSender interface {
	SendChunk(ctx context.Context, target Target, chunk Chunk, includeRange bool) (int64, error)
}

// Uploader uploads payloads window by window, resuming short writes from the confirmed offset.
// Sessions share no state, so one Uploader can serve several uploads at once.
type Uploader struct {
	config     Config
	httpClient *http.Client
	sender     ChunkSender
	logger     log.Logger
}

// New creates a new Uploader with the given configuration.
func New(config Config, logger log.Logger) (*Uploader, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = DefaultHTTPClient()
	}

	verifier := NewVerifier(httpClient, logger)
	return &Uploader{
		config:     config,
		httpClient: httpClient,
		sender:     NewSender(httpClient, verifier, logger),
		logger:     logger,
	}, nil
}

// Upload reads payload in windows of Config.ChunkSize and uploads them one after the other.
// A window is only sent once the previous one is confirmed by the server. If any window runs out
// of attempts the whole upload is aborted with an *UploadError carrying the last confirmed offset.
func (u *Uploader) Upload(ctx context.Context, target Target, payload io.Reader) (Result, error) {
	if target.Endpoint == "" {
		return Result{}, errors.New("endpoint must not be empty")
	}
	if target.ContentLength < 0 {
		return Result{}, fmt.Errorf("content length must not be negative, got %d", target.ContentLength)
	}

	s := &session{
		target:      target,
		chunkSize:   u.config.ChunkSize,
		maxAttempts: u.config.MaxAttempts,
		stats:       NewStats(),
		start:       time.Now(),
	}
	chunks := NewChunkUploader(u.sender, u.config, s.stats, u.logger)
	windows := NewWindowReader(payload, s.chunkSize)

	u.logger.Debugf("Uploading %s to %s in %s chunks",
		units.HumanSizeWithPrecision(float64(target.ContentLength), 3), target.Endpoint,
		units.HumanSizeWithPrecision(float64(s.chunkSize), 3))

	for {
		if err := ctx.Err(); err != nil {
			return s.abort(s.confirmed, fmt.Errorf("upload cancelled: %w", err))
		}

		chunk, err := windows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.abort(s.confirmed, err)
		}
		if chunk.End() > target.ContentLength {
			return s.abort(s.confirmed, fmt.Errorf("%w: payload is longer than the declared %d bytes", ErrPayloadLength, target.ContentLength))
		}

		windowStart := time.Now()
		// The first request opens the upload, only the following ones carry a Content-Range
		confirmed, err := chunks.Send(ctx, target, chunk, s.chunks > 0)
		if err != nil {
			return s.abort(confirmed, fmt.Errorf("upload chunk %d: %w", s.chunks+1, err))
		}
		if err := s.advance(confirmed); err != nil {
			return s.abort(s.confirmed, err)
		}
		s.stats.Update(time.Since(windowStart), confirmed)

		u.logger.Infof("%s of %s uploaded (%d%%)",
			units.HumanSizeWithPrecision(float64(confirmed), 3),
			units.HumanSizeWithPrecision(float64(target.ContentLength), 3),
			Percent(confirmed, target.ContentLength))
	}

	if s.confirmed != target.ContentLength {
		return s.abort(s.confirmed, fmt.Errorf("%w: payload ended after %d of the declared %d bytes", ErrPayloadLength, s.confirmed, target.ContentLength))
	}

	result := s.result()
	u.logger.Debugf("Upload finished: %d chunks, %d requests, avg chunk time %s",
		result.Chunks, result.Sends, s.stats.Average().Round(time.Millisecond))
	return result, nil
}

// CloseIdleConnections closes idle connections in the HTTP client.
func (u *Uploader) CloseIdleConnections() {
	u.httpClient.CloseIdleConnections()
}

// session is the state of one Upload call.
type session struct {
	target      Target
	chunkSize   int64
	maxAttempts int
	confirmed   int64
	chunks      int
	stats       *Stats
	start       time.Time
}

// advance moves the confirmed counter forward after a window was fully confirmed.
func (s *session) advance(offset int64) error {
	if offset < s.confirmed {
		return protocolViolation("confirmed offset went back from %d to %d", s.confirmed, offset)
	}
	s.confirmed = offset
	s.chunks++
	return nil
}

func (s *session) result() Result {
	return Result{
		ConfirmedOffset: s.confirmed,
		Chunks:          s.chunks,
		Sends:           int(s.stats.SendCount()),
		Duration:        time.Since(s.start),
	}
}

func (s *session) abort(lastConfirmed int64, err error) (Result, error) {
	if lastConfirmed < s.confirmed {
		lastConfirmed = s.confirmed
	}
	result := s.result()
	result.ConfirmedOffset = lastConfirmed
	return result, &UploadError{LastConfirmedOffset: lastConfirmed, Err: err}
}

// ChunkUploader uploads one window, resending the unconfirmed part until the server holds all of it
// or the attempts run out.
type ChunkUploader struct {
	sender      ChunkSender
	maxAttempts int
	retryWait   time.Duration
	stats       *Stats
	logger      log.Logger
}

// NewChunkUploader creates a ChunkUploader. stats may be nil.
func NewChunkUploader(sender ChunkSender, config Config, stats *Stats, logger log.Logger) *ChunkUploader {
	if stats == nil {
		stats = NewStats()
	}
	return &ChunkUploader{
		sender:      sender,
		maxAttempts: config.MaxAttempts,
		retryWait:   config.RetryWait,
		stats:       stats,
		logger:      logger,
	}
}

// Send uploads chunk, whose Start is the number of bytes already on the server, and returns the new
// confirmed offset. Attempt 0 is the first send; after a short write only the unconfirmed suffix of
// chunk is sent again, after a transient failure the same bytes are. The returned offset is the last
// one known to be confirmed, also when an error is returned.
func (c *ChunkUploader) Send(ctx context.Context, target Target, chunk Chunk, includeRange bool) (int64, error) {
	current := chunk
	var lastErr error

	for attempt := 0; attempt <= c.maxAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Warnf("Attempt number %d of %d to upload to endpoint %s", attempt, c.maxAttempts, target.Endpoint)
		}
		if err := ctx.Err(); err != nil {
			return current.Start, fmt.Errorf("chunk %s upload cancelled: %w", current.Range(), err)
		}

		expected := current.End()
		c.stats.Send()
		confirmed, err := c.sender.SendChunk(ctx, target, current, includeRange)
		if err != nil {
			if !errors.Is(err, ErrTransientSend) {
				return current.Start, err
			}

			c.stats.TransientFailure()
			c.logger.Warnf("Chunk %s attempt %d failed: %s", current.Range(), attempt+1, err)
			lastErr = err
			if attempt < c.maxAttempts {
				if err := c.wait(ctx, attempt); err != nil {
					return current.Start, fmt.Errorf("chunk %s upload cancelled: %w", current.Range(), err)
				}
			}
			continue
		}

		switch {
		case confirmed == expected:
			return confirmed, nil
		case confirmed > expected:
			return current.Start, protocolViolation("server confirmed %d bytes but only %d were sent", confirmed, expected)
		case confirmed < chunk.Start:
			return current.Start, protocolViolation("server confirmed %d bytes, less than the %d confirmed before chunk %s", confirmed, chunk.Start, chunk.Range())
		}

		c.stats.ShortWrite()
		c.logger.Warnf("%d (bytes on server) != %d (bytes expected on server)", confirmed, expected)

		next, err := chunk.Suffix(confirmed)
		if err != nil {
			return current.Start, protocolViolation("%s", err)
		}
		current = next
		lastErr = fmt.Errorf("%w: server confirmed %d of %d bytes", ErrShortWrite, confirmed, expected)
	}

	return current.Start, fmt.Errorf("%w after %d attempts: %w", ErrRetryBudgetExhausted, c.maxAttempts+1, lastErr)
}

func (c *ChunkUploader) wait(ctx context.Context, attempt int) error {
	backoff := time.Duration(attempt+1) * c.retryWait
	if backoff <= 0 {
		return nil
	}

	c.logger.Debugf("Retrying after %s", backoff)
	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
