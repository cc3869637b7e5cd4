package chunkupload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"

	"github.com/bitrise-io/go-utils/v2/log"
)

// Sender uploads a single chunk and asks the Verifier how much of it arrived.
type Sender struct {
	httpClient *http.Client
	verifier   *Verifier
	logger     log.Logger
}

// NewSender creates a Sender using the given client for the chunk requests.
func NewSender(httpClient *http.Client, verifier *Verifier, logger log.Logger) *Sender {
	return &Sender{
		httpClient: httpClient,
		verifier:   verifier,
		logger:     logger,
	}
}

// SendChunk PUTs the chunk to the target endpoint and returns the offset confirmed by the verification probe.
// The Content-Range header is only added when includeRange is set.
// A successful status alone is not trusted as proof that the bytes were stored.
func (s *Sender) SendChunk(ctx context.Context, target Target, chunk Chunk, includeRange bool) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.Endpoint, bytes.NewReader(chunk.Bytes()))
	if err != nil {
		return 0, fmt.Errorf("create chunk request: %w", err)
	}

	req.ContentLength = chunk.Len()
	req.Header.Set("Content-Type", target.ContentType)
	if includeRange {
		req.Header.Set("Content-Range", "bytes "+chunk.Range().String())
	}

	dump, err := httputil.DumpRequestOut(req, false)
	if err != nil {
		s.logger.Warnf("error while dumping request: %s", err)
	}
	s.logger.Debugf("Chunk request dump: %s", string(dump))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("chunk upload cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: send chunk %s: %s", ErrTransientSend, chunk.Range(), err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			s.logger.Warnf("close chunk response body: %s", err)
		}
	}(resp.Body)

	dump, err = httputil.DumpResponse(resp, false)
	if err != nil {
		s.logger.Warnf("error while dumping response: %s", err)
	}
	s.logger.Debugf("Chunk response dump: %s", string(dump))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &StatusError{
			Op:         fmt.Sprintf("send chunk %s", chunk.Range()),
			StatusCode: resp.StatusCode,
			Body:       readErrorBody(resp.Body),
			Err:        ErrTransientSend,
		}
	}

	// Drain so the connection can be reused by the probe
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		s.logger.Debugf("drain chunk response body: %s", err)
	}

	return s.verifier.Verify(ctx, target.Endpoint)
}
