package chunkupload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strconv"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
)

const (
	rangeHeaderPrefix = "bytes="
	probeContentRange = "bytes */*"
)

// Verifier asks the endpoint how many bytes it has received so far.
type Verifier struct {
	httpClient *http.Client
	logger     log.Logger
}

// NewVerifier creates a Verifier sending its probes with the given client.
func NewVerifier(httpClient *http.Client, logger log.Logger) *Verifier {
	return &Verifier{
		httpClient: httpClient,
		logger:     logger,
	}
}

// Verify sends an empty PUT with `Content-Range: bytes */*` and returns the number of bytes the
// server reports in its Range header. The server must answer with 308 Permanent Redirect, any other
// answer fails with ErrVerifyFailed.
func (v *Verifier) Verify(ctx context.Context, endpoint string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("create verify request: %w", err)
	}
	req.ContentLength = 0
	req.Header.Set("Content-Range", probeContentRange)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("verify upload cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: verify upload: %s", ErrVerifyFailed, err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			v.logger.Warnf("close verify response body: %s", err)
		}
	}(resp.Body)

	dump, err := httputil.DumpResponse(resp, false)
	if err != nil {
		v.logger.Warnf("error while dumping response: %s", err)
	}
	v.logger.Debugf("Verify response dump: %s", string(dump))

	if resp.StatusCode != http.StatusPermanentRedirect {
		return 0, &StatusError{Op: "verify upload", StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body), Err: ErrVerifyFailed}
	}

	offset, err := ParseRange(resp.Header.Get("Range"))
	if err != nil {
		return 0, protocolViolation("verify upload: %s", err)
	}

	return offset, nil
}

// ParseRange parses a single-range `bytes=<start>-<end>` header value (the prefix is optional)
// and converts the inclusive, zero-indexed end into a byte count.
func ParseRange(header string) (int64, error) {
	value := strings.TrimSpace(header)
	if value == "" {
		return 0, errors.New("missing Range header")
	}
	value = strings.TrimPrefix(value, rangeHeaderPrefix)

	if strings.Contains(value, ",") {
		return 0, fmt.Errorf("multiple ranges are not supported: %q", header)
	}

	startValue, endValue, found := strings.Cut(value, "-")
	if !found {
		return 0, fmt.Errorf("invalid range %q: missing separator", header)
	}

	start, err := strconv.ParseInt(strings.TrimSpace(startValue), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid range start in %q: %w", header, err)
	}
	end, err := strconv.ParseInt(strings.TrimSpace(endValue), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid range end in %q: %w", header, err)
	}
	if start < 0 || end < start {
		return 0, fmt.Errorf("invalid range %q: end precedes start", header)
	}

	// The server reports the zero-indexed last byte
	return end + 1, nil
}

func readErrorBody(body io.Reader) string {
	errorBody := make([]byte, 1024)
	n, _ := io.ReadAtLeast(body, errorBody, 1)
	return strings.TrimSpace(string(errorBody[:n]))
}
