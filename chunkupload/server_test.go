package chunkupload

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/require"
)

// chunkRequest is what the fake endpoint saw in one chunk PUT.
type chunkRequest struct {
	contentRange string
	contentType  string
	length       int
}

// fakeEndpoint simulates the upload endpoint: it stores the received bytes at the offset given by
// Content-Range (or appends when the header is missing) and answers probes with 308 and a Range header.
type fakeEndpoint struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	data     []byte
	requests []chunkRequest
	probes   int
	reports  []int64
	// accept decides how many bytes of the n-th chunk request (0 based) are stored
	accept func(call int, body []byte) int
	// failures holds statuses returned for the next chunk requests instead of storing them
	failures []int
	// probeFailures holds statuses returned for the next probes instead of the 308
	probeFailures []int
	// overReport is added to the reported last byte
	overReport int64
}

func newFakeEndpoint(t *testing.T) *fakeEndpoint {
	f := &fakeEndpoint{t: t}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeEndpoint) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if r.Header.Get("Content-Range") == probeContentRange {
		if r.ContentLength != 0 {
			f.t.Errorf("probe sent with content length %d", r.ContentLength)
		}
		f.probes++
		if len(f.probeFailures) > 0 {
			status := f.probeFailures[0]
			f.probeFailures = f.probeFailures[1:]
			w.WriteHeader(status)
			return
		}
		f.reports = append(f.reports, int64(len(f.data))+f.overReport)
		if len(f.data) > 0 {
			w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", int64(len(f.data))-1+f.overReport))
		}
		w.WriteHeader(http.StatusPermanentRedirect)
		return
	}

	body, err := io.ReadAll(r.Body)
	require.NoError(f.t, err)

	call := len(f.requests)
	f.requests = append(f.requests, chunkRequest{
		contentRange: r.Header.Get("Content-Range"),
		contentType:  r.Header.Get("Content-Type"),
		length:       len(body),
	})

	if len(f.failures) > 0 {
		status := f.failures[0]
		f.failures = f.failures[1:]
		w.WriteHeader(status)
		_, _ = w.Write([]byte("temporary error"))
		return
	}

	start := int64(len(f.data))
	if contentRange := r.Header.Get("Content-Range"); contentRange != "" {
		start = parseContentRangeStart(f.t, contentRange)
	}
	if start > int64(len(f.data)) {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	accepted := len(body)
	if f.accept != nil {
		accepted = f.accept(call, body)
	}
	f.data = append(f.data[:start], body[:accepted]...)
	w.WriteHeader(http.StatusOK)
}

func (f *fakeEndpoint) received() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.data...)
}

func (f *fakeEndpoint) chunkRequests() []chunkRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chunkRequest(nil), f.requests...)
}

func (f *fakeEndpoint) reportedOffsets() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.reports...)
}

func parseContentRangeStart(t *testing.T, header string) int64 {
	value := strings.TrimPrefix(header, "bytes ")
	startValue, _, found := strings.Cut(value, "-")
	require.True(t, found, "invalid Content-Range: %s", header)
	start, err := strconv.ParseInt(startValue, 10, 64)
	require.NoError(t, err)
	return start
}

func testPayload(size int) []byte {
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	return payload
}

func testConfig() Config {
	config := DefaultConfig()
	config.RetryWait = 0
	return config
}

func newTestUploader(t *testing.T, config Config) *Uploader {
	uploader, err := New(config, log.NewLogger())
	require.NoError(t, err)
	t.Cleanup(uploader.CloseIdleConnections)
	return uploader
}
