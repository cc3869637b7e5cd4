package chunkupload

import (
	"fmt"
	"net/http"
	"time"
)

// DefaultChunkSize is the size of the payload windows sent in one request (1 MiB).
const DefaultChunkSize int64 = 1024 * 1024

// Config holds configuration for the chunk uploader.
type Config struct {
	// ChunkSize is the size of the payload windows read and sent in one request.
	// Default: 1 MiB
	ChunkSize int64

	// MaxAttempts is the number of retries allowed for a single window after its first send.
	// Default: 3
	MaxAttempts int

	// RetryWait is the base delay before resending a chunk after a transient failure.
	// The n-th retry waits n*RetryWait. Short writes are resent without delay.
	// Default: 2 seconds
	RetryWait time.Duration

	// HTTPClient sends the chunk and verification requests. It is expected to sign the requests.
	// If nil, an unsigned default client will be created.
	HTTPClient *http.Client
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:   DefaultChunkSize,
		MaxAttempts: 3,
		RetryWait:   2 * time.Second,
		HTTPClient:  nil, // Will be created by New
	}
}

// Validate checks that the configuration can drive an upload.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must not be negative, got %d", c.MaxAttempts)
	}
	if c.RetryWait < 0 {
		return fmt.Errorf("retry wait must not be negative, got %s", c.RetryWait)
	}
	return nil
}

// DefaultHTTPClient creates an HTTP client suited for sequential chunk uploads.
// Redirects are not followed, the verification probe is answered with 308.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		// No timeout - a chunk can take arbitrarily long on slow links, callers bound it via context
		Timeout: 0,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxConnsPerHost:     2,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
		CheckRedirect: NoRedirect,
	}
}

// NoRedirect is an http.Client CheckRedirect policy returning the redirect response itself.
func NoRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}
