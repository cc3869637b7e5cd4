// Package vimeo uploads videos to Vimeo's streaming upload endpoint and calls the upload ticket API.
// Every request is signed with OAuth 1.0a.
package vimeo

import (
	"fmt"
	"net/http"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-videoupload/chunkupload"
)

// DefaultMethodURL is the method dispatch URL of the v2 REST API. %s is replaced with the method name.
const DefaultMethodURL = "http://vimeo.com/api/rest/v2?method=%s"

// ClientParams ...
type ClientParams struct {
	Credentials Credentials
	// MethodURL is a format string for the ticket API calls. Defaults to DefaultMethodURL.
	MethodURL string
	// Upload configures the chunked upload. Its HTTPClient is ignored, uploads go through the signed client.
	Upload chunkupload.Config
	// TransportRetries is the number of times a failed upload request is retried below the chunk
	// state machine. The default of 0 leaves every retry decision to the chunk uploader.
	TransportRetries int
}

// Client talks to Vimeo on behalf of one authorized user.
type Client struct {
	uploadClient *http.Client
	ticketClient *http.Client
	methodURL    string
	uploadConfig chunkupload.Config
	logger       log.Logger
}

// NewClient creates a Client signing its requests with params.Credentials.
func NewClient(params ClientParams, logger log.Logger) (*Client, error) {
	if err := params.Credentials.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	if params.TransportRetries < 0 {
		return nil, fmt.Errorf("transport retries must not be negative, got %d", params.TransportRetries)
	}
	if err := params.Upload.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upload config: %w", err)
	}

	methodURL := params.MethodURL
	if methodURL == "" {
		methodURL = DefaultMethodURL
	}

	return &Client{
		uploadClient: NewHTTPClient(params.Credentials, params.TransportRetries, logger),
		ticketClient: NewHTTPClient(params.Credentials, DefaultTicketRetries, logger),
		methodURL:    methodURL,
		uploadConfig: params.Upload,
		logger:       logger,
	}, nil
}
