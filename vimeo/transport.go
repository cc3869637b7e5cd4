package vimeo

import (
	"context"
	"net/http"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/bitrise-io/go-videoupload/chunkupload"
	"github.com/dghubble/oauth1"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultTicketRetries is the number of transport level retries for ticket API calls.
const DefaultTicketRetries = 3

// NewHTTPClient returns a client that signs every request with the given credentials and retries
// failed requests at most retryMax times. Final responses are returned as they are, whatever their
// status, and redirects are never followed.
func NewHTTPClient(credentials Credentials, retryMax int, logger log.Logger) *http.Client {
	// The oauth1 transport wraps the transport of the client found in the context
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, chunkupload.DefaultHTTPClient())
	signedClient := credentials.oauthConfig().Client(ctx, credentials.token())
	signedClient.CheckRedirect = chunkupload.NoRedirect

	retryableClient := retryhttp.NewClient(logger)
	retryableClient.HTTPClient = signedClient
	retryableClient.RetryMax = retryMax
	retryableClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryableClient.CheckRetry = createCustomRetryFunction(logger)
	retryableClient.RequestLogHook = restoreEmptyBody

	client := retryableClient.StandardClient()
	client.CheckRedirect = chunkupload.NoRedirect
	return client
}

func createCustomRetryFunction(logger log.Logger) func(context.Context, *http.Response, error) (bool, error) {
	return func(ctx context.Context, resp *http.Response, requestErr error) (bool, error) {
		retry, err := retryablehttp.DefaultRetryPolicy(ctx, resp, requestErr)
		logger.Debugf("CheckRetry: retry=%v ; err=%+v ; requestErr=%+v", retry, err, requestErr)
		return retry, err
	}
}

// restoreEmptyBody runs before every attempt. retryablehttp rewinds bodies into a fresh reader,
// which would make net/http send a zero length PUT (the upload probe) with chunked encoding.
func restoreEmptyBody(_ retryablehttp.Logger, req *http.Request, _ int) {
	if req.ContentLength == 0 && req.Body != nil {
		req.Body = http.NoBody
	}
}
