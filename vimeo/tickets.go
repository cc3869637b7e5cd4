package vimeo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
)

const (
	methodVerifyChunks   = "vimeo.videos.upload.verifyChunks"
	methodCompleteUpload = "vimeo.videos.upload.complete"
)

// TicketResponse is the raw answer of an upload ticket API call.
// The body is not interpreted, callers decide what a status means.
type TicketResponse struct {
	Body       string
	StatusCode int
}

// String returns the body immediately followed by the status code.
func (r TicketResponse) String() string {
	return r.Body + strconv.Itoa(r.StatusCode)
}

// VerifyChunks asks which chunks of the upload ticket the server holds. Useful before resuming an upload.
// An error is only returned when no response was received.
func (c *Client) VerifyChunks(ctx context.Context, ticketID string) (TicketResponse, error) {
	return c.callMethod(ctx, methodVerifyChunks, url.Values{
		"ticket_id": {ticketID},
	})
}

// CompleteUpload tells the server that all bytes of the ticket are uploaded, which starts transcoding.
// An error is only returned when no response was received.
func (c *Client) CompleteUpload(ctx context.Context, ticketID, fileName string) (TicketResponse, error) {
	params := url.Values{
		"ticket_id": {ticketID},
	}
	if fileName != "" {
		params.Set("file_name", fileName)
	}
	return c.callMethod(ctx, methodCompleteUpload, params)
}

func (c *Client) callMethod(ctx context.Context, method string, params url.Values) (TicketResponse, error) {
	methodURL, err := url.Parse(fmt.Sprintf(c.methodURL, method))
	if err != nil {
		return TicketResponse{}, fmt.Errorf("parse method URL: %w", err)
	}

	query := methodURL.Query()
	for key, values := range params {
		query[key] = values
	}
	query.Set("format", "json")
	methodURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, methodURL.String(), nil)
	if err != nil {
		return TicketResponse{}, fmt.Errorf("create %s request: %w", method, err)
	}

	c.logger.Debugf("Calling %s", method)
	resp, err := c.ticketClient.Do(req)
	if err != nil {
		return TicketResponse{}, fmt.Errorf("call %s: %w", method, err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Warnf("close %s response body: %s", method, err)
		}
	}(resp.Body)

	dump, err := httputil.DumpResponse(resp, true)
	if err != nil {
		c.logger.Warnf("error while dumping response: %s", err)
	}
	c.logger.Debugf("%s response dump: %s", method, string(dump))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TicketResponse{}, fmt.Errorf("read %s response: %w", method, err)
	}

	return TicketResponse{Body: string(body), StatusCode: resp.StatusCode}, nil
}
