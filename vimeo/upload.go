package vimeo

import (
	"context"
	"fmt"
	"io"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-videoupload/chunkupload"
)

// Uploader uploads a video stream to an upload endpoint.
type Uploader interface {
	UploadVideo(ctx context.Context, endpoint string, video io.Reader, contentType string, contentLength int64) (chunkupload.Result, error)
}

// UploadVideo streams video to endpoint in chunks, resuming short writes from the offset the server
// confirms. contentLength must be the exact number of bytes video yields.
// On failure the returned error is a *chunkupload.UploadError holding the last confirmed offset.
func (c *Client) UploadVideo(ctx context.Context, endpoint string, video io.Reader, contentType string, contentLength int64) (chunkupload.Result, error) {
	config := c.uploadConfig
	config.HTTPClient = c.uploadClient

	uploader, err := chunkupload.New(config, c.logger)
	if err != nil {
		return chunkupload.Result{}, fmt.Errorf("create uploader: %w", err)
	}

	return uploader.Upload(ctx, chunkupload.Target{
		Endpoint:      endpoint,
		ContentLength: contentLength,
		ContentType:   contentType,
	}, video)
}

// UploadVideo uploads video with the default upload configuration, signing requests with credentials.
func UploadVideo(ctx context.Context, endpoint string, video io.Reader, contentType string, contentLength int64, credentials Credentials, logger log.Logger) (chunkupload.Result, error) {
	client, err := NewClient(ClientParams{
		Credentials: credentials,
		Upload:      chunkupload.DefaultConfig(),
	}, logger)
	if err != nil {
		return chunkupload.Result{}, err
	}
	return client.UploadVideo(ctx, endpoint, video, contentType, contentLength)
}
