package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/melbahja/got"
)

func (p *Provider) openRemote(ctx context.Context, u *url.URL) (*Payload, error) {
	tmpDir, err := p.createTempDir()
	if err != nil {
		return nil, err
	}

	name := fileNameFromPath(u.Path)
	dest := filepath.Join(tmpDir, name)

	p.logger.Infof("Downloading %s", u.Redacted())
	if err := downloadFile(ctx, p.httpClient, u.String(), dest); err != nil {
		if removeErr := os.RemoveAll(tmpDir); removeErr != nil {
			p.logger.Warnf("Failed to remove %s: %s", tmpDir, removeErr)
		}
		return nil, fmt.Errorf("download source: %w", err)
	}

	return p.openFromTempDir(tmpDir, dest, name, "")
}

func createCustomRetryFunction(logger log.Logger) func(context.Context, *http.Response, error) (bool, error) {
	return func(ctx context.Context, resp *http.Response, downloadErr error) (bool, error) {
		retry, err := retryablehttp.DefaultRetryPolicy(ctx, resp, downloadErr)
		logger.Debugf("CheckRetry: retry=%v ; err=%+v ; downloadErr=%+v", retry, err, downloadErr)
		return retry, err
	}
}

func downloadFile(ctx context.Context, client *http.Client, url string, dest string) error {
	downloader := got.New()
	downloader.Client = client

	return downloader.Do(got.NewDownload(ctx, url, dest))
}
