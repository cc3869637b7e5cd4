// Package source opens the video payload of an upload from a local path, an HTTP(S) URL or an S3 object.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
)

// Payload is an opened video ready to be streamed to the upload endpoint.
type Payload struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.ReadCloser

	tempDirs []string
}

// Close closes the body and removes the files downloaded for the payload.
func (p *Payload) Close() error {
	var errs []error
	if p.Body != nil {
		if err := p.Body.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close payload: %w", err))
		}
	}
	for _, dir := range p.tempDirs {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", dir, err))
		}
	}
	return errors.Join(errs...)
}

// S3Params ...
type S3Params struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the S3 endpoint, for S3 compatible storages. Path style addressing is used with it.
	Endpoint string
}

// ProviderParams ...
type ProviderParams struct {
	// ContentType overrides the detected content type when set.
	ContentType    string
	S3             S3Params
	NumFullRetries int
	RetryWait      time.Duration
}

// Provider opens payloads by location.
type Provider struct {
	params       ProviderParams
	httpClient   *http.Client
	pathProvider pathutil.PathProvider
	logger       log.Logger
}

// NewProvider ...
func NewProvider(params ProviderParams, logger log.Logger) *Provider {
	if params.NumFullRetries <= 0 {
		params.NumFullRetries = 3
	}
	if params.RetryWait < 0 {
		params.RetryWait = 0
	}

	retryableHTTPClient := retryhttp.NewClient(logger)
	retryableHTTPClient.CheckRetry = createCustomRetryFunction(logger)

	return &Provider{
		params:       params,
		httpClient:   retryableHTTPClient.StandardClient(),
		pathProvider: pathutil.NewPathProvider(),
		logger:       logger,
	}
}

// Open opens the payload found at location. Supported locations are local paths, file://, http://,
// https:// and s3://bucket/key URLs. The caller must close the returned payload.
func (p *Provider) Open(ctx context.Context, location string) (*Payload, error) {
	if strings.TrimSpace(location) == "" {
		return nil, errors.New("source location is empty")
	}

	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths, including Windows drive letters
		return p.openLocal(location, filepath.Base(location), "")
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return p.openLocal(u.Path, path.Base(u.Path), "")
	case "http", "https":
		return p.openRemote(ctx, u)
	case "s3":
		return p.openS3(ctx, u)
	default:
		return nil, fmt.Errorf("unsupported source scheme: %s", u.Scheme)
	}
}

func (p *Provider) openLocal(pth, name, contentTypeHint string) (*Payload, error) {
	file, err := os.Open(pth)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("source is a directory: %s", pth)
	}

	contentType := p.params.ContentType
	if contentType == "" {
		contentType = contentTypeHint
	}
	if contentType == "" {
		head := make([]byte, sniffLen)
		n, err := file.ReadAt(head, 0)
		if err != nil && !errors.Is(err, io.EOF) {
			_ = file.Close()
			return nil, fmt.Errorf("read source: %w", err)
		}
		contentType = DetectContentType(name, head[:n])
	}

	return &Payload{
		Name:        name,
		Size:        info.Size(),
		ContentType: contentType,
		Body:        file,
	}, nil
}

// openFromTempDir opens a downloaded file and hands the ownership of its directory to the payload.
func (p *Provider) openFromTempDir(tmpDir, pth, name, contentTypeHint string) (*Payload, error) {
	payload, err := p.openLocal(pth, name, contentTypeHint)
	if err != nil {
		if removeErr := os.RemoveAll(tmpDir); removeErr != nil {
			p.logger.Warnf("Failed to remove %s: %s", tmpDir, removeErr)
		}
		return nil, err
	}
	payload.tempDirs = append(payload.tempDirs, tmpDir)
	return payload, nil
}

func (p *Provider) createTempDir() (string, error) {
	tmpDir, err := p.pathProvider.CreateTempDir("video-upload")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	return tmpDir, nil
}

func fileNameFromPath(pth string) string {
	name := path.Base(pth)
	if name == "." || name == "/" || name == "" {
		return "video"
	}
	return name
}
