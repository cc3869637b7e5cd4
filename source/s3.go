package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
)

// ErrObjectNotFound is returned when the S3 source object does not exist.
var ErrObjectNotFound = errors.New("object not found in s3 bucket")

const s3PartSize = 10 * 1024 * 1024

type s3Object struct {
	bucket string
	key    string
}

func parseS3Location(u *url.URL) (s3Object, error) {
	object := s3Object{
		bucket: u.Host,
		key:    strings.TrimPrefix(u.Path, "/"),
	}
	if object.bucket == "" {
		return s3Object{}, fmt.Errorf("bucket must not be empty in %s", u)
	}
	if object.key == "" || strings.HasSuffix(object.key, "/") {
		return s3Object{}, fmt.Errorf("object key must not be empty in %s", u)
	}
	return object, nil
}

func (p *Provider) openS3(ctx context.Context, u *url.URL) (*Payload, error) {
	object, err := parseS3Location(u)
	if err != nil {
		return nil, err
	}

	cfg, err := loadAWSCredentials(
		ctx,
		p.params.S3.Region,
		p.params.S3.AccessKeyID,
		p.params.S3.SecretAccessKey,
		p.logger,
	)
	if err != nil {
		return nil, fmt.Errorf("load aws credentials: %w", err)
	}

	client := s3.NewFromConfig(*cfg, func(o *s3.Options) {
		if p.params.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(p.params.S3.Endpoint)
			o.UsePathStyle = true
		}
	})

	head, err := p.headObjectWithRetry(ctx, client, object)
	if err != nil {
		return nil, err
	}
	p.logger.Debugf("Found s3://%s/%s (%d bytes)", object.bucket, object.key, aws.ToInt64(head.ContentLength))

	tmpDir, err := p.createTempDir()
	if err != nil {
		return nil, err
	}

	name := fileNameFromPath(object.key)
	dest := filepath.Join(tmpDir, name)
	if err := p.downloadObjectWithRetry(ctx, client, object, dest); err != nil {
		if removeErr := os.RemoveAll(tmpDir); removeErr != nil {
			p.logger.Warnf("Failed to remove %s: %s", tmpDir, removeErr)
		}
		return nil, err
	}

	contentType := aws.ToString(head.ContentType)
	if contentType == "binary/octet-stream" || contentType == "application/octet-stream" {
		// S3 defaults, they carry no information
		contentType = ""
	}
	return p.openFromTempDir(tmpDir, dest, name, contentType)
}

func (p *Provider) headObjectWithRetry(ctx context.Context, client *s3.Client, object s3Object) (*s3.HeadObjectOutput, error) {
	var output *s3.HeadObjectOutput
	err := retry.Times(uint(p.params.NumFullRetries)).Wait(p.params.RetryWait).TryWithAbort(func(attempt uint) (error, bool) {
		resp, err := client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(object.bucket),
			Key:    aws.String(object.key),
		})
		if err != nil {
			var apiError smithy.APIError
			if errors.As(err, &apiError) {
				switch apiError.(type) {
				case *types.NotFound:
					return fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, object.bucket, object.key), true
				default:
					return fmt.Errorf("aws api error: %w", err), false
				}
			}
			return fmt.Errorf("generic aws error: %w", err), false
		}

		output = resp
		return nil, true
	})
	if err != nil {
		return nil, fmt.Errorf("validate source object: %w", err)
	}
	return output, nil
}

func (p *Provider) downloadObjectWithRetry(ctx context.Context, client *s3.Client, object s3Object, dest string) error {
	return retry.Times(uint(p.params.NumFullRetries)).Wait(p.params.RetryWait).TryWithAbort(func(attempt uint) (error, bool) {
		file, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("create file: %w", err), true
		}
		defer file.Close() //nolint:errcheck

		downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
			d.PartSize = s3PartSize
		})
		_, err = downloader.Download(ctx, file, &s3.GetObjectInput{
			Bucket: aws.String(object.bucket),
			Key:    aws.String(object.key),
		})
		if err != nil {
			return fmt.Errorf("download object: %w", err), false
		}

		return nil, true
	})
}

func loadAWSCredentials(
	ctx context.Context,
	region string,
	accessKeyID string,
	secretKey string,
	logger log.Logger,
) (*aws.Config, error) {
	if region == "" {
		return nil, fmt.Errorf("region must not be empty")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if accessKeyID != "" && secretKey != "" {
		logger.Debugf("aws credentials provided, using them...")
		opts = append(opts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config, %v", err)
	}

	return &cfg, nil
}
