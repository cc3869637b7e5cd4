// Package config reads the upload configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitrise-io/go-steputils/v2/stepconf"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-videoupload/chunkupload"
	"github.com/bitrise-io/go-videoupload/source"
	"github.com/bitrise-io/go-videoupload/vimeo"
	"github.com/docker/go-units"
)

// Environment variable keys, as used by the Inputs tags.
const (
	EndpointKey          = "VIDEO_UPLOAD_ENDPOINT"
	SourceKey            = "VIDEO_UPLOAD_SOURCE"
	ContentTypeKey       = "VIDEO_UPLOAD_CONTENT_TYPE"
	ChunkSizeKey         = "VIDEO_UPLOAD_CHUNK_SIZE"
	MaxAttemptsKey       = "VIDEO_UPLOAD_MAX_ATTEMPTS"
	RetryWaitKey         = "VIDEO_UPLOAD_RETRY_WAIT"
	TicketIDKey          = "VIDEO_UPLOAD_TICKET_ID"
	FileNameKey          = "VIDEO_UPLOAD_FILE_NAME"
	MethodURLKey         = "VIMEO_API_METHOD_URL"
	ConsumerKeyKey       = "VIMEO_CONSUMER_KEY"
	ConsumerSecretKey    = "VIMEO_CONSUMER_SECRET"
	AccessTokenKey       = "VIMEO_ACCESS_TOKEN"
	AccessTokenSecretKey = "VIMEO_ACCESS_TOKEN_SECRET"
	AWSRegionKey         = "AWS_REGION"
	AWSAccessKeyIDKey    = "AWS_ACCESS_KEY_ID"
	AWSSecretKey         = "AWS_SECRET_ACCESS_KEY"
	S3EndpointKey        = "VIDEO_UPLOAD_S3_ENDPOINT"
	VerboseKey           = "VERBOSE"
)

const (
	defaultChunkSize   = "1MB"
	defaultMaxAttempts = 3
	defaultRetryWait   = "2s"
)

// Inputs are the raw values of the environment variables.
type Inputs struct {
	Endpoint    string `env:"VIDEO_UPLOAD_ENDPOINT,required"`
	Source      string `env:"VIDEO_UPLOAD_SOURCE,required"`
	ContentType string `env:"VIDEO_UPLOAD_CONTENT_TYPE"`
	ChunkSize   string `env:"VIDEO_UPLOAD_CHUNK_SIZE"`
	MaxAttempts int    `env:"VIDEO_UPLOAD_MAX_ATTEMPTS"`
	RetryWait   string `env:"VIDEO_UPLOAD_RETRY_WAIT"`

	TicketID  string `env:"VIDEO_UPLOAD_TICKET_ID"`
	FileName  string `env:"VIDEO_UPLOAD_FILE_NAME"`
	MethodURL string `env:"VIMEO_API_METHOD_URL"`

	ConsumerKey       stepconf.Secret `env:"VIMEO_CONSUMER_KEY,required"`
	ConsumerSecret    stepconf.Secret `env:"VIMEO_CONSUMER_SECRET,required"`
	AccessToken       stepconf.Secret `env:"VIMEO_ACCESS_TOKEN,required"`
	AccessTokenSecret stepconf.Secret `env:"VIMEO_ACCESS_TOKEN_SECRET,required"`

	AWSRegion          string          `env:"AWS_REGION"`
	AWSAccessKeyID     stepconf.Secret `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey stepconf.Secret `env:"AWS_SECRET_ACCESS_KEY"`
	S3Endpoint         string          `env:"VIDEO_UPLOAD_S3_ENDPOINT"`

	Verbose bool `env:"VERBOSE"`
}

// Config is the validated configuration.
type Config struct {
	Inputs
	ChunkSizeBytes    int64
	RetryWaitDuration time.Duration
}

// Load parses the inputs from envRepo. Unset variables keep their defaults.
func Load(envRepo env.Repository) (Config, error) {
	inputs := Inputs{
		ChunkSize:   defaultChunkSize,
		MaxAttempts: defaultMaxAttempts,
		RetryWait:   defaultRetryWait,
		MethodURL:   vimeo.DefaultMethodURL,
	}
	if err := stepconf.NewInputParser(envRepo).Parse(&inputs); err != nil {
		return Config{}, err
	}

	var errs []error
	chunkSize, err := units.RAMInBytes(inputs.ChunkSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", ChunkSizeKey, err))
	} else if chunkSize <= 0 {
		errs = append(errs, fmt.Errorf("%s: size must be positive: %s", ChunkSizeKey, inputs.ChunkSize))
	}

	if inputs.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("%s: must not be negative: %d", MaxAttemptsKey, inputs.MaxAttempts))
	}

	retryWait, err := time.ParseDuration(inputs.RetryWait)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", RetryWaitKey, err))
	} else if retryWait < 0 {
		errs = append(errs, fmt.Errorf("%s: must not be negative: %s", RetryWaitKey, retryWait))
	}

	if strings.Count(inputs.MethodURL, "%s") != 1 {
		errs = append(errs, fmt.Errorf("%s must contain exactly one %%s placeholder: %s", MethodURLKey, inputs.MethodURL))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return Config{
		Inputs:            inputs,
		ChunkSizeBytes:    chunkSize,
		RetryWaitDuration: retryWait,
	}, nil
}

// Print prints the inputs with secrets redacted.
func (c Config) Print() {
	stepconf.Print(c.Inputs)
}

// UploadConfig returns the chunk upload settings.
func (c Config) UploadConfig() chunkupload.Config {
	config := chunkupload.DefaultConfig()
	config.ChunkSize = c.ChunkSizeBytes
	config.MaxAttempts = c.MaxAttempts
	config.RetryWait = c.RetryWaitDuration
	return config
}

// ClientParams returns the parameters of the signing Vimeo client.
func (c Config) ClientParams() vimeo.ClientParams {
	return vimeo.ClientParams{
		Credentials: vimeo.Credentials{
			ConsumerKey:       string(c.ConsumerKey),
			ConsumerSecret:    string(c.ConsumerSecret),
			AccessToken:       string(c.AccessToken),
			AccessTokenSecret: string(c.AccessTokenSecret),
		},
		MethodURL: c.MethodURL,
		Upload:    c.UploadConfig(),
	}
}

// ProviderParams returns the parameters of the payload source provider.
func (c Config) ProviderParams() source.ProviderParams {
	return source.ProviderParams{
		ContentType: c.ContentType,
		S3: source.S3Params{
			Region:          c.AWSRegion,
			AccessKeyID:     string(c.AWSAccessKeyID),
			SecretAccessKey: string(c.AWSSecretAccessKey),
			Endpoint:        c.S3Endpoint,
		},
	}
}
