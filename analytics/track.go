// Package analytics reports upload outcomes when running as a Bitrise step.
package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-videoupload/chunkupload"
)

// TrackerFactory creates the tracker events are sent through.
type TrackerFactory func(logger log.Logger, properties analytics.Properties) analytics.Tracker

const (
	StepExecutionIDEnvKey = "BITRISE_STEP_EXECUTION_ID"
	StepExecutionID       = "step_execution_id"
)

const (
	eventUploadFinished = "video_upload_finished"
	eventUploadFailed   = "video_upload_failed"
)

// ErrNoStepExecutionID is returned outside of step executions, uploads are not tracked there.
var ErrNoStepExecutionID = errors.New("no step execution ID found")

// UploadTracker sends upload events.
type UploadTracker struct {
	tracker analytics.Tracker
	logger  log.Logger
}

// NewUploadTracker creates a tracker tagging every event with the step execution and build.
func NewUploadTracker(repository env.Repository, logger log.Logger, trackerFactory TrackerFactory) (*UploadTracker, error) {
	stepExecutionID := repository.Get(StepExecutionIDEnvKey)
	if stepExecutionID == "" {
		return nil, ErrNoStepExecutionID
	}

	p := analytics.Properties{
		StepExecutionID: stepExecutionID,
		"build_slug":    repository.Get("BITRISE_BUILD_SLUG"),
		"app_slug":      repository.Get("BITRISE_APP_SLUG"),
		"workflow":      repository.Get("BITRISE_TRIGGERED_WORKFLOW_ID"),
		"is_pr_build":   repository.Get("IS_PR") == "true",
	}
	return &UploadTracker{
		tracker: trackerFactory(logger, p),
		logger:  logger,
	}, nil
}

// NewDefaultUploadTracker sends the events to the default analytics backend.
func NewDefaultUploadTracker(repository env.Repository, logger log.Logger) (*UploadTracker, error) {
	return NewUploadTracker(repository, logger, func(logger log.Logger, properties analytics.Properties) analytics.Tracker {
		return analytics.NewDefaultTracker(logger, properties)
	})
}

// LogUploadFinished ...
func (t *UploadTracker) LogUploadFinished(result chunkupload.Result, contentType string) {
	properties := resultProperties(result)
	properties["content_type"] = contentType
	t.tracker.Enqueue(eventUploadFinished, properties)
}

// LogUploadFailed records the offset the upload stopped at.
func (t *UploadTracker) LogUploadFailed(result chunkupload.Result, contentLength int64, err error) {
	properties := resultProperties(result)
	properties["content_length"] = contentLength
	properties["error"] = errorKind(err)
	t.tracker.Enqueue(eventUploadFailed, properties)
}

// Wait blocks until the queued events are sent.
func (t *UploadTracker) Wait() {
	t.tracker.Wait()
}

func resultProperties(result chunkupload.Result) analytics.Properties {
	return analytics.Properties{
		"upload_time_s":     result.Duration.Truncate(time.Second).Seconds(),
		"upload_size_bytes": result.ConfirmedOffset,
		"chunk_count":       result.Chunks,
		"request_count":     result.Sends,
	}
}

// errorKind maps an upload error to a stable label, the message itself may contain URLs.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, chunkupload.ErrProtocolViolation):
		return "protocol_violation"
	case errors.Is(err, chunkupload.ErrRetryBudgetExhausted):
		return "retry_budget_exhausted"
	case errors.Is(err, chunkupload.ErrVerifyFailed):
		return "verify_failed"
	case errors.Is(err, chunkupload.ErrPayloadLength):
		return "payload_length"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, chunkupload.ErrTransientSend):
		return "transient"
	default:
		return "other"
	}
}
