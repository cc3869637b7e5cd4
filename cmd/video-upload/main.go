package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-videoupload/analytics"
	"github.com/bitrise-io/go-videoupload/chunkupload"
	"github.com/bitrise-io/go-videoupload/config"
	"github.com/bitrise-io/go-videoupload/export"
	"github.com/bitrise-io/go-videoupload/source"
	"github.com/bitrise-io/go-videoupload/vimeo"
	"github.com/docker/go-units"
)

type outputExporter interface {
	ExportUploadOutputs(outputs export.UploadOutputs) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.NewLogger()
	envRepo := env.NewRepository()
	exporter := export.NewExporter(command.NewFactory(envRepo))

	if err := run(ctx, envRepo, &exporter, logger); err != nil {
		logger.Errorf("%s", err)

		var uploadErr *chunkupload.UploadError
		if errors.As(err, &uploadErr) {
			logger.Warnf("The server holds the first %d bytes of the video", uploadErr.LastConfirmedOffset)
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, envRepo env.Repository, exporter outputExporter, logger log.Logger) error {
	cfg, err := config.Load(envRepo)
	if err != nil {
		return fmt.Errorf("failed to parse inputs: %w", err)
	}
	logger.EnableDebugLog(cfg.Verbose)
	cfg.Print()
	logger.Println()

	tracker, err := analytics.NewDefaultUploadTracker(envRepo, logger)
	if err != nil {
		logger.Debugf("Upload is not tracked: %s", err)
	} else {
		defer tracker.Wait()
	}

	provider := source.NewProvider(cfg.ProviderParams(), logger)
	payload, err := provider.Open(ctx, cfg.Source)
	if err != nil {
		return fmt.Errorf("failed to open video: %w", err)
	}
	defer func() {
		if err := payload.Close(); err != nil {
			logger.Warnf("Failed to clean up video: %s", err)
		}
	}()

	client, err := vimeo.NewClient(cfg.ClientParams(), logger)
	if err != nil {
		return err
	}

	logger.Infof("Uploading %s (%s, %s)", payload.Name, units.HumanSizeWithPrecision(float64(payload.Size), 3), payload.ContentType)
	result, err := client.UploadVideo(ctx, cfg.Endpoint, payload.Body, payload.ContentType, payload.Size)
	if err != nil {
		if tracker != nil {
			tracker.LogUploadFailed(result, payload.Size, err)
		}
		return fmt.Errorf("upload failed: %w", err)
	}
	if tracker != nil {
		tracker.LogUploadFinished(result, payload.ContentType)
	}
	logger.Donef("Uploaded %s in %s (%d chunks, %d requests)",
		units.HumanSizeWithPrecision(float64(result.ConfirmedOffset), 3), result.Duration.Round(time.Millisecond), result.Chunks, result.Sends)

	outputs := export.UploadOutputs{
		ConfirmedBytes: result.ConfirmedOffset,
		ContentType:    payload.ContentType,
	}

	if cfg.TicketID != "" {
		logger.Println()
		response, err := completeTicket(ctx, client, cfg.TicketID, fileName(cfg, payload), logger)
		if err != nil {
			return err
		}
		outputs.TicketResponse = response.String()
	}

	if err := exporter.ExportUploadOutputs(outputs); err != nil {
		return fmt.Errorf("failed to export outputs: %w", err)
	}
	return nil
}

func completeTicket(ctx context.Context, client *vimeo.Client, ticketID, fileName string, logger log.Logger) (vimeo.TicketResponse, error) {
	logger.Infof("Verifying uploaded chunks of ticket %s", ticketID)
	verified, err := client.VerifyChunks(ctx, ticketID)
	if err != nil {
		return vimeo.TicketResponse{}, fmt.Errorf("failed to verify chunks: %w", err)
	}
	logger.Printf("Verify response (%d): %s", verified.StatusCode, verified.Body)

	logger.Infof("Completing upload of %s", fileName)
	completed, err := client.CompleteUpload(ctx, ticketID, fileName)
	if err != nil {
		return vimeo.TicketResponse{}, fmt.Errorf("failed to complete upload: %w", err)
	}
	if completed.StatusCode >= 300 {
		logger.Warnf("Complete response (%d): %s", completed.StatusCode, completed.Body)
	} else {
		logger.Donef("Complete response (%d): %s", completed.StatusCode, completed.Body)
	}
	return completed, nil
}

func fileName(cfg config.Config, payload *source.Payload) string {
	if cfg.FileName != "" {
		return cfg.FileName
	}
	return payload.Name
}
