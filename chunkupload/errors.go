package chunkupload

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientSend marks a failed request that may succeed when sent again with the same chunk.
	ErrTransientSend = errors.New("transient send failure")

	// ErrVerifyFailed marks a verification probe that did not report the received bytes.
	// The chunk already went out, so it is not resent.
	ErrVerifyFailed = errors.New("verification failed")

	// ErrShortWrite marks a chunk of which the server confirmed fewer bytes than were sent.
	ErrShortWrite = errors.New("short write")

	// ErrProtocolViolation marks a server answer that cannot be reconciled with what was sent.
	// It is never retried.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrRetryBudgetExhausted is returned once a chunk used up all of its attempts.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

	// ErrPayloadLength is returned when the payload does not match the declared content length.
	ErrPayloadLength = errors.New("payload length mismatch")
)

// StatusError is returned when the endpoint answers with an unexpected HTTP status.
// Err classifies the failure, nil means ErrTransientSend.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.Err == nil {
		return ErrTransientSend
	}
	return e.Err
}

// UploadError is returned when an upload session is aborted.
// LastConfirmedOffset is the number of bytes the server was last known to hold.
type UploadError struct {
	LastConfirmedOffset int64
	Err                 error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload aborted at byte %d: %s", e.LastConfirmedOffset, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func protocolViolation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
}
