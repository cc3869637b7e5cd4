// Package export exposes upload results to subsequent steps through envman.
package export

import (
	"fmt"
	"strconv"

	"github.com/bitrise-io/go-utils/v2/command"
)

// Output keys.
const (
	ConfirmedBytesKey = "VIDEO_UPLOAD_CONFIRMED_BYTES"
	ContentTypeKey    = "VIDEO_UPLOAD_CONTENT_TYPE_USED"
	TicketResponseKey = "VIDEO_UPLOAD_TICKET_RESPONSE"
)

// UploadOutputs are the values an upload run exposes.
type UploadOutputs struct {
	ConfirmedBytes int64
	ContentType    string
	// TicketResponse is the raw answer of the completion call, empty when no ticket was given.
	TicketResponse string
}

// Exporter ...
type Exporter struct {
	cmdFactory command.Factory
}

// NewExporter ...
func NewExporter(cmdFactory command.Factory) Exporter {
	return Exporter{
		cmdFactory: cmdFactory,
	}
}

// ExportOutput is used for exposing values for other steps.
// Regular env vars are isolated between steps, so instead of calling `os.Setenv()`, use this to explicitly expose
// a value for subsequent steps.
func (e *Exporter) ExportOutput(key, value string) error {
	cmd := e.cmdFactory.Create("envman", []string{"add", "--key", key, "--value", value}, nil)
	return runExport(cmd)
}

// ExportOutputNoExpand works like ExportOutput but does not expand environment variables in the value.
// Server responses go through this, their content is beyond our control.
func (e *Exporter) ExportOutputNoExpand(key, value string) error {
	cmd := e.cmdFactory.Create("envman", []string{"add", "--key", key, "--value", value, "--no-expand"}, nil)
	return runExport(cmd)
}

// ExportSecretOutput is used for exposing secret values for other steps.
func (e *Exporter) ExportSecretOutput(key, value string) error {
	cmd := e.cmdFactory.Create("envman", []string{"add", "--key", key, "--value", value, "--sensitive"}, nil)
	return runExport(cmd)
}

// ExportUploadOutputs exports every upload output, the ticket response only when there is one.
func (e *Exporter) ExportUploadOutputs(outputs UploadOutputs) error {
	if err := e.ExportOutput(ConfirmedBytesKey, strconv.FormatInt(outputs.ConfirmedBytes, 10)); err != nil {
		return fmt.Errorf("export %s: %w", ConfirmedBytesKey, err)
	}
	if err := e.ExportOutput(ContentTypeKey, outputs.ContentType); err != nil {
		return fmt.Errorf("export %s: %w", ContentTypeKey, err)
	}
	if outputs.TicketResponse != "" {
		if err := e.ExportOutputNoExpand(TicketResponseKey, outputs.TicketResponse); err != nil {
			return fmt.Errorf("export %s: %w", TicketResponseKey, err)
		}
	}
	return nil
}

func runExport(cmd command.Command) error {
	out, err := cmd.RunAndReturnTrimmedCombinedOutput()
	if err != nil {
		return fmt.Errorf("exporting output with envman failed: %s, output: %s", err, out)
	}
	return nil
}
