// Package reporting renders scan results in the formats the CLI exposes:
// human console output, JSON, SARIF 2.1.0, and Checkstyle XML.
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// Reporter defines the interface for writing scan results to an output.
type Reporter interface {
	// Write renders a single result envelope.
	Write(result *schemas.ResultEnvelope) error
	// Close finalizes the report and closes any underlying resources.
	Close() error
}

// nopWriteCloser wraps an io.Writer with a no-op Close so stdout is never
// closed underneath the process.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for the given format writing to outputPath, or to
// stdout when the path is empty or "stdout".
func New(format, outputPath, toolVersion string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	r, err := forWriter(format, writer, toolVersion)
	if err != nil && !isStdOut {
		writer.Close()
	}
	return r, err
}

// forWriter builds a reporter over an explicit writer. Tests use it with
// in-memory buffers.
func forWriter(format string, writer io.WriteCloser, toolVersion string) (Reporter, error) {
	switch format {
	case "console":
		return NewConsoleReporter(writer), nil
	case "json":
		return NewJSONReporter(writer), nil
	case "sarif":
		return NewSARIFReporter(writer, toolVersion), nil
	case "checkstyle":
		return NewCheckstyleReporter(writer), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
