package reporting

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// ConsoleReporter writes a human readable summary of the scan, one finding
// per block, followed by severity totals.
type ConsoleReporter struct {
	writer io.WriteCloser
}

func NewConsoleReporter(writer io.WriteCloser) *ConsoleReporter {
	return &ConsoleReporter{writer: writer}
}

var severityColors = map[schemas.Severity]*color.Color{
	schemas.SeverityCritical: color.New(color.FgRed, color.Bold),
	schemas.SeverityHigh:     color.New(color.FgRed),
	schemas.SeverityMedium:   color.New(color.FgYellow),
	schemas.SeverityLow:      color.New(color.FgCyan),
	schemas.SeverityInfo:     color.New(color.FgWhite),
}

func severityLabel(s schemas.Severity) string {
	c, ok := severityColors[s]
	if !ok {
		return string(s)
	}
	return c.Sprint(string(s))
}

// Write renders the envelope's findings and a summary line.
func (r *ConsoleReporter) Write(result *schemas.ResultEnvelope) error {
	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	if len(result.Findings) == 0 {
		if _, err := fmt.Fprintf(r.writer, "%s no findings\n", bold.Sprint("lancet:")); err != nil {
			return err
		}
		return r.writeSummary(result)
	}

	for _, f := range result.Findings {
		header := fmt.Sprintf("%s:%d:%d", f.File, f.Line, f.Column)
		if _, err := fmt.Fprintf(r.writer, "%s  %s  %s\n", severityLabel(f.Severity), bold.Sprint(header), f.VulnerabilityName); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(r.writer, "  %s\n", f.Description); err != nil {
			return err
		}
		if f.Snippet != "" {
			if _, err := fmt.Fprintf(r.writer, "  %s\n", dim.Sprint(f.Snippet)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(r.writer, "  %s rule=%s confidence=%s\n\n", dim.Sprint("->"), f.RuleID, f.Confidence); err != nil {
			return err
		}
	}

	return r.writeSummary(result)
}

func (r *ConsoleReporter) writeSummary(result *schemas.ResultEnvelope) error {
	counts := result.CountBySeverity()

	// Stable summary order, highest first.
	order := []schemas.Severity{
		schemas.SeverityCritical,
		schemas.SeverityHigh,
		schemas.SeverityMedium,
		schemas.SeverityLow,
		schemas.SeverityInfo,
	}
	parts := make([]string, 0, len(order))
	for _, sev := range order {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", severityLabel(sev), n))
		}
	}

	_, err := fmt.Fprintf(r.writer,
		"scanned %d files (%d skipped, %d parse failures) in %s; %d findings, %d suppressed\n",
		result.Stats.FilesAnalyzed, result.Stats.FilesSkipped, result.Stats.ParseFailures,
		result.Stats.Duration, len(result.Findings), result.Stats.Suppressed)
	if err != nil {
		return err
	}
	for _, p := range parts {
		if _, err := fmt.Fprintf(r.writer, "  %s\n", p); err != nil {
			return err
		}
	}
	return nil
}

func (r *ConsoleReporter) Close() error {
	return r.writer.Close()
}
