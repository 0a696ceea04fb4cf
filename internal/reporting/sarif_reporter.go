package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/observability"
	"github.com/xkilldash9x/lancet/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "lancet"
	ToolInfoURI  = "https://github.com/xkilldash9x/lancet"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// SARIFReporter implements the Reporter interface for the SARIF 2.1.0 format.
// It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure and the rule map.
	mu sync.Mutex
	// seenRules tracks which detector rule IDs already have a descriptor.
	seenRules map[string]bool
}

// NewSARIFReporter creates a new reporter that writes SARIF output. The tool
// version is injected so the report matches the binary that produced it.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string) *SARIFReporter {
	logger := observability.GetLogger().Named("sarif_reporter")
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						// Empty slices (not nil) so the JSON carries [].
						Rules: []*sarif.ReportingDescriptor{},
					},
				},
				Results: []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer:    writer,
		logger:    logger,
		log:       log,
		seenRules: make(map[string]bool),
	}
}

// Write converts a ResultEnvelope into SARIF results and adds them to the log.
func (r *SARIFReporter) Write(result *schemas.ResultEnvelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]

	for _, finding := range result.Findings {
		r.ensureRule(finding)

		messageText := finding.Description
		if messageText == "" {
			messageText = finding.VulnerabilityName
		}

		run.Results = append(run.Results, &sarif.Result{
			RuleID:    finding.RuleID,
			Message:   &sarif.Message{Text: pString(messageText)},
			Level:     mapSeverityToSARIFLevel(finding.Severity),
			Locations: createLocations(finding),
		})
	}

	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	r.logger.Debug("finalizing SARIF report",
		zap.Int("total_results", len(run.Results)),
		zap.Int("total_rules", len(run.Tool.Driver.Rules)),
	)

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")

	encodeErr := encoder.Encode(r.log)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// ensureRule registers a descriptor for the finding's rule ID on first sight.
// Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(finding schemas.Finding) {
	if r.seenRules[finding.RuleID] {
		return
	}
	r.seenRules[finding.RuleID] = true

	markdownHelp := fmt.Sprintf("**Vulnerability:** %s\n\n**Description:**\n%s\n\n**Recommendation:**\n%s",
		finding.VulnerabilityName, finding.Description, finding.Recommendation)

	driver := r.log.Runs[0].Tool.Driver
	driver.Rules = append(driver.Rules, &sarif.ReportingDescriptor{
		ID:               finding.RuleID,
		Name:             pString(finding.VulnerabilityName),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(finding.VulnerabilityName)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString(finding.Description)},
		Help: &sarif.MultiformatMessageString{
			Text:     pString(finding.Recommendation),
			Markdown: pString(markdownHelp),
		},
		Properties: &sarif.PropertyBag{
			"tags": []string{"security", "lancet"},
			"CWE":  finding.CWE,
		},
	})
}

// createLocations converts finding details into SARIF location objects.
func createLocations(finding schemas.Finding) []*sarif.Location {
	region := &sarif.Region{}
	if finding.Line > 0 {
		region.StartLine = pInt(finding.Line)
	}
	if finding.Column > 0 {
		region.StartColumn = pInt(finding.Column)
	}
	if finding.Snippet != "" {
		region.Snippet = &sarif.ArtifactContent{Text: pString(finding.Snippet)}
	}

	return []*sarif.Location{{
		PhysicalLocation: &sarif.PhysicalLocation{
			ArtifactLocation: &sarif.ArtifactLocation{
				URI: pString(finding.File),
			},
			Region: region,
		},
	}}
}

// mapSeverityToSARIFLevel converts lancet's severity to the SARIF standard.
func mapSeverityToSARIFLevel(severity schemas.Severity) sarif.Level {
	switch strings.ToLower(string(severity)) {
	case "critical", "high":
		return sarif.LevelError
	case "medium":
		return sarif.LevelWarning
	default:
		return sarif.LevelNote
	}
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}

func pInt(i int) *int {
	return &i
}
