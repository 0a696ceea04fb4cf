package schemas

import (
	"encoding/json"
	"time"
)

// -- Finding Schemas --

// Severity represents the severity level of a security finding, ranging from
// critical to informational. The values are lowercase to align with database ENUMs.
type Severity string

// Constants defining the standard severity levels for findings.
const (
	SeverityCritical Severity = "critical" // Represents a critical vulnerability.
	SeverityHigh     Severity = "high"     // Represents a high-severity vulnerability.
	SeverityMedium   Severity = "medium"   // Represents a medium-severity vulnerability.
	SeverityLow      Severity = "low"      // Represents a low-severity vulnerability.
	SeverityInfo     Severity = "info"     // Represents an informational finding.
)

// severityRank orders severities from least to most severe. Unknown values
// rank at zero, below info, so threshold comparisons treat them as reportable.
var severityRank = map[Severity]int{
	SeverityInfo:     1,
	SeverityLow:      2,
	SeverityMedium:   3,
	SeverityHigh:     4,
	SeverityCritical: 5,
}

// Rank returns the numeric ordering of a severity. Higher is more severe.
func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is at least as severe as threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return s.Rank() >= threshold.Rank()
}

// ParseSeverity normalizes a user-supplied severity string. The boolean is
// false when the input does not name a known severity level.
func ParseSeverity(raw string) (Severity, bool) {
	s := Severity(raw)
	_, ok := severityRank[s]
	return s, ok
}

// Confidence expresses how directly a tainted value was traced back to an
// attacker-controlled source.
type Confidence string

// Constants for the confidence levels attached to findings.
const (
	ConfidenceHigh   Confidence = "high"   // Direct match against a known source.
	ConfidenceMedium Confidence = "medium" // Indirect flow through a medium-trust source.
	ConfidenceLow    Confidence = "low"    // Unresolvable origin, reported conservatively.
)

// Finding encapsulates all the details of a single issue identified by a
// scan, anchored to a location in a scanned source file. This struct maps
// directly to the `findings` table in the database.
type Finding struct {
	ID     string `json:"id"`      // Unique identifier for the finding.
	ScanID string `json:"scan_id"` // The ID of the scan that produced this finding.

	// RuleID names the detector that reported the finding (e.g. "buffer-index-overread").
	RuleID string `json:"rule_id"`

	File    string `json:"file"`              // Path of the file containing the issue, relative to the scan root.
	Line    int    `json:"line"`              // 1-based line of the sink expression.
	Column  int    `json:"column"`            // 1-based column of the sink expression.
	Snippet string `json:"snippet,omitempty"` // The source line containing the sink.

	Module string `json:"module"` // The name of the analysis module that reported the finding.

	// VulnerabilityName is a descriptive name for the type of vulnerability
	// (e.g., "SQL Injection").
	VulnerabilityName string `json:"vulnerability_name"`

	Severity   Severity   `json:"severity"`   // The severity level of the finding.
	Confidence Confidence `json:"confidence"` // How directly the taint was traced.

	Description string `json:"description"` // A detailed description of the issue.

	// Evidence provides structured, machine-readable detail (matched source,
	// guard state, the tainted expression), stored as JSONB in the database.
	Evidence json.RawMessage `json:"evidence,omitempty"`

	Recommendation string   `json:"recommendation"` // Suggested steps for remediation.
	CWE            []string `json:"cwe,omitempty"`  // A list of relevant Common Weakness Enumeration (CWE) identifiers.

	// ObservedAt is the timestamp when the finding was recorded.
	ObservedAt time.Time `json:"observed_at"`
}

// ScanStats summarizes a completed scan for reporting and exit-code decisions.
type ScanStats struct {
	FilesDiscovered int           `json:"files_discovered"` // Inputs matched by discovery.
	FilesAnalyzed   int           `json:"files_analyzed"`   // Inputs successfully parsed and scanned.
	FilesSkipped    int           `json:"files_skipped"`    // Inputs skipped (unreadable, excluded by diff filter).
	ParseFailures   int           `json:"parse_failures"`   // Inputs whose parse failed outright.
	Suppressed      int           `json:"suppressed"`       // Candidate findings silenced by annotations or trusted calls.
	Duration        time.Duration `json:"duration"`         // Wall-clock scan time.
}

// ResultEnvelope is the unit handed to reporters and the findings store: one
// scan's identity, its findings, and summary statistics.
type ResultEnvelope struct {
	ScanID    string    `json:"scan_id"`
	Tool      string    `json:"tool"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Targets   []string  `json:"targets"`
	Findings  []Finding `json:"findings"`
	Stats     ScanStats `json:"stats"`
}

// CountBySeverity tallies findings per severity level.
func (e *ResultEnvelope) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, len(severityRank))
	for _, f := range e.Findings {
		counts[f.Severity]++
	}
	return counts
}

// MaxSeverity returns the most severe finding level in the envelope, or
// SeverityInfo when there are no findings.
func (e *ResultEnvelope) MaxSeverity() Severity {
	max := SeverityInfo
	for _, f := range e.Findings {
		if f.Severity.Rank() > max.Rank() {
			max = f.Severity
		}
	}
	return max
}
