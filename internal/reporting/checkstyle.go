package reporting

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// CheckstyleReporter emits findings as Checkstyle XML, one <file> element per
// source file, so CI plugins built for linters can ingest the results.
type CheckstyleReporter struct {
	writer io.WriteCloser
}

func NewCheckstyleReporter(writer io.WriteCloser) *CheckstyleReporter {
	return &CheckstyleReporter{writer: writer}
}

func checkstyleSeverity(s schemas.Severity) string {
	switch s {
	case schemas.SeverityCritical, schemas.SeverityHigh:
		return "error"
	case schemas.SeverityMedium:
		return "warning"
	default:
		return "info"
	}
}

func (r *CheckstyleReporter) Write(result *schemas.ResultEnvelope) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("checkstyle")
	root.CreateAttr("version", "4.3")

	byFile := make(map[string][]schemas.Finding)
	for _, f := range result.Findings {
		byFile[f.File] = append(byFile[f.File], f)
	}
	files := make([]string, 0, len(byFile))
	for file := range byFile {
		files = append(files, file)
	}
	sort.Strings(files)

	for _, file := range files {
		fileEl := root.CreateElement("file")
		fileEl.CreateAttr("name", file)
		for _, f := range byFile[file] {
			errEl := fileEl.CreateElement("error")
			errEl.CreateAttr("line", strconv.Itoa(f.Line))
			errEl.CreateAttr("column", strconv.Itoa(f.Column))
			errEl.CreateAttr("severity", checkstyleSeverity(f.Severity))
			errEl.CreateAttr("message", fmt.Sprintf("%s: %s", f.VulnerabilityName, f.Description))
			errEl.CreateAttr("source", f.RuleID)
		}
	}

	doc.Indent(2)
	_, err := doc.WriteTo(r.writer)
	return err
}

func (r *CheckstyleReporter) Close() error {
	return r.writer.Close()
}
