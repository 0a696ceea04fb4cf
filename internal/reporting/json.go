package reporting

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// JSONReporter serializes the result envelope as indented JSON.
type JSONReporter struct {
	writer io.WriteCloser
}

func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: writer}
}

func (r *JSONReporter) Write(result *schemas.ResultEnvelope) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func (r *JSONReporter) Close() error {
	return r.writer.Close()
}
