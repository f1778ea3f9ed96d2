package export

import (
	"encoding/json"
	"io"

	"github.com/alienxp03/dbate/internal/core"
)

// JSONExporter exports debates to JSON format.
type JSONExporter struct{}

// Export writes the debate as JSON.
func (e *JSONExporter) Export(view *core.DebateView, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(view)
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return "json"
}

// ContentType returns the MIME type for JSON.
func (e *JSONExporter) ContentType() string {
	return "application/json"
}
