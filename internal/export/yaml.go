package export

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/alienxp03/dbate/internal/core"
)

// YAMLExporter exports debates to YAML format.
type YAMLExporter struct{}

// Export writes the debate as YAML.
func (e *YAMLExporter) Export(view *core.DebateView, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(view); err != nil {
		return err
	}
	return encoder.Close()
}

// FileExtension returns the file extension for YAML.
func (e *YAMLExporter) FileExtension() string {
	return "yaml"
}

// ContentType returns the MIME type for YAML.
func (e *YAMLExporter) ContentType() string {
	return "application/yaml"
}
