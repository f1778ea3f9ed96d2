// Package export handles exporting debates to various formats.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/alienxp03/dbate/internal/core"
)

// Format represents an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// Formats lists the supported export formats.
func Formats() []Format {
	return []Format{FormatMarkdown, FormatJSON, FormatYAML, FormatPDF}
}

// Exporter defines the interface for exporting debates.
type Exporter interface {
	Export(view *core.DebateView, w io.Writer) error
	FileExtension() string
	ContentType() string
}

// GetExporter returns an exporter for the given format. "md" and "yml" are
// accepted as aliases.
func GetExporter(format Format) (Exporter, error) {
	switch Format(strings.ToLower(string(format))) {
	case FormatMarkdown, "md":
		return &MarkdownExporter{}, nil
	case FormatPDF:
		return &PDFExporter{}, nil
	case FormatJSON:
		return &JSONExporter{}, nil
	case FormatYAML, "yml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// GenerateFilename creates a filename for the export.
func GenerateFilename(debate *core.Debate, ext string) string {
	// Sanitize title for filename
	title := debate.Title
	if len(title) > 50 {
		title = title[:50]
	}

	// Replace unsafe characters
	replacer := strings.NewReplacer(
		" ", "_",
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	title = replacer.Replace(title)

	timestamp := debate.CreatedAt.Format("20060102")
	return fmt.Sprintf("debate_%s_%s.%s", timestamp, title, ext)
}

// speaker formats the author line of an argument.
func speaker(arg *core.Argument) string {
	return fmt.Sprintf("#%d %s (%s)", arg.Seq, arg.Role, arg.Type)
}

// parentSeq returns the sequence number of the argument's parent within the
// exported thread, or 0 if the parent is not part of it.
func parentSeq(view *core.DebateView, arg *core.Argument) int64 {
	if arg.ParentID == "" {
		return 0
	}
	if view.Motion != nil && view.Motion.ID == arg.ParentID {
		return view.Motion.Seq
	}
	for _, a := range view.Arguments {
		if a.ID == arg.ParentID {
			return a.Seq
		}
	}
	return 0
}
