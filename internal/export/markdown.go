package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/alienxp03/dbate/internal/core"
)

// MarkdownExporter exports debates to Markdown format.
type MarkdownExporter struct{}

// Export writes the debate as Markdown.
func (e *MarkdownExporter) Export(view *core.DebateView, w io.Writer) error {
	debate := view.Debate
	var sb strings.Builder

	// Title
	sb.WriteString(fmt.Sprintf("# %s\n\n", debate.Title))

	// Metadata
	sb.WriteString("## Debate Information\n\n")
	sb.WriteString(fmt.Sprintf("- **ID:** `%s`\n", debate.ID))
	sb.WriteString(fmt.Sprintf("- **Type:** %s\n", debate.DebateType))
	sb.WriteString(fmt.Sprintf("- **State:** %s\n", debate.State))
	sb.WriteString(fmt.Sprintf("- **Created:** %s\n", debate.CreatedAt.Format("January 2, 2006 at 3:04 PM")))
	if debate.UpdatedAt.After(debate.CreatedAt) {
		sb.WriteString(fmt.Sprintf("- **Last activity:** %s\n",
			strings.TrimSpace(humanize.RelTime(debate.CreatedAt, debate.UpdatedAt, "after creation", ""))))
	}
	sb.WriteString(fmt.Sprintf("- **Arguments:** %s\n", humanize.Comma(int64(len(view.Arguments)))))
	sb.WriteString("\n")

	// Motion
	sb.WriteString("## Motion\n\n")
	if view.Motion == nil {
		sb.WriteString("*No motion recorded.*\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("*%s, %s*\n\n", view.Motion.Role, view.Motion.CreatedAt.Format("3:04 PM")))
		sb.WriteString(view.Motion.Content)
		sb.WriteString("\n\n")
	}

	// Thread
	sb.WriteString("## Arguments\n\n")
	if len(view.Arguments) == 0 {
		sb.WriteString("*No arguments recorded.*\n\n")
	} else {
		for _, arg := range view.Arguments {
			sb.WriteString(fmt.Sprintf("### %s\n\n", speaker(arg)))
			if seq := parentSeq(view, arg); seq > 0 {
				sb.WriteString(fmt.Sprintf("*In reply to #%d, %s*\n\n", seq, arg.CreatedAt.Format("3:04 PM")))
			} else {
				sb.WriteString(fmt.Sprintf("*%s*\n\n", arg.CreatedAt.Format("3:04 PM")))
			}
			sb.WriteString(arg.Content)
			sb.WriteString("\n\n---\n\n")
		}
	}

	// Footer
	sb.WriteString("*Exported from dbate*\n")

	_, err := w.Write([]byte(sb.String()))
	return err
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return "md"
}

// ContentType returns the MIME type for Markdown.
func (e *MarkdownExporter) ContentType() string {
	return "text/markdown; charset=utf-8"
}
