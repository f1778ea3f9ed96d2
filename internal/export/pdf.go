package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/alienxp03/dbate/internal/core"
)

// PDFExporter exports debates to PDF format.
type PDFExporter struct{}

// Export writes the debate as PDF.
func (e *PDFExporter) Export(view *core.DebateView, w io.Writer) error {
	debate := view.Debate

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// Title
	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 10, e.sanitizeText(debate.Title), "", "C", false)
	pdf.Ln(5)

	// Metadata section
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Debate Information")
	pdf.Ln(8)

	e.addMetadataRow(pdf, "ID:", core.ShortID(debate.ID)+"...")
	e.addMetadataRow(pdf, "Type:", debate.DebateType)
	e.addMetadataRow(pdf, "State:", string(debate.State))
	e.addMetadataRow(pdf, "Created:", debate.CreatedAt.Format("January 2, 2006 at 3:04 PM"))
	e.addMetadataRow(pdf, "Updated:", debate.UpdatedAt.Format("January 2, 2006 at 3:04 PM"))
	pdf.Ln(5)

	// Motion
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Motion")
	pdf.Ln(8)
	if view.Motion == nil {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No motion recorded.")
		pdf.Ln(6)
	} else {
		pdf.SetFillColor(255, 240, 200) // Light amber
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, e.sanitizeText(view.Motion.Role), "", 1, "", true, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, e.sanitizeText(view.Motion.Content), "", "", false)
	}
	pdf.Ln(5)

	// Thread
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Arguments")
	pdf.Ln(8)

	if len(view.Arguments) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No arguments recorded.")
		pdf.Ln(6)
	} else {
		roles := map[string]int{}
		for _, arg := range view.Arguments {
			if pdf.GetY() > 250 {
				pdf.AddPage()
			}

			if _, ok := roles[arg.Role]; !ok {
				roles[arg.Role] = len(roles)
			}
			if roles[arg.Role]%2 == 0 {
				pdf.SetFillColor(200, 230, 255) // Light blue
			} else {
				pdf.SetFillColor(200, 255, 200) // Light green
			}

			header := fmt.Sprintf("%s - %s", speaker(arg), arg.CreatedAt.Format("3:04 PM"))
			if seq := parentSeq(view, arg); seq > 0 {
				header += fmt.Sprintf(" - reply to #%d", seq)
			}
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(0, 7, e.sanitizeText(header), "", 1, "", true, 0, "")

			pdf.SetFont("Arial", "", 9)
			pdf.SetFillColor(255, 255, 255)
			pdf.MultiCell(0, 5, e.sanitizeText(arg.Content), "", "", false)
			pdf.Ln(5)
		}
	}

	// Footer
	pdf.SetY(-15)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 10, "Exported from dbate", "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

// FileExtension returns the file extension for PDF.
func (e *PDFExporter) FileExtension() string {
	return "pdf"
}

// ContentType returns the MIME type for PDF.
func (e *PDFExporter) ContentType() string {
	return "application/pdf"
}

func (e *PDFExporter) addMetadataRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(30, 5, label)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 5, e.sanitizeText(value))
	pdf.Ln(5)
}

// sanitizeText maps common Unicode punctuation onto the Windows-1252 range
// the core fonts can render.
func (e *PDFExporter) sanitizeText(text string) string {
	replacer := strings.NewReplacer(
		"\u2018", "'",   // Left single quote
		"\u2019", "'",   // Right single quote
		"\u201C", "\"",  // Left double quote
		"\u201D", "\"",  // Right double quote
		"\u2013", "-",   // En dash
		"\u2014", "--",  // Em dash
		"\u2026", "...", // Ellipsis
		"\u2022", "*",   // Bullet
		"\u00A0", " ",   // Non-breaking space
	)
	return replacer.Replace(text)
}
