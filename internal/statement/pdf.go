package statement

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

// RenderPDF writes the document as an A4 PDF. Creation dates are pinned so
// the bytes depend only on the document.
func RenderPDF(w io.Writer, doc Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("tesouraria", true)
	epoch := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	pdf.SetCreationDate(epoch)
	pdf.SetModificationDate(epoch)
	pdf.SetCatalogSort(true)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, block := range doc.Blocks {
		switch block.Kind {
		case KindTitle:
			pdf.SetFont("Arial", "B", 16)
			pdf.CellFormat(0, 10, tr(block.Text), "", 1, "C", false, 0, "")
		case KindLine:
			pdf.SetFont("Arial", "", 12)
			pdf.SetFillColor(230, 240, 255)
			pdf.CellFormat(0, 10, tr(block.Text), "", 1, "L", true, 0, "")
		case KindEmphasis:
			pdf.SetFont("Arial", "B", 12)
			pdf.CellFormat(0, 10, tr(block.Text), "1", 1, "L", false, 0, "")
		case KindHeading:
			pdf.SetFont("Arial", "B", 14)
			pdf.CellFormat(0, 10, tr(block.Text), "", 1, "L", false, 0, "")
		case KindSpacer:
			pdf.Ln(10)
		case KindTable:
			if block.Table == nil {
				continue
			}
			pdf.SetFont("Arial", "", 10)
			for _, col := range block.Table.Columns {
				pdf.CellFormat(col.Width, 7, tr(col.Title), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
			for _, row := range block.Table.Rows {
				for i, col := range block.Table.Columns {
					cell := ""
					if i < len(row) {
						cell = row[i]
					}
					pdf.CellFormat(col.Width, 7, tr(cell), "1", 0, "L", false, 0, "")
				}
				pdf.Ln(-1)
			}
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}
