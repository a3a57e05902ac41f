package statement

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"
)

// RenderText writes the document as plain text. The output depends only on
// the document, so equal documents render to equal bytes.
func RenderText(w io.Writer, doc Document) error {
	var b bytes.Buffer
	for _, block := range doc.Blocks {
		switch block.Kind {
		case KindTitle:
			b.WriteString(block.Text + "\n")
			b.WriteString(strings.Repeat("=", utf8.RuneCountInString(block.Text)) + "\n")
		case KindLine:
			b.WriteString(block.Text + "\n")
		case KindEmphasis:
			b.WriteString(strings.Repeat("-", utf8.RuneCountInString(block.Text)) + "\n")
			b.WriteString(block.Text + "\n")
		case KindHeading:
			b.WriteString(block.Text + "\n")
		case KindSpacer:
			b.WriteString("\n")
		case KindTable:
			writeTable(&b, block.Table)
		}
	}
	_, err := w.Write(b.Bytes())
	return err
}

func writeTable(b *bytes.Buffer, t *Table) {
	if t == nil {
		return
	}
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = utf8.RuneCountInString(c.Title)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], utf8.RuneCountInString(cell))
			}
		}
	}

	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Title
	}
	writeRow(b, header, widths)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(b, sep, widths)
	for _, row := range t.Rows {
		writeRow(b, row, widths)
	}
}

func writeRow(b *bytes.Buffer, cells []string, widths []int) {
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(cell)
		if i < len(widths)-1 {
			b.WriteString(strings.Repeat(" ", w-utf8.RuneCountInString(cell)))
		}
	}
	b.WriteString("\n")
}
