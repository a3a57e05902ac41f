// Package statement compiles a period summary and its itemized rows into a
// fixed-layout document, and renders that document as text, PDF or JSON.
package statement

import (
	"fmt"

	"tesouraria/internal/core"
)

// BlockKind tells renderers how to lay a block out.
type BlockKind string

const (
	KindTitle    BlockKind = "title"
	KindLine     BlockKind = "line"
	KindEmphasis BlockKind = "emphasis"
	KindHeading  BlockKind = "heading"
	KindTable    BlockKind = "table"
	KindSpacer   BlockKind = "spacer"
)

// Column width is in millimetres on the PDF page.
type Column struct {
	Title string  `json:"title"`
	Width float64 `json:"width"`
}

type Table struct {
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

type Block struct {
	Kind  BlockKind `json:"kind"`
	Text  string    `json:"text,omitempty"`
	Table *Table    `json:"table,omitempty"`
}

// Document is an ordered list of blocks plus the figures they were built
// from.
type Document struct {
	Title   string       `json:"title"`
	Summary core.Summary `json:"summary"`
	Blocks  []Block      `json:"blocks"`
}

// FileName is the download name of the rendered statement.
func (d Document) FileName(ext string) string {
	return fmt.Sprintf("relatorio_%d_%d.%s", int(d.Summary.Period.Month), d.Summary.Period.Year, ext)
}
