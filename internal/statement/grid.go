package statement

// Grid flattens the document into spreadsheet rows: one row per text block,
// a header row plus one row per table row, and an empty row per spacer.
func (d Document) Grid() [][]string {
	var out [][]string
	for _, b := range d.Blocks {
		switch b.Kind {
		case KindTable:
			if b.Table == nil {
				continue
			}
			header := make([]string, len(b.Table.Columns))
			for i, c := range b.Table.Columns {
				header[i] = c.Title
			}
			out = append(out, header)
			for _, row := range b.Table.Rows {
				out = append(out, append([]string(nil), row...))
			}
		case KindSpacer:
			out = append(out, []string{})
		default:
			out = append(out, []string{b.Text})
		}
	}
	return out
}
