package statement

import (
	"time"

	"tesouraria/internal/core"
)

const (
	// Placeholder marks an inflow with no linked member.
	Placeholder = "---"

	dateLayout = "02/01/2006"
)

// Compiler builds statements. It never reads the store; callers hand it the
// rows already fetched for the period.
type Compiler struct {
	loc *time.Location
}

// NewCompiler formats transaction dates in loc.
func NewCompiler(loc *time.Location) *Compiler {
	if loc == nil {
		loc = time.UTC
	}
	return &Compiler{loc: loc}
}

// Compile lays out title, summary, inflow table and outflow table, keeping
// the rows in the order given. The closing balance comes from core.Summarize,
// the same arithmetic the aggregator uses.
func (c *Compiler) Compile(period core.Period, previous core.Money, inflows []core.TransactionView, outflows []core.Expense) Document {
	inAmounts := make([]core.Money, len(inflows))
	for i, tx := range inflows {
		inAmounts[i] = tx.Amount
	}
	outAmounts := make([]core.Money, len(outflows))
	for i, e := range outflows {
		outAmounts[i] = e.Amount
	}
	summary := core.Summarize(period, previous, inAmounts, outAmounts)

	title := "Relatorio Financeiro - " + period.Label()
	doc := Document{Title: title, Summary: summary}
	doc.Blocks = append(doc.Blocks,
		Block{Kind: KindTitle, Text: title},
		Block{Kind: KindSpacer},
		Block{Kind: KindLine, Text: "Saldo Mes Anterior: " + FormatMoney(summary.Previous)},
		Block{Kind: KindLine, Text: "(+) Total Entradas: " + FormatMoney(summary.Inflow)},
		Block{Kind: KindLine, Text: "(-) Total Saidas: " + FormatMoney(summary.Outflow)},
		Block{Kind: KindEmphasis, Text: "(=) Saldo a Transportar: " + FormatMoney(summary.Balance)},
		Block{Kind: KindSpacer},
		Block{Kind: KindHeading, Text: "Detalhe - Entradas"},
		Block{Kind: KindTable, Table: c.inflowTable(inflows)},
		Block{Kind: KindSpacer},
		Block{Kind: KindHeading, Text: "Detalhe - Saidas"},
		Block{Kind: KindTable, Table: outflowTable(outflows)},
	)
	return doc
}

func (c *Compiler) inflowTable(rows []core.TransactionView) *Table {
	t := &Table{
		Columns: []Column{{"Data", 30}, {"Codigo", 30}, {"Tipo", 30}, {"Valor", 40}},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, tx := range rows {
		code := tx.MemberCode
		if code == "" {
			code = Placeholder
		}
		kind := Placeholder
		if tx.Category != nil {
			kind = tx.Category.Label()
		}
		t.Rows = append(t.Rows, []string{
			tx.OccurredAt.In(c.loc).Format(dateLayout),
			code,
			kind,
			FormatMoney(tx.Amount),
		})
	}
	return t
}

func outflowTable(rows []core.Expense) *Table {
	t := &Table{
		Columns: []Column{{"Data", 30}, {"Descricao", 100}, {"Valor", 40}},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, e := range rows {
		t.Rows = append(t.Rows, []string{
			e.Date.Format(dateLayout),
			e.Description,
			FormatMoney(e.Amount),
		})
	}
	return t
}

// FormatMoney renders an amount as "R$ 1380.00".
func FormatMoney(m core.Money) string {
	return "R$ " + m.String()
}
