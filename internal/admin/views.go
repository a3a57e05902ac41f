package admin

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"tesouraria/internal/core"
	"tesouraria/internal/statement"
)

func renderSummary(w io.Writer, s core.Summary) error {
	fmt.Fprint(w, pterm.DefaultSection.Sprintf("Resumo %s", s.Period.Label()))
	data := pterm.TableData{
		{"", "Valor"},
		{"Saldo anterior", statement.FormatMoney(s.Previous)},
		{"Entradas", pterm.Green(statement.FormatMoney(s.Inflow))},
		{"Saidas", pterm.Red(statement.FormatMoney(s.Outflow))},
		{"Saldo", statement.FormatMoney(s.Balance)},
	}
	return renderTable(w, data)
}

func renderTransactions(w io.Writer, txs []core.TransactionView, loc *time.Location) error {
	if len(txs) == 0 {
		fmt.Fprint(w, pterm.Info.Sprintln("No pending transactions"))
		return nil
	}
	data := pterm.TableData{{"ID", "Data", "Pagador", "Membro", "Valor"}}
	for _, tx := range txs {
		member := "-"
		if tx.MemberCode != "" {
			member = fmt.Sprintf("%s %s", tx.MemberCode, tx.MemberName)
		}
		data = append(data, []string{
			strconv.FormatInt(tx.ID, 10),
			tx.OccurredAt.In(loc).Format("02/01/2006 15:04"),
			tx.PayerName,
			member,
			statement.FormatMoney(tx.Amount),
		})
	}
	if err := renderTable(w, data); err != nil {
		return err
	}
	fmt.Fprint(w, pterm.Info.Sprintf("Total: %d transactions\n", len(txs)))
	return nil
}

func renderMembers(w io.Writer, members []core.Member) error {
	data := pterm.TableData{{"ID", "Codigo", "Nome", "Nascimento"}}
	for _, m := range members {
		birth := "-"
		if m.BirthDate != nil {
			birth = m.BirthDate.Format("02/01/2006")
		}
		data = append(data, []string{strconv.FormatInt(m.ID, 10), m.Code, m.FullName, birth})
	}
	if err := renderTable(w, data); err != nil {
		return err
	}
	fmt.Fprint(w, pterm.Info.Sprintf("Total: %d members\n", len(members)))
	return nil
}

func renderTable(w io.Writer, data pterm.TableData) error {
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, table)
	return err
}
