package admin

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"tesouraria/internal/core"
	"tesouraria/internal/services"
	"tesouraria/internal/statement"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Open the ledger store and apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.environment(cmd.Context())
			if err != nil {
				return err
			}
			if err := env.Ledger.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("ping ledger store: %w", err)
			}
			fmt.Fprint(a.out, pterm.Success.Sprintf("Schema up to date (%s backend)\n", env.Backend))
			return nil
		},
	}
}

type periodFlags struct {
	Year     int
	Month    int
	Previous string
}

func (f *periodFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.Year, "year", "y", 0, "Year of the period (default: current)")
	cmd.Flags().IntVarP(&f.Month, "month", "m", 0, "Month of the period, 1-12 (default: current)")
	cmd.Flags().StringVarP(&f.Previous, "previous", "p", "0", "Balance carried from the previous month")
}

// request fills unset year and month with the current period in loc.
func (f *periodFlags) request(loc *time.Location) (services.ReportRequest, error) {
	previous, err := core.ParseMoney(f.Previous)
	if err != nil {
		return services.ReportRequest{}, &core.ValidationError{Field: "previous", Reason: fmt.Sprintf("invalid amount %q", f.Previous), Err: err}
	}
	current := core.PeriodOf(time.Now(), loc)
	req := services.ReportRequest{Year: f.Year, Month: f.Month, PreviousBalance: &previous}
	if req.Year == 0 {
		req.Year = current.Year
	}
	if req.Month == 0 {
		req.Month = int(current.Month)
	}
	return req, nil
}

func newSummaryCmd(a *app) *cobra.Command {
	flags := &periodFlags{}
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show inflow, outflow and closing balance of a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.environment(cmd.Context())
			if err != nil {
				return err
			}
			req, err := flags.request(env.Location)
			if err != nil {
				return err
			}
			doc, err := a.reports(env).Compile(cmd.Context(), req)
			if err != nil {
				return err
			}
			return renderSummary(a.out, doc.Summary)
		},
	}
	flags.register(cmd)
	return cmd
}

func newPendingCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "pending",
		Aliases: []string{"ls"},
		Short:   "List electronic transactions awaiting confirmation",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.environment(cmd.Context())
			if err != nil {
				return err
			}
			txs, err := a.ledger(env).ListTransactions(cmd.Context(), string(core.StatusPending), limit)
			if err != nil {
				return err
			}
			return renderTransactions(a.out, txs, env.Location)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum number of transactions to display")
	return cmd
}

func newConfirmCmd(a *app) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "confirm <id>",
		Short: "Confirm a pending transaction as tithe or offering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id < 1 {
				return &core.ValidationError{Field: "id", Reason: "expected a positive integer"}
			}
			env, err := a.environment(cmd.Context())
			if err != nil {
				return err
			}
			tx, err := a.ledger(env).ConfirmTransaction(cmd.Context(), id, services.ConfirmRequest{Category: category})
			if err != nil {
				return err
			}
			label := ""
			if tx.Category != nil {
				label = tx.Category.Label()
			}
			fmt.Fprint(a.out, pterm.Success.Sprintf("Transaction %d confirmed: %s %s from %s\n",
				tx.ID, label, statement.FormatMoney(tx.Amount), tx.PayerName))
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "type", "t", "", "Category: dizimo or oferta")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newMembersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "List registered members",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.environment(cmd.Context())
			if err != nil {
				return err
			}
			members, err := a.ledger(env).ListMembers(cmd.Context())
			if err != nil {
				return err
			}
			return renderMembers(a.out, members)
		},
	}
}

type reportFlags struct {
	periodFlags
	Format string
	Out    string
	Sheets bool
}

func newReportCmd(a *app) *cobra.Command {
	flags := &reportFlags{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compile the closing statement of a month",
		Long: `Compile the closing statement of a month.

The statement is written as PDF or plain text to --out (default: the
statement's own file name in the working directory). With --sheets it is
also exported to the configured spreadsheet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := strings.ToLower(strings.TrimSpace(flags.Format))
			var render func(io.Writer, statement.Document) error
			ext := format
			switch format {
			case "pdf":
				render = statement.RenderPDF
			case "text", "txt":
				render, ext = statement.RenderText, "txt"
			default:
				return &core.ValidationError{Field: "format", Reason: "expected pdf or text"}
			}

			env, err := a.environment(cmd.Context())
			if err != nil {
				return err
			}
			if flags.Sheets && env.Exporter == nil {
				return fmt.Errorf("sheets export: GOOGLE_SPREADSHEET_ID is not set")
			}
			req, err := flags.request(env.Location)
			if err != nil {
				return err
			}
			doc, err := a.reports(env).Compile(cmd.Context(), req)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := render(&buf, doc); err != nil {
				return fmt.Errorf("render statement: %w", err)
			}
			path := flags.Out
			if path == "" {
				path = doc.FileName(ext)
			}
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write statement: %w", err)
			}
			fmt.Fprint(a.out, pterm.Success.Sprintf("Statement written to %s\n", path))

			if flags.Sheets {
				ref, err := env.Exporter.ExportStatement(cmd.Context(), doc)
				if err != nil {
					return fmt.Errorf("sheets export: %w", err)
				}
				fmt.Fprint(a.out, pterm.Success.Sprintf("Statement exported to %s\n", ref))
			}
			return renderSummary(a.out, doc.Summary)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.Format, "format", "f", "pdf", "Output format: pdf or text")
	cmd.Flags().StringVarP(&flags.Out, "out", "o", "", "Output file path")
	cmd.Flags().BoolVar(&flags.Sheets, "sheets", false, "Also export the statement to Google Sheets")
	return cmd
}
