// Package admin is the operator command line: pending confirmations,
// monthly summaries and closing statements without the HTTP API.
package admin

import (
	"context"
	"io"
	"os"
	"time"
	"unicode"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"tesouraria/internal/log"
	"tesouraria/internal/services"
	"tesouraria/internal/sheets"
	"tesouraria/internal/statement"
	"tesouraria/internal/storage"
)

// Env is everything a command needs. Exporter and Publisher may be nil.
type Env struct {
	Ledger    storage.Ledger
	Location  *time.Location
	Logger    *log.Logger
	Publisher services.EventPublisher
	Exporter  sheets.StatementWriter
	Backend   string
}

// Opener opens the environment on first use; the returned func releases it.
type Opener func(ctx context.Context) (*Env, func(), error)

type app struct {
	open Opener
	out  io.Writer
	env  *Env
	done func()
}

func (a *app) environment(ctx context.Context) (*Env, error) {
	if a.env != nil {
		return a.env, nil
	}
	env, done, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	a.env, a.done = env, done
	return env, nil
}

func (a *app) close() {
	if a.done != nil {
		a.done()
	}
}

func (a *app) ledger(env *Env) *services.LedgerService {
	return services.NewLedgerService(env.Ledger, env.Publisher, env.Location, env.Logger)
}

func (a *app) reports(env *Env) *services.ReportService {
	agg := services.NewAggregator(env.Ledger, env.Location, env.Logger)
	return services.NewReportService(agg, statement.NewCompiler(env.Location), env.Logger)
}

// NewRootCmd builds the command tree writing to out.
func NewRootCmd(open Opener, out io.Writer) *cobra.Command {
	return (&app{open: open, out: out}).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tesouraria-admin",
		Short:         "Operator tools for the tesouraria ledger",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.SetOut(a.out)

	rootCmd.AddCommand(newMigrateCmd(a))
	rootCmd.AddCommand(newSummaryCmd(a))
	rootCmd.AddCommand(newPendingCmd(a))
	rootCmd.AddCommand(newConfirmCmd(a))
	rootCmd.AddCommand(newMembersCmd(a))
	rootCmd.AddCommand(newReportCmd(a))
	return rootCmd
}

// Execute runs the command line and exits non-zero on failure.
func Execute(open Opener) {
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " ERRO ",
		Style: pterm.NewStyle(pterm.BgLightRed, pterm.FgBlack),
	}

	a := &app{open: open, out: os.Stdout}
	err := a.rootCmd().Execute()
	a.close()
	if err != nil {
		pterm.Error.Println(capitalize(err.Error()))
		os.Exit(1)
	}
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
