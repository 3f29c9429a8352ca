// Package cli implements the subcommands of cmd/ingest.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"market_sync/internal/app/di"
	"market_sync/internal/feature/candles/domain/entity"
	"market_sync/internal/platform/config"
	"market_sync/internal/platform/logging"
)

// Env carries what every command needs to build its dependencies.
type Env struct {
	Out io.Writer // results; nil uses os.Stdout
	Err io.Writer // logs and errors; nil uses os.Stderr

	// Load returns the configuration. nil uses config.Load with the default .env file.
	Load func() (*config.Config, error)
}

// Register adds the ingest commands and the standard help commands to cmdr.
func Register(cmdr *subcommands.Commander, env *Env) {
	cmdr.Register(cmdr.HelpCommand(), "")
	cmdr.Register(cmdr.FlagsCommand(), "")
	cmdr.Register(cmdr.CommandsCommand(), "")

	cmdr.Register(&collectCmd{env: env}, "sync")
	cmdr.Register(&gapsCmd{env: env}, "sync")
	cmdr.Register(&fillCmd{env: env}, "sync")
	cmdr.Register(&scheduleCmd{env: env}, "sync")

	cmdr.Register(&symbolsCmd{env: env}, "watch list")

	cmdr.Register(&providersCmd{env: env}, "provider")
	cmdr.Register(&priceCmd{env: env}, "provider")
}

func (e *Env) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

func (e *Env) errOut() io.Writer {
	if e.Err == nil {
		return os.Stderr
	}
	return e.Err
}

// failf reports err on the error stream and returns ExitFailure.
func (e *Env) failf(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(e.errOut(), "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}

func (e *Env) config() (*config.Config, error) {
	if e.Load != nil {
		return e.Load()
	}
	return config.Load()
}

// open loads the configuration, installs the logger and builds the application graph.
func (e *Env) open(ctx context.Context) (*di.App, func(), error) {
	cfg, err := e.config()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(e.errOut(), cfg.App.LogLevel, cfg.App.LogFormat)
	return di.Build(ctx, cfg, logger)
}

func (e *Env) table() *tabwriter.Writer {
	return tabwriter.NewWriter(e.out(), 0, 4, 2, ' ', 0)
}

const timeLayout = "2006-01-02 15:04"

// seriesFlags are shared by the commands that address a set of series.
type seriesFlags struct {
	symbols   string
	timeframe string
	days      int
}

func (s *seriesFlags) set(f *flag.FlagSet, daysUsage string) {
	f.StringVar(&s.symbols, "symbols", "", "Comma separated symbols (default: active watch list, then COLLECT_SYMBOLS)")
	f.StringVar(&s.timeframe, "timeframe", "", "Timeframe: 1h, 4h, 1d or 1w (default: COLLECT_TIMEFRAME)")
	f.IntVar(&s.days, "days", 0, daysUsage)
}

// resolve returns the symbols, timeframe and lookback to operate on.
func (s *seriesFlags) resolve(ctx context.Context, app *di.App) ([]string, entity.Timeframe, int, error) {
	tf := app.Config.Collect.DefaultTimeframe()
	if s.timeframe != "" {
		parsed, err := entity.ParseTimeframe(s.timeframe)
		if err != nil {
			return nil, "", 0, err
		}
		tf = parsed
	}
	if !app.Provider.Info().SupportsTimeframe(tf) {
		return nil, "", 0, fmt.Errorf("provider %s does not support timeframe %s", app.Provider.Info().Name, tf)
	}

	days := s.days
	if days <= 0 {
		days = app.Config.Collect.RetentionDays
	}

	symbols, err := resolveSymbols(ctx, app, s.symbols)
	if err != nil {
		return nil, "", 0, err
	}
	if len(symbols) == 0 {
		return nil, "", 0, fmt.Errorf("no symbols to process")
	}
	return symbols, tf, days, nil
}

// resolveSymbols prefers the explicit list, then the active watch list, then COLLECT_SYMBOLS.
func resolveSymbols(ctx context.Context, app *di.App, explicit string) ([]string, error) {
	if explicit != "" {
		return config.CollectConfig{Symbols: strings.Split(explicit, ",")}.DefaultSymbols(), nil
	}
	codes, err := app.Symbols.ActiveCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load watch list: %w", err)
	}
	if len(codes) > 0 {
		return codes, nil
	}
	return app.Config.Collect.DefaultSymbols(), nil
}
