package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"market_sync/internal/app/di"
	"market_sync/internal/feature/candles/domain/entity"
)

type collectCmd struct {
	env *Env
	seriesFlags
	updateAll bool
	dryRun    bool
}

func (*collectCmd) Name() string     { return "collect" }
func (*collectCmd) Synopsis() string { return "fetch new candles from the provider and store them" }
func (*collectCmd) Usage() string {
	return `collect [-symbols BTC,ETH] [-timeframe 1d] [-days N] [-update-all] [-dry-run]

  Fetches candles for each symbol, one at a time, starting after the newest stored
  candle or at the lookback window start, whichever is later.
  The run stops at the first failing symbol; symbols already stored stay stored.
  When COLLECT_GAP_CHECK is enabled every collected series is checked for gaps afterwards.
`
}

func (c *collectCmd) SetFlags(f *flag.FlagSet) {
	c.seriesFlags.set(f, "Lookback window in days (default: COLLECT_RETENTION_DAYS)")
	f.BoolVar(&c.updateAll, "update-all", false, "Resume from the newest stored candle even if it is older than the lookback window")
	f.BoolVar(&c.dryRun, "dry-run", false, "Fetch and validate without writing")
}

func (c *collectCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.failf("%v", err)
	}
	defer cleanup()

	symbols, tf, days, err := c.seriesFlags.resolve(ctx, app)
	if err != nil {
		return c.env.failf("%v", err)
	}

	results, err := runCollect(ctx, c.env, app, symbols, tf, days, c.updateAll, c.dryRun)
	if err != nil {
		return c.env.failf("%v", err)
	}
	if c.dryRun || !app.Config.Collect.GapCheck {
		return subcommands.ExitSuccess
	}

	// 整合性チェックの失敗はシンボル単位で報告し、残りは続行する
	checked := make([]entity.GapCheckResult, 0, len(results))
	for _, r := range results {
		res, err := app.GapFiller.DetectGaps(ctx, r.Symbol, tf, days)
		if err != nil {
			app.Logger.Error("integrity check failed", "symbol", r.Symbol, "error", err)
			continue
		}
		checked = append(checked, res)
	}
	printGapSummary(c.env, checked)
	return subcommands.ExitSuccess
}

// runCollect runs one collection and prints whatever completed, even on failure.
func runCollect(ctx context.Context, env *Env, app *di.App, symbols []string, tf entity.Timeframe, days int, updateAll, dryRun bool) ([]entity.CollectionResult, error) {
	results, err := app.Collector.Collect(ctx, symbols, tf, days, updateAll, dryRun)

	w := env.table()
	fmt.Fprintln(w, "SYMBOL\tTIMEFRAME\tFETCHED\tINSERTED\tFROM\tTO")
	for _, r := range results {
		from, to := "-", "-"
		if r.WindowStart != nil {
			from = r.WindowStart.UTC().Format(timeLayout)
		}
		if r.WindowEnd != nil {
			to = r.WindowEnd.UTC().Format(timeLayout)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", r.Symbol, r.Timeframe, r.CandlesFetched, r.CandlesInserted, from, to)
	}
	_ = w.Flush()

	if err != nil {
		return results, fmt.Errorf("%w (%d of %d symbols completed)", err, len(results), len(symbols))
	}
	return results, nil
}

type gapsCmd struct {
	env *Env
	seriesFlags
}

func (*gapsCmd) Name() string     { return "gaps" }
func (*gapsCmd) Synopsis() string { return "report missing candles in stored series" }
func (*gapsCmd) Usage() string {
	return `gaps [-symbols BTC,ETH] [-timeframe 1d] [-days N]

  Lists every run of missing candles in the lookback window. Nothing is fetched.
`
}

func (c *gapsCmd) SetFlags(f *flag.FlagSet) {
	c.seriesFlags.set(f, "Window to check in days (default: COLLECT_RETENTION_DAYS)")
}

func (c *gapsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.failf("%v", err)
	}
	defer cleanup()

	symbols, tf, days, err := c.seriesFlags.resolve(ctx, app)
	if err != nil {
		return c.env.failf("%v", err)
	}

	checked := make([]entity.GapCheckResult, 0, len(symbols))
	for _, s := range symbols {
		res, err := app.GapFiller.DetectGaps(ctx, s, tf, days)
		if err != nil {
			return c.env.failf("gap check %s: %v", s, err)
		}
		checked = append(checked, res)
	}
	printGapSummary(c.env, checked)
	return subcommands.ExitSuccess
}

type fillCmd struct {
	env *Env
	seriesFlags
	dryRun bool
}

func (*fillCmd) Name() string     { return "fill" }
func (*fillCmd) Synopsis() string { return "backfill missing candles from the provider" }
func (*fillCmd) Usage() string {
	return `fill [-symbols BTC,ETH] [-timeframe 1d] [-days N] [-dry-run]

  Detects gaps and fetches each one separately. A failing gap is logged and skipped.
`
}

func (c *fillCmd) SetFlags(f *flag.FlagSet) {
	c.seriesFlags.set(f, "Window to check in days (default: COLLECT_RETENTION_DAYS)")
	f.BoolVar(&c.dryRun, "dry-run", false, "Only report the gaps")
}

func (c *fillCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.failf("%v", err)
	}
	defer cleanup()

	symbols, tf, days, err := c.seriesFlags.resolve(ctx, app)
	if err != nil {
		return c.env.failf("%v", err)
	}
	if err := runFill(ctx, c.env, app, symbols, tf, days, c.dryRun); err != nil {
		return c.env.failf("%v", err)
	}
	return subcommands.ExitSuccess
}

func runFill(ctx context.Context, env *Env, app *di.App, symbols []string, tf entity.Timeframe, days int, dryRun bool) error {
	w := env.table()
	defer w.Flush()

	fmt.Fprintln(w, "SYMBOL\tTIMEFRAME\tGAPS\tMISSING\tINSERTED")
	for _, s := range symbols {
		res, inserted, err := app.GapFiller.FillGaps(ctx, s, tf, days, dryRun)
		if err != nil {
			return fmt.Errorf("fill %s: %w", s, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", res.Symbol, res.Timeframe, len(res.Gaps), res.IssuesFound(), inserted)
	}
	return nil
}

func printGapSummary(env *Env, checked []entity.GapCheckResult) {
	w := env.table()
	defer w.Flush()

	fmt.Fprintln(w, "SYMBOL\tTIMEFRAME\tGAP START\tGAP END\tMISSING")
	for _, res := range checked {
		if len(res.Gaps) == 0 {
			fmt.Fprintf(w, "%s\t%s\t-\t-\t0\n", res.Symbol, res.Timeframe)
			continue
		}
		for _, g := range res.Gaps {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", res.Symbol, res.Timeframe,
				g.Start.UTC().Format(timeLayout), g.End.UTC().Format(timeLayout), g.MissingCandles)
		}
	}
}
