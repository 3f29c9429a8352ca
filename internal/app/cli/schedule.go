package cli

import (
	"context"
	"flag"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/subcommands"

	"market_sync/internal/app/di"
)

type scheduleCmd struct {
	env *Env
	seriesFlags
	interval time.Duration
	fill     bool
}

func (*scheduleCmd) Name() string     { return "schedule" }
func (*scheduleCmd) Synopsis() string { return "run collect periodically until interrupted" }
func (*scheduleCmd) Usage() string {
	return `schedule [-symbols BTC,ETH] [-timeframe 1d] [-days N] [-interval 1h] [-fill]

  Runs collect immediately and then every interval. A run that is still going
  when the next one is due makes the next one wait. The watch list is re-read on
  every run. With -fill, gaps are backfilled after each successful collect.
`
}

func (c *scheduleCmd) SetFlags(f *flag.FlagSet) {
	c.seriesFlags.set(f, "Lookback window in days (default: COLLECT_RETENTION_DAYS)")
	f.DurationVar(&c.interval, "interval", 0, "Period between runs (default: COLLECT_INTERVAL)")
	f.BoolVar(&c.fill, "fill", false, "Backfill gaps after each run")
}

func (c *scheduleCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.failf("%v", err)
	}
	defer cleanup()

	interval := c.interval
	if interval <= 0 {
		interval = app.Config.Collect.Interval
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(interval).Do(func() { c.run(ctx, app) }); err != nil {
		return c.env.failf("schedule collect: %v", err)
	}

	app.Logger.Info("scheduler started", "interval", interval, "provider", app.Provider.Info().Name)
	s.StartAsync()
	<-ctx.Done()
	s.Stop()
	app.Logger.Info("scheduler stopped")
	return subcommands.ExitSuccess
}

// run is one scheduled tick. Failures are logged and the schedule continues.
func (c *scheduleCmd) run(ctx context.Context, app *di.App) {
	if ctx.Err() != nil {
		return
	}
	symbols, tf, days, err := c.seriesFlags.resolve(ctx, app)
	if err != nil {
		app.Logger.Error("scheduled run skipped", "error", err)
		return
	}
	if _, err := runCollect(ctx, c.env, app, symbols, tf, days, false, false); err != nil {
		app.Logger.Error("scheduled collect failed", "error", err)
		return
	}
	if !c.fill {
		return
	}
	if err := runFill(ctx, c.env, app, symbols, tf, days, false); err != nil {
		app.Logger.Error("scheduled gap fill failed", "error", err)
	}
}
