package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"market_sync/internal/app/di"
	"market_sync/internal/feature/candles/domain/entity"
	"market_sync/internal/platform/externalapi"
)

type providersCmd struct {
	env *Env
}

func (*providersCmd) Name() string     { return "providers" }
func (*providersCmd) Synopsis() string { return "list the available market data providers" }
func (*providersCmd) Usage() string {
	return `providers

  Prints the capabilities of every registered provider. No request is made.
`
}

func (*providersCmd) SetFlags(*flag.FlagSet) {}

func (c *providersCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	w := c.env.table()
	fmt.Fprintln(w, "NAME\tAPI KEY\tRATE/MIN\tMAX CANDLES\tTIMEFRAMES\tBASE URL")
	for _, name := range externalapi.Names() {
		p, err := externalapi.New(name, externalapi.Options{})
		if err != nil {
			return c.env.failf("%v", err)
		}
		info := p.Info()
		apiKey := "optional"
		if info.RequiresAPIKey {
			apiKey = "required"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", info.Name, apiKey, info.RateLimitPerMinute,
			info.MaxCandlesPerRequest, joinTimeframes(info.SupportedTimeframes), info.BaseURL)
	}
	_ = w.Flush()
	return subcommands.ExitSuccess
}

func joinTimeframes(tfs []entity.Timeframe) string {
	s := make([]string, len(tfs))
	for i, tf := range tfs {
		s[i] = string(tf)
	}
	return strings.Join(s, ",")
}

type priceCmd struct {
	env *Env
}

func (*priceCmd) Name() string     { return "price" }
func (*priceCmd) Synopsis() string { return "print the latest price of a symbol" }
func (*priceCmd) Usage() string {
	return `price <symbol>

  Asks the configured provider for the latest price. Nothing is stored.
`
}

func (*priceCmd) SetFlags(*flag.FlagSet) {}

func (c *priceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(c.env.errOut(), c.Usage())
		return subcommands.ExitUsageError
	}
	symbol := entity.NormalizeSymbol(f.Arg(0))

	cfg, err := c.env.config()
	if err != nil {
		return c.env.failf("%v", err)
	}
	p, err := di.NewProvider(cfg.Provider, cfg.App.Name)
	if err != nil {
		return c.env.failf("%v", err)
	}

	price, err := p.CurrentPrice(ctx, symbol)
	if err != nil {
		return c.env.failf("%v", err)
	}
	fmt.Fprintf(c.env.out(), "%s %s %s\n", symbol, price.String(), cfg.Collect.BaseCurrency)
	return subcommands.ExitSuccess
}
