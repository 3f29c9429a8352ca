package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type symbolsCmd struct {
	env *Env
}

func (*symbolsCmd) Name() string     { return "symbols" }
func (*symbolsCmd) Synopsis() string { return "manage the collection watch list" }
func (*symbolsCmd) Usage() string {
	return `symbols list
symbols add <symbol>...
symbols remove <symbol>

  add validates every symbol against the configured provider and stores nothing
  if any of them is rejected. remove keeps the stored candles.
`
}

func (*symbolsCmd) SetFlags(*flag.FlagSet) {}

func (c *symbolsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) == 0 {
		fmt.Fprint(c.env.errOut(), c.Usage())
		return subcommands.ExitUsageError
	}
	action, codes := args[0], args[1:]

	switch action {
	case "list":
	case "add":
		if len(codes) == 0 {
			fmt.Fprintln(c.env.errOut(), "Error: add needs at least one symbol")
			return subcommands.ExitUsageError
		}
	case "remove":
		if len(codes) != 1 {
			fmt.Fprintln(c.env.errOut(), "Error: remove takes exactly one symbol")
			return subcommands.ExitUsageError
		}
	default:
		fmt.Fprintf(c.env.errOut(), "Error: unknown action %q\n", action)
		return subcommands.ExitUsageError
	}

	app, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.failf("%v", err)
	}
	defer cleanup()

	switch action {
	case "add":
		added, err := app.Symbols.AddSymbols(ctx, codes)
		if err != nil {
			return c.env.failf("%v", err)
		}
		for _, s := range added {
			fmt.Fprintf(c.env.out(), "added %s (%s)\n", s.Code, s.Provider)
		}
	case "remove":
		if err := app.Symbols.RemoveSymbol(ctx, codes[0]); err != nil {
			return c.env.failf("%v", err)
		}
		fmt.Fprintf(c.env.out(), "removed %s\n", codes[0])
	default:
		symbols, err := app.Symbols.ListActiveSymbols(ctx)
		if err != nil {
			return c.env.failf("%v", err)
		}
		w := c.env.table()
		fmt.Fprintln(w, "CODE\tPROVIDER\tUPDATED")
		for _, s := range symbols {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.Code, s.Provider, s.UpdatedAt.UTC().Format(timeLayout))
		}
		_ = w.Flush()
	}
	return subcommands.ExitSuccess
}
