package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/tastygex/internal/symbol"
)

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse SYMBOL...",
		Short: "Decode option streamer symbols",
		Long: `Decode option streamer symbols into ticker, expiration, type and strike.

Examples:
  gexcache parse .SPY240927C450 .SPY240927P450.5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Symbol", "Ticker", "Expiration", "Type", "Strike"})

			var failed int
			for _, s := range args {
				opt, err := symbol.Parse(s)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					failed++
					continue
				}
				table.Append([]string{
					s,
					opt.Ticker,
					opt.Expiration.Format("2006-01-02"),
					string(opt.ContractType),
					opt.Strike.String(),
				})
			}
			table.Render()

			if failed > 0 {
				return fmt.Errorf("%d of %d symbols could not be parsed", failed, len(args))
			}
			return nil
		},
	}

	return cmd
}
