package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/dxfeed"
	"github.com/dgnsrekt/tastygex/internal/output"
)

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Summarize a snapshot archive",
		Long: `Count the events of a {TICKER}-snapshot.jsonl.zst archive per bundle,
expiration and event kind.

Examples:
  gexcache inspect data/SPY-snapshot.jsonl.zst`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			records, err := output.ReadArchive(f)
			if err != nil {
				return err
			}
			logger.Debug("Archive decoded", zap.String("file", args[0]), zap.Int("records", len(records)))

			rows := countArchive(records)
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Bundle", "Expiration", "Kind", "Events"})
			for _, r := range rows {
				table.Append([]string{r.bundle, r.expiration, string(r.kind), strconv.Itoa(r.count)})
			}
			table.Render()
			fmt.Printf("%d events\n", len(records))
			return nil
		},
	}

	return cmd
}

type archiveCount struct {
	bundle     string
	expiration string
	kind       dxfeed.EventType
	count      int
}

// countArchive groups records, underlying first, then expirations ascending.
func countArchive(records []output.ArchiveRecord) []archiveCount {
	type key struct {
		bundle, expiration string
		kind               dxfeed.EventType
	}
	counts := make(map[key]int)
	for _, r := range records {
		counts[key{r.Bundle, r.Expiration, r.Kind}]++
	}

	out := make([]archiveCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, archiveCount{bundle: k.bundle, expiration: k.expiration, kind: k.kind, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.bundle != b.bundle {
			return a.bundle == "underlying"
		}
		if a.expiration != b.expiration {
			return a.expiration < b.expiration
		}
		return a.kind < b.kind
	})
	return out
}
