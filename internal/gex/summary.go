package gex

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"

	"github.com/dgnsrekt/tastygex/internal/nullable"
)

// Summary aggregates the open-interest exposure of one expiration.
type Summary struct {
	Expiration  string
	Contracts   int
	WithGamma   int
	CallGEX     float64
	PutGEX      float64
	NetGEX      float64
	MedianGamma nullable.Float64
	// PeakStrike is the strike with the largest absolute net exposure.
	PeakStrike nullable.Float64
}

// Summarize groups rows by expiration, in the order expirations first appear.
func Summarize(rows []Row) []Summary {
	var order []string
	groups := make(map[string][]Row)
	for _, r := range rows {
		if _, ok := groups[r.Expiration]; !ok {
			order = append(order, r.Expiration)
		}
		groups[r.Expiration] = append(groups[r.Expiration], r)
	}

	out := make([]Summary, 0, len(order))
	for _, exp := range order {
		out = append(out, summarize(exp, groups[exp]))
	}
	return out
}

func summarize(expiration string, rows []Row) Summary {
	s := Summary{Expiration: expiration, Contracts: len(rows)}

	var calls, puts, gammas stats.Float64Data
	byStrike := make(map[float64]float64)
	for _, r := range rows {
		if r.Gamma.Valid {
			s.WithGamma++
			gammas = append(gammas, r.Gamma.Value)
		}
		v, ok := r.GEX.Get()
		if !ok {
			continue
		}
		if r.ContractTypeInt > 0 {
			calls = append(calls, v)
		} else {
			puts = append(puts, v)
		}
		byStrike[r.Strike] += v
	}

	s.CallGEX = sum(calls)
	s.PutGEX = sum(puts)
	s.NetGEX = s.CallGEX + s.PutGEX

	if median, err := stats.Median(gammas); err == nil {
		s.MedianGamma = nullable.Of(median)
	}

	strikes := make([]float64, 0, len(byStrike))
	for k := range byStrike {
		strikes = append(strikes, k)
	}
	sort.Float64s(strikes)
	peak := math.Inf(-1)
	for _, k := range strikes {
		if a := math.Abs(byStrike[k]); a > peak {
			peak = a
			s.PeakStrike = nullable.Of(k)
		}
	}
	return s
}

// RenderSummary writes summaries as a table.
func RenderSummary(w io.Writer, ticker string, spot nullable.Float64, summaries []Summary) {
	fmt.Fprintf(w, "%s spot %s\n", ticker, spot)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Expiration", "Contracts", "With Gamma", "Call GEX", "Put GEX", "Net GEX", "Median Gamma", "Peak Strike"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, s := range summaries {
		table.Append([]string{
			s.Expiration,
			strconv.Itoa(s.Contracts),
			strconv.Itoa(s.WithGamma),
			formatMoney(s.CallGEX),
			formatMoney(s.PutGEX),
			formatMoney(s.NetGEX),
			s.MedianGamma.String(),
			s.PeakStrike.String(),
		})
	}
	table.Render()
}

// sum treats an empty series as zero.
func sum(data stats.Float64Data) float64 {
	total, err := stats.Sum(data)
	if err != nil {
		return 0
	}
	return total
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64)
}
