package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/tastygex/internal/collect"
	"github.com/dgnsrekt/tastygex/internal/tastytrade"
)

// FormatSuccessMessage creates a success notification body.
func FormatSuccessMessage(result *collect.Result) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Spot: %s\n", result.Spot))
	sb.WriteString(fmt.Sprintf("Expirations: %s\n", formatDates(result.Expirations)))
	sb.WriteString(fmt.Sprintf("Rows: %d\n", len(result.Rows)))
	for _, s := range result.Summaries {
		sb.WriteString(fmt.Sprintf("Net GEX %s: %.0f\n", s.Expiration, s.NetGEX))
	}
	sb.WriteString(fmt.Sprintf("Files: %d\n", len(result.Files)))
	sb.WriteString(fmt.Sprintf("Duration: %s", result.Duration.Round(time.Second)))

	return sb.String()
}

// FormatFailureMessage creates a failure notification body.
func FormatFailureMessage(ticker string, duration time.Duration, err error) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Ticker: %s\n", ticker))
	sb.WriteString(fmt.Sprintf("Duration: %s", duration.Round(time.Second)))

	if err != nil {
		sb.WriteString(fmt.Sprintf("\n\nError: %v", err))
	}

	return sb.String()
}

func formatDates(dates []time.Time) string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(tastytrade.DateLayout))
	}
	return strings.Join(out, ", ")
}
