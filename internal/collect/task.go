package collect

import (
	"fmt"
	"time"

	"github.com/dgnsrekt/tastygex/internal/snapshot"
	"github.com/dgnsrekt/tastygex/internal/tastytrade"
)

// Task is one expiration to stream.
type Task struct {
	Ticker     string
	Expiration time.Time
	Contracts  []tastytrade.Option
}

func (t Task) String() string {
	return fmt.Sprintf("%s/%s", t.Ticker, t.Expiration.Format(tastytrade.DateLayout))
}

type TaskResult struct {
	Task   Task
	Bundle *snapshot.OptionsBundle
	Error  error
}

// SelectExpirations returns the expirations a run processes: the first
// count, or count+1 when legacy is set.
func SelectExpirations(expirations []time.Time, count int, legacy bool) []time.Time {
	n := count
	if legacy {
		n++
	}
	if n < 0 {
		n = 0
	}
	if n > len(expirations) {
		n = len(expirations)
	}
	return expirations[:n]
}
