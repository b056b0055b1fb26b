package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/dxfeed"
	"github.com/dgnsrekt/tastygex/internal/dxlink"
)

// feed ties a streamer to the listener goroutines filling a bundle's stores.
// Listeners signal after every write so the waiter re-checks readiness
// without polling.
type feed struct {
	streamer dxlink.Streamer
	logger   *zap.Logger

	signal    chan struct{}
	ended     chan struct{}
	endedOnce sync.Once
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newFeed(streamer dxlink.Streamer, logger *zap.Logger) *feed {
	return &feed{
		streamer: streamer,
		logger:   logger,
		signal:   make(chan struct{}, 1),
		ended:    make(chan struct{}),
	}
}

func (f *feed) notify() {
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// listen starts the single writer for store. It runs until the streamer's
// channel for kind is closed.
func listen[E dxfeed.Event](f *feed, kind dxfeed.EventType, store *Store[E]) {
	stream := f.streamer.Listen(kind)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer f.endedOnce.Do(func() { close(f.ended) })

		for ev := range stream {
			typed, ok := ev.(E)
			if !ok {
				continue
			}
			store.Put(typed)
			f.notify()
		}
	}()
}

// waitSpec describes one readiness wait.
type waitSpec struct {
	name    string
	timeout time.Duration
	poll    time.Duration
	need    int
	ready   func() bool
	counts  func() map[dxfeed.EventType]int
}

// await blocks until ready reports true, the stream ends, ctx is cancelled
// or the timeout elapses.
func (f *feed) await(ctx context.Context, w waitSpec) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	poll := w.poll
	if poll <= 0 {
		poll = time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if w.ready() {
			return nil
		}

		select {
		case <-f.signal:
		case <-ticker.C:
			f.logger.Debug("waiting for snapshot",
				zap.String("bundle", w.name),
				zap.Int("need", w.need),
				zap.Any("counts", w.counts()),
			)
		case <-f.ended:
			if w.ready() {
				return nil
			}
			return fmt.Errorf("%s: %w: %v", w.name, ErrStreamEnded, f.streamer.Err())
		case <-ctx.Done():
			if w.ready() {
				return nil
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &TimeoutError{Bundle: w.name, Timeout: w.timeout, Need: w.need, Counts: w.counts()}
			}
			return ctx.Err()
		}
	}
}

// close shuts the streamer and waits for the listeners to drain.
func (f *feed) close() error {
	var err error
	f.closeOnce.Do(func() {
		err = f.streamer.Close()
		f.wg.Wait()
	})
	return err
}
