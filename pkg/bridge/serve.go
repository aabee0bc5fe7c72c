package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/itohio/tcstream/pkg/adc"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultFlushTimeout bounds how long Serve keeps draining after sampling stops.
const DefaultFlushTimeout = 2 * time.Second

// Serve runs the whole pipeline until ctx ends or a part of it fails.
//
// The drain loop starts first. prepare, when not nil, then runs on the
// calling goroutine, which owns the ring as its writer; this is where
// calibration prompts go. After that the source is started and the calling
// goroutine becomes the acquisition loop.
//
// Sampling stops when ctx ends or the source returns. The last latched sample
// is then consumed and the ring is drained for up to the flush timeout before
// the drain loop stops. Cancellation is not an error.
func (b *Bridge) Serve(ctx context.Context, src adc.Source, prepare func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	drainCtx, stopDrain := context.WithCancel(context.Background())
	defer stopDrain()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	collect := func(name string, err error) {
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		mu.Lock()
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		mu.Unlock()
	}

	drainDone := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(drainDone)
		collect("drain", b.Drain(drainCtx))
		cancel()
	}()
	if b.statsInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collect("stats", b.report(ctx))
		}()
	}

	if prepare != nil {
		if err := prepare(ctx); err != nil {
			collect("prepare", err)
			cancel()
		}
	}

	if ctx.Err() == nil {
		srcDone := make(chan struct{})
		go func() {
			defer close(srcDone)
			collect("source", src.Run(ctx, b.OnConversionComplete))
			cancel()
		}()
		collect("acquisition", b.Run(ctx))
		cancel()
		<-srcDone
		for b.Poll() {
		}
	}

	b.flush(drainDone)
	stopDrain()
	wg.Wait()
	return errs
}

// flush waits until the ring is empty, the drain loop has stopped or the
// flush timeout passes.
func (b *Bridge) flush(drainDone <-chan struct{}) {
	if b.buf.IsEmpty() {
		return
	}
	timer := time.NewTimer(b.flushTimeout)
	defer timer.Stop()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for !b.buf.IsEmpty() {
		select {
		case <-drainDone:
			return
		case <-timer.C:
			b.logger.Warn("Output not flushed before shutdown", zap.Int("pending", b.buf.Len()))
			return
		case <-ticker.C:
		}
	}
}
