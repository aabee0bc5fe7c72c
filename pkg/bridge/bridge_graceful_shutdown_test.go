package bridge

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/itohio/tcstream/pkg/adc"
	"github.com/itohio/tcstream/pkg/config"
	"github.com/itohio/tcstream/pkg/format"
	"github.com/itohio/tcstream/pkg/ring"
	"github.com/itohio/tcstream/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestServe_GracefulShutdown runs the simulated converter into a stream
// transport and checks that cancelling stops every goroutine.
func TestServe_GracefulShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.ADC.SampleRate = time.Millisecond

	f, err := format.New(cfg, nil)
	require.NoError(t, err)
	tx := transport.NewStream(io.Discard, nil, nil)
	b := New(ring.New(cfg.Output.BufferSize), f, tx)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Serve(ctx, adc.NewMock(cfg.ADC, nil), nil)
	}()

	require.Eventually(t, func() bool {
		return b.Stats().Transmitted > 0
	}, 5*time.Second, time.Millisecond, "records should reach the transport")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop within timeout")
	}
	assert.NoError(t, tx.Close())

	s := b.Stats()
	assert.Greater(t, s.Conversions, uint64(0))
	assert.Equal(t, s.Conversions, s.Records+s.Overruns+s.DroppedRecords+s.FormatOverflows+pending(b),
		"every conversion is accounted for")
}

func pending(b *Bridge) uint64 {
	if _, ok := b.Latest(); ok {
		return 1
	}
	return 0
}
