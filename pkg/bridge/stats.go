package bridge

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Stats counts pipeline events. Losses never reach the wire; they show up here.
type Stats struct {
	Conversions     uint64 // conversion-complete events
	Records         uint64 // records written whole into the ring
	Overruns        uint64 // samples overwritten before they were read
	DroppedRecords  uint64 // records discarded because the ring was full
	DroppedBytes    uint64 // bytes lost to a full ring
	Truncated       uint64 // records written partially
	FormatOverflows uint64 // records longer than the record limit
	FormatErrors    uint64
	Transmitted     uint64 // bytes handed to the transport
	TransmitErrors  uint64
}

// Stats returns a snapshot of the counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Conversions:     b.conversions.Load(),
		Records:         b.records.Load(),
		Overruns:        b.overruns.Load(),
		DroppedRecords:  b.droppedRecords.Load(),
		DroppedBytes:    b.droppedBytes.Load(),
		Truncated:       b.truncated.Load(),
		FormatOverflows: b.formatOverflows.Load(),
		FormatErrors:    b.formatErrors.Load(),
		Transmitted:     b.transmitted.Load(),
		TransmitErrors:  b.transmitErrors.Load(),
	}
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("conversions", s.Conversions)
	enc.AddUint64("records", s.Records)
	enc.AddUint64("overruns", s.Overruns)
	enc.AddUint64("dropped_records", s.DroppedRecords)
	enc.AddUint64("dropped_bytes", s.DroppedBytes)
	enc.AddUint64("truncated", s.Truncated)
	enc.AddUint64("format_overflows", s.FormatOverflows)
	enc.AddUint64("format_errors", s.FormatErrors)
	enc.AddUint64("transmitted", s.Transmitted)
	enc.AddUint64("transmit_errors", s.TransmitErrors)
	return nil
}

func (b *Bridge) report(ctx context.Context) error {
	ticker := time.NewTicker(b.statsInterval)
	defer ticker.Stop()

	var last Stats
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			last = b.checkStats(last)
		}
	}
}

// checkStats logs the counters and warns when the output falls behind since prev.
func (b *Bridge) checkStats(prev Stats) Stats {
	s := b.Stats()
	b.logger.Debug("Pipeline stats", zap.Object("stats", s))
	if lost := (s.DroppedRecords - prev.DroppedRecords) + (s.Truncated - prev.Truncated); lost > 0 {
		b.logger.Warn("Output cannot keep up, records lost",
			zap.Uint64("records", lost),
			zap.Uint64("bytes", s.DroppedBytes-prev.DroppedBytes),
			zap.Int("buffer", b.buf.Cap()))
	}
	return s
}
