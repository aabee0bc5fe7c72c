package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/itohio/tcstream/pkg/adc"
	"github.com/itohio/tcstream/pkg/bridge"
	"github.com/itohio/tcstream/pkg/calib"
	"github.com/itohio/tcstream/pkg/config"
	"github.com/itohio/tcstream/pkg/format"
	"github.com/itohio/tcstream/pkg/logger"
	"github.com/itohio/tcstream/pkg/ring"
	"github.com/itohio/tcstream/pkg/transport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	var (
		configFlag    = flag.String("config", "config.yaml", "Configuration file path")
		portFlag      = flag.String("p", "", "Output serial port override (empty writes to stdout)")
		mockFlag      = flag.Bool("mock", false, "Use the simulated converter instead of a serial one")
		formatFlag    = flag.String("format", "", "Output format override (voltage, hex, temperature)")
		calibrateFlag = flag.Bool("calibrate", false, "Run the configured calibration steps before streaming")
		listFlag      = flag.Bool("list-ports", false, "List serial ports and exit")
	)
	flag.Parse()

	if *listFlag {
		if err := listPorts(os.Stdout); err != nil {
			log.Fatalf("Failed to list serial ports: %v", err)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *mockFlag {
		cfg.ADC.Source = config.SourceMock
	}
	if *formatFlag != "" {
		cfg.Output.Format = *formatFlag
	}
	if *calibrateFlag {
		cfg.Calibration.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, lg)
	stop()
	if err != nil {
		lg.Error("Stopped with error", zap.Error(err))
	}
	_ = lg.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, lg *zap.Logger) (err error) {
	src, device, cj, err := openSource(cfg, lg)
	if err != nil {
		return err
	}
	formatter, err := format.New(cfg, cj)
	if err != nil {
		return fmt.Errorf("failed to create formatter: %w", err)
	}
	policy, err := bridge.ParsePolicy(cfg.Output.Policy)
	if err != nil {
		return err
	}

	tx, err := openOutput(cfg.Serial, lg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, tx.Close())
	}()

	b := bridge.New(
		ring.New(cfg.Output.BufferSize),
		formatter,
		tx,
		bridge.WithPolicy(policy),
		bridge.WithLogger(lg.Named("bridge")),
		bridge.WithStatsInterval(cfg.Output.StatsInterval),
	)

	var prepare func(context.Context) error
	if cfg.Calibration.Enabled {
		prepare, err = calibration(cfg.Calibration, device, b, lg)
		if err != nil {
			return err
		}
	}

	lg.Info("Streaming",
		zap.String("source", cfg.ADC.Source),
		zap.String("format", cfg.Output.Format),
		zap.String("output", outputName(cfg.Serial)),
		zap.Stringer("policy", policy))

	err = b.Serve(ctx, src, prepare)
	lg.Info("Stopped", zap.Object("stats", b.Stats()))
	return err
}

func openOutput(cfg config.SerialConfig, lg *zap.Logger) (transport.Transport, error) {
	if cfg.Port == "" {
		return transport.NewStream(os.Stdout, os.Stdin, lg.Named("stdio")), nil
	}
	return transport.OpenPort(cfg, lg.Named("output"))
}

func outputName(cfg config.SerialConfig) string {
	if cfg.Port == "" {
		return "stdout"
	}
	return cfg.Port
}

// openSource returns the configured converter and, when it supports
// calibration commands, the same converter as a calib.Device. In rtd cold
// junction mode it also returns the RTD reading interleaved with the
// thermocouple conversions.
func openSource(cfg *config.Config, lg *zap.Logger) (adc.Source, calib.Device, format.ColdJunction, error) {
	var (
		src    adc.Source
		device calib.Device
		cj     format.ColdJunction
	)
	switch cfg.ADC.Source {
	case config.SourceSerial:
		src = adc.NewSerial(cfg.ADC, lg.Named("adc").With(zap.String("port", cfg.ADC.Port)))
	default:
		mock := adc.NewMock(cfg.ADC, lg.Named("adc"))
		if cfg.ColdJunction.Mode == config.ColdJunctionRTD {
			mock.SimulateRTD(cfg.ColdJunction.Channel, adc.RTDFromConfig(cfg.ADC, cfg.ColdJunction), cfg.ColdJunction.Temperature)
		}
		src, device = mock, mock
	}
	if cfg.ColdJunction.Mode == config.ColdJunctionRTD {
		rtd, err := adc.NewRTDColdJunction(src, cfg.ADC, cfg.ColdJunction, lg.Named("cold_junction"))
		if err != nil {
			return nil, nil, nil, err
		}
		src, cj = rtd, rtd
	}
	if cfg.ADC.AverageSamples > 1 {
		src = adc.NewAverager(src, cfg.ADC.AverageSamples)
	}
	return src, device, cj, nil
}

func calibration(cfg config.CalibrationConfig, device calib.Device, console calib.Console, lg *zap.Logger) (func(context.Context) error, error) {
	steps := make([]calib.Mode, 0, len(cfg.Steps))
	for _, s := range cfg.Steps {
		mode, err := calib.ParseMode(s)
		if err != nil {
			return nil, err
		}
		steps = append(steps, mode)
	}
	if device == nil {
		lg.Warn("Converter does not support calibration, skipping")
		return nil, nil
	}

	c := &calib.Calibrator{
		Device:           device,
		Console:          console,
		FullScaleVoltage: cfg.FullScaleVoltage,
		PromptTimeout:    cfg.PromptTimeout,
		CompleteTimeout:  cfg.CompleteTimeout,
		PollInterval:     cfg.PollInterval,
		Logger:           lg.Named("calib"),
	}
	return func(ctx context.Context) error {
		err := c.Run(ctx, steps...)
		var te *calib.TimeoutError
		if errors.As(err, &te) {
			lg.Error("Calibration timed out", zap.Stringer("step", te.Mode), zap.Duration("timeout", te.Timeout))
		}
		return err
	}, nil
}

func listPorts(w io.Writer) error {
	ports, err := adc.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found")
		return nil
	}
	for _, p := range ports {
		if p.Description != "" {
			fmt.Fprintf(w, "%s\t%s\n", p.Name, p.Description)
		} else {
			fmt.Fprintln(w, p.Name)
		}
	}
	return nil
}
