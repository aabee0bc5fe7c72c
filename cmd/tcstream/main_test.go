package main

import (
	"context"
	"testing"
	"time"

	"github.com/itohio/tcstream/pkg/adc"
	"github.com/itohio/tcstream/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type silentConsole struct{}

func (silentConsole) ArmWait() {}

func (silentConsole) Enqueue([]byte) bool { return true }

func (silentConsole) WaitForByte(ctx context.Context, timeout time.Duration) (byte, error) {
	return '\r', nil
}

func TestOpenSource(t *testing.T) {
	cfg := config.Default()

	src, device, cj, err := openSource(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &adc.Mock{}, src)
	assert.NotNil(t, device, "the simulated converter can calibrate")
	assert.Nil(t, cj)

	cfg.ADC.Source = config.SourceSerial
	cfg.ADC.Port = "/dev/ttyUSB0"
	src, device, _, err = openSource(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &adc.Serial{}, src)
	assert.Nil(t, device)

	cfg.ADC.AverageSamples = 4
	src, _, _, err = openSource(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &adc.Averager{}, src)
}

func TestOpenSource_RTDColdJunction(t *testing.T) {
	cfg := config.Default()
	cfg.ColdJunction.Mode = config.ColdJunctionRTD

	src, device, cj, err := openSource(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &adc.RTDColdJunction{}, src)
	assert.NotNil(t, device)
	assert.Same(t, src, cj)

	cfg.ADC.AverageSamples = 4
	src, _, cj, err = openSource(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &adc.Averager{}, src)
	assert.IsType(t, &adc.RTDColdJunction{}, cj)

	cfg.ADC.Source = config.SourceSerial
	cfg.ADC.Port = "/dev/ttyUSB0"
	_, _, _, err = openSource(cfg, zap.NewNop())
	assert.Error(t, err, "the serial converter cannot switch to the RTD")
}

func TestCalibration(t *testing.T) {
	cfg := config.Default()
	cfg.ADC.Mock.CalibrationTime = time.Millisecond
	cfg.Calibration.PollInterval = time.Millisecond
	mock := adc.NewMock(cfg.ADC, nil)

	prepare, err := calibration(cfg.Calibration, mock, silentConsole{}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, prepare)
	assert.NoError(t, prepare(context.Background()))

	prepare, err = calibration(cfg.Calibration, nil, silentConsole{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, prepare, "no calibration without a capable converter")

	cfg.Calibration.Steps = []string{"sideways"}
	_, err = calibration(cfg.Calibration, mock, silentConsole{}, zap.NewNop())
	assert.Error(t, err)
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "stdout", outputName(config.SerialConfig{}))
	assert.Equal(t, "COM3", outputName(config.SerialConfig{Port: "COM3"}))
}
