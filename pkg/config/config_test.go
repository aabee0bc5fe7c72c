package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, 2, cfg.Serial.StopBits)
	assert.Equal(t, SourceMock, cfg.ADC.Source)
	assert.Equal(t, float64(32), cfg.ADC.Gain)
	assert.True(t, cfg.ADC.Bipolar)
	assert.Equal(t, float64(1.2), cfg.ADC.Reference)
	assert.Equal(t, uint(24), cfg.ADC.Bits)
	assert.Equal(t, 250*time.Millisecond, cfg.ADC.SampleRate)
	assert.Equal(t, FormatVoltage, cfg.Output.Format)
	assert.Equal(t, 6, cfg.Output.Decimals)
	assert.Equal(t, 63, cfg.Output.MaxRecord)
	assert.Equal(t, 512, cfg.Output.BufferSize)
	assert.Equal(t, PolicyDropRecord, cfg.Output.Policy)
	assert.Equal(t, 10*time.Second, cfg.Output.StatsInterval)
	assert.Equal(t, ColdJunctionNone, cfg.ColdJunction.Mode)
	assert.False(t, cfg.Calibration.Enabled)
	assert.Equal(t, []string{"zero", "full"}, cfg.Calibration.Steps)
	assert.Equal(t, 5*time.Second, cfg.Calibration.CompleteTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyUSB0"
  baud_rate: 115200
  stop_bits: 1

adc:
  source: serial
  port: "/dev/ttyACM0"
  gain: 1
  bipolar: false
  reference: 2.5
  bits: 16
  sample_rate: 100ms
  average_samples: 4

output:
  format: temperature
  decimals: 2
  buffer_size: 1024
  policy: truncate

cold_junction:
  mode: fixed
  temperature: 21.5

calibration:
  enabled: true
  steps: [zero]
  prompt_timeout: 30s
  complete_timeout: 2s
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 1, cfg.Serial.StopBits)
	assert.Equal(t, SourceSerial, cfg.ADC.Source)
	assert.Equal(t, "/dev/ttyACM0", cfg.ADC.Port)
	assert.Equal(t, float64(1), cfg.ADC.Gain)
	assert.False(t, cfg.ADC.Bipolar)
	assert.Equal(t, float64(2.5), cfg.ADC.Reference)
	assert.Equal(t, uint(16), cfg.ADC.Bits)
	assert.Equal(t, 100*time.Millisecond, cfg.ADC.SampleRate)
	assert.Equal(t, 4, cfg.ADC.AverageSamples)
	assert.Equal(t, FormatTemperature, cfg.Output.Format)
	assert.Equal(t, 2, cfg.Output.Decimals)
	assert.Equal(t, 1024, cfg.Output.BufferSize)
	assert.Equal(t, PolicyTruncate, cfg.Output.Policy)
	assert.Equal(t, ColdJunctionFixed, cfg.ColdJunction.Mode)
	assert.Equal(t, 21.5, cfg.ColdJunction.Temperature)
	assert.True(t, cfg.Calibration.Enabled)
	assert.Equal(t, []string{"zero"}, cfg.Calibration.Steps)
	assert.Equal(t, 30*time.Second, cfg.Calibration.PromptTimeout)
	assert.Equal(t, 2*time.Second, cfg.Calibration.CompleteTimeout)
	assert.Equal(t, 10*time.Millisecond, cfg.Calibration.PollInterval) // default
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"format", "output:\n  format: binary\n", "output format"},
		{"policy", "output:\n  policy: block\n", "output policy"},
		{"source", "adc:\n  source: spi\n", "adc source"},
		{"stop bits", "serial:\n  stop_bits: 3\n", "stop bits"},
		{"cold junction", "cold_junction:\n  mode: thermistor\n", "cold junction"},
		{"rtd channel", "cold_junction:\n  mode: rtd\n  channel: 0\n", "thermocouple channel"},
		{"decimals", "output:\n  decimals: -1\n", "decimals"},
		{"bits", "adc:\n  bits: 40\n", "resolution"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
			require.NoError(t, err)
			defer os.Remove(tmpfile.Name())

			_, err = tmpfile.WriteString(tt.content)
			require.NoError(t, err)
			require.NoError(t, tmpfile.Close())

			cfg, err := Load(tmpfile.Name())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyUSB1"
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)        // default
	assert.Equal(t, FormatVoltage, cfg.Output.Format) // default
	assert.Equal(t, 512, cfg.Output.BufferSize)       // default
	assert.Equal(t, 6, cfg.Output.Decimals)           // default
	assert.Equal(t, float64(1.2), cfg.ADC.Reference)  // default
}

func TestLoad_ZeroDecimals(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("output:\n  decimals: 0\n")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Output.Decimals, "an explicit zero is kept")
}

func TestLoad_RTDColdJunction(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("cold_junction:\n  mode: rtd\n  channel: 2\n")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, ColdJunctionRTD, cfg.ColdJunction.Mode)
	assert.Equal(t, 2, cfg.ColdJunction.Channel)
	assert.Equal(t, float64(32), cfg.ColdJunction.Gain)        // default
	assert.Equal(t, float64(5600), cfg.ColdJunction.Reference) // default
	assert.Equal(t, 8, cfg.ColdJunction.Every)                 // default
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Output.Format = FormatHex

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, FormatHex, loaded.Output.Format)
}
