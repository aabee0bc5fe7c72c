package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatVoltage     = "voltage"
	FormatHex         = "hex"
	FormatTemperature = "temperature"
)

// Ring buffer write policies.
const (
	PolicyDropRecord = "drop_record"
	PolicyTruncate   = "truncate"
)

// ADC sources.
const (
	SourceMock   = "mock"
	SourceSerial = "serial"
)

// Cold junction modes.
const (
	ColdJunctionNone  = "none"
	ColdJunctionFixed = "fixed"
	ColdJunctionRTD   = "rtd"
)

// Config represents the application configuration.
type Config struct {
	Serial       SerialConfig       `yaml:"serial"`
	ADC          ADCConfig          `yaml:"adc"`
	Output       OutputConfig       `yaml:"output"`
	ColdJunction ColdJunctionConfig `yaml:"cold_junction"`
	Calibration  CalibrationConfig  `yaml:"calibration"`
	Log          LogConfig          `yaml:"log"`
}

// SerialConfig describes the output serial link. An empty port writes to stdout.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
	StopBits int    `yaml:"stop_bits"` // 1 or 2; always 8 data bits, no parity
}

// ADCConfig describes the converter front end.
type ADCConfig struct {
	Source         string        `yaml:"source"`          // mock or serial
	Port           string        `yaml:"port"`            // serial source only
	BaudRate       int           `yaml:"baud_rate"`       // serial source only
	Channel        int           `yaml:"channel"`
	Gain           float64       `yaml:"gain"`
	Bipolar        bool          `yaml:"bipolar"`
	Reference      float64       `yaml:"reference"`       // reference voltage (V)
	Bits           uint          `yaml:"bits"`
	SampleRate     time.Duration `yaml:"sample_rate"`     // time between conversions
	AverageSamples int           `yaml:"average_samples"` // 0 or 1 disables averaging
	Mock           MockConfig    `yaml:"mock"`
}

// MockConfig contains simulated front end parameters.
type MockConfig struct {
	Millivolts      float64       `yaml:"millivolts"`       // mean thermocouple EMF (mV)
	Swing           float64       `yaml:"swing"`            // amplitude of the slow drift (mV)
	Period          time.Duration `yaml:"period"`           // period of the slow drift
	NoiseLevel      float64       `yaml:"noise_level"`      // noise amplitude (mV)
	CalibrationTime time.Duration `yaml:"calibration_time"` // time a calibration command takes
}

// OutputConfig controls record rendering and buffering.
type OutputConfig struct {
	Format        string        `yaml:"format"`
	Decimals      int           `yaml:"decimals"`
	MaxRecord     int           `yaml:"max_record"`
	BufferSize    int           `yaml:"buffer_size"`
	Policy        string        `yaml:"policy"`
	StatsInterval time.Duration `yaml:"stats_interval"` // 0 disables periodic stats
}

// ColdJunctionConfig controls cold junction compensation of temperature output.
type ColdJunctionConfig struct {
	Mode        string  `yaml:"mode"`
	Temperature float64 `yaml:"temperature"` // degC, fixed mode; simulated RTD temperature with the mock source
	Channel     int     `yaml:"channel"`     // RTD input channel, rtd mode
	Gain        float64 `yaml:"gain"`        // PGA gain used on the RTD
	Reference   float64 `yaml:"reference"`   // RTD reference resistor in ohms
	Every       int     `yaml:"every"`       // thermocouple conversions between RTD readings
}

// CalibrationConfig contains the start-up calibration handshake parameters.
type CalibrationConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Steps            []string      `yaml:"steps"`
	FullScaleVoltage float64       `yaml:"full_scale_voltage"`
	PromptTimeout    time.Duration `yaml:"prompt_timeout"`
	CompleteTimeout  time.Duration `yaml:"complete_timeout"`
	PollInterval     time.Duration `yaml:"poll_interval"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "",
			BaudRate: 9600,
			StopBits: 2,
		},
		ADC: ADCConfig{
			Source:         SourceMock,
			BaudRate:       115200,
			Gain:           32,
			Bipolar:        true,
			Reference:      1.2,
			Bits:           24,
			SampleRate:     250 * time.Millisecond, // 4 Hz filter setting
			AverageSamples: 0,
			Mock: MockConfig{
				Millivolts:      1.0,
				Swing:           0.5,
				Period:          time.Minute,
				NoiseLevel:      0.002,
				CalibrationTime: 100 * time.Millisecond,
			},
		},
		Output: OutputConfig{
			Format:        FormatVoltage,
			Decimals:      6,
			MaxRecord:     63,
			BufferSize:    512,
			Policy:        PolicyDropRecord,
			StatsInterval: 10 * time.Second,
		},
		ColdJunction: ColdJunctionConfig{
			Mode:        ColdJunctionNone,
			Temperature: 25,
			Channel:     1,
			Gain:        32,
			Reference:   5600,
			Every:       8,
		},
		Calibration: CalibrationConfig{
			Enabled:          false,
			Steps:            []string{"zero", "full"},
			FullScaleVoltage: 0.0375,
			PromptTimeout:    5 * time.Minute,
			CompleteTimeout:  5 * time.Second,
			PollInterval:     10 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks enumerated and ranged fields.
func (c *Config) Validate() error {
	switch c.Output.Format {
	case FormatVoltage, FormatHex, FormatTemperature:
	default:
		return fmt.Errorf("invalid output format %q", c.Output.Format)
	}
	switch c.Output.Policy {
	case PolicyDropRecord, PolicyTruncate:
	default:
		return fmt.Errorf("invalid output policy %q", c.Output.Policy)
	}
	switch c.ADC.Source {
	case SourceMock, SourceSerial:
	default:
		return fmt.Errorf("invalid adc source %q", c.ADC.Source)
	}
	switch c.ColdJunction.Mode {
	case ColdJunctionNone, ColdJunctionFixed:
	case ColdJunctionRTD:
		if c.ColdJunction.Channel == c.ADC.Channel {
			return fmt.Errorf("cold junction channel %d is the thermocouple channel", c.ColdJunction.Channel)
		}
		if c.ColdJunction.Channel < 0 {
			return fmt.Errorf("invalid cold junction channel %d", c.ColdJunction.Channel)
		}
	default:
		return fmt.Errorf("invalid cold junction mode %q", c.ColdJunction.Mode)
	}
	if c.Serial.StopBits != 1 && c.Serial.StopBits != 2 {
		return fmt.Errorf("invalid stop bits %d", c.Serial.StopBits)
	}
	if c.ADC.Bits > 32 {
		return fmt.Errorf("invalid adc resolution %d bits", c.ADC.Bits)
	}
	if c.Output.Decimals < 0 || c.Output.Decimals > 9 {
		return fmt.Errorf("invalid decimals %d", c.Output.Decimals)
	}
	if c.Output.BufferSize < 2 {
		return fmt.Errorf("buffer size %d too small", c.Output.BufferSize)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.StopBits == 0 {
		c.Serial.StopBits = def.Serial.StopBits
	}

	if c.ADC.Source == "" {
		c.ADC.Source = def.ADC.Source
	}
	if c.ADC.BaudRate == 0 {
		c.ADC.BaudRate = def.ADC.BaudRate
	}
	if c.ADC.Gain == 0 {
		c.ADC.Gain = def.ADC.Gain
	}
	if c.ADC.Reference == 0 {
		c.ADC.Reference = def.ADC.Reference
	}
	if c.ADC.Bits == 0 {
		c.ADC.Bits = def.ADC.Bits
	}
	if c.ADC.SampleRate == 0 {
		c.ADC.SampleRate = def.ADC.SampleRate
	}
	if c.ADC.Mock.Period == 0 {
		c.ADC.Mock.Period = def.ADC.Mock.Period
	}
	if c.ADC.Mock.CalibrationTime == 0 {
		c.ADC.Mock.CalibrationTime = def.ADC.Mock.CalibrationTime
	}

	if c.Output.Format == "" {
		c.Output.Format = def.Output.Format
	}
	if c.Output.MaxRecord == 0 {
		c.Output.MaxRecord = def.Output.MaxRecord
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = def.Output.BufferSize
	}
	if c.Output.Policy == "" {
		c.Output.Policy = def.Output.Policy
	}

	if c.ColdJunction.Mode == "" {
		c.ColdJunction.Mode = def.ColdJunction.Mode
	}
	if c.ColdJunction.Gain == 0 {
		c.ColdJunction.Gain = def.ColdJunction.Gain
	}
	if c.ColdJunction.Reference == 0 {
		c.ColdJunction.Reference = def.ColdJunction.Reference
	}
	if c.ColdJunction.Every == 0 {
		c.ColdJunction.Every = def.ColdJunction.Every
	}

	if len(c.Calibration.Steps) == 0 {
		c.Calibration.Steps = def.Calibration.Steps
	}
	if c.Calibration.FullScaleVoltage == 0 {
		c.Calibration.FullScaleVoltage = def.Calibration.FullScaleVoltage
	}
	if c.Calibration.PromptTimeout == 0 {
		c.Calibration.PromptTimeout = def.Calibration.PromptTimeout
	}
	if c.Calibration.CompleteTimeout == 0 {
		c.Calibration.CompleteTimeout = def.Calibration.CompleteTimeout
	}
	if c.Calibration.PollInterval == 0 {
		c.Calibration.PollInterval = def.Calibration.PollInterval
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}
