// Package config loads the boot-time configuration of the meter. Nothing here
// can be changed while the process runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ryansname/powermeter/src/link"
)

// MaxBufferCapacity bounds the measurement buffer so a slot index fits a byte
const MaxBufferCapacity = 255

// Config represents the application configuration.
type Config struct {
	DeviceID string         `yaml:"device_id"`
	Sampling SamplingConfig `yaml:"sampling"`
	Sensor   SensorConfig   `yaml:"sensor"`
	WiFi     WiFiConfig     `yaml:"wifi"`
	Cloud    CloudConfig    `yaml:"cloud"`
	Local    LocalConfig    `yaml:"local"`
	Retry    RetryConfig    `yaml:"retry"`
	Time     TimeConfig     `yaml:"time"`
	Display  DisplayConfig  `yaml:"display"`
}

// SamplingConfig sets the sampling and upload cadence.
type SamplingConfig struct {
	SamplePeriod   time.Duration `yaml:"sample_period"`
	PublishPeriod  time.Duration `yaml:"publish_period"`
	BufferCapacity int           `yaml:"buffer_capacity"`
}

// SensorConfig describes the current-sensor front-end.
type SensorConfig struct {
	Port         string        `yaml:"port"`
	BaudRate     int           `yaml:"baud_rate"`
	Mock         bool          `yaml:"mock"`
	MainsVoltage float64       `yaml:"mains_voltage"`
	Calibration  float64       `yaml:"calibration"`
	VRef         float64       `yaml:"vref"`
	ADCBits      int           `yaml:"adc_bits"`
	Samples      int           `yaml:"samples"` // ADC samples per RMS window
	ReadTimeout  time.Duration `yaml:"read_timeout"`
}

// WiFiConfig selects the wireless interface to watch.
type WiFiConfig struct {
	Interface      string        `yaml:"interface"`
	ConnectCommand []string      `yaml:"connect_command,omitempty"` // run on each connect attempt, optional
	SignalPeriod   time.Duration `yaml:"signal_period"`
	Simulate       bool          `yaml:"simulate"`
}

// CloudConfig is the TLS mutual-auth IoT endpoint.
type CloudConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Endpoint        string        `yaml:"endpoint"`
	Port            int           `yaml:"port"`
	CAFile          string        `yaml:"ca_file"`
	CertFile        string        `yaml:"cert_file"`
	KeyFile         string        `yaml:"key_file"`
	HeartbeatPeriod time.Duration `yaml:"heartbeat_period"`
}

// LocalConfig is the Home Assistant MQTT hub. Credentials come from the
// environment.
type LocalConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Broker          string        `yaml:"broker"`
	Port            int           `yaml:"port"`
	HeartbeatPeriod time.Duration `yaml:"heartbeat_period"`
	Username        string        `yaml:"-"`
	Password        string        `yaml:"-"`
}

// RetryConfig bounds the reconnect backoff shared by every link.
type RetryConfig struct {
	Min         time.Duration `yaml:"min"`
	Max         time.Duration `yaml:"max"`
	Exponential bool          `yaml:"exponential"`
}

// TimeConfig controls the on-screen clock.
type TimeConfig struct {
	Enabled      bool          `yaml:"enabled"` // NTP correction
	Server       string        `yaml:"server"`
	ResyncPeriod time.Duration `yaml:"resync_period"`
	Format       string        `yaml:"format"`
	Timezone     string        `yaml:"timezone"`
}

// DisplayConfig controls the renderer.
type DisplayConfig struct {
	RefreshPeriod time.Duration `yaml:"refresh_period"`
	SnapshotPath  string        `yaml:"snapshot_path"`
	SharedContext bool          `yaml:"shared_context"` // step sampler and renderer on one OS thread
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		DeviceID: "powermeter",
		Sampling: SamplingConfig{
			SamplePeriod:   time.Second,
			PublishPeriod:  30 * time.Second,
			BufferCapacity: 30,
		},
		Sensor: SensorConfig{
			Port:         "/dev/ttyUSB0",
			BaudRate:     115200,
			MainsVoltage: 230,
			Calibration:  111.1,
			VRef:         3.3,
			ADCBits:      12,
			Samples:      1480,
			ReadTimeout:  500 * time.Millisecond,
		},
		WiFi: WiFiConfig{
			Interface:    "wlan0",
			SignalPeriod: 10 * time.Second,
		},
		Cloud: CloudConfig{
			Enabled:         false,
			Port:            8883,
			CAFile:          "certs/ca.pem",
			CertFile:        "certs/device.pem.crt",
			KeyFile:         "certs/private.pem.key",
			HeartbeatPeriod: 5 * time.Minute,
		},
		Local: LocalConfig{
			Enabled:         false,
			Broker:          "homeassistant.local",
			Port:            1883,
			HeartbeatPeriod: 30 * time.Second,
		},
		Retry: RetryConfig{
			Min:         time.Second,
			Max:         time.Minute,
			Exponential: true,
		},
		Time: TimeConfig{
			Enabled:      true,
			Server:       "pool.ntp.org",
			ResyncPeriod: time.Hour,
			Format:       "15:04",
			Timezone:     "Local",
		},
		Display: DisplayConfig{
			RefreshPeriod: time.Second,
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

	return cfg, nil
}

// LoadSecrets reads broker credentials from the environment, after loading
// envFile if it exists.
func (c *Config) LoadSecrets(envFile string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	c.Local.Username = os.Getenv("MQTT_USERNAME")
	c.Local.Password = os.Getenv("MQTT_PASSWORD")

	if c.Local.Enabled && (c.Local.Username == "" || c.Local.Password == "") {
		return errors.New("MQTT_USERNAME and MQTT_PASSWORD must be set when the local broker is enabled")
	}
	return nil
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

// Validate checks the relations between fields that defaults cannot repair
func (c *Config) Validate() error {
	var errs []error

	s := c.Sampling
	if s.SamplePeriod <= 0 {
		errs = append(errs, errors.New("sampling.sample_period must be positive"))
	} else if s.PublishPeriod <= 0 || s.PublishPeriod%s.SamplePeriod != 0 {
		errs = append(errs, fmt.Errorf("sampling.publish_period %s must be a positive multiple of sample_period %s",
			s.PublishPeriod, s.SamplePeriod))
	}
	if s.BufferCapacity < 1 || s.BufferCapacity > MaxBufferCapacity {
		errs = append(errs, fmt.Errorf("sampling.buffer_capacity %d out of range [1, %d]",
			s.BufferCapacity, MaxBufferCapacity))
	}

	if c.Retry.Min < link.MinRetryInterval {
		errs = append(errs, fmt.Errorf("retry.min %s is below %s", c.Retry.Min, link.MinRetryInterval))
	}
	if c.Retry.Max < c.Retry.Min {
		errs = append(errs, fmt.Errorf("retry.max %s is below retry.min %s", c.Retry.Max, c.Retry.Min))
	}

	if c.Cloud.Enabled {
		if c.Cloud.Endpoint == "" {
			errs = append(errs, errors.New("cloud.endpoint is required when cloud is enabled"))
		}
		if c.Cloud.CAFile == "" || c.Cloud.CertFile == "" || c.Cloud.KeyFile == "" {
			errs = append(errs, errors.New("cloud.ca_file, cert_file and key_file are required when cloud is enabled"))
		}
	}
	if c.Local.Enabled && c.Local.Broker == "" {
		errs = append(errs, errors.New("local.broker is required when local is enabled"))
	}

	if _, err := time.LoadLocation(c.Time.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("time.timezone: %w", err))
	}

	return errors.Join(errs...)
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.DeviceID == "" {
		c.DeviceID = def.DeviceID
	}

	if c.Sampling.SamplePeriod == 0 {
		c.Sampling.SamplePeriod = def.Sampling.SamplePeriod
	}
	if c.Sampling.PublishPeriod == 0 {
		c.Sampling.PublishPeriod = def.Sampling.PublishPeriod
	}
	if c.Sampling.BufferCapacity == 0 {
		c.Sampling.BufferCapacity = def.Sampling.BufferCapacity
	}

	if c.Sensor.Port == "" {
		c.Sensor.Port = def.Sensor.Port
	}
	if c.Sensor.BaudRate == 0 {
		c.Sensor.BaudRate = def.Sensor.BaudRate
	}
	if c.Sensor.MainsVoltage == 0 {
		c.Sensor.MainsVoltage = def.Sensor.MainsVoltage
	}
	if c.Sensor.Calibration == 0 {
		c.Sensor.Calibration = def.Sensor.Calibration
	}
	if c.Sensor.VRef == 0 {
		c.Sensor.VRef = def.Sensor.VRef
	}
	if c.Sensor.ADCBits == 0 {
		c.Sensor.ADCBits = def.Sensor.ADCBits
	}
	if c.Sensor.Samples == 0 {
		c.Sensor.Samples = def.Sensor.Samples
	}
	if c.Sensor.ReadTimeout == 0 {
		c.Sensor.ReadTimeout = def.Sensor.ReadTimeout
	}

	if c.WiFi.Interface == "" {
		c.WiFi.Interface = def.WiFi.Interface
	}
	if c.WiFi.SignalPeriod == 0 {
		c.WiFi.SignalPeriod = def.WiFi.SignalPeriod
	}

	if c.Cloud.Port == 0 {
		c.Cloud.Port = def.Cloud.Port
	}
	if c.Cloud.HeartbeatPeriod == 0 {
		c.Cloud.HeartbeatPeriod = def.Cloud.HeartbeatPeriod
	}

	if c.Local.Port == 0 {
		c.Local.Port = def.Local.Port
	}
	if c.Local.HeartbeatPeriod == 0 {
		c.Local.HeartbeatPeriod = def.Local.HeartbeatPeriod
	}

	if c.Retry.Min == 0 {
		c.Retry.Min = def.Retry.Min
	}
	if c.Retry.Max == 0 {
		c.Retry.Max = def.Retry.Max
	}

	if c.Time.Server == "" {
		c.Time.Server = def.Time.Server
	}
	if c.Time.ResyncPeriod == 0 {
		c.Time.ResyncPeriod = def.Time.ResyncPeriod
	}
	if c.Time.Format == "" {
		c.Time.Format = def.Time.Format
	}
	if c.Time.Timezone == "" {
		c.Time.Timezone = def.Time.Timezone
	}

	if c.Display.RefreshPeriod == 0 {
		c.Display.RefreshPeriod = def.Display.RefreshPeriod
	}
}
