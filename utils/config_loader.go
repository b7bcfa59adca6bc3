package utils

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// ─── Sensor-level configs ───────────────────────────────────────────────

// SensorConfig describes one simulated sensor.
type SensorConfig struct {
	Name        string    `yaml:"name"`
	FrequencyHz float64   `yaml:"frequency_hz"`
	BufferSize  int       `yaml:"buffer_size"`
	Noise       float64   `yaml:"noise"`
	Nominal     []float64 `yaml:"nominal"` // per-axis mean; defaults to 1.0
	Axes        int       `yaml:"axes"`    // 1..3, defaults to 3
	Seed        uint64    `yaml:"seed"`    // 0 picks a random seed
}

type FusionConfig struct {
	FrequencyHz float64 `yaml:"frequency_hz"`
}

type MonitorConfig struct {
	FrequencyHz float64 `yaml:"frequency_hz"`
}

type FaultConfig struct {
	DegradedPositionHz float64 `yaml:"degraded_position_hz"`
	DurationSeconds    int     `yaml:"duration_seconds"`
}

type SimulationConfig struct {
	DurationSeconds      int `yaml:"duration_seconds"`
	StatsIntervalSeconds int `yaml:"stats_interval_seconds"`
}

type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Broker       string `yaml:"broker"` // host:port
	ClientID     string `yaml:"client_id"`
	TopicPrefix  string `yaml:"topic_prefix"`
	PublishFused bool   `yaml:"publish_fused"`
}

// SensorsConfig is the top-level structure for sensors.yaml.
type SensorsConfig struct {
	Sensors struct {
		Rate     []SensorConfig `yaml:"rate"`
		Position []SensorConfig `yaml:"position"`
	} `yaml:"sensors"`
	Fusion     FusionConfig     `yaml:"fusion"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Faults     FaultConfig      `yaml:"faults"`
	Simulation SimulationConfig `yaml:"simulation"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ─── Storage configs ────────────────────────────────────────────────────

type CSVStorageConfig struct {
	FlushIntervalMs int  `yaml:"flush_interval_ms"`
	BufferSizeKB    int  `yaml:"buffer_size_kb"`
	WriteHeader     bool `yaml:"write_header"`
}

type StorageConfig struct {
	Storage struct {
		BaseDir       string           `yaml:"base_dir"`
		SessionPrefix string           `yaml:"session_prefix"`
		CSV           CSVStorageConfig `yaml:"csv"`
		Overwrite     bool             `yaml:"overwrite"`
	} `yaml:"storage"`
}

// ─── Defaults ───────────────────────────────────────────────────────────

// DefaultSensorsConfig is the built-in setup: three IMUs at 100 Hz, two
// GNSS receivers at 20 Hz, fusion at 50 Hz and the monitor at 20 Hz.
func DefaultSensorsConfig() *SensorsConfig {
	cfg := &SensorsConfig{}
	for _, n := range []string{"imu1", "imu2", "imu3"} {
		cfg.Sensors.Rate = append(cfg.Sensors.Rate, SensorConfig{
			Name: n, FrequencyHz: 100, BufferSize: 1000, Noise: 0.01,
		})
	}
	for _, n := range []string{"gnss1", "gnss2"} {
		cfg.Sensors.Position = append(cfg.Sensors.Position, SensorConfig{
			Name: n, FrequencyHz: 20, BufferSize: 1000, Noise: 0.01,
		})
	}
	cfg.Fusion.FrequencyHz = 50
	cfg.Monitor.FrequencyHz = 20
	cfg.Faults.DegradedPositionHz = 2
	cfg.Faults.DurationSeconds = 5
	cfg.Simulation.DurationSeconds = 10
	cfg.Simulation.StatsIntervalSeconds = 5
	cfg.Telemetry.Broker = "localhost:1883"
	cfg.Telemetry.ClientID = "sensor-fdir"
	cfg.Telemetry.TopicPrefix = "fdir"
	return cfg
}

// DefaultStorageConfig writes sessions under ./data.
func DefaultStorageConfig() *StorageConfig {
	cfg := &StorageConfig{}
	cfg.Storage.BaseDir = "data"
	cfg.Storage.SessionPrefix = "session"
	cfg.Storage.CSV.FlushIntervalMs = 100
	cfg.Storage.CSV.BufferSizeKB = 64
	cfg.Storage.CSV.WriteHeader = true
	return cfg
}

// ─── Validation ─────────────────────────────────────────────────────────

// Normalize fills per-sensor defaults (axes, nominal values).
func (c *SensorsConfig) Normalize() {
	for _, list := range [][]SensorConfig{c.Sensors.Rate, c.Sensors.Position} {
		for i := range list {
			s := &list[i]
			if s.Axes == 0 {
				s.Axes = 3
			}
			for len(s.Nominal) < 3 {
				s.Nominal = append(s.Nominal, 1.0)
			}
		}
	}
}

// Validate rejects configs the simulation cannot run with.
func (c *SensorsConfig) Validate() error {
	seen := map[string]bool{}
	for _, list := range [][]SensorConfig{c.Sensors.Rate, c.Sensors.Position} {
		for _, s := range list {
			if s.Name == "" {
				return fmt.Errorf("%w: sensor with empty name", ErrInvalidConfig)
			}
			if seen[s.Name] {
				return fmt.Errorf("%w: duplicate sensor name %q", ErrInvalidConfig, s.Name)
			}
			seen[s.Name] = true
			if s.FrequencyHz <= 0 {
				return fmt.Errorf("%w: sensor %s: frequency_hz must be > 0, got %v", ErrInvalidConfig, s.Name, s.FrequencyHz)
			}
			if s.BufferSize <= 0 {
				return fmt.Errorf("%w: sensor %s: buffer_size must be > 0, got %d", ErrInvalidConfig, s.Name, s.BufferSize)
			}
			if s.Noise < 0 {
				return fmt.Errorf("%w: sensor %s: noise must be >= 0, got %v", ErrInvalidConfig, s.Name, s.Noise)
			}
			if s.Axes < 0 || s.Axes > 3 {
				return fmt.Errorf("%w: sensor %s: axes must be 1..3, got %d", ErrInvalidConfig, s.Name, s.Axes)
			}
		}
	}
	if c.Fusion.FrequencyHz <= 0 {
		return fmt.Errorf("%w: fusion.frequency_hz must be > 0", ErrInvalidConfig)
	}
	if c.Monitor.FrequencyHz <= 0 {
		return fmt.Errorf("%w: monitor.frequency_hz must be > 0", ErrInvalidConfig)
	}
	if c.Faults.DegradedPositionHz <= 0 {
		return fmt.Errorf("%w: faults.degraded_position_hz must be > 0", ErrInvalidConfig)
	}
	if c.Faults.DurationSeconds <= 0 {
		return fmt.Errorf("%w: faults.duration_seconds must be > 0, got %d", ErrInvalidConfig, c.Faults.DurationSeconds)
	}
	if c.Simulation.DurationSeconds <= 0 {
		return fmt.Errorf("%w: simulation.duration_seconds must be > 0, got %d", ErrInvalidConfig, c.Simulation.DurationSeconds)
	}
	if c.Telemetry.Enabled && c.Telemetry.Broker == "" {
		return fmt.Errorf("%w: telemetry.broker is required when telemetry is enabled", ErrInvalidConfig)
	}
	return nil
}

// ─── Loaders ────────────────────────────────────────────────────────────

// decodeStrict parses YAML with KnownFields so typos fail loudly.
func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// LoadSensorsConfig reads sensors.yaml on top of the defaults. An empty path
// returns the defaults.
func LoadSensorsConfig(path string) (*SensorsConfig, error) {
	cfg := DefaultSensorsConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read sensors config: %w", err)
		}
		// Lists replace the defaults rather than merging into them.
		cfg.Sensors.Rate, cfg.Sensors.Position = nil, nil
		if err := decodeStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("parse sensors config: %w", err)
		}
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStorageConfig reads storage.yaml on top of the defaults. An empty path
// returns the defaults.
func LoadStorageConfig(path string) (*StorageConfig, error) {
	cfg := DefaultStorageConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read storage config: %w", err)
	}
	if err := decodeStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parse storage config: %w", err)
	}
	return cfg, nil
}
