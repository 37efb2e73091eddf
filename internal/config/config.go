package config

import (
	"fmt"
	"time"

	"github.com/a8m/envsubst"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no -config flag is given.
const DefaultPath = "config/person-counter.yaml"

// Config represents the complete person counter configuration
type Config struct {
	ClientID        string          `yaml:"client_id"`
	SampleInterval  time.Duration   `yaml:"sample_interval"`  // pause after every cycle (default: 3s)
	MaxCycles       int             `yaml:"max_cycles"`       // 0 runs until stopped
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"` // graceful shutdown timeout (default: 5s)
	Camera          CameraConfig    `yaml:"camera"`
	Model           ModelConfig     `yaml:"model"`
	Labels          LabelsConfig    `yaml:"labels"`
	Detection       DetectionConfig `yaml:"detection"`
	Display         DisplayConfig   `yaml:"display"`
	MQTT            MQTTConfig      `yaml:"mqtt"`
	Status          StatusConfig    `yaml:"status"`
}

// CameraConfig contains camera settings
type CameraConfig struct {
	Backend  string        `yaml:"backend"`  // gst, file, synthetic
	Width    int           `yaml:"width"`    // capture width (default: 288)
	Height   int           `yaml:"height"`   // capture height (default: 288)
	Device   string        `yaml:"device"`   // v4l2 device, empty uses libcamerasrc
	URL      string        `yaml:"url"`      // rtsp:// source for the gst backend
	Pipeline string        `yaml:"pipeline"` // full gst source override
	Path     string        `yaml:"path"`     // image file or glob for the file backend
	Timeout  time.Duration `yaml:"timeout"`  // per-capture timeout (default: 5s)
}

// ModelConfig defines the detection model
type ModelConfig struct {
	Backend       string  `yaml:"backend"` // tflite, onnx
	Path          string  `yaml:"path"`
	EdgeTPU       bool    `yaml:"edgetpu"`
	Threads       int     `yaml:"threads"`        // 0 lets the runtime decide
	MaxDetections int     `yaml:"max_detections"` // output tensor capacity (default: 100)
	ScaleX        float64 `yaml:"scale_x"`        // input/frame ratio (default: 1)
	ScaleY        float64 `yaml:"scale_y"`
	Library       string  `yaml:"library"` // onnxruntime shared library, empty uses the default
}

// LabelsConfig locates the class label file
type LabelsConfig struct {
	Path string `yaml:"path"`
}

// DetectionConfig holds the counting predicate
type DetectionConfig struct {
	Threshold   *float32 `yaml:"threshold"`    // inclusive score threshold (default: 0.6)
	TargetLabel string   `yaml:"target_label"` // default: person
}

// DisplayConfig selects the local display sink
type DisplayConfig struct {
	Backend     string        `yaml:"backend"`      // console, sensehat
	I2CBus      string        `yaml:"i2c_bus"`      // empty picks the first bus
	ScrollSpeed time.Duration `yaml:"scroll_speed"` // per-column delay (default: 100ms)
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Broker         string        `yaml:"broker"` // host name (default: localhost)
	Port           int           `yaml:"port"`   // default: 1883
	Topic          string        `yaml:"topic"`  // default: personCount
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// BrokerURL returns the tcp:// URL paho expects.
func (m MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", m.Broker, m.Port)
}

// StatusConfig controls the optional HTTP status server
type StatusConfig struct {
	Listen string `yaml:"listen"` // e.g. ":8080", empty disables
}

// Load reads a YAML configuration file, expanding ${VAR} references
func Load(path string) (*Config, error) {
	data, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates configuration bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
