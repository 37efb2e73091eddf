package config

import (
	"fmt"
	"regexp"
	"time"
)

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// Validate checks the configuration and fills in defaults
func Validate(cfg *Config) error {
	if cfg.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	// the payload is comma-joined, so a comma would make it ambiguous
	if !clientIDPattern.MatchString(cfg.ClientID) {
		return fmt.Errorf("client_id must match pattern [A-Za-z0-9_-]+")
	}

	if cfg.SampleInterval < 0 {
		return fmt.Errorf("sample_interval must be >= 0")
	}
	if cfg.SampleInterval == 0 {
		cfg.SampleInterval = 3 * time.Second
	}
	if cfg.MaxCycles < 0 {
		return fmt.Errorf("max_cycles must be >= 0")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	if err := validateCamera(&cfg.Camera); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	if err := validateModel(&cfg.Model); err != nil {
		return fmt.Errorf("model: %w", err)
	}

	if cfg.Labels.Path == "" {
		return fmt.Errorf("labels.path is required")
	}

	if cfg.Detection.Threshold == nil {
		threshold := float32(0.6)
		cfg.Detection.Threshold = &threshold
	}
	if t := *cfg.Detection.Threshold; t < 0 || t > 1 {
		return fmt.Errorf("detection.threshold must be within [0,1], got %v", t)
	}
	if cfg.Detection.TargetLabel == "" {
		cfg.Detection.TargetLabel = "person"
	}

	switch cfg.Display.Backend {
	case "":
		cfg.Display.Backend = "console"
	case "console", "sensehat":
	default:
		return fmt.Errorf("display.backend: unknown backend '%s' (must be 'console' or 'sensehat')", cfg.Display.Backend)
	}
	if cfg.Display.ScrollSpeed <= 0 {
		cfg.Display.ScrollSpeed = 100 * time.Millisecond
	}

	return validateMQTT(&cfg.MQTT)
}

func validateCamera(c *CameraConfig) error {
	switch c.Backend {
	case "":
		c.Backend = "gst"
	case "gst", "synthetic":
	case "file":
		if c.Path == "" {
			return fmt.Errorf("path is required for the file backend")
		}
	default:
		return fmt.Errorf("unknown backend '%s' (must be 'gst', 'file' or 'synthetic')", c.Backend)
	}

	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("resolution must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Width == 0 {
		c.Width = 288
	}
	if c.Height == 0 {
		c.Height = 288
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return nil
}

func validateModel(m *ModelConfig) error {
	switch m.Backend {
	case "":
		m.Backend = "tflite"
	case "tflite", "onnx":
	default:
		return fmt.Errorf("unknown backend '%s' (must be 'tflite' or 'onnx')", m.Backend)
	}

	if m.Path == "" {
		return fmt.Errorf("path is required")
	}
	if m.EdgeTPU && m.Backend != "tflite" {
		return fmt.Errorf("edgetpu requires the tflite backend")
	}
	if m.Threads < 0 {
		return fmt.Errorf("threads must be >= 0")
	}
	if m.MaxDetections <= 0 {
		m.MaxDetections = 100
	}
	if m.ScaleX < 0 || m.ScaleY < 0 {
		return fmt.Errorf("scale must be positive")
	}
	if m.ScaleX == 0 {
		m.ScaleX = 1
	}
	if m.ScaleY == 0 {
		m.ScaleY = 1
	}
	return nil
}

func validateMQTT(m *MQTTConfig) error {
	if m.Broker == "" {
		m.Broker = "localhost"
	}
	if m.Port == 0 {
		m.Port = 1883
	}
	if m.Port < 0 || m.Port > 65535 {
		return fmt.Errorf("mqtt.port out of range: %d", m.Port)
	}
	if m.Topic == "" {
		m.Topic = "personCount"
	}
	if m.ConnectTimeout <= 0 {
		m.ConnectTimeout = 5 * time.Second
	}
	return nil
}
