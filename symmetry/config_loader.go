package symmetry

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultThreshold     = 0.05
	defaultTimeout       = 60 * time.Second
	defaultPublishPrefix = "symmesh"
	defaultClientID      = "symmesh"
	defaultHTTPPort      = 8080
)

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Mirror: MirrorConfig{
			Axis:      "x",
			Threshold: defaultThreshold,
			Timeout:   defaultTimeout,
			Workers:   runtime.NumCPU(),
		},
		MQTT: MQTTConfig{
			ClientID:      defaultClientID,
			RequestTopic:  defaultPublishPrefix + "/request",
			PublishPrefix: defaultPublishPrefix,
		},
		HTTP: HTTPConfig{Port: defaultHTTPPort},
		Render: RenderConfig{
			Padding:     0.1,
			PointRadius: 0.01,
			Resolution:  150,
		},
	}
}

// LoadConfig loads the configuration from a YAML file on top of DefaultConfig
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ApplyEnv lets MQTT_* environment variables override the file
func (c *Config) ApplyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"MQTT_BROKER", &c.MQTT.Broker},
		{"MQTT_CLIENT_ID", &c.MQTT.ClientID},
		{"MQTT_USERNAME", &c.MQTT.Username},
		{"MQTT_PASSWORD", &c.MQTT.Password},
		{"MQTT_PUBLISH_PREFIX", &c.MQTT.PublishPrefix},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// Validate checks field ranges. It does not require an MQTT broker.
func (c *Config) Validate() error {
	if _, err := ParseAxis(c.Mirror.Axis); err != nil {
		return fmt.Errorf("mirror.axis: %w", err)
	}
	if c.Mirror.Threshold < 0 {
		return fmt.Errorf("mirror.threshold: %w: %v", ErrInvalidThreshold, c.Mirror.Threshold)
	}
	if c.Mirror.Timeout < 0 {
		return fmt.Errorf("mirror.timeout must not be negative")
	}
	if c.Mirror.Workers < 0 {
		return fmt.Errorf("mirror.workers must not be negative")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.HTTP.Port)
	}
	return nil
}

// ValidateForMQTT additionally requires the fields the MQTT service needs
func (c *Config) ValidateForMQTT() error {
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if c.MQTT.RequestTopic == "" {
		return fmt.Errorf("mqtt.requestTopic is required")
	}
	return nil
}

// ResultTopic is where results for requestID are published
func (c *MQTTConfig) ResultTopic(requestID string) string {
	return topicFor(c.prefix(), "result", requestID)
}

// ErrorTopic is where failures for requestID are published
func (c *MQTTConfig) ErrorTopic(requestID string) string {
	return topicFor(c.prefix(), "error", requestID)
}

func (c *MQTTConfig) prefix() string {
	if c.PublishPrefix == "" {
		return defaultPublishPrefix
	}
	return c.PublishPrefix
}

func topicFor(prefix, kind, requestID string) string {
	if requestID == "" {
		return fmt.Sprintf("%s/%s", prefix, kind)
	}
	return fmt.Sprintf("%s/%s/%s", prefix, kind, requestID)
}
