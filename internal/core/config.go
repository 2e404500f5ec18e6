package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Camera       CameraConfig       `yaml:"camera"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Receiver     ReceiverConfig     `yaml:"receiver"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// CameraConfig describes how to reach the camera's CGI API.
type CameraConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Channel    int    `yaml:"channel"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// SubscriptionConfig drives the event subscription lifecycle.
type SubscriptionConfig struct {
	// WebhookURL is where the camera pushes event notifications. It must
	// be reachable from the camera's network.
	WebhookURL string `yaml:"webhook_url"`
	// OnvifPort is the camera's ONVIF event service port. Zero means
	// discover it via GetNetPort at startup.
	OnvifPort int `yaml:"onvif_port"`
	// LeaseTermSec is the termination time requested on subscribe/renew.
	LeaseTermSec int `yaml:"lease_term_sec"`
	// RenewalThresholdSec is the remaining-lease margin at which a renewal
	// becomes due.
	RenewalThresholdSec int `yaml:"renewal_threshold_sec"`
	// PollIntervalSec is the keeper's renewal-due polling cadence.
	PollIntervalSec int `yaml:"poll_interval_sec"`
	TimeoutSec      int `yaml:"timeout_sec"`
}

// ReceiverConfig configures the local webhook HTTP server.
type ReceiverConfig struct {
	Port       int  `yaml:"port"`
	Production bool `yaml:"production"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

const (
	defaultLeaseTermSec        = 900
	defaultRenewalThresholdSec = 100
	defaultPollIntervalSec     = 10
	defaultTimeoutSec          = 30
	defaultCameraPort          = 80
)

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Camera.Port == 0 {
		c.Camera.Port = defaultCameraPort
	}
	if c.Camera.TimeoutSec == 0 {
		c.Camera.TimeoutSec = defaultTimeoutSec
	}
	if c.Subscription.LeaseTermSec == 0 {
		c.Subscription.LeaseTermSec = defaultLeaseTermSec
	}
	if c.Subscription.RenewalThresholdSec == 0 {
		c.Subscription.RenewalThresholdSec = defaultRenewalThresholdSec
	}
	if c.Subscription.PollIntervalSec == 0 {
		c.Subscription.PollIntervalSec = defaultPollIntervalSec
	}
	if c.Subscription.TimeoutSec == 0 {
		c.Subscription.TimeoutSec = defaultTimeoutSec
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Camera.Host == "" {
		return fmt.Errorf("camera host is required")
	}

	if c.Camera.Port <= 0 || c.Camera.Port > 65535 {
		return fmt.Errorf("invalid camera port: %d", c.Camera.Port)
	}

	if c.Camera.Username == "" || c.Camera.Password == "" {
		return fmt.Errorf("camera credentials are required")
	}

	if c.Camera.Channel < 0 {
		return fmt.Errorf("invalid camera channel: %d", c.Camera.Channel)
	}

	if c.Subscription.WebhookURL == "" {
		return fmt.Errorf("subscription webhook_url is required")
	}

	if !strings.HasPrefix(c.Subscription.WebhookURL, "http://") &&
		!strings.HasPrefix(c.Subscription.WebhookURL, "https://") {
		return fmt.Errorf("webhook_url must be an http(s) URL: %s", c.Subscription.WebhookURL)
	}

	if c.Subscription.OnvifPort < 0 || c.Subscription.OnvifPort > 65535 {
		return fmt.Errorf("invalid onvif port: %d", c.Subscription.OnvifPort)
	}

	if c.Subscription.LeaseTermSec <= 0 {
		return fmt.Errorf("lease_term_sec must be positive")
	}

	if c.Subscription.RenewalThresholdSec <= 0 {
		return fmt.Errorf("renewal_threshold_sec must be positive")
	}

	if c.Subscription.PollIntervalSec <= 0 {
		return fmt.Errorf("poll_interval_sec must be positive")
	}

	if c.Receiver.Port <= 0 || c.Receiver.Port > 65535 {
		return fmt.Errorf("invalid receiver port: %d", c.Receiver.Port)
	}

	return nil
}

// CameraTimeout returns the CGI request timeout as a duration.
func (c *Config) CameraTimeout() time.Duration {
	return time.Duration(c.Camera.TimeoutSec) * time.Second
}

// LeaseTerm returns the requested subscription termination time.
func (c *Config) LeaseTerm() time.Duration {
	return time.Duration(c.Subscription.LeaseTermSec) * time.Second
}

// RenewalThreshold returns the remaining-lease margin for renewals.
func (c *Config) RenewalThreshold() time.Duration {
	return time.Duration(c.Subscription.RenewalThresholdSec) * time.Second
}

// PollInterval returns the keeper polling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Subscription.PollIntervalSec) * time.Second
}

// SubscriptionTimeout returns the ONVIF request timeout.
func (c *Config) SubscriptionTimeout() time.Duration {
	return time.Duration(c.Subscription.TimeoutSec) * time.Second
}
