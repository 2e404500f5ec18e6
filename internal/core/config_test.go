package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
camera:
  host: 192.168.1.50
  username: admin
  password: secret
subscription:
  webhook_url: http://192.168.1.10:9000/onvif_event
receiver:
  port: 9000
`

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 80, config.Camera.Port)
	assert.Equal(t, 30*time.Second, config.CameraTimeout())
	assert.Equal(t, 900*time.Second, config.LeaseTerm())
	assert.Equal(t, 100*time.Second, config.RenewalThreshold())
	assert.Equal(t, 10*time.Second, config.PollInterval())
	assert.Equal(t, 30*time.Second, config.SubscriptionTimeout())
	assert.Zero(t, config.Subscription.OnvifPort, "onvif port is discovered when unset")
}

func TestLoadConfigExplicitValues(t *testing.T) {
	path := writeConfig(t, `
camera:
  host: 192.168.1.50
  port: 8080
  username: admin
  password: secret
  channel: 1
  timeout_sec: 5
subscription:
  webhook_url: http://192.168.1.10:9000/onvif_event
  onvif_port: 8000
  lease_term_sec: 600
  renewal_threshold_sec: 60
  poll_interval_sec: 5
receiver:
  port: 9000
  production: true
logging:
  level: debug
  output: console
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Camera.Port)
	assert.Equal(t, 1, config.Camera.Channel)
	assert.Equal(t, 5*time.Second, config.CameraTimeout())
	assert.Equal(t, 8000, config.Subscription.OnvifPort)
	assert.Equal(t, 600*time.Second, config.LeaseTerm())
	assert.Equal(t, 60*time.Second, config.RenewalThreshold())
	assert.Equal(t, 5*time.Second, config.PollInterval())
	assert.True(t, config.Receiver.Production)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := writeConfig(t, "camera: [not: a: mapping")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Camera: CameraConfig{
				Host:     "192.168.1.50",
				Port:     80,
				Username: "admin",
				Password: "secret",
			},
			Subscription: SubscriptionConfig{
				WebhookURL:          "http://192.168.1.10:9000/onvif_event",
				LeaseTermSec:        900,
				RenewalThresholdSec: 100,
				PollIntervalSec:     10,
			},
			Receiver: ReceiverConfig{Port: 9000},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing host", func(c *Config) { c.Camera.Host = "" }, "camera host"},
		{"bad camera port", func(c *Config) { c.Camera.Port = 70000 }, "camera port"},
		{"missing credentials", func(c *Config) { c.Camera.Password = "" }, "credentials"},
		{"negative channel", func(c *Config) { c.Camera.Channel = -1 }, "channel"},
		{"missing webhook", func(c *Config) { c.Subscription.WebhookURL = "" }, "webhook_url"},
		{"webhook not http", func(c *Config) { c.Subscription.WebhookURL = "ftp://x" }, "http(s)"},
		{"bad onvif port", func(c *Config) { c.Subscription.OnvifPort = 99999 }, "onvif port"},
		{"zero lease term", func(c *Config) { c.Subscription.LeaseTermSec = 0 }, "lease_term_sec"},
		{"zero threshold", func(c *Config) { c.Subscription.RenewalThresholdSec = 0 }, "renewal_threshold_sec"},
		{"zero poll interval", func(c *Config) { c.Subscription.PollIntervalSec = 0 }, "poll_interval_sec"},
		{"bad receiver port", func(c *Config) { c.Receiver.Port = 0 }, "receiver port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(&config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
