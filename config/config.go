package config

import (
	"cldpip/common"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	DefaultCheckInterval = 300 * time.Second
	DefaultRetryBackoff  = 120 * time.Second
	DefaultSourceTimeout = 10 * time.Second
	DefaultNotifyTimeout = 10 * time.Second
	DefaultMQTTTopic     = "cldpip"
	DefaultMQTTClientID  = "cldpip"
)

type Config struct {
	Service  Service          `toml:"service" json:"service" yaml:"service"`
	Log      Log              `toml:"log" json:"log" yaml:"log"`
	Provider CloudflareConfig `toml:"provider" json:"provider" yaml:"provider"`
	Sources  []IPSource       `toml:"source" json:"source" yaml:"source"`
	Notifier Notifier         `toml:"notifier" json:"notifier" yaml:"notifier"`
	Metrics  Metrics          `toml:"metrics" json:"metrics" yaml:"metrics"`
}

type Service struct {
	Name          string          `toml:"name" json:"name" yaml:"name"`
	CheckInterval common.Duration `toml:"check_interval" json:"check_interval" yaml:"check_interval"`
	RetryBackoff  common.Duration `toml:"retry_backoff" json:"retry_backoff" yaml:"retry_backoff"`
	MaxBackoff    common.Duration `toml:"max_backoff" json:"max_backoff" yaml:"max_backoff"`
	BackoffFactor float64         `toml:"backoff_factor" json:"backoff_factor" yaml:"backoff_factor"`
	// Supersede lets a pending address change replace the target of a
	// reconciliation that is still retrying.
	Supersede bool `toml:"supersede" json:"supersede" yaml:"supersede"`
}

type Log struct {
	Level     *zapcore.Level `toml:"level" json:"level" yaml:"level"`
	Encoding  *string        `toml:"encoding" json:"encoding" yaml:"encoding"`
	InfoPath  *[]string      `toml:"info_path" json:"info_path" yaml:"info_path"`
	ErrorPath *[]string      `toml:"error_path" json:"error_path" yaml:"error_path"`
}

type CloudflareConfig struct {
	APIToken      string          `toml:"api_token" json:"api_token" yaml:"api_token"`
	ZoneID        string          `toml:"zone_id" json:"zone_id" yaml:"zone_id"`
	ZoneName      string          `toml:"zone_name" json:"zone_name" yaml:"zone_name"`
	BaseURL       string          `toml:"base_url,omitempty" json:"base_url,omitempty" yaml:"base_url,omitempty"`
	MaxRetries    int             `toml:"max_retries" json:"max_retries" yaml:"max_retries"`
	MinRetryDelay common.Duration `toml:"min_retry_delay" json:"min_retry_delay" yaml:"min_retry_delay"`
	MaxRetryDelay common.Duration `toml:"max_retry_delay" json:"max_retry_delay" yaml:"max_retry_delay"`
}

type IPSource struct {
	Type   string         `toml:"type" json:"type" yaml:"type"`
	Source string         `toml:"source" json:"source" yaml:"source"`
	Config map[string]any `toml:"config,omitempty" json:"config,omitempty" yaml:"config,omitempty"`
}

type IPSourceSimpleConfig struct {
	Timeout common.Duration `mapstructure:"timeout"`
}

type IPSourceCloudflareTraceConfig struct {
	Timeout      common.Duration `mapstructure:"timeout"`
	ForceAddress string          `mapstructure:"force_address"`
	IPHost       bool            `mapstructure:"ip_host"`
}

type IPSourceQuorumConfig struct {
	Timeout common.Duration `mapstructure:"timeout"`
	URLs    []string        `mapstructure:"urls"`
}

type Notifier struct {
	Enabled  bool            `toml:"enabled" json:"enabled" yaml:"enabled"`
	Broker   string          `toml:"broker" json:"broker" yaml:"broker"`
	ClientID string          `toml:"client_id" json:"client_id" yaml:"client_id"`
	Username string          `toml:"username" json:"username" yaml:"username"`
	Password string          `toml:"password" json:"password" yaml:"password"`
	Topic    string          `toml:"topic" json:"topic" yaml:"topic"`
	Timeout  common.Duration `toml:"timeout" json:"timeout" yaml:"timeout"`
}

type Metrics struct {
	Listen string `toml:"listen" json:"listen" yaml:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults fills every unset field with its default value.
func (c *Config) SetDefaults() {
	if c.Service.CheckInterval == 0 {
		c.Service.CheckInterval = common.Duration(DefaultCheckInterval)
	}
	if c.Service.RetryBackoff == 0 {
		c.Service.RetryBackoff = common.Duration(DefaultRetryBackoff)
	}
	if c.Service.BackoffFactor < 1 {
		c.Service.BackoffFactor = 1
	}
	if c.Service.MaxBackoff < c.Service.RetryBackoff {
		c.Service.MaxBackoff = c.Service.RetryBackoff
	}

	if c.Provider.MaxRetries == 0 {
		c.Provider.MaxRetries = 5
	}
	if c.Provider.MinRetryDelay == 0 {
		c.Provider.MinRetryDelay = common.Duration(time.Second)
	}
	if c.Provider.MaxRetryDelay == 0 {
		c.Provider.MaxRetryDelay = common.Duration(30 * time.Second)
	}

	if len(c.Sources) == 0 {
		c.Sources = []IPSource{
			{Type: "simple", Source: "https://checkip.amazonaws.com/"},
			{Type: "simple", Source: "https://api.ipify.org/"},
		}
	}

	if c.Notifier.ClientID == "" {
		c.Notifier.ClientID = DefaultMQTTClientID
	}
	if c.Notifier.Topic == "" {
		c.Notifier.Topic = DefaultMQTTTopic
	}
	if c.Notifier.Timeout == 0 {
		c.Notifier.Timeout = common.Duration(DefaultNotifyTimeout)
	}
}
