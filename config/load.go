package config

import (
	"cldpip/common"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingToken = errors.New("missing Cloudflare API token")
	ErrMissingZone  = errors.New("missing Cloudflare zone id or zone name")
)

// Load reads the config file at path, decoding it according to its suffix.
// A missing file is only an error when required is set; otherwise the
// defaults are returned.
func Load(path string, required bool) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("failed opening config: %w", err)
	}
	defer f.Close()

	c, err := Decode(f, path)
	if err != nil {
		return Config{}, fmt.Errorf("failed decoding config %s: %w", path, err)
	}

	return c, nil
}

// Decode parses r as TOML, YAML or JSON, chosen by the name suffix.
func Decode(r io.Reader, name string) (c Config, err error) {
	switch {
	case strings.HasSuffix(name, ".toml"):
		err = toml.NewDecoder(r).Decode(&c)
	case strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml"):
		err = yaml.NewDecoder(r).Decode(&c)
	case strings.HasSuffix(name, ".json"):
		err = json.NewDecoder(r).Decode(&c)
	default:
		return Config{}, fmt.Errorf("unknown config format: %s", name)
	}

	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}

	c.SetDefaults()
	return c, nil
}

// LoadDotenv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotenv(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed loading %s: %w", file, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto c. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("CLOUDFLARE_TOKEN", &c.Provider.APIToken)
	str("CLOUDFLARE_ZONE_ID", &c.Provider.ZoneID)
	str("CLOUDFLARE_ZONE_NAME", &c.Provider.ZoneName)
	str("MQTT_BROKER", &c.Notifier.Broker)
	str("MQTT_TOPIC", &c.Notifier.Topic)
	str("MQTT_CLIENT_ID", &c.Notifier.ClientID)
	str("MQTT_USERNAME", &c.Notifier.Username)
	str("MQTT_PASSWORD", &c.Notifier.Password)
	str("CLDPIP_METRICS_LISTEN", &c.Metrics.Listen)

	if v, ok := lookup("MQTT_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("bad MQTT_ENABLED %q: %w", v, err)
		}
		c.Notifier.Enabled = enabled
	}

	if v, ok := lookup("CLDPIP_CHECK_INTERVAL"); ok && v != "" {
		var d common.Duration
		if err := d.UnmarshalText([]byte(v)); err != nil {
			// plain seconds, as accepted by --check-delay
			secs, serr := strconv.ParseUint(v, 10, 32)
			if serr != nil {
				return fmt.Errorf("bad CLDPIP_CHECK_INTERVAL %q: %w", v, err)
			}
			d = common.Duration(time.Duration(secs) * time.Second)
		}
		if d > 0 {
			c.Service.CheckInterval = d
		}
	}

	return nil
}

// Validate reports configuration that makes talking to the DNS provider
// impossible.
func (c *Config) Validate() error {
	var errs []error
	if c.Provider.APIToken == "" {
		errs = append(errs, ErrMissingToken)
	}
	if c.Provider.ZoneID == "" && c.Provider.ZoneName == "" {
		errs = append(errs, ErrMissingZone)
	}
	if c.Notifier.Enabled && c.Notifier.Broker == "" {
		errs = append(errs, errors.New("notifier enabled without broker"))
	}
	return errors.Join(errs...)
}
