package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ESL       ESLConfig      `yaml:"esl" envPrefix:"ESL_"`
	AppPrefix string         `yaml:"app_prefix" env:"APP_PREFIX"`
	Callbacks CallbackConfig `yaml:"callbacks" envPrefix:"CALLBACK_"`
	MQTT      MQTTConfig     `yaml:"mqtt" envPrefix:"MQTT_"`
	Metrics   MetricsConfig  `yaml:"metrics" envPrefix:"METRICS_"`
	LogLevel  string         `yaml:"log_level" env:"LOG_LEVEL"`
}

type ESLConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Password string `yaml:"password" env:"PASSWORD"`
}

type CallbackConfig struct {
	DefaultHangupURL string        `yaml:"default_hangup_url" env:"DEFAULT_HANGUP_URL"`
	DefaultAnswerURL string        `yaml:"default_answer_url" env:"DEFAULT_ANSWER_URL"`
	ExtraChannelVars []string      `yaml:"extra_channel_vars" env:"EXTRA_CHANNEL_VARS" envSeparator:","`
	Timeout          time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled" env:"ENABLED"`
	Broker      string `yaml:"broker" env:"BROKER"`
	ClientID    string `yaml:"client_id" env:"CLIENT_ID"`
	TopicPrefix string `yaml:"topic_prefix" env:"TOPIC_PREFIX"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

func (c *ESLConfig) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

// Load reads the YAML file at path, applies ESL_CALLBACKS_* environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "ESL_CALLBACKS_"}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used for keys the file leaves out.
func Default() *Config {
	return &Config{
		ESL: ESLConfig{
			Host: "127.0.0.1",
			Port: 8021,
		},
		AppPrefix: "eqivo",
		Callbacks: CallbackConfig{
			Timeout: 10 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "esl-callbacks",
			TopicPrefix: "esl",
		},
		Metrics: MetricsConfig{
			Addr: ":9464",
		},
		LogLevel: "info",
	}
}

func (c *Config) validate() error {
	if c.ESL.Host == "" {
		return fmt.Errorf("esl.host is required")
	}
	if c.ESL.Port < 1 || c.ESL.Port > 65535 {
		return fmt.Errorf("esl.port must be between 1 and 65535, got %d", c.ESL.Port)
	}
	if c.ESL.Password == "" {
		return fmt.Errorf("esl.password is required")
	}
	if c.AppPrefix == "" {
		return fmt.Errorf("app_prefix is required")
	}
	if strings.ContainsAny(c.AppPrefix, " \t\r\n") {
		return fmt.Errorf("app_prefix must not contain whitespace, got %q", c.AppPrefix)
	}
	if err := validateURL("callbacks.default_hangup_url", c.Callbacks.DefaultHangupURL); err != nil {
		return err
	}
	if err := validateURL("callbacks.default_answer_url", c.Callbacks.DefaultAnswerURL); err != nil {
		return err
	}
	if c.Callbacks.Timeout <= 0 {
		return fmt.Errorf("callbacks.timeout must be positive, got %s", c.Callbacks.Timeout)
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required")
		}
		if c.MQTT.ClientID == "" {
			return fmt.Errorf("mqtt.client_id is required")
		}
		if c.MQTT.TopicPrefix == "" {
			return fmt.Errorf("mqtt.topic_prefix is required")
		}
	}
	return nil
}

func validateURL(key, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}
