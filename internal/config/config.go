package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Grid        GridConfig        `mapstructure:"grid"`
	Payoff      PayoffConfig      `mapstructure:"payoff"`
	Sensitivity SensitivityConfig `mapstructure:"sensitivity"`
	WS          WSConfig          `mapstructure:"ws"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Client      ClientConfig      `mapstructure:"client"`
	Batch       BatchConfig       `mapstructure:"batch"`
	Defaults    DefaultsConfig    `mapstructure:"defaults"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required,numeric"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
}

// GridConfig bounds the surface resolution accepted from callers.
type GridConfig struct {
	SpotPoints     int     `mapstructure:"spot_points" validate:"gtefield=MinPoints,ltefield=MaxPoints"`
	VolPoints      int     `mapstructure:"vol_points" validate:"gtefield=MinPoints,ltefield=MaxPoints"`
	MinPoints      int     `mapstructure:"min_points" validate:"gte=2"`
	MaxPoints      int     `mapstructure:"max_points" validate:"gtefield=MinPoints"`
	Workers        int     `mapstructure:"workers" validate:"gte=0"`
	MinVol         float64 `mapstructure:"min_vol" validate:"gte=0"`
	MaxVol         float64 `mapstructure:"max_vol" validate:"gtfield=MinVol"`
	SpotLowFactor  float64 `mapstructure:"spot_low_factor" validate:"gt=0"`
	SpotHighFactor float64 `mapstructure:"spot_high_factor" validate:"gtfield=SpotLowFactor"`
	SpotFloor      float64 `mapstructure:"spot_floor" validate:"gt=0"`
}

type PayoffConfig struct {
	Points     int     `mapstructure:"points" validate:"gte=2"`
	LowFactor  float64 `mapstructure:"low_factor" validate:"gt=0"`
	HighFactor float64 `mapstructure:"high_factor" validate:"gtfield=LowFactor"`
	Floor      float64 `mapstructure:"floor" validate:"gt=0"`
}

type SensitivityConfig struct {
	Points         int     `mapstructure:"points" validate:"gte=2"`
	MinVol         float64 `mapstructure:"min_vol" validate:"gt=0"`
	MinMaturity    float64 `mapstructure:"min_maturity" validate:"gt=0"`
	MaturityFactor float64 `mapstructure:"maturity_factor" validate:"gt=0"`
}

type WSConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	WriteWait      time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	PongWait       time.Duration `mapstructure:"pong_wait" validate:"gt=0"`
	MaxMessageSize int64         `mapstructure:"max_message_size" validate:"gt=0"`
	SendBuffer     int           `mapstructure:"send_buffer" validate:"gt=0"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"startswith=/"`
}

type ClientConfig struct {
	BaseURL    string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RatePerSec int           `mapstructure:"rate_per_second" validate:"gt=0"`
	RetryCount int           `mapstructure:"retry_count" validate:"gte=0"`
	RetryDelay time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
}

type BatchConfig struct {
	Workers int `mapstructure:"workers" validate:"gte=1"`
}

// DefaultsConfig holds the option parameters the CLI starts from.
type DefaultsConfig struct {
	Spot       float64 `mapstructure:"spot" validate:"gt=0"`
	Strike     float64 `mapstructure:"strike" validate:"gt=0"`
	Maturity   float64 `mapstructure:"maturity" validate:"gte=0"`
	Volatility float64 `mapstructure:"volatility" validate:"gte=0"`
	Rate       float64 `mapstructure:"rate"`
	Kind       string  `mapstructure:"kind" validate:"oneof=call put Call Put"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File       bool   `mapstructure:"file"`
	Directory  string `mapstructure:"directory"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_origin", "*")

	v.SetDefault("grid.spot_points", 80)
	v.SetDefault("grid.vol_points", 80)
	v.SetDefault("grid.min_points", 2)
	v.SetDefault("grid.max_points", 200)
	v.SetDefault("grid.workers", 0)
	v.SetDefault("grid.min_vol", 0.05)
	v.SetDefault("grid.max_vol", 0.80)
	v.SetDefault("grid.spot_low_factor", 0.5)
	v.SetDefault("grid.spot_high_factor", 1.5)
	v.SetDefault("grid.spot_floor", 1.0)

	v.SetDefault("payoff.points", 200)
	v.SetDefault("payoff.low_factor", 0.5)
	v.SetDefault("payoff.high_factor", 2.0)
	v.SetDefault("payoff.floor", 1.0)

	v.SetDefault("sensitivity.points", 100)
	v.SetDefault("sensitivity.min_vol", 0.01)
	v.SetDefault("sensitivity.min_maturity", 0.01)
	v.SetDefault("sensitivity.maturity_factor", 1.5)

	v.SetDefault("ws.enabled", true)
	v.SetDefault("ws.write_wait", "10s")
	v.SetDefault("ws.pong_wait", "60s")
	v.SetDefault("ws.max_message_size", 64*1024)
	v.SetDefault("ws.send_buffer", 16)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("client.base_url", "")
	v.SetDefault("client.timeout", "30s")
	v.SetDefault("client.rate_per_second", 10)
	v.SetDefault("client.retry_count", 3)
	v.SetDefault("client.retry_delay", "500ms")

	v.SetDefault("batch.workers", 4)

	v.SetDefault("defaults.spot", 100.0)
	v.SetDefault("defaults.strike", 100.0)
	v.SetDefault("defaults.maturity", 1.0)
	v.SetDefault("defaults.volatility", 0.20)
	v.SetDefault("defaults.rate", 0.03)
	v.SetDefault("defaults.kind", "call")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 14)
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Environment variable support
	v.SetEnvPrefix("BSDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// PORT is honoured for container platforms that inject it.
	_ = v.BindEnv("server.port", "BSDASH_SERVER_PORT", "PORT")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s' (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}
