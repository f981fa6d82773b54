package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/survey-sampler/internal/ingest"
	"github.com/sells-group/survey-sampler/internal/model"
	"github.com/sells-group/survey-sampler/internal/sampling"
)

// Config holds the full application configuration.
type Config struct {
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Sampling    SamplingConfig    `yaml:"sampling" mapstructure:"sampling"`
	Columns     ingest.Columns    `yaml:"columns" mapstructure:"columns"`
	Capacity    CapacityConfig    `yaml:"capacity" mapstructure:"capacity"`
	Replacement ReplacementConfig `yaml:"replacement" mapstructure:"replacement"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Zonal       ZonalConfig       `yaml:"zonal" mapstructure:"zonal"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SamplingConfig holds the design parameters.
type SamplingConfig struct {
	ConfidenceLevel      float64 `yaml:"confidence_level" mapstructure:"confidence_level"`
	MarginOfError        float64 `yaml:"margin_of_error" mapstructure:"margin_of_error"`
	DesignEffect         float64 `yaml:"design_effect" mapstructure:"design_effect"`
	InterviewsPerCluster int     `yaml:"interviews_per_cluster" mapstructure:"interviews_per_cluster"`
	ReservePercentage    float64 `yaml:"reserve_percentage" mapstructure:"reserve_percentage"`
	Probability          float64 `yaml:"probability" mapstructure:"probability"`
	Seed                 *uint64 `yaml:"seed" mapstructure:"seed"`
}

// CapacityConfig selects the capacity constraint mode.
type CapacityConfig struct {
	Mode            string  `yaml:"mode" mapstructure:"mode"`
	ReductionFactor float64 `yaml:"reduction_factor" mapstructure:"reduction_factor"`
}

// ReplacementConfig configures the replacement pass.
type ReplacementConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Percentage float64 `yaml:"percentage" mapstructure:"percentage"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxBodyMB   int      `yaml:"max_body_mb" mapstructure:"max_body_mb"`
}

// ZonalConfig configures zonal statistics.
type ZonalConfig struct {
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	IDField     string `yaml:"id_field" mapstructure:"id_field"`
	NameField   string `yaml:"name_field" mapstructure:"name_field"`
	AdminField  string `yaml:"admin_field" mapstructure:"admin_field"`
}

// Load reads configuration from file and environment. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SAMPLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("sampling.seed"); err != nil {
		return nil, eris.Wrap(err, "config: bind seed")
	}

	// Defaults
	d := model.DefaultParams()
	cols := ingest.DefaultColumns()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "sampler.db")
	v.SetDefault("sampling.confidence_level", d.ConfidenceLevel)
	v.SetDefault("sampling.margin_of_error", d.MarginOfError)
	v.SetDefault("sampling.design_effect", d.DesignEffect)
	v.SetDefault("sampling.interviews_per_cluster", d.InterviewsPerCluster)
	v.SetDefault("sampling.reserve_percentage", d.ReservePercentage)
	v.SetDefault("sampling.probability", d.Probability)
	v.SetDefault("columns.site_name", cols.SiteName)
	v.SetDefault("columns.site_id", cols.SiteID)
	v.SetDefault("columns.households", cols.Households)
	v.SetDefault("columns.admin", cols.Admin)
	v.SetDefault("columns.stratum", cols.Stratum)
	v.SetDefault("columns.unique_id", "")
	v.SetDefault("capacity.mode", string(model.CapacityNone))
	v.SetDefault("capacity.reduction_factor", d.ReductionFactor)
	v.SetDefault("replacement.enabled", false)
	v.SetDefault("replacement.percentage", d.ReplacementPercentage)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_body_mb", 32)
	v.SetDefault("zonal.concurrency", 4)
	v.SetDefault("zonal.id_field", "")
	v.SetDefault("zonal.name_field", "NAME")
	v.SetDefault("zonal.admin_field", "ADMIN")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Params converts the sampling, capacity and replacement sections into run
// parameters. The result is not validated.
func (c *Config) Params() (model.Params, error) {
	mode, err := sampling.ParseCapacityMode(c.Capacity.Mode)
	if err != nil {
		return model.Params{}, eris.Wrap(err, "config: capacity mode")
	}
	return model.Params{
		ConfidenceLevel:       c.Sampling.ConfidenceLevel,
		MarginOfError:         c.Sampling.MarginOfError,
		DesignEffect:          c.Sampling.DesignEffect,
		InterviewsPerCluster:  c.Sampling.InterviewsPerCluster,
		ReservePercentage:     c.Sampling.ReservePercentage,
		Probability:           c.Sampling.Probability,
		Seed:                  c.Sampling.Seed,
		CapacityMode:          mode,
		ReductionFactor:       c.Capacity.ReductionFactor,
		UseReplacements:       c.Replacement.Enabled,
		ReplacementPercentage: c.Replacement.Percentage,
	}, nil
}

// Validate checks the sections a command depends on. mode is one of
// "sample", "serve" or "zonal"; sampling parameters are checked for every
// mode except zonal.
func (c *Config) Validate(mode string) error {
	switch c.Log.Format {
	case "json", "console":
	default:
		return eris.Errorf("config: unknown log format %q", c.Log.Format)
	}

	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for postgres")
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	switch mode {
	case "sample", "serve":
		p, err := c.Params()
		if err != nil {
			return err
		}
		if err := sampling.ValidateParams(p); err != nil {
			return eris.Wrap(err, "config: sampling")
		}
		if mode == "serve" {
			if c.Server.Port <= 0 || c.Server.Port > 65535 {
				return eris.Errorf("config: server.port %d out of range", c.Server.Port)
			}
			if c.Server.RateLimit <= 0 || c.Server.RateBurst < 1 {
				return eris.New("config: server.rate_limit and server.rate_burst must be positive")
			}
		}
	case "zonal":
		if c.Zonal.Concurrency < 1 {
			return eris.Errorf("config: zonal.concurrency %d must be at least 1", c.Zonal.Concurrency)
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
