package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// DefaultUserAgent is the default User-Agent string sent with all HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:147.0) Gecko/20100101 Firefox/147.0"

const (
	DefaultCatalogURL  = "https://app.jw-cdn.org/catalogs/media/E.json.gz"
	DefaultMediatorURL = "https://b.jw-cdn.org/apis/mediator/v1/media-items"
)

type Config struct {
	ProxyConnectionString string `mapstructure:"proxy_connection_string"`
	ClientTimeout         string `mapstructure:"client_timeout"` // Go duration string like "30s", "1h", etc.
	UserAgent             string `mapstructure:"user_agent"`
	LogLevel              string `mapstructure:"log_level"`
	LogFormat             string `mapstructure:"log_format"` // "console" or "json"

	Server struct {
		Port    int    `mapstructure:"port"`
		Address string `mapstructure:"address"`
	} `mapstructure:"server"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`

	Catalog struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"catalog"`

	Mediator struct {
		BaseURL    string `mapstructure:"base_url"`
		ClientType string `mapstructure:"client_type"`
	} `mapstructure:"mediator"`

	Languages struct {
		Primary   string `mapstructure:"primary"`
		Secondary string `mapstructure:"secondary"`
	} `mapstructure:"languages"`

	Fetch struct {
		Timeout          string `mapstructure:"timeout"`
		MaxSubtitleBytes int64  `mapstructure:"max_subtitle_bytes"`
		Retries          int    `mapstructure:"retries"`
	} `mapstructure:"fetch"`

	Mux struct {
		FFmpegPath string `mapstructure:"ffmpeg_path"`
		TempDir    string `mapstructure:"temp_dir"`
		Timeout    string `mapstructure:"timeout"`
	} `mapstructure:"mux"`

	Packager struct {
		Workers int    `mapstructure:"workers"`
		Policy  string `mapstructure:"policy"` // "partial" or "abort"
	} `mapstructure:"packager"`

	Publish struct {
		Provider      string `mapstructure:"provider"` // "localfs" or "gdrive"
		PublicBaseURL string `mapstructure:"public_base_url"`
		Local         struct {
			Root string `mapstructure:"root"`
		} `mapstructure:"local"`
		GDrive struct {
			ClientID     string `mapstructure:"client_id"`
			ClientSecret string `mapstructure:"client_secret"`
			RefreshToken string `mapstructure:"refresh_token"`
			FolderID     string `mapstructure:"folder_id"`
		} `mapstructure:"gdrive"`
	} `mapstructure:"publish"`

	Cache struct {
		Provider string `mapstructure:"provider"` // "memory", "redis" or "" to disable
		Size     int    `mapstructure:"size"`     // Maximum number of entries in the LRU cache
		TTL      string `mapstructure:"ttl"`      // Go duration string like "1h", "24h", etc.
		Redis    struct {
			Address  string `mapstructure:"address"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
	} `mapstructure:"cache"`

	Sentry struct {
		DSN         string `mapstructure:"dsn"`
		Environment string `mapstructure:"environment"`
	} `mapstructure:"sentry"`
}

var (
	globalConfig *Config
	logger       zerolog.Logger
)

func init() {
	logger = newLogger("console")

	config, err := LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	if config.LogFormat != "" && config.LogFormat != "console" {
		logger = newLogger(config.LogFormat)
	}

	// Parse and set log level from config
	level := zerolog.InfoLevel // default
	if config.LogLevel != "" {
		if parsedLevel, err := zerolog.ParseLevel(config.LogLevel); err == nil {
			level = parsedLevel
		} else {
			logger.Warn().Str("invalid_level", config.LogLevel).Msg("Invalid log level, using default 'info'")
		}
	}

	zerolog.SetGlobalLevel(level)
	logger = logger.Level(level)

	logger.Debug().Str("level", level.String()).Msg("Logging configured")
	globalConfig = config
}

func newLogger(format string) zerolog.Logger {
	if format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:     os.Stderr,
		NoColor: false,
	}).With().Timestamp().Logger()
}

func LoadConfig() (*Config, error) {
	v := viper.GetViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variable support
	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = v.BindEnv("log_level", "LOG_LEVEL")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("catalog.url", DefaultCatalogURL)
	v.SetDefault("mediator.base_url", DefaultMediatorURL)
	v.SetDefault("mediator.client_type", "www")
	v.SetDefault("languages.primary", "E")
	v.SetDefault("languages.secondary", "CHS")
	v.SetDefault("fetch.timeout", "30m")
	v.SetDefault("fetch.max_subtitle_bytes", 10<<20)
	v.SetDefault("fetch.retries", 2)
	v.SetDefault("mux.ffmpeg_path", "ffmpeg")
	v.SetDefault("mux.timeout", "20m")
	v.SetDefault("packager.workers", 2)
	v.SetDefault("packager.policy", "partial")
	v.SetDefault("publish.provider", "localfs")
	v.SetDefault("publish.local.root", "./archives")
	v.SetDefault("cache.provider", "memory")
	v.SetDefault("cache.size", 512)
	v.SetDefault("cache.ttl", "1h")
}

// ApplyDefaults fills zero values that have no meaningful zero. It is applied
// after loading and can be called on hand-built configs (tests, CLI overrides).
func (c *Config) ApplyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Catalog.URL == "" {
		c.Catalog.URL = DefaultCatalogURL
	}
	if c.Mediator.BaseURL == "" {
		c.Mediator.BaseURL = DefaultMediatorURL
	}
	if c.Mediator.ClientType == "" {
		c.Mediator.ClientType = "www"
	}
	if c.Languages.Primary == "" {
		c.Languages.Primary = "E"
	}
	if c.Languages.Secondary == "" {
		c.Languages.Secondary = "CHS"
	}
	if c.Fetch.MaxSubtitleBytes <= 0 {
		c.Fetch.MaxSubtitleBytes = 10 << 20
	}
	if c.Mux.FFmpegPath == "" {
		c.Mux.FFmpegPath = "ffmpeg"
	}
	if c.Packager.Workers <= 0 {
		c.Packager.Workers = 2
	}
	if c.Packager.Policy == "" {
		c.Packager.Policy = "partial"
	}
	if c.Publish.Provider == "" {
		c.Publish.Provider = "localfs"
	}
}

// ParseDuration parses a Go duration string, logging and falling back to def
// when the value is empty or invalid.
func ParseDuration(key, value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		logger.Warn().Err(err).Str("key", key).Str("value", value).Dur("default", def).Msg("Invalid duration, using default")
		return def
	}
	return d
}

func GetConfig() *Config {
	return globalConfig
}

func GetUserAgent() string {
	if globalConfig != nil && globalConfig.UserAgent != "" {
		return globalConfig.UserAgent
	}

	return DefaultUserAgent
}

func GetLogger() zerolog.Logger {
	return logger
}
