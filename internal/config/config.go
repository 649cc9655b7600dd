package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RetryConfig describes the exponential backoff applied by the transport session.
type RetryConfig struct {
	MaxRetries int     `mapstructure:"max_retries"`
	BaseDelay  string  `mapstructure:"base_delay"`
	Multiplier float64 `mapstructure:"multiplier"`
	MaxDelay   string  `mapstructure:"max_delay"`
}

// RankingConfig holds the weights used to pick the best search result for a video.
type RankingConfig struct {
	ExactMatch    float64 `mapstructure:"exact_match"`
	Containment   float64 `mapstructure:"containment"`
	Similarity    float64 `mapstructure:"similarity"`
	YearMatch     float64 `mapstructure:"year_match"`
	IMDBMatch     float64 `mapstructure:"imdb_match"`
	YearTolerance int     `mapstructure:"year_tolerance"`
	MinScore      float64 `mapstructure:"min_score"`
}

type Config struct {
	BaseURL               string `mapstructure:"base_url"`
	DownloadBaseURL       string `mapstructure:"download_base_url"`
	IMDBBaseURL           string `mapstructure:"imdb_base_url"` // resolves titles for IMDB-only queries
	ProxyConnectionString string `mapstructure:"proxy_connection_string"`
	ClientTimeout         string `mapstructure:"client_timeout"`    // per attempt, Go duration string
	OperationTimeout      string `mapstructure:"operation_timeout"` // per search/list/download
	MinRequestInterval    string `mapstructure:"min_request_interval"`
	UserAgent             string `mapstructure:"user_agent"` // pins a single identity when set
	Identity              struct {
		RotateEvery          int  `mapstructure:"rotate_every"`
		RefreshAfterFailures int  `mapstructure:"refresh_after_failures"`
		TLSFingerprint       bool `mapstructure:"tls_fingerprint"`
	} `mapstructure:"identity"`
	Retry     RetryConfig `mapstructure:"retry"`
	Challenge struct {
		Solver       string `mapstructure:"solver"` // "warmup" or "flaresolverr"
		SolverURL    string `mapstructure:"solver_url"`
		TokenTTL     string `mapstructure:"token_ttl"`
		SolveTimeout string `mapstructure:"solve_timeout"`
	} `mapstructure:"challenge"`
	Ranking  RankingConfig `mapstructure:"ranking"`
	Download struct {
		ConvertToUTF8 bool `mapstructure:"convert_to_utf8"`
	} `mapstructure:"download"`
	Server struct {
		Port    int    `mapstructure:"port"`
		Address string `mapstructure:"address"`
	} `mapstructure:"server"`
	GRPC struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"grpc"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
	API struct {
		MaxInflight int64  `mapstructure:"max_inflight"`
		RetryAfter  string `mapstructure:"retry_after"`
	} `mapstructure:"api"`
	Cache struct {
		Type  string `mapstructure:"type"` // "memory" or "redis"
		Size  int    `mapstructure:"size"`
		TTL   string `mapstructure:"ttl"`
		Redis struct {
			Address  string `mapstructure:"address"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
	} `mapstructure:"cache"`
	Sentry struct {
		DSN         string `mapstructure:"dsn"`
		Environment string `mapstructure:"environment"`
	} `mapstructure:"sentry"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  struct {
		Path       string `mapstructure:"path"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
		Compress   bool   `mapstructure:"compress"`
	} `mapstructure:"log_file"`
}

var (
	globalConfig *Config
	logger       zerolog.Logger
)

func init() {
	logger = zerolog.New(zerolog.ConsoleWriter{
		Out:     os.Stdout,
		NoColor: false,
	}).With().Timestamp().Logger()

	config, err := LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	if config.LogFile.Path != "" {
		logger = zerolog.New(newLogWriter(config)).With().Timestamp().Logger()
	}

	level := zerolog.InfoLevel
	if config.LogLevel != "" {
		if parsedLevel, err := zerolog.ParseLevel(config.LogLevel); err == nil {
			level = parsedLevel
		} else {
			logger.Warn().Str("invalid_level", config.LogLevel).Msg("Invalid log level, using default 'info'")
		}
	}

	zerolog.SetGlobalLevel(level)
	logger = logger.Level(level)

	logger.Info().Str("level", level.String()).Msg("Logging configured")
	globalConfig = config
	logger.Info().Msg("Configuration loaded successfully")
}

// newLogWriter sends console output to stdout and JSON lines to a rotating file.
func newLogWriter(cfg *Config) io.Writer {
	file := &lumberjack.Logger{
		Filename:   cfg.LogFile.Path,
		MaxSize:    cfg.LogFile.MaxSizeMB,
		MaxBackups: cfg.LogFile.MaxBackups,
		MaxAge:     cfg.LogFile.MaxAgeDays,
		Compress:   cfg.LogFile.Compress,
	}
	return zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stdout}, file)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://www.opensubtitles.org")
	v.SetDefault("download_base_url", "https://dl.opensubtitles.org")
	v.SetDefault("imdb_base_url", "https://www.imdb.com")
	v.SetDefault("client_timeout", "30s")
	v.SetDefault("operation_timeout", "2m")
	v.SetDefault("min_request_interval", "1s")

	v.SetDefault("identity.rotate_every", 200)
	v.SetDefault("identity.refresh_after_failures", 3)

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.max_delay", "30s")

	v.SetDefault("challenge.solver", "warmup")
	v.SetDefault("challenge.token_ttl", "30m")
	v.SetDefault("challenge.solve_timeout", "60s")

	v.SetDefault("ranking.exact_match", 100)
	v.SetDefault("ranking.containment", 80)
	v.SetDefault("ranking.similarity", 60)
	v.SetDefault("ranking.year_match", 10)
	v.SetDefault("ranking.imdb_match", 20)
	v.SetDefault("ranking.year_tolerance", 1)
	v.SetDefault("ranking.min_score", 30)

	v.SetDefault("download.convert_to_utf8", true)

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.port", 9091)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("api.max_inflight", 2)
	v.SetDefault("api.retry_after", "15s")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.size", 500)
	v.SetDefault("cache.ttl", "1h")

	v.SetDefault("log_file.max_size_mb", 50)
	v.SetDefault("log_file.max_backups", 3)
	v.SetDefault("log_file.max_age_days", 14)
}

func LoadConfig() (*Config, error) {
	v := viper.GetViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

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
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	config.DownloadBaseURL = strings.TrimRight(config.DownloadBaseURL, "/")

	return &config, nil
}

// ParseDuration parses a Go duration string, logging and returning fallback when it is empty or invalid.
func ParseDuration(name, value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		logger.Warn().Err(err).Str("setting", name).Str("value", value).Dur("fallback", fallback).Msg("Invalid duration, using fallback")
		return fallback
	}
	return d
}

func GetConfig() *Config {
	return globalConfig
}

func GetLogger() zerolog.Logger {
	return logger
}
