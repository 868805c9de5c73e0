package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gunta/skypilot/internal/model"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	OpenAI    OpenAIConfig
	Redis     RedisConfig
	Store     StoreConfig
	Currency  CurrencyConfig
	Defaults  model.Defaults
	R2        R2Config
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Home      string
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
	// DownloadDir confines every download requested over HTTP.
	DownloadDir string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// StoreConfig selects the durable key-value backend: "file" or "redis".
type StoreConfig struct {
	Driver string
	Path   string
}

type CurrencyConfig struct {
	RatesURL string
	Base     string
	Default  string
	TTL      time.Duration
	// RefreshCron drives the background rate prefetch in server mode.
	RefreshCron string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	CreatePerHour int
}

// DefaultHome is the application directory used when SKYPILOT_HOME is unset.
func DefaultHome() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".skypilot")
	}
	return ".skypilot"
}

func Load() (*Config, error) {
	readSecret("OPENAI_API_KEY")
	readSecret("REDIS_PASSWORD")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("JWT_SECRET")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	_ = v.BindEnv("home", "SKYPILOT_HOME")
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.download_dir", "SKYPILOT_DOWNLOAD_DIR")
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	_ = v.BindEnv("openai.timeout", "OPENAI_TIMEOUT")
	_ = v.BindEnv("redis.enabled", "REDIS_ENABLED")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("store.driver", "SKYPILOT_STORE")
	_ = v.BindEnv("store.path", "SKYPILOT_STORE_PATH")
	_ = v.BindEnv("currency.rates_url", "CURRENCY_RATES_URL")
	_ = v.BindEnv("currency.base", "CURRENCY_BASE")
	_ = v.BindEnv("currency.default", "CURRENCY_DEFAULT")
	_ = v.BindEnv("currency.ttl", "CURRENCY_TTL")
	_ = v.BindEnv("currency.refresh_cron", "CURRENCY_REFRESH_CRON")
	_ = v.BindEnv("defaults.model", "SKYPILOT_MODEL")
	_ = v.BindEnv("defaults.size", "SKYPILOT_SIZE")
	_ = v.BindEnv("defaults.seconds", "SKYPILOT_SECONDS")
	_ = v.BindEnv("defaults.download_choice", "SKYPILOT_DOWNLOAD_CHOICE")
	_ = v.BindEnv("defaults.poll_interval", "SKYPILOT_POLL_INTERVAL")
	_ = v.BindEnv("defaults.auto_download", "SKYPILOT_AUTO_DOWNLOAD")
	_ = v.BindEnv("defaults.play_sound", "SKYPILOT_PLAY_SOUND")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("ratelimit.create_per_hour", "RATELIMIT_CREATE_PER_HOUR")

	// Defaults
	v.SetDefault("home", DefaultHome())
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.timeout", "120s")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("store.driver", "file")
	v.SetDefault("currency.rates_url", "https://open.er-api.com/v6")
	v.SetDefault("currency.base", "USD")
	v.SetDefault("currency.default", "USD")
	v.SetDefault("currency.ttl", "24h")
	v.SetDefault("currency.refresh_cron", "@every 6h")
	v.SetDefault("defaults.model", model.ModelSora2)
	v.SetDefault("defaults.size", model.SizePortrait)
	v.SetDefault("defaults.seconds", "4")
	v.SetDefault("defaults.download_choice", string(model.ChoiceVideoAndThumbnail))
	v.SetDefault("defaults.poll_interval", "5s")
	v.SetDefault("defaults.auto_download", true)
	v.SetDefault("defaults.play_sound", true)
	v.SetDefault("ratelimit.create_per_hour", 20)

	home := v.GetString("home")
	v.AddConfigPath(home)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	home = v.GetString("home")
	downloadDir := v.GetString("server.download_dir")
	if downloadDir == "" {
		downloadDir = filepath.Join(home, "downloads")
	}
	storePath := v.GetString("store.path")
	if storePath == "" {
		storePath = filepath.Join(home, "store.json")
	}

	cfg := &Config{
		Home: home,
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			Env:         v.GetString("server.env"),
			LogLevel:    v.GetString("server.log_level"),
			DownloadDir: downloadDir,
		},
		OpenAI: OpenAIConfig{
			APIKey:  v.GetString("openai.api_key"),
			BaseURL: strings.TrimRight(v.GetString("openai.base_url"), "/"),
			Timeout: v.GetDuration("openai.timeout"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString("store.driver")),
			Path:   storePath,
		},
		Currency: CurrencyConfig{
			RatesURL:    strings.TrimRight(v.GetString("currency.rates_url"), "/"),
			Base:        strings.ToUpper(v.GetString("currency.base")),
			Default:     strings.ToUpper(v.GetString("currency.default")),
			TTL:         v.GetDuration("currency.ttl"),
			RefreshCron: v.GetString("currency.refresh_cron"),
		},
		Defaults: model.Defaults{
			Model:          v.GetString("defaults.model"),
			Size:           v.GetString("defaults.size"),
			Seconds:        v.GetString("defaults.seconds"),
			DownloadChoice: model.AssetChoice(v.GetString("defaults.download_choice")),
			PollInterval:   v.GetDuration("defaults.poll_interval"),
			AutoDownload:   v.GetBool("defaults.auto_download"),
			PlaySound:      v.GetBool("defaults.play_sound"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			CreatePerHour: v.GetInt("ratelimit.create_per_hour"),
		},
	}
	if cfg.Defaults.PollInterval < model.MinPollInterval {
		cfg.Defaults.PollInterval = model.MinPollInterval
	}

	return cfg, nil
}
