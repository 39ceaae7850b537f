package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

var ErrConfigPathIsEmpty = errors.New("config path is empty")

type Config struct {
	App        `yaml:"app"`
	Logger     `yaml:"log"`
	HTTPServer `yaml:"http_server"`
	Chat       `yaml:"chat"`
	Store      `yaml:"store"`
	Notion     `yaml:"notion"`
	Database   `yaml:"database"`
	Redis      `yaml:"redis"`
	Scanner    `yaml:"scanner"`
}

type App struct {
	ServiceName string `yaml:"service_name" env:"APP_SERVICE_NAME" env-default:"talkbridge"`
	Version     string `yaml:"version" env:"APP_VERSION" env-default:"0.1.0"`
}

type Logger struct {
	Level      string   `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	FormatJSON bool     `yaml:"format_json" env:"LOG_FORMAT_JSON" env-default:"true"`
	Rotation   Rotation `yaml:"rotation"`
}

type Rotation struct {
	File       string `yaml:"file" env:"LOG_ROTATION_FILE"`
	MaxSize    int    `yaml:"max_size" env:"LOG_ROTATION_MAX_SIZE"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_ROTATION_MAX_BACKUPS"`
	MaxAge     int    `yaml:"max_age" env:"LOG_ROTATION_MAX_AGE"`
}

type HTTPServer struct {
	Host     string  `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port     uint16  `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	BasePath string  `yaml:"base_path" env:"HTTP_BASE_PATH" env-default:"/api"`
	Timeout  Timeout `yaml:"timeout"`
	CORS     CORS    `yaml:"cors"`
}

type Timeout struct {
	Request time.Duration `yaml:"request" env:"HTTP_TIMEOUT_REQUEST" env-default:"15s"`
	Read    time.Duration `yaml:"read" env:"HTTP_TIMEOUT_READ" env-default:"10s"`
	Write   time.Duration `yaml:"write" env:"HTTP_TIMEOUT_WRITE" env-default:"10s"`
	Idle    time.Duration `yaml:"idle" env:"HTTP_TIMEOUT_IDLE" env-default:"60s"`
}

type CORS struct {
	Enabled          bool          `yaml:"enabled"`
	AllowAllOrigins  bool          `yaml:"allow_all_origins"`
	AllowOrigins     []string      `yaml:"allow_origins"`
	AllowMethods     []string      `yaml:"allow_methods"`
	AllowHeaders     []string      `yaml:"allow_headers"`
	ExposeHeaders    []string      `yaml:"expose_headers"`
	AllowCredentials bool          `yaml:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age"`
}

// Chat holds the credentials of the inbound/outbound chat channel and the
// single push target. RecipientID is fixed for the lifetime of the process.
type Chat struct {
	ChannelSecret string        `yaml:"channel_secret" env:"CHAT_CHANNEL_SECRET"`
	ChannelToken  string        `yaml:"channel_token" env:"CHAT_CHANNEL_TOKEN"`
	RecipientID   string        `yaml:"recipient_id" env:"CHAT_RECIPIENT_ID"`
	BaseURL       string        `yaml:"base_url" env:"CHAT_BASE_URL"`
	Timeout       time.Duration `yaml:"timeout" env:"CHAT_TIMEOUT" env-default:"20s"`
}

// Store selects the record store backend: "notion" (hosted record
// collection, matching the original deployment) or "postgres".
type Store struct {
	Backend string `yaml:"backend" env:"STORE_BACKEND" env-default:"notion"`
}

type Notion struct {
	APIKey     string        `yaml:"api_key" env:"NOTION_API_KEY"`
	DatabaseID string        `yaml:"database_id" env:"NOTION_DATABASE_ID"`
	BaseURL    string        `yaml:"base_url" env:"NOTION_BASE_URL"`
	APIVersion string        `yaml:"api_version" env:"NOTION_API_VERSION"`
	Timeout    time.Duration `yaml:"timeout" env:"NOTION_TIMEOUT" env-default:"20s"`
}

type Database struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     uint16 `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	Name     string `yaml:"name" env:"POSTGRES_DB"`
	SSLMode  string `yaml:"ssl_mode" env:"POSTGRES_SSL_MODE" env-default:"disable"`
	MaxConns int32  `yaml:"max_conns" env:"POSTGRES_MAX_CONNS" env-default:"4"`
	MinConns int32  `yaml:"min_conns" env:"POSTGRES_MIN_CONNS" env-default:"1"`
}

type Redis struct {
	Enable   bool          `yaml:"enable" env:"REDIS_ENABLE"`
	Host     string        `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     uint16        `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB"`
	DedupTTL time.Duration `yaml:"dedup_ttl" env:"REDIS_DEDUP_TTL" env-default:"24h"`
}

type Scanner struct {
	Name         string        `yaml:"name" env:"SCANNER_NAME" env-default:"feedback-scanner"`
	PollInterval time.Duration `yaml:"poll_interval" env:"SCANNER_POLL_INTERVAL" env-default:"5m"`
}

func MustLoadConfig() *Config {
	cfg, err := LoadConfig()
	if err != nil {
		panic(err)
	}

	return cfg
}

func LoadConfig() (*Config, error) {
	var cfg Config

	path := fetchConfigPath()
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}

		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from env: %w", err)
	}

	return &cfg, nil
}

func fetchConfigPath() string {
	var result string

	flag.StringVar(&result, "config", "", "Path to config file")
	flag.Parse()

	if result == "" {
		result = os.Getenv("CONFIG_PATH")
	}

	return result
}
