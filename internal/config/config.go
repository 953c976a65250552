package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Vision   VisionConfig   `mapstructure:"vision"`
	Frames   FramesConfig   `mapstructure:"frames"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // s3 or local
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	LocalDir  string `mapstructure:"local_dir"`
}

type VisionConfig struct {
	Model            string        `mapstructure:"model"`
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	MaxOutputTokens  int           `mapstructure:"max_output_tokens"`
	Temperature      float64       `mapstructure:"temperature"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	RequestsPerMin   int           `mapstructure:"requests_per_min"`
	DailyBudgetUSD   float64       `mapstructure:"daily_budget_usd"`
	InputCostPer1K   float64       `mapstructure:"input_cost_per_1k"`
	OutputCostPer1K  float64       `mapstructure:"output_cost_per_1k"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

type FramesConfig struct {
	FFmpegPath    string `mapstructure:"ffmpeg_path"`
	MaxWidth      int    `mapstructure:"max_width"`
	MaxHeight     int    `mapstructure:"max_height"`
	JPEGQuality   int    `mapstructure:"jpeg_quality"`
	ShortCount    int    `mapstructure:"short_count"`
	MediumCount   int    `mapstructure:"medium_count"`
	LongCount     int    `mapstructure:"long_count"`
	MinUsable     int    `mapstructure:"min_usable"`
	ElementsBatch int    `mapstructure:"elements_batch"`
}

type PipelineConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
}

type ScoringConfig struct {
	GreenMin   float64 `mapstructure:"green_min"`
	YellowMin  float64 `mapstructure:"yellow_min"`
	ProblemTop int     `mapstructure:"problem_top"`
}

// DSNOrPath returns the connection string for the configured driver.
func (c *DatabaseConfig) DSNOrPath() string {
	if c.Driver == "postgres" {
		return c.DSN
	}
	return c.Path
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/classlens.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "classlens-videos")
	v.SetDefault("storage.local_dir", "./data/videos")
	v.SetDefault("vision.model", "gpt-4o")
	v.SetDefault("vision.base_url", "https://api.openai.com/v1")
	v.SetDefault("vision.max_output_tokens", 4096)
	v.SetDefault("vision.temperature", 0.2)
	v.SetDefault("vision.max_attempts", 4)
	v.SetDefault("vision.backoff_base", 2*time.Second)
	v.SetDefault("vision.max_concurrent", 3)
	v.SetDefault("vision.requests_per_min", 10)
	v.SetDefault("vision.daily_budget_usd", 25.0)
	v.SetDefault("vision.input_cost_per_1k", 0.0025)
	v.SetDefault("vision.output_cost_per_1k", 0.01)
	v.SetDefault("vision.breaker_threshold", 5)
	v.SetDefault("vision.breaker_cooldown", time.Minute)
	v.SetDefault("frames.max_width", 640)
	v.SetDefault("frames.max_height", 480)
	v.SetDefault("frames.jpeg_quality", 70)
	v.SetDefault("frames.short_count", 8)
	v.SetDefault("frames.medium_count", 15)
	v.SetDefault("frames.long_count", 20)
	v.SetDefault("frames.min_usable", 3)
	v.SetDefault("frames.elements_batch", 10)
	v.SetDefault("pipeline.poll_interval", 10*time.Second)
	v.SetDefault("pipeline.max_concurrent", 3)
	v.SetDefault("pipeline.shutdown_grace", 30*time.Second)
	v.SetDefault("pipeline.stale_after", 30*time.Minute)
	v.SetDefault("scoring.green_min", 80.0)
	v.SetDefault("scoring.yellow_min", 60.0)
	v.SetDefault("scoring.problem_top", 4)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.dsn", "DATABASE_DSN")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.use_ssl", "STORAGE_USE_SSL")
	v.BindEnv("vision.api_key", "OPENAI_API_KEY")
	v.BindEnv("vision.base_url", "OPENAI_BASE_URL")
	v.BindEnv("vision.model", "VISION_MODEL")
	v.BindEnv("vision.daily_budget_usd", "VISION_DAILY_BUDGET_USD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
