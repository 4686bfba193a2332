package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StorageDriverS3    = "s3"
	StorageDriverLocal = "local"
)

type Config struct {
	Server struct {
		Addr           string   `mapstructure:"addr"`
		Port           string   `mapstructure:"port"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"server"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency     int            `mapstructure:"concurrency"`
		Queues          map[string]int `mapstructure:"queues"`
		Queue           string         `mapstructure:"queue"` // queue new tasks are enqueued on
		Embedded        bool           `mapstructure:"embedded"`
		ShutdownTimeout time.Duration  `mapstructure:"shutdown_timeout"`
	} `mapstructure:"worker"`

	Storage struct {
		Driver        string        `mapstructure:"driver"`
		Bucket        string        `mapstructure:"bucket"`
		Region        string        `mapstructure:"region"`
		DefaultRegion string        `mapstructure:"default_region"` // region whose public URLs omit the region segment
		LocalDir      string        `mapstructure:"local_dir"`
		PublicBaseURL string        `mapstructure:"public_base_url"`
		Timeout       time.Duration `mapstructure:"timeout"`
	} `mapstructure:"storage"`

	Synthesis struct {
		ElevenLabs struct {
			APIKey        string            `mapstructure:"api_key"`
			URL           string            `mapstructure:"url"`
			ModelID       string            `mapstructure:"model_id"`
			Voices        map[string]string `mapstructure:"voices"`
			Timeout       time.Duration     `mapstructure:"timeout"`
			RatePerSecond float64           `mapstructure:"rate_per_second"`
			Burst         int               `mapstructure:"burst"`
		} `mapstructure:"elevenlabs"`
	} `mapstructure:"synthesis"`

	Scoring struct {
		URL     string        `mapstructure:"url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"scoring"`

	Reporter struct {
		URL     string        `mapstructure:"url"` // downstream base URL; empty logs results only
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"reporter"`

	Progress struct {
		RelayChannel string        `mapstructure:"relay_channel"` // Redis channel; empty keeps events in-process
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"progress"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// LoadConfig reads config.yaml from the working directory plus the environment.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("")
}

// LoadConfigFrom reads the given file (or config.yaml in "." when empty) plus the environment.
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// storage.bucket -> STORAGE_BUCKET
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by existing deployments.
	v.BindEnv("synthesis.elevenlabs.api_key", "ELEVENLABS_API_KEY")
	v.BindEnv("synthesis.elevenlabs.url", "ELEVENLABS_URL")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("storage.region", "AWS_DEFAULT_REGION")
	v.BindEnv("reporter.url", "TTS_NATURALNESS_BE_URL")
	v.BindEnv("redis.address", "REDIS_ADDRESS")

	if err := v.ReadInConfig(); err != nil {
		// A missing config.yaml is fine; defaults and env vars still apply.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("redis.address", "localhost:6379")

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queues", map[string]int{"naturalness": 1})
	v.SetDefault("worker.queue", "naturalness")
	v.SetDefault("worker.embedded", true)
	v.SetDefault("worker.shutdown_timeout", "30s")

	v.SetDefault("storage.driver", StorageDriverS3)
	v.SetDefault("storage.region", "ap-northeast-2")
	v.SetDefault("storage.default_region", "us-east-1")
	v.SetDefault("storage.local_dir", "./data/artifacts")
	v.SetDefault("storage.timeout", "60s")

	v.SetDefault("synthesis.elevenlabs.url", "https://api.elevenlabs.io/v1/text-to-speech")
	v.SetDefault("synthesis.elevenlabs.model_id", "eleven_multilingual_v2")
	v.SetDefault("synthesis.elevenlabs.timeout", "120s")
	v.SetDefault("synthesis.elevenlabs.rate_per_second", 2.0)
	v.SetDefault("synthesis.elevenlabs.burst", 2)

	v.SetDefault("scoring.timeout", "300s")

	v.SetDefault("reporter.timeout", "5s")

	v.SetDefault("progress.write_timeout", "5s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
