package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type RateConfig struct {
	ChatPerWindow  int           `mapstructure:"chat_per_window"`
	GiftsPerWindow int           `mapstructure:"gifts_per_window"`
	Window         time.Duration `mapstructure:"window"`
}

type LiveConfig struct {
	APIKey           string        `mapstructure:"api_key"`
	Model            string        `mapstructure:"model"`
	Voice            string        `mapstructure:"voice"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	AutoConnectDelay time.Duration `mapstructure:"auto_connect_delay"`
}

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	StaticPath    string        `mapstructure:"static_path"`
	ReadLimit     int64         `mapstructure:"read_limit"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`
	Secret        string        `mapstructure:"secret"`
	LogLevel      string        `mapstructure:"log_level"`
	RoomName      string        `mapstructure:"room_name"`
	GiftsFile     string        `mapstructure:"gifts_file"`
	StartingCoins int64         `mapstructure:"starting_coins"`
	RedisURL      string        `mapstructure:"redis_url"`
	Rate          RateConfig    `mapstructure:"rate"`
	Live          LiveConfig    `mapstructure:"live"`
}

// Load reads .env, then config/config.<CONFIG_ENV>.yaml, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Info().Str("module", "config").Msg("loaded .env")
	}

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile is Load without .env handling. A missing file falls back to defaults.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("live.api_key", "GEMINI_API_KEY", "API_KEY"); err != nil {
		return nil, fmt.Errorf("bind api key: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("static", cfg.StaticPath).Bool("live_key", cfg.Live.APIKey != "").Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "partyroom-dev-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("room_name", "🔥 Friday Night Party 🚀")
	v.SetDefault("gifts_file", "")
	v.SetDefault("starting_coins", 50000)
	v.SetDefault("redis_url", "")

	v.SetDefault("rate.chat_per_window", 10)
	v.SetDefault("rate.gifts_per_window", 20)
	v.SetDefault("rate.window", "10s")

	v.SetDefault("live.api_key", "")
	v.SetDefault("live.model", "gemini-2.5-flash-native-audio-preview-09-2025")
	v.SetDefault("live.voice", "Fenrir")
	v.SetDefault("live.connect_timeout", "10s")
	v.SetDefault("live.auto_connect_delay", "1s")
}
