package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log       Logger         `mapstructure:"logger"`
	DB        Database       `mapstructure:"database"`
	API       API            `mapstructure:"api"`
	Scheduler Scheduler      `mapstructure:"scheduler"`
	Board     Board          `mapstructure:"board"`
	Cache     Cache          `mapstructure:"cache"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
	Audit     Audit          `mapstructure:"audit"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type Scheduler struct {
	Enabled        bool          `mapstructure:"enabled"`
	CronSpec       string        `mapstructure:"cron_spec"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	CycleTimeout   time.Duration `mapstructure:"cycle_timeout"`
	StepTimeout    time.Duration `mapstructure:"step_timeout"`
	// IANA zone the trigger time-of-day is interpreted in.
	TimeZone string `mapstructure:"time_zone"`
}

type API struct {
	Port             int `mapstructure:"port"`
	MaxRequestPerSec int `mapstructure:"max_request_per_sec"`
	Burst            int `mapstructure:"burst"`
}

type Board struct {
	BaseURL             string        `mapstructure:"base_url"`
	APIKey              string        `mapstructure:"api_key"`
	Token               string        `mapstructure:"token"`
	BoardID             string        `mapstructure:"board_id"`
	ListID              string        `mapstructure:"list_id"`
	DoneListIDs         []string      `mapstructure:"done_list_ids"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerSecond int           `mapstructure:"max_request_per_second"`
}

type Cache struct {
	DefaultExpiration   time.Duration `mapstructure:"default_expiration"`
	CleanupInterval     time.Duration `mapstructure:"cleanup_interval"`
	MemberExpDuration   time.Duration `mapstructure:"member_exp_duration"`
	SysParamExpDuration time.Duration `mapstructure:"sys_param_exp_duration"`
}

type Audit struct {
	RetentionDays   int    `mapstructure:"retention_days"`
	CleanUpCronSpec string `mapstructure:"clean_up_cron_spec"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "json")
	viper.SetDefault("api.port", 8080)
	viper.SetDefault("api.max_request_per_sec", 10)
	viper.SetDefault("api.burst", 30)
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.cron_spec", "@every 5m")
	viper.SetDefault("scheduler.max_concurrency", 4)
	viper.SetDefault("scheduler.cycle_timeout", 4*time.Minute)
	viper.SetDefault("scheduler.step_timeout", 15*time.Second)
	viper.SetDefault("scheduler.time_zone", "UTC")
	viper.SetDefault("board.base_url", "https://api.trello.com/1")
	viper.SetDefault("board.timeout", 10*time.Second)
	viper.SetDefault("board.max_request_per_second", 8)
	viper.SetDefault("cache.default_expiration", 10*time.Minute)
	viper.SetDefault("cache.cleanup_interval", 15*time.Minute)
	viper.SetDefault("cache.member_exp_duration", 5*time.Minute)
	viper.SetDefault("cache.sys_param_exp_duration", time.Minute)
	viper.SetDefault("audit.retention_days", 90)
	viper.SetDefault("audit.clean_up_cron_spec", "0 3 * * *")
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file loaded:", err)
	}

	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location resolves the scheduler time zone, falling back to UTC.
func (s Scheduler) Location() *time.Location {
	if s.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
