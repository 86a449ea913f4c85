// Package config loads application configuration from config.yaml and
// SCANNER_-prefixed environment variables.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Claude     ClaudeConfig     `yaml:"claude" mapstructure:"claude"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Scan       ScanConfig       `yaml:"scan" mapstructure:"scan"`
	Calendar   CalendarConfig   `yaml:"calendar" mapstructure:"calendar"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" mapstructure:"scheduler"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key           string   `yaml:"key" mapstructure:"key"`
	BaseURL       string   `yaml:"base_url" mapstructure:"base_url"`
	Model         string   `yaml:"model" mapstructure:"model"`
	SearchDomains []string `yaml:"search_domains" mapstructure:"search_domains"`
	Recency       string   `yaml:"recency" mapstructure:"recency"`
}

// ClaudeConfig holds Anthropic API settings.
type ClaudeConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// EngineConfig tunes the multi-engine enrichment pass.
type EngineConfig struct {
	PrimaryWeight       float64 `yaml:"primary_weight" mapstructure:"primary_weight"`
	SecondaryWeight     float64 `yaml:"secondary_weight" mapstructure:"secondary_weight"`
	DivergenceThreshold float64 `yaml:"divergence_threshold" mapstructure:"divergence_threshold"`
	CallTimeoutSecs     int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	SpacingSecs         int     `yaml:"spacing_secs" mapstructure:"spacing_secs"`
	RetryMaxAttempts    int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
}

// ScanConfig tunes job driving and tier classification.
type ScanConfig struct {
	PacingSecs    int     `yaml:"pacing_secs" mapstructure:"pacing_secs"`
	HotWindowSize int     `yaml:"hot_window_size" mapstructure:"hot_window_size"`
	DormantFloor  float64 `yaml:"dormant_floor" mapstructure:"dormant_floor"`
	Parallelism   int     `yaml:"parallelism" mapstructure:"parallelism"`
}

// CalendarConfig configures the work-calendar gate.
type CalendarConfig struct {
	RestDays     []string `yaml:"rest_days" mapstructure:"rest_days"`
	Holidays     []string `yaml:"holidays" mapstructure:"holidays"`
	HolidaysXLSX string   `yaml:"holidays_xlsx" mapstructure:"holidays_xlsx"`
	Location     string   `yaml:"location" mapstructure:"location"`
}

// CadenceRule is one scheduled scan in the cadence table.
type CadenceRule struct {
	Spec   string      `yaml:"spec" mapstructure:"spec"`
	Tier   string      `yaml:"tier" mapstructure:"tier"`
	Mode   string      `yaml:"mode" mapstructure:"mode"`
	Gated  bool        `yaml:"gated" mapstructure:"gated"`
	Window []DayWindow `yaml:"window" mapstructure:"window"`
}

// DayWindow is an inclusive day-of-month range.
type DayWindow struct {
	From int `yaml:"from" mapstructure:"from"`
	To   int `yaml:"to" mapstructure:"to"`
}

// SchedulerConfig holds the cadence table and monitor tick.
type SchedulerConfig struct {
	MonitorIntervalSecs int           `yaml:"monitor_interval_secs" mapstructure:"monitor_interval_secs"`
	Cadence             []CadenceRule `yaml:"cadence" mapstructure:"cadence"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MonitorInterval returns the monitor tick as a duration.
func (s SchedulerConfig) MonitorInterval() time.Duration {
	return time.Duration(s.MonitorIntervalSecs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("perplexity.recency", "month")
	v.SetDefault("claude.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("engine.primary_weight", 0.6)
	v.SetDefault("engine.secondary_weight", 0.4)
	v.SetDefault("engine.divergence_threshold", 20.0)
	v.SetDefault("engine.call_timeout_secs", 90)
	v.SetDefault("engine.spacing_secs", 2)
	v.SetDefault("engine.retry_max_attempts", 4)
	v.SetDefault("scan.pacing_secs", 3)
	v.SetDefault("scan.hot_window_size", 50)
	v.SetDefault("scan.dormant_floor", 10.0)
	v.SetDefault("scan.parallelism", 8)
	v.SetDefault("calendar.rest_days", []string{"friday", "saturday"})
	v.SetDefault("calendar.location", "Asia/Jerusalem")
	v.SetDefault("scheduler.monitor_interval_secs", 30)
	v.SetDefault("scheduler.cadence", defaultCadence())

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

// defaultCadence is the standing scan schedule: hot tier every four hours,
// active tier daily, dormant tier monthly in the first week.
func defaultCadence() []map[string]any {
	return []map[string]any{
		{"spec": "0 */4 * * *", "tier": "hot", "mode": "full", "gated": true},
		{"spec": "0 8 * * *", "tier": "active", "mode": "status_check", "gated": true},
		{
			"spec": "0 9 * * *", "tier": "dormant", "mode": "status_check", "gated": true,
			"window": []map[string]any{{"from": 1, "to": 7}},
		},
	}
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

// RestWeekdays parses the configured rest-day names. Unknown names are
// skipped.
func (c CalendarConfig) RestWeekdays() []time.Weekday {
	names := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
	var days []time.Weekday
	for _, n := range c.RestDays {
		if d, ok := names[strings.ToLower(strings.TrimSpace(n))]; ok {
			days = append(days, d)
		}
	}
	return days
}

// HolidayDates parses the configured holiday list (2006-01-02 format).
func (c CalendarConfig) HolidayDates() ([]time.Time, error) {
	dates := make([]time.Time, 0, len(c.Holidays))
	for _, h := range c.Holidays {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(h))
		if err != nil {
			return nil, eris.Wrapf(err, "config: holiday %q", h)
		}
		dates = append(dates, d)
	}
	return dates, nil
}
