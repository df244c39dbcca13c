package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Exports   ExportsConfig   `mapstructure:"exports"`
	Channels  ChannelsConfig  `mapstructure:"channels"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MigrationsPath string `mapstructure:"migrations_path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SchedulerConfig controls the engine tick loop.
type SchedulerConfig struct {
	TickInterval             string `mapstructure:"tick_interval"`
	ReportTimeout            string `mapstructure:"report_timeout"`
	DispatchTimeout          string `mapstructure:"dispatch_timeout"`
	MaxConcurrentGenerations int    `mapstructure:"max_concurrent_generations"`
	MaxConcurrentEvaluations int    `mapstructure:"max_concurrent_evaluations"`
	EvaluationWindow         string `mapstructure:"evaluation_window"`
	BusinessHoursStart       int    `mapstructure:"business_hours_start"`
	BusinessHoursEnd         int    `mapstructure:"business_hours_end"`
	Timezone                 string `mapstructure:"timezone"`
	DefinitionsPath          string `mapstructure:"definitions_path"`
}

type ExportsConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// ChannelsConfig carries transport endpoints and credentials.
type ChannelsConfig struct {
	SMTP    SMTPConfig    `mapstructure:"smtp"`
	Slack   SlackConfig   `mapstructure:"slack"`
	SMS     GatewayConfig `mapstructure:"sms"`
	Push    GatewayConfig `mapstructure:"push"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

type GatewayConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

type WebSocketConfig struct {
	PingInterval int `mapstructure:"ping_interval"`
	PongTimeout  int `mapstructure:"pong_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// Load reads configuration from configs/config.yaml and the environment.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("channels.smtp.password", "SMTP_PASSWORD")
	viper.BindEnv("channels.slack.webhook_url", "SLACK_WEBHOOK_URL")
	viper.BindEnv("channels.sms.token", "SMS_GATEWAY_TOKEN")
	viper.BindEnv("channels.push.token", "PUSH_GATEWAY_TOKEN")
	viper.BindEnv("channels.webhook.secret", "WEBHOOK_SECRET")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 3001)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("database.path", "./data/insight.db")
	viper.SetDefault("database.migrations_path", "./migrations")
	viper.SetDefault("database.max_connections", 25)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("scheduler.tick_interval", "60s")
	viper.SetDefault("scheduler.report_timeout", "5m")
	viper.SetDefault("scheduler.dispatch_timeout", "30s")
	viper.SetDefault("scheduler.max_concurrent_generations", 4)
	viper.SetDefault("scheduler.max_concurrent_evaluations", 10)
	viper.SetDefault("scheduler.evaluation_window", "1h")
	viper.SetDefault("scheduler.business_hours_start", 8)
	viper.SetDefault("scheduler.business_hours_end", 20)
	viper.SetDefault("scheduler.timezone", "UTC")
	viper.SetDefault("scheduler.definitions_path", "./configs/definitions.yaml")

	viper.SetDefault("exports.output_dir", "./data/exports")

	viper.SetDefault("channels.smtp.port", 587)

	viper.SetDefault("websocket.ping_interval", 30)
	viper.SetDefault("websocket.pong_timeout", 60)
	viper.SetDefault("websocket.write_timeout", 10)
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Scheduler.TickInterval); err != nil {
		return fmt.Errorf("invalid scheduler.tick_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Scheduler.ReportTimeout); err != nil {
		return fmt.Errorf("invalid scheduler.report_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Scheduler.DispatchTimeout); err != nil {
		return fmt.Errorf("invalid scheduler.dispatch_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Scheduler.EvaluationWindow); err != nil {
		return fmt.Errorf("invalid scheduler.evaluation_window: %w", err)
	}
	if c.Scheduler.BusinessHoursStart < 0 || c.Scheduler.BusinessHoursStart > 23 ||
		c.Scheduler.BusinessHoursEnd < 1 || c.Scheduler.BusinessHoursEnd > 24 ||
		c.Scheduler.BusinessHoursStart >= c.Scheduler.BusinessHoursEnd {
		return fmt.Errorf("invalid business hours window %d-%d",
			c.Scheduler.BusinessHoursStart, c.Scheduler.BusinessHoursEnd)
	}
	return nil
}

// TickIntervalDuration returns the parsed tick interval.
func (c *SchedulerConfig) TickIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.TickInterval)
	return d
}

// ReportTimeoutDuration returns the parsed per-generation timeout.
func (c *SchedulerConfig) ReportTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ReportTimeout)
	return d
}

// DispatchTimeoutDuration returns the parsed per-dispatch timeout.
func (c *SchedulerConfig) DispatchTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.DispatchTimeout)
	return d
}

// EvaluationWindowDuration returns the trailing window used when sampling the
// current value of an alert rule's metric.
func (c *SchedulerConfig) EvaluationWindowDuration() time.Duration {
	d, _ := time.ParseDuration(c.EvaluationWindow)
	return d
}
