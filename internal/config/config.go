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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Scan     ScanConfig     `yaml:"scan" mapstructure:"scan"`
	Primary  PrimaryConfig  `yaml:"primary" mapstructure:"primary"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Progress ProgressConfig `yaml:"progress" mapstructure:"progress"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ScanConfig configures pacing, timeouts and session hygiene for both
// lookup phases.
type ScanConfig struct {
	SheetName            string `yaml:"sheet_name" mapstructure:"sheet_name"`
	VINColumn            string `yaml:"vin_column" mapstructure:"vin_column"` // optional manual column letter
	OutputDir            string `yaml:"output_dir" mapstructure:"output_dir"`
	CallTimeoutSecs      int    `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	PacingSecs           int    `yaml:"pacing_secs" mapstructure:"pacing_secs"`
	RetryCooldownSecs    int    `yaml:"retry_cooldown_secs" mapstructure:"retry_cooldown_secs"`
	RestartEveryVINs     int    `yaml:"restart_every_vins" mapstructure:"restart_every_vins"`
	RestartEveryResolves int    `yaml:"restart_every_resolves" mapstructure:"restart_every_resolves"`
	AuthWaitSecs         int    `yaml:"auth_wait_secs" mapstructure:"auth_wait_secs"`
}

// CallTimeout returns the per-lookup deadline.
func (c ScanConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSecs) * time.Second
}

// Pacing returns the fixed inter-call delay.
func (c ScanConfig) Pacing() time.Duration {
	return time.Duration(c.PacingSecs) * time.Second
}

// RetryCooldown returns the wait between a session restart and the retry.
func (c ScanConfig) RetryCooldown() time.Duration {
	return time.Duration(c.RetryCooldownSecs) * time.Second
}

// AuthWait returns the bounded wait for the manual registry sign-in.
func (c ScanConfig) AuthWait() time.Duration {
	return time.Duration(c.AuthWaitSecs) * time.Second
}

// PrimaryConfig configures the VIN-lookup portal collaborator.
type PrimaryConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	Headless bool   `yaml:"headless" mapstructure:"headless"`
}

// RegistryConfig configures the EA-registry collaborator.
type RegistryConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	Headless bool   `yaml:"headless" mapstructure:"headless"`
}

// ProgressConfig configures the optional progress webhook sink.
type ProgressConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int    `yaml:"port" mapstructure:"port"`
	UploadDir string `yaml:"upload_dir" mapstructure:"upload_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RECALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Empty defaults register the key so env overrides bind.
	v.SetDefault("store.path", "recall-runs.db")
	v.SetDefault("scan.sheet_name", "")
	v.SetDefault("scan.vin_column", "")
	v.SetDefault("scan.output_dir", ".")
	v.SetDefault("scan.call_timeout_secs", 60)
	v.SetDefault("scan.pacing_secs", 3)
	v.SetDefault("scan.retry_cooldown_secs", 5)
	v.SetDefault("scan.restart_every_vins", 50)
	v.SetDefault("scan.restart_every_resolves", 100)
	v.SetDefault("scan.auth_wait_secs", 180)
	v.SetDefault("primary.url", "")
	v.SetDefault("primary.headless", true)
	v.SetDefault("registry.url", "")
	v.SetDefault("registry.headless", false) // sign-in is manual, the operator needs the window
	v.SetDefault("progress.webhook_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.upload_dir", "uploads")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
