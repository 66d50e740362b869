package config

import (
	"os"
	"time"

	"github.com/tnicklin/update_gate/appstore"
	"github.com/tnicklin/update_gate/clock"
	"github.com/tnicklin/update_gate/logger"
	"github.com/tnicklin/update_gate/notify"
	"github.com/tnicklin/update_gate/store"
	"github.com/tnicklin/update_gate/update"
	"go.uber.org/config"
)

// NotifyConfig groups the notifier backends. Each is enabled by its own
// credentials or URL.
type NotifyConfig struct {
	Discord notify.DiscordConfig `yaml:"discord"`
	NATS    notify.NATSConfig    `yaml:"nats"`
}

// AppConfig holds all application configuration.
type AppConfig struct {
	Logger   logger.Config   `yaml:"logger"`
	AppStore appstore.Config `yaml:"appstore"`
	Update   update.Config   `yaml:"update"`
	Store    store.Config    `yaml:"store"`
	Clock    clock.Config    `yaml:"clock"`
	Notify   NotifyConfig    `yaml:"notify"`
}

// Load reads configuration from the specified YAML files.
// Files are merged in order, with later files overriding earlier ones.
// Missing files are silently ignored.
func Load(files ...string) (*AppConfig, error) {
	opts := make([]config.YAMLOption, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			opts = append(opts, config.File(f))
		}
	}

	if len(opts) == 0 {
		return nil, os.ErrNotExist
	}

	provider, err := config.NewYAML(opts...)
	if err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := provider.Get(config.Root).Populate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadWithDefaults loads configuration with sensible defaults.
func LoadWithDefaults(files ...string) (*AppConfig, error) {
	cfg, err := Load(files...)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills unset values and applies environment overrides.
func (cfg *AppConfig) ApplyDefaults() {
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if len(cfg.Logger.OutputPaths) == 0 {
		cfg.Logger.OutputPaths = []string{"stdout"}
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "data/update_gate.db"
	}
	if cfg.AppStore.Timeout == 0 {
		cfg.AppStore.Timeout = 30 * time.Second
	}

	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		cfg.Notify.Discord.Token = token
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.Notify.NATS.URL = url
	}

	cfg.AppStore.Defaults()
	cfg.Update.Defaults()
	cfg.Notify.NATS.Defaults()
}
