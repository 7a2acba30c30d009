package config

import (
	"errors"
	"io/fs"
	"strings"

	env "github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// envOverlay lists the settings that may come from the environment. Set
// values win over the config file, which keeps secrets out of it.
type envOverlay struct {
	Token         string  `env:"BOT_TOKEN"`
	OwnerIDs      []int64 `env:"BOT_OWNER_IDS" envSeparator:","`
	GroupLog      string  `env:"BOT_GROUP_LOG"`
	LogLevel      string  `env:"BOT_LOG_LEVEL"`
	StorageDriver string  `env:"BOT_STORAGE_DRIVER"`
	StoragePath   string  `env:"BOT_STORAGE_PATH"`
	RedisAddr     string  `env:"BOT_REDIS_ADDR"`
	RedisPassword string  `env:"BOT_REDIS_PASSWORD"`
	HTTPAddr      string  `env:"BOT_HTTP_ADDR"`
	HTTPToken     string  `env:"BOT_HTTP_TOKEN"`
}

// LoadDotEnv loads the given .env files into the process environment
// without overriding variables that are already set. Missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// applyEnv overlays environment values onto cfg. environ nil means the
// process environment.
func applyEnv(cfg *Config, environ map[string]string) error {
	var o envOverlay
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return err
	}

	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&cfg.Telegram.Token, o.Token)
	set(&cfg.Telegram.GroupLog, o.GroupLog)
	set(&cfg.Logging.Level, o.LogLevel)
	set(&cfg.Storage.Driver, o.StorageDriver)
	set(&cfg.Storage.Path, o.StoragePath)
	set(&cfg.Storage.Addr, o.RedisAddr)
	set(&cfg.Storage.Password, o.RedisPassword)
	set(&cfg.HTTP.Addr, o.HTTPAddr)
	set(&cfg.HTTP.Token, o.HTTPToken)
	if len(o.OwnerIDs) > 0 {
		cfg.Telegram.OwnerUserIDs = o.OwnerIDs
	}
	return nil
}
