package providers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cryptogram/internal/structures"

	"github.com/spf13/viper"
)

const AppName = "CryptogramDaemon"

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	v := viper.New()
	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")

	setConfigDefaults(v)

	_ = v.BindEnv("logger.level", "CRYPTOGRAM_LOG_LEVEL")
	_ = v.BindEnv("storage.dbPath", "CRYPTOGRAM_DB_PATH")
	_ = v.BindEnv("remote.baseURL", "CRYPTOGRAM_REMOTE_URL")
	_ = v.BindEnv("identity.token", "CRYPTOGRAM_TOKEN")
	_ = v.BindEnv("identity.userID", "CRYPTOGRAM_USER_ID")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	if err := NewCnfValidator(&conf).Validate(); err != nil {
		return nil, err
	}

	conf.AppName = AppName
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("webServer.host", "127.0.0.1")
	v.SetDefault("webServer.port", 8765)
	v.SetDefault("persistence.saveInterval", 5*time.Minute)
	v.SetDefault("persistence.archiveTTL", 30*24*time.Hour)
	v.SetDefault("game.hintCost", 1)
	v.SetDefault("game.hintStrategy", "frequency")
	v.SetDefault("game.defaultDifficulty", "medium")
	v.SetDefault("remote.timeout", 10*time.Second)
	v.SetDefault("sync.interval", time.Minute)
	v.SetDefault("sync.baseBackoff", 5*time.Second)
	v.SetDefault("sync.maxBackoff", 30*time.Minute)
	v.SetDefault("sync.maxAttempts", 8)
	v.SetDefault("identity.userID", "local")
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("logger.mode", 0644)
}
