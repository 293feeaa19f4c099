package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type StorageConfig struct {
	DBPath   string `yaml:"dbPath" validate:"required|unixPath"`
	SeedFile string `yaml:"seedFile"`
}

type Persistence struct {
	BackupPath   string        `yaml:"backupPath" validate:"required|unixPath"`
	SaveInterval time.Duration `yaml:"saveInterval" validate:"required|min:1"`
	ArchiveDir   string        `yaml:"archiveDir"`
	ArchiveTTL   time.Duration `yaml:"archiveTTL"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type GameConfig struct {
	HintCost          int    `yaml:"hintCost" validate:"min:0"`
	HintStrategy      string `yaml:"hintStrategy" validate:"in:frequency,first"`
	DefaultDifficulty string `yaml:"defaultDifficulty" validate:"in:easy,medium,hard"`
}

type RemoteConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
}

type SyncConfig struct {
	Interval    time.Duration `yaml:"interval" validate:"required|min:1"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	MaxBackoff  time.Duration `yaml:"maxBackoff"`
	MaxAttempts int           `yaml:"maxAttempts" validate:"min:0"`
}

type IdentityConfig struct {
	UserID string `yaml:"userID"`
	Token  string `yaml:"token"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	WebServer   Server         `yaml:"webServer"`
	Storage     StorageConfig  `yaml:"storage"`
	Persistence Persistence    `yaml:"persistence"`
	Game        GameConfig     `yaml:"game"`
	Remote      RemoteConfig   `yaml:"remote"`
	Sync        SyncConfig     `yaml:"sync"`
	Identity    IdentityConfig `yaml:"identity"`
	Logger      LoggerConfig   `yaml:"logger"`
	Cache       CacheConfig    `yaml:"cache"`
	Metrics     MetricsConfig  `yaml:"metrics"`
}
