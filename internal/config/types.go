package config

// Config is the on-disk configuration (JSON or YAML). Durations are Go
// duration strings ("500ms", "10s", "1h"); empty means "use the default".
type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Logging    LoggingConfig    `json:"logging"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	TaskEngine TaskEngineConfig `json:"task_engine"`
	Storage    StorageConfig    `json:"storage"`
	Giveaway   GiveawayConfig   `json:"giveaway"`
	Moderation ModerationConfig `json:"moderation"`
	Backup     BackupConfig     `json:"backup"`
	HTTP       HTTPConfig       `json:"http"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is "<chat_id>" or "<chat_id>:<thread_id>".
	GroupLog    string `json:"group_log"`
	PollTimeout string `json:"poll_timeout"`
	// Cooldown is the minimum spacing between commands of one user.
	Cooldown string `json:"cooldown,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type SchedulerConfig struct {
	// Timezone for cron and HH:MM schedules. Empty means local time.
	Timezone string `json:"timezone,omitempty"`
}

// TaskEngineConfig sizes the executor that runs giveaway terminations and
// periodic jobs. Zero values fall back to workers=2, queue_size=256,
// history_size=200, retry_max=3.
type TaskEngineConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	MaxQueueDelay  string `json:"max_queue_delay,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`

	// CircuitTrip consecutive failures of one job pause it for
	// circuit_cooldown, doubling per further failure. -1 disables.
	CircuitTrip     int    `json:"circuit_trip,omitempty"`
	CircuitCooldown string `json:"circuit_cooldown,omitempty"`
}

// StorageConfig selects the persistence driver.
//
//	"storage": { "driver": "file", "path": "./data" }
//	"storage": { "driver": "sqlite", "path": "./data/bot.db" }
//	"storage": { "driver": "redis", "addr": "127.0.0.1:6379", "prefix": "gw" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`

	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
}

type GiveawayConfig struct {
	SweepInterval string `json:"sweep_interval,omitempty"`
	ExpiredGrace  string `json:"expired_grace,omitempty"`
	// Retention is how long closed giveaways are kept. "0s" disables purging.
	Retention   string `json:"retention,omitempty"`
	MaxWinners  int    `json:"max_winners,omitempty"`
	MaxDuration string `json:"max_duration,omitempty"`
	EndTimeout  string `json:"end_timeout,omitempty"`
	// EndConcurrency caps terminations running at once. Default 1.
	EndConcurrency int `json:"end_concurrency,omitempty"`
}

type ModerationConfig struct {
	MaxWarns    int    `json:"max_warns,omitempty"`
	MuteMax     string `json:"mute_max,omitempty"`
	MuteDefault string `json:"mute_default,omitempty"`
}

type BackupConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
	// Schedule accepts cron, "@every 6h", a bare duration or HH:MM.
	Schedule string `json:"schedule,omitempty"`
	Dir      string `json:"dir,omitempty"`
	// Keep is the number of backup sets retained; <=0 keeps everything.
	Keep *int `json:"keep,omitempty"`
}

// HTTPConfig controls the status server (/, /health, /metrics).
//
// Binding to a non-loopback address requires a token or allow_insecure.
type HTTPConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	WriteTimeout  string `json:"write_timeout,omitempty"`
}

// BackupEnabled defaults to true when the key is omitted.
func (b BackupConfig) BackupEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// KeepSets defaults to 20 when the key is omitted.
func (b BackupConfig) KeepSets() int {
	if b.Keep == nil {
		return 20
	}
	return *b.Keep
}
