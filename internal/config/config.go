// Package config decodes the TOML configuration surface for the worker
// process and per-room defaults, matching the config.* table from the
// external-interfaces design.
package config

import (
	"time"

	"github.com/pelletier/go-toml"
	"golang.org/x/xerrors"
)

// WorkerConfig is the process-wide configuration: listen address, tick
// rate, transport timeouts, logging and admin surface.
type WorkerConfig struct {
	ListenAddr   string `toml:"listen_addr"`
	AdminAddr    string `toml:"admin_addr"`
	TickRate     int    `toml:"tick_rate_hz"`
	ProtocolVers uint32 `toml:"protocol_version"`

	Transport TransportConfig `toml:"transport"`
	Logging   LoggingConfig   `toml:"logging"`
	Room      RoomConfig      `toml:"room"`
	Auth      AuthConfig      `toml:"auth"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// TransportConfig tunes the reliability layer in internal/transport.
type TransportConfig struct {
	InitialBackoffMS int `toml:"initial_backoff_ms"`
	MaxBackoffMS     int `toml:"max_backoff_ms"`
	MaxAttempts      int `toml:"max_attempts"`
	PingIntervalMS   int `toml:"ping_interval_ms"`
	PeerTimeoutMS    int `toml:"peer_timeout_ms"`
	DedupWindowSize  int `toml:"dedup_window_size"`
}

func (t TransportConfig) InitialBackoff() time.Duration {
	return time.Duration(orDefault(t.InitialBackoffMS, 1000)) * time.Millisecond
}

func (t TransportConfig) MaxBackoff() time.Duration {
	return time.Duration(orDefault(t.MaxBackoffMS, 2000)) * time.Millisecond
}

func (t TransportConfig) MaxAttemptsOrDefault() int {
	return orDefault(t.MaxAttempts, 5)
}

func (t TransportConfig) PingInterval() time.Duration {
	return time.Duration(orDefault(t.PingIntervalMS, 1500)) * time.Millisecond
}

func (t TransportConfig) PeerTimeout() time.Duration {
	return time.Duration(orDefault(t.PeerTimeoutMS, 6000)) * time.Millisecond
}

func (t TransportConfig) DedupWindow() int {
	return orDefault(t.DedupWindowSize, 256)
}

// LoggingConfig configures the process logger. Rooms.Format and
// Players.Format are decoded but not read; the encoder follows Format.
type LoggingConfig struct {
	Path       string `toml:"path"`
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Rooms      struct {
		Format string `toml:"format"`
	} `toml:"rooms"`
	Players struct {
		Format string `toml:"format"`
	} `toml:"players"`
}

// ChatCommandsConfig mirrors `chatCommands: bool | {prefix: string}`.
type ChatCommandsConfig struct {
	Enabled bool   `toml:"enabled"`
	Prefix  string `toml:"prefix"`
}

// MovementOptimizations mirrors `optimizations.movement`.
type MovementOptimizations struct {
	UpdateRate   int  `toml:"update_rate"`
	VisionChecks bool `toml:"vision_checks"`
	DeadChecks   bool `toml:"dead_checks"`
	ReuseBuffer  bool `toml:"reuse_buffer"`
}

// ServerPlayerConfig is the cosmetic identity the server speaks chat as.
type ServerPlayerConfig struct {
	Name  string `toml:"name"`
	Color int    `toml:"color"`
	Hat   int    `toml:"hat"`
	Skin  int    `toml:"skin"`
}

// UnknownObjectsPolicy mirrors `advanced.unknownObjects`.
type UnknownObjectsPolicy struct {
	// Mode is "reject", "materialize_all" or "materialize_list".
	Mode string   `toml:"mode"`
	List []uint32 `toml:"list"`
}

// RoomConfig is the per-room config surface, applied unchanged to every
// room the worker creates; a HostGame request does not alter it.
type RoomConfig struct {
	ServerAsHost    bool                  `toml:"server_as_host"`
	CreateTimeoutS  int                   `toml:"create_timeout_s"`
	ChatCommands    ChatCommandsConfig    `toml:"chat_commands"`
	EnforceSettings map[string]string     `toml:"enforce_settings"`
	UnknownObjects  UnknownObjectsPolicy  `toml:"unknown_objects"`
	Movement        MovementOptimizations `toml:"movement"`
	ServerPlayer    ServerPlayerConfig    `toml:"server_player"`
}

func (r RoomConfig) CreateTimeout() time.Duration {
	return time.Duration(orDefault(r.CreateTimeoutS, 10)) * time.Second
}

// AuthConfig points at the external account/auth service.
type AuthConfig struct {
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`
}

// MetricsConfig points at the external metrics/persistence sink.
type MetricsConfig struct {
	BaseURL      string `toml:"base_url"`
	FlushBatch   int    `toml:"flush_batch"`
	MySQLDSN     string `toml:"mysql_dsn"`
	UseMySQLSink bool   `toml:"use_mysql_sink"`
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Load decodes a WorkerConfig from TOML bytes, applying defaults for any
// zero-valued section.
func Load(data []byte) (*WorkerConfig, error) {
	var cfg WorkerConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, xerrors.Errorf("decode config: %w", err)
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = 20
	}
	if cfg.Metrics.FlushBatch <= 0 {
		cfg.Metrics.FlushBatch = 100
	}
	return &cfg, nil
}

// Default returns a WorkerConfig with every field at its documented
// default, for tests and for `gameserver` run without -config.
func Default() *WorkerConfig {
	cfg, _ := Load(nil)
	return cfg
}
