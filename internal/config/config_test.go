package config

import (
	"testing"
	"time"
)

const sampleTOML = `
listen_addr = ":22023"
admin_addr = "127.0.0.1:8080"
tick_rate_hz = 30

[transport]
initial_backoff_ms = 500
max_attempts = 3

[room]
server_as_host = true
create_timeout_s = 5

[room.chat_commands]
enabled = true
prefix = "!"

[room.movement]
update_rate = 3
vision_checks = true

[room.unknown_objects]
mode = "materialize_list"
list = [42, 43]

[logging]
path = "/var/log/gameserver.log"
format = "json"
level = "debug"

[auth]
base_url = "http://auth.internal"

[metrics]
base_url = "http://metrics.internal"
flush_batch = 50
`

func TestLoadSample(t *testing.T) {
	cfg, err := Load([]byte(sampleTOML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":22023" || cfg.TickRate != 30 {
		t.Errorf("worker section = %q/%d", cfg.ListenAddr, cfg.TickRate)
	}
	if got := cfg.Transport.InitialBackoff(); got != 500*time.Millisecond {
		t.Errorf("initial backoff = %v", got)
	}
	if got := cfg.Transport.MaxAttemptsOrDefault(); got != 3 {
		t.Errorf("max attempts = %d", got)
	}
	if !cfg.Room.ServerAsHost || cfg.Room.CreateTimeout() != 5*time.Second {
		t.Errorf("room section = %+v", cfg.Room)
	}
	if !cfg.Room.ChatCommands.Enabled || cfg.Room.ChatCommands.Prefix != "!" {
		t.Errorf("chat commands = %+v", cfg.Room.ChatCommands)
	}
	if cfg.Room.Movement.UpdateRate != 3 || !cfg.Room.Movement.VisionChecks {
		t.Errorf("movement = %+v", cfg.Room.Movement)
	}
	if cfg.Room.UnknownObjects.Mode != "materialize_list" || len(cfg.Room.UnknownObjects.List) != 2 {
		t.Errorf("unknown objects = %+v", cfg.Room.UnknownObjects)
	}
	if cfg.Metrics.FlushBatch != 50 {
		t.Errorf("flush batch = %d", cfg.Metrics.FlushBatch)
	}
}

func TestDefaultsApplied(t *testing.T) {
	cfg := Default()
	if cfg.TickRate != 20 {
		t.Errorf("default tick rate = %d, want 20", cfg.TickRate)
	}
	if cfg.Transport.InitialBackoff() != time.Second {
		t.Errorf("default initial backoff = %v, want 1s", cfg.Transport.InitialBackoff())
	}
	if cfg.Transport.MaxBackoff() != 2*time.Second {
		t.Errorf("default max backoff = %v, want 2s", cfg.Transport.MaxBackoff())
	}
	if cfg.Transport.MaxAttemptsOrDefault() != 5 {
		t.Errorf("default max attempts = %d, want 5", cfg.Transport.MaxAttemptsOrDefault())
	}
	if cfg.Transport.PingInterval() != 1500*time.Millisecond {
		t.Errorf("default ping interval = %v, want 1.5s", cfg.Transport.PingInterval())
	}
	if cfg.Transport.PeerTimeout() != 6*time.Second {
		t.Errorf("default peer timeout = %v, want 6s", cfg.Transport.PeerTimeout())
	}
	if cfg.Room.CreateTimeout() != 10*time.Second {
		t.Errorf("default create timeout = %v, want 10s", cfg.Room.CreateTimeout())
	}
	if cfg.Metrics.FlushBatch != 100 {
		t.Errorf("default flush batch = %d, want 100", cfg.Metrics.FlushBatch)
	}
}

func TestBadTOMLFails(t *testing.T) {
	if _, err := Load([]byte("listen_addr = [broken")); err == nil {
		t.Error("malformed TOML accepted")
	}
}
