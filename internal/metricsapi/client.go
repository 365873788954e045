// Package metricsapi is the client side of the external metrics and
// persistence sink. The module ships two implementations: an
// msgpack-over-HTTP client for a remote sink, and a MySQL-backed sink
// under metricsapi/store for operators that run the sink in-process.
package metricsapi

import (
	"bytes"
	"net/http"
	"time"

	"github.com/vmihailenco/msgpack/v4"
	"golang.org/x/xerrors"

	"gamecore/internal/anticheat"
	"gamecore/internal/config"
	"gamecore/internal/log"
)

// Sink is the collaborator contract the room and worker consume.
// FlushInfractions must be idempotent on InfractionID.
type Sink interface {
	CurrentGameID(roomCode int32) (int64, bool)
	FlushInfractions(batch []anticheat.Infraction) error
}

// infractionRow is the wire form of one infraction.
type infractionRow struct {
	InfractionID string `msgpack:"infraction_id"`
	UserID       uint32 `msgpack:"user_id"`
	GameID       int64  `msgpack:"game_id"`
	CreatedAt    int64  `msgpack:"created_at"`
	PlayerPingMS int64  `msgpack:"player_ping_ms"`
	Name         string `msgpack:"name"`
	Details      string `msgpack:"details"`
	Severity     uint8  `msgpack:"severity"`
}

func toRows(batch []anticheat.Infraction) []infractionRow {
	rows := make([]infractionRow, 0, len(batch))
	for _, inf := range batch {
		rows = append(rows, infractionRow{
			InfractionID: inf.InfractionID,
			UserID:       inf.UserID,
			GameID:       inf.GameID,
			CreatedAt:    inf.CreatedAt.Unix(),
			PlayerPingMS: inf.PlayerPing.Milliseconds(),
			Name:         inf.Name,
			Details:      inf.Details,
			Severity:     uint8(inf.Severity),
		})
	}
	return rows
}

// Client talks msgpack-over-HTTP to a remote sink.
type Client struct {
	base   string
	hc     *http.Client
	logger log.Logger
}

// NewClient builds a client for the configured base URL.
func NewClient(cfg config.MetricsConfig, logger log.Logger) *Client {
	return &Client{
		base:   cfg.BaseURL,
		hc:     &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// CurrentGameID asks the sink which persisted game a room code maps to.
func (c *Client) CurrentGameID(roomCode int32) (int64, bool) {
	body, err := msgpack.Marshal(struct {
		RoomCode int32 `msgpack:"room_code"`
	}{roomCode})
	if err != nil {
		return 0, false
	}
	res, err := c.hc.Post(c.base+"/v1/games/current", "application/msgpack", bytes.NewReader(body))
	if err != nil {
		c.logger.Warnf("current game id for %d: %v", roomCode, err)
		return 0, false
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return 0, false
	}
	var out struct {
		GameID int64 `msgpack:"game_id"`
	}
	if err := msgpack.NewDecoder(res.Body).Decode(&out); err != nil {
		c.logger.Warnf("decode game id for %d: %v", roomCode, err)
		return 0, false
	}
	return out.GameID, true
}

// FlushInfractions ships one batch; the sink deduplicates on
// InfractionID so retries are safe.
func (c *Client) FlushInfractions(batch []anticheat.Infraction) error {
	if len(batch) == 0 {
		return nil
	}
	body, err := msgpack.Marshal(toRows(batch))
	if err != nil {
		return xerrors.Errorf("encode infraction batch: %w", err)
	}
	res, err := c.hc.Post(c.base+"/v1/infractions", "application/msgpack", bytes.NewReader(body))
	if err != nil {
		return xerrors.Errorf("flush infractions: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		return xerrors.Errorf("metrics sink status %d", res.StatusCode)
	}
	return nil
}

// Nop discards everything; used when no sink is configured.
type Nop struct{}

func (Nop) CurrentGameID(int32) (int64, bool)            { return 0, false }
func (Nop) FlushInfractions([]anticheat.Infraction) error { return nil }
