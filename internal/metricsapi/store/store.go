// Package store is the MySQL-backed reference implementation of the
// metrics sink's persistence: infraction history and the room→game
// mapping. This is the external collaborator's own storage, not game
// state.
package store

import (
	"context"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"golang.org/x/xerrors"

	"gamecore/internal/anticheat"
)

// Store wraps the sink's database.
type Store struct {
	db *sqlx.DB
}

// Open connects to MySQL with the given DSN.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, xerrors.Errorf("connect mysql: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing handle (tests use sqlmock here).
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

const insertInfractionQuery = "INSERT INTO infraction" +
	" (infraction_id, user_id, game_id, created_at, player_ping_ms, name, details, severity)" +
	" VALUES (?, ?, ?, ?, ?, ?, ?, ?)" +
	" ON DUPLICATE KEY UPDATE infraction_id = infraction_id"

// InsertInfractions writes one batch inside a transaction. The duplicate
// clause makes retries of the same batch idempotent on infraction_id.
func (s *Store) InsertInfractions(ctx context.Context, batch []anticheat.Infraction) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return xerrors.Errorf("begin: %w", err)
	}
	for _, inf := range batch {
		_, err := tx.ExecContext(ctx, insertInfractionQuery,
			inf.InfractionID, inf.UserID, inf.GameID,
			inf.CreatedAt.UTC().Format(time.DateTime),
			inf.PlayerPing.Milliseconds(), inf.Name, inf.Details, uint8(inf.Severity))
		if err != nil {
			tx.Rollback()
			return xerrors.Errorf("insert infraction %s: %w", inf.InfractionID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return xerrors.Errorf("commit: %w", err)
	}
	return nil
}

// GameIDForRoom resolves the most recent persisted game for a room code.
func (s *Store) GameIDForRoom(ctx context.Context, roomCode int32) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id,
		"SELECT id FROM game WHERE room_code = ? ORDER BY created_at DESC LIMIT 1", roomCode)
	if err != nil {
		return 0, xerrors.Errorf("select game for room %d: %w", roomCode, err)
	}
	return id, nil
}
