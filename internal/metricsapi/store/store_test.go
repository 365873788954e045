package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"gamecore/internal/anticheat"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "mysql")), mock
}

func testBatch() []anticheat.Infraction {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []anticheat.Infraction{
		{
			InfractionID: "123-1",
			UserID:       1001,
			GameID:       77,
			CreatedAt:    created,
			PlayerPing:   80 * time.Millisecond,
			Name:         anticheat.RuleForbiddenRpcVent,
			Details:      "vent rpc 19 from non-impostor 1001",
			Severity:     anticheat.High,
		},
		{
			InfractionID: "123-2",
			UserID:       1002,
			GameID:       77,
			CreatedAt:    created.Add(time.Second),
			PlayerPing:   120 * time.Millisecond,
			Name:         anticheat.RuleRpcOwnership,
			Details:      "rpc 9 on net id 4 owned by 1001, sender 1002",
			Severity:     anticheat.Critical,
		},
	}
}

func TestInsertInfractions(t *testing.T) {
	st, mock := newMockStore(t)
	batch := testBatch()

	mock.ExpectBegin()
	for _, inf := range batch {
		mock.ExpectExec("INSERT INTO infraction").
			WithArgs(inf.InfractionID, inf.UserID, inf.GameID,
				inf.CreatedAt.UTC().Format(time.DateTime),
				inf.PlayerPing.Milliseconds(), inf.Name, inf.Details, uint8(inf.Severity)).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	if err := st.InsertInfractions(context.Background(), batch); err != nil {
		t.Fatalf("InsertInfractions: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsertInfractionsRollsBackOnError(t *testing.T) {
	st, mock := newMockStore(t)
	batch := testBatch()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO infraction").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	if err := st.InsertInfractions(context.Background(), batch); err == nil {
		t.Fatal("InsertInfractions did not surface the exec error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsertInfractionsEmptyBatchIsNoop(t *testing.T) {
	st, mock := newMockStore(t)
	if err := st.InsertInfractions(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected queries for empty batch: %v", err)
	}
}

func TestGameIDForRoom(t *testing.T) {
	st, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id"}).AddRow(int64(77))
	mock.ExpectQuery("SELECT id FROM game WHERE room_code").
		WithArgs(int32(123)).
		WillReturnRows(rows)

	id, err := st.GameIDForRoom(context.Background(), 123)
	if err != nil {
		t.Fatalf("GameIDForRoom: %v", err)
	}
	if id != 77 {
		t.Errorf("game id = %d, want 77", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
