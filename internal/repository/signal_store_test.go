package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"SignalBot/internal/domain/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*CHSignalStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewCHSignalStore(db, "signalbot", nil), mock
}

func testDelivery() *models.Delivery {
	return &models.Delivery{
		Candidate: models.Candidate{
			Instrument: models.Instrument{Name: "EUR/USD OTC", Symbol: "EURUSD=X", Payout: 92},
			Signal: &models.SignalRecord{
				ID:         "sig-1",
				Direction:  models.DirectionPut,
				Confidence: 82,
				Score:      2,
				Price:      1.08,
				Fallback:   true,
				CreatedAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			},
			Timeframe: "5M",
		},
		Class:      models.ClassShort,
		BrokerName: "EUR/USD OTC",
	}
}

func TestCHSignalStore_Save(t *testing.T) {
	s, mock := newMockStore(t)
	d := testDelivery()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO signalbot.signals")).
		WithArgs("sig-1", "EUR/USD OTC", "EURUSD=X", "short", "5M", "PUT", 82.0, int64(2), 1.08, int64(1), "EUR/USD OTC", d.Signal.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Save(context.Background(), d))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, s.Save(context.Background(), &models.Delivery{}))
}

func TestCHSignalStore_UpdateOutcome(t *testing.T) {
	s, mock := newMockStore(t)
	settled := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO signalbot.signal_outcomes")).
		WithArgs("sig-1", "EUR/USD OTC", "short", int64(1), settled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpdateOutcome(context.Background(), models.Outcome{
		SignalID: "sig-1", Instrument: "EUR/USD OTC", Class: models.ClassShort, Won: true, SettledAt: settled,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	err = s.UpdateOutcome(context.Background(), models.Outcome{Instrument: "X"})
	assert.ErrorIs(t, err, ErrMissingSignalID)
}

func TestCHSignalStore_History(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	settled := created.Add(5 * time.Minute)

	cols := []string{"id", "instrument", "symbol", "class", "timeframe", "direction", "confidence", "score", "price", "fallback", "created_at", "settled", "won", "settled_at"}
	rows := sqlmock.NewRows(cols).
		AddRow("a", "EUR/USD OTC", "EURUSD=X", "short", "5M", "CALL", 88.0, int64(3), 1.1, int64(0), created, int64(1), int64(1), settled).
		AddRow("b", "EUR/USD OTC", "EURUSD=X", "short", "1M", "PUT", 80.0, int64(2), 1.1, int64(1), created, int64(1), int64(0), settled).
		AddRow("c", "EUR/USD OTC", "EURUSD=X", "short", "1M", "PUT", 80.0, int64(2), 1.1, int64(0), created, int64(0), int64(0), time.Unix(0, 0))

	mock.ExpectQuery("SELECT s.id").WithArgs("EUR/USD OTC", "EUR/USD OTC", 10).WillReturnRows(rows)

	got, err := s.History(context.Background(), "EUR/USD OTC", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "win", got[0].Result)
	assert.Equal(t, 3, got[0].Score)
	require.NotNil(t, got[0].SettledAt)
	assert.Equal(t, "loss", got[1].Result)
	assert.True(t, got[1].Fallback)
	assert.Equal(t, "pending", got[2].Result)
	assert.Nil(t, got[2].SettledAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHSignalStore_WinRate(t *testing.T) {
	s, mock := newMockStore(t)
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT countIf").
		WithArgs("", "", since).
		WillReturnRows(sqlmock.NewRows([]string{"wins", "losses"}).AddRow(int64(3), int64(1)))

	st, err := s.WinRate(context.Background(), "", since)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Wins)
	assert.Equal(t, 1, st.Losses)
	assert.InDelta(t, 75.0, st.Rate, 1e-9)
}

func TestSignalSchema(t *testing.T) {
	stmts := SignalSchema("signalbot")
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[1], "signalbot.signals")
	assert.Contains(t, stmts[2], "ReplacingMergeTree")
}
