package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	"SignalBot/pkg/logger"
)

var ErrMissingSignalID = errors.New("signal store: outcome without signal id")

// SignalSchema returns the DDL for the signal history tables in database db.
func SignalSchema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.signals (
			id String,
			instrument String,
			symbol String,
			class LowCardinality(String),
			timeframe LowCardinality(String),
			direction LowCardinality(String),
			confidence Float64,
			score Int32,
			price Float64,
			fallback UInt8,
			broker_name String,
			created_at DateTime64(3)
		) ENGINE = MergeTree ORDER BY (instrument, created_at)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.signal_outcomes (
			signal_id String,
			instrument String,
			class LowCardinality(String),
			won UInt8,
			settled_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(settled_at) ORDER BY (instrument, signal_id)`, db),
	}
}

// CHSignalStore keeps delivered signals and their outcomes in ClickHouse.
// Outcomes are appended to their own table and joined on read.
type CHSignalStore struct {
	db       *sql.DB
	signals  string
	outcomes string
	log      *logger.Logger
}

// NewCHSignalStore uses tables signals and signal_outcomes in database.
func NewCHSignalStore(db *sql.DB, database string, lgr *logger.Logger) *CHSignalStore {
	if lgr == nil {
		lgr = logger.Nop()
	}
	prefix := ""
	if database != "" {
		prefix = database + "."
	}
	return &CHSignalStore{
		db:       db,
		signals:  prefix + "signals",
		outcomes: prefix + "signal_outcomes",
		log:      lgr,
	}
}

var _ domrepo.SignalStore = (*CHSignalStore)(nil)

func (s *CHSignalStore) Save(ctx context.Context, d *models.Delivery) error {
	if d == nil || d.Signal == nil {
		return fmt.Errorf("save signal: empty delivery")
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, instrument, symbol, class, timeframe, direction, confidence, score, price, fallback, broker_name, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.signals)
	sig := d.Signal
	_, err := s.db.ExecContext(ctx, q,
		sig.ID,
		d.Instrument.Name,
		d.Instrument.Symbol,
		string(d.Class),
		d.Timeframe,
		string(sig.Direction),
		sig.Confidence,
		int32(sig.Score),
		sig.Price,
		boolToUInt8(sig.Fallback),
		d.BrokerName,
		sig.CreatedAt,
	)
	if err != nil {
		s.log.Error("clickhouse insert signal failed",
			logger.String("id", sig.ID),
			logger.String("instrument", d.Instrument.Name),
			logger.Error(err))
		return fmt.Errorf("save signal: %w", err)
	}
	return nil
}

func (s *CHSignalStore) UpdateOutcome(ctx context.Context, o models.Outcome) error {
	if o.SignalID == "" {
		return ErrMissingSignalID
	}
	settled := o.SettledAt
	if settled.IsZero() {
		settled = time.Now()
	}
	q := fmt.Sprintf(`INSERT INTO %s (signal_id, instrument, class, won, settled_at) VALUES (?, ?, ?, ?, ?)`, s.outcomes)
	if _, err := s.db.ExecContext(ctx, q, o.SignalID, o.Instrument, string(o.Class), boolToUInt8(o.Won), settled); err != nil {
		return fmt.Errorf("update outcome: %w", err)
	}
	return nil
}

// History returns the newest signals first, optionally for one instrument.
func (s *CHSignalStore) History(ctx context.Context, instrument string, limit int) ([]domrepo.StoredSignal, error) {
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf(`
		SELECT s.id, s.instrument, s.symbol, s.class, s.timeframe, s.direction,
		       s.confidence, s.score, s.price, s.fallback, s.created_at,
		       o.settled, o.won, o.settled_at
		FROM %s AS s
		LEFT JOIN (
			SELECT signal_id, 1 AS settled, argMax(won, settled_at) AS won, max(settled_at) AS settled_at
			FROM %s
			GROUP BY signal_id
		) AS o ON o.signal_id = s.id
		WHERE (? = '' OR s.instrument = ?)
		ORDER BY s.created_at DESC
		LIMIT ?`, s.signals, s.outcomes)

	rows, err := s.db.QueryContext(ctx, q, instrument, instrument, limit)
	if err != nil {
		return nil, fmt.Errorf("signal history: %w", err)
	}
	defer rows.Close()

	out := make([]domrepo.StoredSignal, 0, limit)
	for rows.Next() {
		var (
			r                   domrepo.StoredSignal
			score               int32
			fallback, done, won uint8
			settledAt           time.Time
		)
		if err := rows.Scan(&r.ID, &r.Instrument, &r.Symbol, &r.Class, &r.Timeframe, &r.Direction,
			&r.Confidence, &score, &r.Price, &fallback, &r.CreatedAt,
			&done, &won, &settledAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		r.Score = int(score)
		r.Fallback = fallback == 1
		r.Result = "pending"
		if done == 1 {
			r.Result = "loss"
			if won == 1 {
				r.Result = "win"
			}
			t := settledAt
			r.SettledAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WinRate counts settled outcomes since the given time.
func (s *CHSignalStore) WinRate(ctx context.Context, instrument string, since time.Time) (domrepo.WinStats, error) {
	q := fmt.Sprintf(`
		SELECT countIf(won = 1), countIf(won = 0)
		FROM (
			SELECT signal_id, argMax(won, settled_at) AS won
			FROM %s
			WHERE (? = '' OR instrument = ?) AND settled_at >= ?
			GROUP BY signal_id
		)`, s.outcomes)

	var wins, losses uint64
	if err := s.db.QueryRowContext(ctx, q, instrument, instrument, since).Scan(&wins, &losses); err != nil {
		return domrepo.WinStats{}, fmt.Errorf("win rate: %w", err)
	}
	st := domrepo.WinStats{Wins: int(wins), Losses: int(losses)}
	if total := wins + losses; total > 0 {
		st.Rate = float64(wins) / float64(total) * 100
	}
	return st, nil
}

func (s *CHSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
