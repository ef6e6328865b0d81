package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/swingsim/market"
	"github.com/rustyeddy/swingsim/risk"
	"github.com/rustyeddy/swingsim/session"
)

// SQLite stores sessions in a single database file.
type SQLite struct {
	db      *sql.DB
	log     zerolog.Logger
	changes notifier
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens or creates the database at path and applies Schema.
func NewSQLite(path string, log zerolog.Logger) (*SQLite, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", path+sep+"_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema %s: %w", path, err)
	}
	return &SQLite{db: db, log: log.With().Str("store", "sqlite").Logger()}, nil
}

func (j *SQLite) Changes() <-chan Change {
	return j.changes.subscribe()
}

func (j *SQLite) Close() error {
	j.changes.close()
	return j.db.Close()
}

// SaveSession replaces the session and all of its children in one
// transaction.
func (j *SQLite) SaveSession(ctx context.Context, ownerID string, s *session.Session) error {
	if s.OwnerID != ownerID {
		return fmt.Errorf("save session %s: owner %q does not match %q", s.ID, s.OwnerID, ownerID)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var owner string
	err = tx.QueryRowContext(ctx, `SELECT owner_id FROM sessions WHERE id = ?`, s.ID).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("save session %s: %w", s.ID, err)
	case owner != ownerID:
		return fmt.Errorf("save session %s: %w", s.ID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, s.ID); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	if err := insertSession(ctx, tx, s); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}

	j.log.Debug().Str("session", s.ID).Int("day", s.CurrentDay).Msg("saved")
	j.changes.publish(Change{Op: Saved, OwnerID: ownerID, SessionID: s.ID})
	return nil
}

func insertSession(ctx context.Context, tx *sql.Tx, s *session.Session) error {
	ma, err := json.Marshal(s.MAPeriods)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions
		(id, owner_id, schema_version, symbol, name, initial_capital, current_capital,
		 start_date, end_date, period_days, practice_start_index, practice_start_date,
		 current_day, status, playback_speed_ns, ma_periods, trade_count, win_count,
		 win_rate, rule_violation_count, max_drawdown, peak_equity,
		 created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.OwnerID, s.SchemaVersion, s.Symbol, s.Name, s.InitialCapital, s.CurrentCapital,
		s.StartDate.UTC(), s.EndDate.UTC(), s.PeriodDays, s.PracticeStartIndex, utcPtr(s.LegacyPracticeStartDate),
		s.CurrentDay, string(s.Status), int64(s.PlaybackSpeed), string(ma), s.TradeCount, s.WinCount,
		s.WinRate, s.RuleViolationCount, s.MaxDrawdown, s.PeakEquity,
		s.CreatedAt.UTC(), s.UpdatedAt.UTC(), utcPtr(s.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for i, p := range s.Positions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO positions
			(id, session_id, ord, type, trading_type, shares, entry_price, entry_date, status,
			 exit_price, exit_date, profit, profit_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, s.ID, i, string(p.Type), string(p.TradingType), p.Shares, p.EntryPrice, p.EntryDate.UTC(),
			string(p.Status), p.ExitPrice, utcPtr(p.ExitDate), p.Profit, p.ProfitRate,
		)
		if err != nil {
			return fmt.Errorf("insert position %s: %w", p.ID, err)
		}
	}

	for i, t := range s.Trades {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trades
			(id, session_id, ord, position_id, type, is_short, trade_date, price, shares,
			 fee, slippage, total_cost, memo, capital_after_trade, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, s.ID, i, t.PositionID, string(t.Type), t.IsShort, t.TradeDate.UTC(), t.Price, t.Shares,
			t.Fee, t.Slippage, t.TotalCost, t.Memo, t.CapitalAfterTrade, t.Seq,
		)
		if err != nil {
			return fmt.Errorf("insert trade %s: %w", t.ID, err)
		}
	}

	for i, v := range s.Violations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO violations
			(id, session_id, ord, timestamp, position_id, type, description, severity)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, s.ID, i, v.Timestamp.UTC(), v.PositionID, string(v.Type), v.Description, string(v.Severity),
		)
		if err != nil {
			return fmt.Errorf("insert violation %s: %w", v.ID, err)
		}
	}
	return nil
}

const sessionColumns = `
	id, owner_id, schema_version, symbol, name, initial_capital, current_capital,
	start_date, end_date, period_days, practice_start_index, practice_start_date,
	current_day, status, playback_speed_ns, ma_periods, trade_count, win_count,
	win_rate, rule_violation_count, max_drawdown, peak_equity,
	created_at, updated_at, completed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*session.Session, error) {
	var (
		s          session.Session
		legacy     sql.NullTime
		completed  sql.NullTime
		status, ma string
		speed      int64
	)
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.SchemaVersion, &s.Symbol, &s.Name, &s.InitialCapital, &s.CurrentCapital,
		&s.StartDate, &s.EndDate, &s.PeriodDays, &s.PracticeStartIndex, &legacy,
		&s.CurrentDay, &status, &speed, &ma, &s.TradeCount, &s.WinCount,
		&s.WinRate, &s.RuleViolationCount, &s.MaxDrawdown, &s.PeakEquity,
		&s.CreatedAt, &s.UpdatedAt, &completed,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ma), &s.MAPeriods); err != nil {
		return nil, fmt.Errorf("ma periods: %w", err)
	}
	s.Status = session.Status(status)
	s.PlaybackSpeed = time.Duration(speed)
	s.StartDate = s.StartDate.UTC()
	s.EndDate = s.EndDate.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	s.LegacyPracticeStartDate = nullTime(legacy)
	s.CompletedAt = nullTime(completed)
	return &s, nil
}

// LoadSession returns the session with its positions, trades and
// violations.
func (j *SQLite) LoadSession(ctx context.Context, ownerID, id string) (*session.Session, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ? AND owner_id = ?`, id, ownerID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load session %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if err := j.loadChildren(ctx, s); err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return s, nil
}

// ListSessions returns the owner's sessions, oldest first.
func (j *SQLite) ListSessions(ctx context.Context, ownerID string) ([]*session.Session, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE owner_id = ? ORDER BY created_at ASC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	rows.Close()

	for _, s := range out {
		if err := j.loadChildren(ctx, s); err != nil {
			return nil, fmt.Errorf("list sessions: %s: %w", s.ID, err)
		}
	}
	return out, nil
}

// DeleteSession removes the session; its children go with it.
func (j *SQLite) DeleteSession(ctx context.Context, ownerID, id string) error {
	res, err := j.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete session %s: %w", id, ErrNotFound)
	}

	j.log.Info().Str("session", id).Msg("deleted")
	j.changes.publish(Change{Op: Deleted, OwnerID: ownerID, SessionID: id})
	return nil
}

func (j *SQLite) loadChildren(ctx context.Context, s *session.Session) error {
	if err := j.loadPositions(ctx, s); err != nil {
		return err
	}
	if err := j.loadTrades(ctx, s); err != nil {
		return err
	}
	return j.loadViolations(ctx, s)
}

func (j *SQLite) loadPositions(ctx context.Context, s *session.Session) error {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, type, trading_type, shares, entry_price, entry_date, status,
		       exit_price, exit_date, profit, profit_rate
		FROM positions
		WHERE session_id = ?
		ORDER BY ord ASC`, s.ID)
	if err != nil {
		return fmt.Errorf("positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p                       session.Position
			typ, tt, status         string
			exitPrice, profit, rate sql.NullFloat64
			exitDate                sql.NullTime
		)
		if err := rows.Scan(
			&p.ID, &typ, &tt, &p.Shares, &p.EntryPrice, &p.EntryDate, &status,
			&exitPrice, &exitDate, &profit, &rate,
		); err != nil {
			return fmt.Errorf("positions: %w", err)
		}
		p.SessionID = s.ID
		p.Type = session.PositionType(typ)
		p.TradingType = market.TradingType(tt)
		p.Status = session.PositionStatus(status)
		p.EntryDate = p.EntryDate.UTC()
		p.ExitPrice = nullFloat(exitPrice)
		p.ExitDate = nullTime(exitDate)
		p.Profit = nullFloat(profit)
		p.ProfitRate = nullFloat(rate)
		s.Positions = append(s.Positions, p)
	}
	return rows.Err()
}

func (j *SQLite) loadTrades(ctx context.Context, s *session.Session) error {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, position_id, type, is_short, trade_date, price, shares,
		       fee, slippage, total_cost, memo, capital_after_trade, seq
		FROM trades
		WHERE session_id = ?
		ORDER BY ord ASC`, s.ID)
	if err != nil {
		return fmt.Errorf("trades: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t   session.Trade
			typ string
		)
		if err := rows.Scan(
			&t.ID, &t.PositionID, &typ, &t.IsShort, &t.TradeDate, &t.Price, &t.Shares,
			&t.Fee, &t.Slippage, &t.TotalCost, &t.Memo, &t.CapitalAfterTrade, &t.Seq,
		); err != nil {
			return fmt.Errorf("trades: %w", err)
		}
		t.SessionID = s.ID
		t.Type = market.Side(typ)
		t.TradeDate = t.TradeDate.UTC()
		s.Trades = append(s.Trades, t)
	}
	return rows.Err()
}

func (j *SQLite) loadViolations(ctx context.Context, s *session.Session) error {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, timestamp, position_id, type, description, severity
		FROM violations
		WHERE session_id = ?
		ORDER BY ord ASC`, s.ID)
	if err != nil {
		return fmt.Errorf("violations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v             session.RuleViolation
			typ, severity string
		)
		if err := rows.Scan(&v.ID, &v.Timestamp, &v.PositionID, &typ, &v.Description, &severity); err != nil {
			return fmt.Errorf("violations: %w", err)
		}
		v.SessionID = s.ID
		v.Type = risk.Rule(typ)
		v.Severity = risk.Severity(severity)
		v.Timestamp = v.Timestamp.UTC()
		s.Violations = append(s.Violations, v)
	}
	return rows.Err()
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullTime(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}
