package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/alphamachine/engine/internal/errs"
)

// Status is the signal lifecycle state
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusExecuted Status = "EXECUTED"
	StatusClosed   Status = "CLOSED"
)

// nextStatus is the only legal transition out of each state
var nextStatus = map[Status]Status{
	StatusPending:  StatusApproved,
	StatusApproved: StatusExecuted,
	StatusExecuted: StatusClosed,
}

// Signal is a persisted consensus verdict
type Signal struct {
	ID             int64
	Timestamp      time.Time
	Ticker         string
	SignalType     string
	Confidence     float64
	BlendedScore   float64
	AgreementRatio float64
	EntryPrice     *decimal.Decimal
	TargetPrice    *decimal.Decimal
	StopLoss       *decimal.Decimal
	PositionSize   int64
	Status         Status
	Reasoning      string
	ExecutedAt     *time.Time
	ClosedAt       *time.Time
	PnL            *decimal.Decimal
	Notes          *string
	Analyses       []AgentAnalysis
}

// AgentAnalysis is one agent's contribution to a signal
type AgentAnalysis struct {
	ID             int64
	SignalID       int64
	AgentName      string
	Recommendation string
	Confidence     float64
	RawScore       float64
	Reasoning      string
	DataUsed       map[string]interface{}
	Failed         bool
	Timestamp      time.Time
}

const signalColumns = `id, timestamp, ticker, signal_type, confidence, blended_score,
	agreement_ratio, entry_price::text, target_price::text, stop_loss::text,
	position_size, status, reasoning, executed_at, closed_at, pnl::text, notes`

// SaveSignal inserts the signal and its agent analyses, setting the
// generated IDs on the way out.
func (s *Store) SaveSignal(ctx context.Context, sig *Signal) error {
	if sig.Status == "" {
		sig.Status = StatusPending
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO signals (
			ticker, signal_type, confidence, blended_score, agreement_ratio,
			entry_price, target_price, stop_loss, position_size, status, reasoning
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, timestamp`,
		sig.Ticker,
		sig.SignalType,
		sig.Confidence,
		sig.BlendedScore,
		sig.AgreementRatio,
		decimalArg(sig.EntryPrice),
		decimalArg(sig.TargetPrice),
		decimalArg(sig.StopLoss),
		sig.PositionSize,
		sig.Status,
		sig.Reasoning,
	).Scan(&sig.ID, &sig.Timestamp)
	if err != nil {
		return errs.E(errs.KindFatal, "store.save_signal", fmt.Errorf("insert signal: %w", err))
	}

	for i := range sig.Analyses {
		a := &sig.Analyses[i]
		a.SignalID = sig.ID

		dataUsed, err := json.Marshal(a.DataUsed)
		if err != nil {
			return errs.E(errs.KindFatal, "store.save_signal", fmt.Errorf("marshal data_used: %w", err))
		}
		err = s.pool.QueryRow(ctx, `
			INSERT INTO agent_analysis (
				signal_id, agent_name, recommendation, confidence, raw_score,
				reasoning, data_used, failed
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, timestamp`,
			a.SignalID,
			a.AgentName,
			a.Recommendation,
			a.Confidence,
			a.RawScore,
			a.Reasoning,
			dataUsed,
			a.Failed,
		).Scan(&a.ID, &a.Timestamp)
		if err != nil {
			return errs.E(errs.KindFatal, "store.save_signal", fmt.Errorf("insert analysis for %s: %w", a.AgentName, err))
		}
	}

	s.log.Debug().
		Int64("signal_id", sig.ID).
		Str("ticker", sig.Ticker).
		Str("type", sig.SignalType).
		Msg("Signal saved")
	return nil
}

// GetSignal loads a signal and its agent analyses by ID
func (s *Store) GetSignal(ctx context.Context, id int64) (*Signal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+signalColumns+` FROM signals WHERE id = $1`, id)

	sig, err := scanSignal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.E(errs.KindBadInput, "store.get_signal",
				fmt.Errorf("signal %d: %w", id, ErrNotFound))
		}
		return nil, errs.E(errs.KindFatal, "store.get_signal", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, signal_id, agent_name, recommendation, confidence, raw_score,
			reasoning, data_used, failed, timestamp
		FROM agent_analysis WHERE signal_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, errs.E(errs.KindFatal, "store.get_signal", fmt.Errorf("load analyses: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var a AgentAnalysis
		var dataUsed []byte
		if err := rows.Scan(&a.ID, &a.SignalID, &a.AgentName, &a.Recommendation,
			&a.Confidence, &a.RawScore, &a.Reasoning, &dataUsed, &a.Failed, &a.Timestamp); err != nil {
			return nil, errs.E(errs.KindFatal, "store.get_signal", err)
		}
		if len(dataUsed) > 0 {
			if err := json.Unmarshal(dataUsed, &a.DataUsed); err != nil {
				return nil, errs.E(errs.KindFatal, "store.get_signal", fmt.Errorf("bad data_used: %w", err))
			}
		}
		sig.Analyses = append(sig.Analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.E(errs.KindFatal, "store.get_signal", err)
	}
	return sig, nil
}

// ListFilter narrows a signal listing. Zero values mean "no filter".
type ListFilter struct {
	Ticker     string
	SignalType string
	Status     Status
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}

// ListSignals returns a page of signals, newest first. Agent analyses
// are not loaded for listings.
func (s *Store) ListSignals(ctx context.Context, filter ListFilter) ([]Signal, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Ticker != "" {
		add("ticker = $%d", strings.ToUpper(filter.Ticker))
	}
	if filter.SignalType != "" {
		add("signal_type = $%d", filter.SignalType)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.Since.IsZero() {
		add("timestamp >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("timestamp <= $%d", filter.Until)
	}

	query := `SELECT ` + signalColumns + ` FROM signals`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errs.E(errs.KindFatal, "store.list_signals", err)
	}
	defer rows.Close()

	var signals []Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, errs.E(errs.KindFatal, "store.list_signals", err)
		}
		signals = append(signals, *sig)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.E(errs.KindFatal, "store.list_signals", err)
	}
	return signals, nil
}

// PendingSignals returns the newest signals still awaiting review
func (s *Store) PendingSignals(ctx context.Context, limit int) ([]Signal, error) {
	return s.ListSignals(ctx, ListFilter{Status: StatusPending, Limit: limit})
}

// UpdateStatus advances a signal along PENDING -> APPROVED -> EXECUTED
// -> CLOSED. Any other transition is an InvalidState error. PnL and
// notes are recorded when provided; executed_at and closed_at are
// stamped on their transitions.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status Status, pnl *decimal.Decimal, notes *string) error {
	var current Status
	err := s.pool.QueryRow(ctx, `SELECT status FROM signals WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.E(errs.KindBadInput, "store.update_status",
				fmt.Errorf("signal %d: %w", id, ErrNotFound))
		}
		return errs.E(errs.KindFatal, "store.update_status", err)
	}

	if nextStatus[current] != status {
		return errs.InvalidStatef("store.update_status",
			"illegal transition %s -> %s for signal %d", current, status, id)
	}

	query := `UPDATE signals SET status = $1`
	args := []any{status}
	switch status {
	case StatusExecuted:
		query += `, executed_at = NOW()`
	case StatusClosed:
		query += `, closed_at = NOW()`
		if pnl != nil {
			args = append(args, pnl.String())
			query += fmt.Sprintf(`, pnl = $%d`, len(args))
		}
	}
	if notes != nil {
		args = append(args, *notes)
		query += fmt.Sprintf(`, notes = $%d`, len(args))
	}
	args = append(args, id)
	query += fmt.Sprintf(` WHERE id = $%d`, len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return errs.E(errs.KindFatal, "store.update_status", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.E(errs.KindBadInput, "store.update_status",
			fmt.Errorf("signal %d: %w", id, ErrNotFound))
	}

	s.log.Info().
		Int64("signal_id", id).
		Str("from", string(current)).
		Str("to", string(status)).
		Msg("Signal status updated")
	return nil
}

// scanSignal reads one signal row in signalColumns order
func scanSignal(row pgx.Row) (*Signal, error) {
	var (
		sig                      Signal
		entry, target, stop, pnl *string
	)
	err := row.Scan(&sig.ID, &sig.Timestamp, &sig.Ticker, &sig.SignalType,
		&sig.Confidence, &sig.BlendedScore, &sig.AgreementRatio,
		&entry, &target, &stop, &sig.PositionSize, &sig.Status,
		&sig.Reasoning, &sig.ExecutedAt, &sig.ClosedAt, &pnl, &sig.Notes)
	if err != nil {
		return nil, err
	}

	if sig.EntryPrice, err = parseDecimal(entry); err != nil {
		return nil, err
	}
	if sig.TargetPrice, err = parseDecimal(target); err != nil {
		return nil, err
	}
	if sig.StopLoss, err = parseDecimal(stop); err != nil {
		return nil, err
	}
	if sig.PnL, err = parseDecimal(pnl); err != nil {
		return nil, err
	}
	return &sig, nil
}
