package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teemow/officebot/internal/db"
	"github.com/teemow/officebot/internal/instrumentation"
	"github.com/teemow/officebot/internal/logging"
)

const recordColumns = "id, employee_id, name, user_id, login_time, logout_time"

// Ledger records login and logout activity in the employee_log table.
// Every read-then-write sequence runs in one transaction on the db.Worker.
type Ledger struct {
	db      *sql.DB
	writer  *db.Worker
	now     func() time.Time
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the logger used for clock skew warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithMetrics records ledger operations.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// NewLedger returns a ledger reading from conn and writing through writer.
func NewLedger(conn *sql.DB, writer *db.Worker, opts ...Option) *Ledger {
	l := &Ledger{
		db:     conn,
		writer: writer,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Login opens a session for employeeID, auto-closing a session left open.
func (l *Ledger) Login(ctx context.Context, employeeID int64, name, userIdentity string) (*Result, error) {
	return l.RecordActivity(ctx, Activity{
		EmployeeID:   &employeeID,
		DisplayName:  &name,
		UserIdentity: userIdentity,
		Action:       Login,
	})
}

// Logout closes the open session of the employee last seen with userIdentity.
func (l *Ledger) Logout(ctx context.Context, userIdentity string) (*Result, error) {
	return l.RecordActivity(ctx, Activity{
		UserIdentity: userIdentity,
		Action:       Logout,
	})
}

// RecordActivity applies a login or logout transition.
func (l *Ledger) RecordActivity(ctx context.Context, a Activity) (*Result, error) {
	if err := validate(a); err != nil {
		return nil, err
	}

	ctx, span := instrumentation.StartLedgerSpan(ctx, a.Action.String())
	defer span.End()

	start := time.Now()
	now := l.now().UTC().Truncate(time.Millisecond)

	var res *Result
	err := l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		switch a.Action {
		case Login:
			res, err = l.login(ctx, tx, a, now)
		case Logout:
			res, err = l.logout(ctx, tx, a, now)
		}
		return err
	})

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	}
	if l.metrics != nil {
		l.metrics.RecordLedgerOperation(ctx, a.Action.String(), status, time.Since(start))
	}

	if err != nil {
		return nil, &PersistenceError{Op: a.Action.String(), Err: err}
	}
	return res, nil
}

// Sessions returns every record of employeeID, oldest first.
func (l *Ledger) Sessions(ctx context.Context, employeeID int64) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM employee_log WHERE employee_id = ? ORDER BY login_time, id;",
		employeeID)
	if err != nil {
		return nil, &PersistenceError{Op: "sessions", Err: err}
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "sessions", Err: err}
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "sessions", Err: err}
	}
	return out, nil
}

func validate(a Activity) error {
	if a.UserIdentity == "" {
		return fmt.Errorf("%w: user identity is required", ErrInvalidActivity)
	}
	switch a.Action {
	case Login:
		if a.EmployeeID == nil {
			return fmt.Errorf("%w: login requires an employee id", ErrInvalidActivity)
		}
	case Logout:
	default:
		return fmt.Errorf("%w: unknown action %s", ErrInvalidActivity, a.Action)
	}
	return nil
}

func (l *Ledger) login(ctx context.Context, tx *sql.Tx, a Activity, now time.Time) (*Result, error) {
	employeeID := *a.EmployeeID
	if err := l.checkSkew(ctx, tx, employeeID, now); err != nil {
		return nil, err
	}

	res := &Result{}

	open, err := mostRecentOpen(ctx, tx, employeeID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		if err := closeOpen(ctx, tx, employeeID, now); err != nil {
			return nil, err
		}
		open.LogoutTime = &now
		res.Closed = open
		l.logger.Info("closed session left open by a missed logout",
			logging.Operation("attendance.login"),
			slog.Int64("employee_id", employeeID),
			slog.Int64("record_id", open.ID))
	}

	rec, err := insert(ctx, tx, a.EmployeeID, a.DisplayName, a.UserIdentity, now, nil)
	if err != nil {
		return nil, err
	}
	res.Record = rec
	return res, nil
}

func (l *Ledger) logout(ctx context.Context, tx *sql.Tx, a Activity, now time.Time) (*Result, error) {
	employeeID, name := a.EmployeeID, a.DisplayName
	if employeeID == nil {
		latest, err := mostRecentForUser(ctx, tx, a.UserIdentity)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			employeeID = latest.EmployeeID
			if name == nil {
				name = latest.DisplayName
			}
		}
	}

	if employeeID != nil {
		if err := l.checkSkew(ctx, tx, *employeeID, now); err != nil {
			return nil, err
		}

		open, err := mostRecentOpen(ctx, tx, *employeeID)
		if err != nil {
			return nil, err
		}
		if open != nil {
			if err := closeOpen(ctx, tx, *employeeID, now); err != nil {
				return nil, err
			}
			open.LogoutTime = &now
			return &Result{Record: open}, nil
		}
	}

	// No open session: keep an auditable logout event.
	rec, err := insert(ctx, tx, employeeID, name, a.UserIdentity, now, &now)
	if err != nil {
		return nil, err
	}
	return &Result{Record: rec, Synthetic: true}, nil
}

// checkSkew logs when now is earlier than the latest login of the employee.
func (l *Ledger) checkSkew(ctx context.Context, tx *sql.Tx, employeeID int64, now time.Time) error {
	var latest sql.NullInt64
	err := tx.QueryRowContext(ctx,
		"SELECT MAX(login_time) FROM employee_log WHERE employee_id = ?;", employeeID).Scan(&latest)
	if err != nil {
		return fmt.Errorf("read latest login: %w", err)
	}
	if latest.Valid && now.UnixMilli() < latest.Int64 {
		l.logger.Warn("clock skew: activity timestamp precedes latest recorded login",
			logging.Operation("attendance"),
			slog.Int64("employee_id", employeeID),
			slog.Time("now", now),
			slog.Time("latest_login", time.UnixMilli(latest.Int64).UTC()))
	}
	return nil
}

func mostRecentOpen(ctx context.Context, tx *sql.Tx, employeeID int64) (*Record, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM employee_log WHERE employee_id = ? AND logout_time IS NULL ORDER BY login_time DESC, id DESC LIMIT 1;",
		employeeID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open session: %w", err)
	}
	return rec, nil
}

func mostRecentForUser(ctx context.Context, tx *sql.Tx, userIdentity string) (*Record, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM employee_log WHERE user_id = ? ORDER BY login_time DESC, id DESC LIMIT 1;",
		userIdentity)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest record for user: %w", err)
	}
	return rec, nil
}

// closeOpen closes every open session of the employee so at most one can
// ever be open, even on rows written before this ledger existed.
func closeOpen(ctx context.Context, tx *sql.Tx, employeeID int64, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE employee_log SET logout_time = ? WHERE employee_id = ? AND logout_time IS NULL;",
		now.UnixMilli(), employeeID)
	if err != nil {
		return fmt.Errorf("close open session: %w", err)
	}
	return nil
}

func insert(ctx context.Context, tx *sql.Tx, employeeID *int64, name *string, userIdentity string, login time.Time, logout *time.Time) (*Record, error) {
	var logoutMS sql.NullInt64
	if logout != nil {
		logoutMS = sql.NullInt64{Int64: logout.UnixMilli(), Valid: true}
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO employee_log(employee_id, name, user_id, login_time, logout_time) VALUES(?, ?, ?, ?, ?);",
		nullInt64(employeeID), nullString(name), userIdentity, login.UnixMilli(), logoutMS)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert record id: %w", err)
	}

	return &Record{
		ID:           id,
		EmployeeID:   employeeID,
		DisplayName:  name,
		UserIdentity: userIdentity,
		LoginTime:    login,
		LogoutTime:   logout,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		r          Record
		employeeID sql.NullInt64
		name       sql.NullString
		loginMS    int64
		logoutMS   sql.NullInt64
	)
	if err := row.Scan(&r.ID, &employeeID, &name, &r.UserIdentity, &loginMS, &logoutMS); err != nil {
		return nil, err
	}
	if employeeID.Valid {
		v := employeeID.Int64
		r.EmployeeID = &v
	}
	if name.Valid {
		v := name.String
		r.DisplayName = &v
	}
	r.LoginTime = time.UnixMilli(loginMS).UTC()
	if logoutMS.Valid {
		t := time.UnixMilli(logoutMS.Int64).UTC()
		r.LogoutTime = &t
	}
	return &r, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
