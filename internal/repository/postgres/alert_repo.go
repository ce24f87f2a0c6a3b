package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Pricewatch/internal/domain/alert"
)

var _ alert.Repo = (*AlertRepo)(nil)

type AlertRepo struct{ db *DB }

func NewAlertRepo(db *DB) *AlertRepo { return &AlertRepo{db: db} }

const alertColumns = `id, user_id, item_id, product_name, currency, type, priority,
       previous_price, current_price, target_price, drop_amount, drop_percentage,
       status, email_state, push_state, is_read, read_at, created_at, updated_at, expires_at, resolved_at`

const (
	qAlertInsert = `
INSERT INTO alerts (` + alertColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21);`

	// The trigger snapshot columns are written once by the insert.
	qAlertSave = `
UPDATE alerts
SET status      = $2,
    email_state = $3,
    push_state  = $4,
    is_read     = $5,
    read_at     = $6,
    updated_at  = $7,
    resolved_at = $8
WHERE id = $1
  AND (status = 'pending' OR status = $2 OR (status = 'sent' AND $2 = 'dismissed'));`

	qAlertExists = `SELECT EXISTS (SELECT 1 FROM alerts WHERE id = $1);`

	qAlertByID = `
SELECT ` + alertColumns + `
FROM alerts
WHERE id = $1;`

	qAlertsByUser = `
SELECT ` + alertColumns + `
FROM alerts
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;`

	qAlertsExpired = `
SELECT ` + alertColumns + `
FROM alerts
WHERE status = 'pending' AND expires_at <= $1
ORDER BY expires_at
LIMIT $2;`

	qAlertsRedeliverable = `
SELECT ` + alertColumns + `
FROM alerts
WHERE status = 'pending'
  AND expires_at > $1
  AND ((NOT (email_state->>'sent')::boolean AND (email_state->>'attempts')::int < $2)
    OR (NOT (push_state->>'sent')::boolean AND (push_state->>'attempts')::int < $2))
ORDER BY created_at
LIMIT $3;`
)

func (r *AlertRepo) Create(ctx context.Context, a *alert.Alert) error {
	email, push, err := channelStates(a)
	if err != nil {
		return err
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	s := a.Snapshot
	_, err = r.db.execQueryer(ctx).Exec(ctx, qAlertInsert,
		a.ID, a.UserID, a.ItemID, a.ProductName, a.Currency, string(a.Type), string(a.Priority),
		s.PreviousPrice, s.CurrentPrice, s.TargetPrice, s.DropAmount, s.DropPercentage,
		string(a.Status), email, push, a.Read, nullTime(a.ReadAt), a.CreatedAt, a.UpdatedAt,
		a.ExpiresAt, nullTime(a.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("alert insert: %w", mapErr(err))
	}
	return nil
}

func (r *AlertRepo) Save(ctx context.Context, a *alert.Alert) error {
	email, push, err := channelStates(a)
	if err != nil {
		return err
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	q := r.db.execQueryer(ctx)
	tag, err := q.Exec(ctx, qAlertSave,
		a.ID, string(a.Status), email, push, a.Read, nullTime(a.ReadAt), a.UpdatedAt, nullTime(a.ResolvedAt))
	if err != nil {
		return fmt.Errorf("alert save: %w", mapErr(err))
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := q.QueryRow(ctx, qAlertExists, a.ID).Scan(&exists); err != nil {
		return fmt.Errorf("alert exists: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return alert.ErrAlreadyResolved
}

func (r *AlertRepo) GetByID(ctx context.Context, id string) (*alert.Alert, error) {
	list, err := r.query(ctx, qAlertByID, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

func (r *AlertRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*alert.Alert, error) {
	return r.query(ctx, qAlertsByUser, userID, limit)
}

func (r *AlertRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*alert.Alert, error) {
	return r.query(ctx, qAlertsExpired, now, limit)
}

func (r *AlertRepo) ListRedeliverable(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*alert.Alert, error) {
	return r.query(ctx, qAlertsRedeliverable, now, maxAttempts, limit)
}

func (r *AlertRepo) query(ctx context.Context, q string, args ...any) ([]*alert.Alert, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("alert query: %w", err)
	}
	return collectAlerts(rows)
}

func channelStates(a *alert.Alert) ([]byte, []byte, error) {
	email, err := json.Marshal(a.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal email state: %w", err)
	}
	push, err := json.Marshal(a.Push)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal push state: %w", err)
	}
	return email, push, nil
}

func collectAlerts(rows pgx.Rows) ([]*alert.Alert, error) {
	defer rows.Close()

	var out []*alert.Alert
	for rows.Next() {
		var (
			a                  alert.Alert
			typ, prio, status  string
			email, push        []byte
			readAt, resolvedAt *time.Time
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.ItemID, &a.ProductName, &a.Currency, &typ, &prio,
			&a.Snapshot.PreviousPrice, &a.Snapshot.CurrentPrice, &a.Snapshot.TargetPrice,
			&a.Snapshot.DropAmount, &a.Snapshot.DropPercentage,
			&status, &email, &push, &a.Read, &readAt, &a.CreatedAt, &a.UpdatedAt, &a.ExpiresAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("alert scan: %w", err)
		}
		if err := unmarshalAll(
			field{"email_state", email, &a.Email},
			field{"push_state", push, &a.Push},
		); err != nil {
			return nil, err
		}
		a.Type = alert.Type(typ)
		a.Priority = alert.Priority(prio)
		a.Status = alert.Status(status)
		a.ReadAt = fromNullTime(readAt)
		a.ResolvedAt = fromNullTime(resolvedAt)
		out = append(out, &a)
	}
	return out, rows.Err()
}
