package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Pricewatch/internal/domain/item"
)

var _ item.Repo = (*ItemRepo)(nil)

type ItemRepo struct{ db *DB }

func NewItemRepo(db *DB) *ItemRepo { return &ItemRepo{db: db} }

const itemColumns = `id, user_id, product, original_price, current_price, currency, is_tracking,
       check_frequency, last_checked, history, sources, alert_config, status, created_at, updated_at`

const (
	qItemByID = `
SELECT ` + itemColumns + `
FROM tracked_items
WHERE id = $1;`

	qItemsByUser = `
SELECT ` + itemColumns + `
FROM tracked_items
WHERE user_id = $1
ORDER BY created_at;`

	qItemsDue = `
SELECT ` + itemColumns + `
FROM tracked_items
WHERE status = 'active'
  AND is_tracking
  AND check_frequency = $1
  AND (last_checked IS NULL OR last_checked <= $2)
ORDER BY last_checked NULLS FIRST, id
LIMIT $3;`

	qItemUpsert = `
INSERT INTO tracked_items (` + itemColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE
SET product         = EXCLUDED.product,
    original_price  = EXCLUDED.original_price,
    current_price   = EXCLUDED.current_price,
    currency        = EXCLUDED.currency,
    is_tracking     = EXCLUDED.is_tracking,
    check_frequency = EXCLUDED.check_frequency,
    last_checked    = EXCLUDED.last_checked,
    history         = EXCLUDED.history,
    sources         = EXCLUDED.sources,
    alert_config    = EXCLUDED.alert_config,
    status          = EXCLUDED.status,
    updated_at      = EXCLUDED.updated_at;`

	// User-owned columns (status, is_tracking, alert_config) are left alone.
	qItemSaveTracking = `
UPDATE tracked_items
SET current_price = $2,
    last_checked  = $3,
    history       = $4,
    sources       = $5,
    updated_at    = $6
WHERE id = $1
  AND status = 'active'
  AND is_tracking;`

	qItemExists = `SELECT EXISTS (SELECT 1 FROM tracked_items WHERE id = $1);`
)

func (r *ItemRepo) GetByID(ctx context.Context, id string) (*item.TrackedItem, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qItemByID, id)
	if err != nil {
		return nil, fmt.Errorf("item get: %w", err)
	}
	list, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

func (r *ItemRepo) ListByUser(ctx context.Context, userID string) ([]*item.TrackedItem, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qItemsByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("items by user: %w", err)
	}
	return collectItems(rows)
}

func (r *ItemRepo) FindDue(ctx context.Context, freq item.Frequency, cutoff time.Time, limit int) ([]*item.TrackedItem, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qItemsDue, string(freq), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("items due: %w", err)
	}
	return collectItems(rows)
}

func (r *ItemRepo) Save(ctx context.Context, t *item.TrackedItem) error {
	product, err := json.Marshal(t.Product)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	history, err := json.Marshal(nonNil(t.History))
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	sources, err := json.Marshal(nonNil(t.Sources))
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	alerts, err := json.Marshal(t.Alerts)
	if err != nil {
		return fmt.Errorf("marshal alert config: %w", err)
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	_, err = r.db.execQueryer(ctx).Exec(ctx, qItemUpsert,
		t.ID, t.UserID, product, t.OriginalPrice, t.CurrentPrice, t.Currency, t.IsTracking,
		string(t.CheckFrequency.Normalize()), nullTime(t.LastChecked), history, sources, alerts,
		string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("item save: %w", mapErr(err))
	}
	return nil
}

func (r *ItemRepo) SaveTracking(ctx context.Context, t *item.TrackedItem) error {
	history, err := json.Marshal(nonNil(t.History))
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	sources, err := json.Marshal(nonNil(t.Sources))
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	q := r.db.execQueryer(ctx)
	tag, err := q.Exec(ctx, qItemSaveTracking,
		t.ID, t.CurrentPrice, nullTime(t.LastChecked), history, sources, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("item save tracking: %w", mapErr(err))
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := q.QueryRow(ctx, qItemExists, t.ID).Scan(&exists); err != nil {
		return fmt.Errorf("item exists: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return item.ErrNotTracked
}

func collectItems(rows pgx.Rows) ([]*item.TrackedItem, error) {
	defer rows.Close()

	var out []*item.TrackedItem
	for rows.Next() {
		var (
			t                                 item.TrackedItem
			freq, status                      string
			last                              *time.Time
			product, history, sources, alerts []byte
		)
		if err := rows.Scan(&t.ID, &t.UserID, &product, &t.OriginalPrice, &t.CurrentPrice, &t.Currency,
			&t.IsTracking, &freq, &last, &history, &sources, &alerts, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("item scan: %w", err)
		}
		if err := unmarshalAll(
			field{"product", product, &t.Product},
			field{"history", history, &t.History},
			field{"sources", sources, &t.Sources},
			field{"alert_config", alerts, &t.Alerts},
		); err != nil {
			return nil, err
		}
		t.CheckFrequency = item.Frequency(freq)
		t.Status = item.Status(status)
		t.LastChecked = fromNullTime(last)
		out = append(out, &t)
	}
	return out, rows.Err()
}

type field struct {
	name string
	raw  []byte
	dst  any
}

func unmarshalAll(fs ...field) error {
	for _, f := range fs {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return fmt.Errorf("unmarshal %s: %w", f.name, err)
		}
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
