package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neexbeast/holiday-aggregator/internal/holiday"
)

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ArchivedHoliday is a holiday row persisted by a sync.
type ArchivedHoliday struct {
	ID       int             `json:"id"`
	Holiday  holiday.Holiday `json:"holiday"`
	Provider string          `json:"provider"`
	SyncID   uuid.UUID       `json:"syncId"`
	SyncedAt time.Time       `json:"syncedAt"`
}

// SyncResult summarizes one archive sync.
type SyncResult struct {
	SyncID   uuid.UUID `json:"syncId"`
	Provider string    `json:"provider"`
	Stored   int       `json:"stored"`
}

// Repository persists synced holidays.
type Repository struct {
	q   Querier
	now func() time.Time
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool, now: time.Now}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q, now: time.Now}
}

// UpsertHolidays stores holidays under a fresh sync id in one transaction.
// Rows are keyed on (name, date, country_code); an existing row takes the new
// details, provider and sync id. On error nothing from the batch is kept.
func (r *Repository) UpsertHolidays(ctx context.Context, provider string, holidays []holiday.Holiday) (SyncResult, error) {
	result := SyncResult{SyncID: uuid.New(), Provider: provider}
	syncedAt := r.now().UTC()

	dates := make([]time.Time, len(holidays))
	for i, h := range holidays {
		date, err := time.Parse(holiday.DateLayout, h.Date)
		if err != nil {
			return result, fmt.Errorf("parsing date of %q: %w", h.Name, err)
		}
		dates[i] = date
	}
	if len(holidays) == 0 {
		return result, nil
	}

	const q = `
		INSERT INTO holidays (name, local_name, date, country, country_code, type,
		                      description, global, provider, sync_id, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (name, date, country_code) DO UPDATE
		SET local_name  = EXCLUDED.local_name,
		    country     = EXCLUDED.country,
		    type        = EXCLUDED.type,
		    description = EXCLUDED.description,
		    global      = EXCLUDED.global,
		    provider    = EXCLUDED.provider,
		    sync_id     = EXCLUDED.sync_id,
		    synced_at   = EXCLUDED.synced_at
	`

	tx, err := r.q.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("beginning transaction: %w", err)
	}

	for i, h := range holidays {
		_, err := tx.Exec(ctx, q,
			h.Name, h.LocalName, dates[i], h.Country, h.CountryCode, string(h.Type),
			h.Description, h.Global, provider, result.SyncID, syncedAt,
		)
		if err != nil {
			_ = tx.Rollback(ctx)
			return result, fmt.Errorf("upserting holiday %q on %s for %s: %w", h.Name, h.Date, h.CountryCode, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("committing transaction: %w", err)
	}

	result.Stored = len(holidays)
	return result, nil
}

// ListHolidays returns the archived holidays of a country in a year, ordered
// by date then name. An empty slice means nothing was archived.
func (r *Repository) ListHolidays(ctx context.Context, countryCode string, year int) ([]ArchivedHoliday, error) {
	const q = `
		SELECT id, name, local_name, date, country, country_code, type,
		       description, global, provider, sync_id, synced_at
		FROM holidays
		WHERE country_code = $1
		AND date >= $2 AND date < $3
		ORDER BY date, name
	`

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows, err := r.q.Query(ctx, q, countryCode, from, from.AddDate(1, 0, 0))
	if err != nil {
		return nil, fmt.Errorf("querying archived holidays for %s/%d: %w", countryCode, year, err)
	}
	defer rows.Close()

	out := []ArchivedHoliday{}
	for rows.Next() {
		var (
			a    ArchivedHoliday
			date time.Time
			kind string
		)
		if err := rows.Scan(
			&a.ID,
			&a.Holiday.Name,
			&a.Holiday.LocalName,
			&date,
			&a.Holiday.Country,
			&a.Holiday.CountryCode,
			&kind,
			&a.Holiday.Description,
			&a.Holiday.Global,
			&a.Provider,
			&a.SyncID,
			&a.SyncedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning archived holiday row: %w", err)
		}
		a.Holiday.Date = date.Format(holiday.DateLayout)
		a.Holiday.Type = holiday.Type(kind)
		a.Holiday.ID = fmt.Sprintf("db_%s_%s_%d", a.Holiday.CountryCode, a.Holiday.Date, a.ID)
		out = append(out, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating archived holiday rows: %w", err)
	}

	return out, nil
}
