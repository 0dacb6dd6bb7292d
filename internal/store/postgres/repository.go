// Package postgres implements the event and indicator stores on Postgres.
//
// Events are stored as start/end instants. The calendar day and the
// 12-hour display times are rebuilt on load in the repository's location,
// and the duration is always derived from them.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"keycal/internal/model"
	"keycal/internal/observability"
	"keycal/internal/store"
	"keycal/internal/timefmt"
)

//go:embed schema.sql
var schema string

var _ store.Store = (*Repository)(nil)

// Repository provides Postgres-backed persistence for events and indicators.
type Repository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewRepository constructs a Repository. loc is the display time zone;
// nil means time.Local.
func NewRepository(pool *pgxpool.Pool, loc *time.Location) *Repository {
	if loc == nil {
		loc = time.Local
	}
	return &Repository{pool: pool, loc: loc}
}

// Connect opens a pool and pings it.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const eventColumns = `id, user_id, category, title, notes, location, start_time, end_time,
        repeat_pattern, recurrence_end_date, is_backup, source, external_id, created_at, updated_at`

func (r *Repository) ListEvents(ctx context.Context, userID string, rng model.DateRange) (out []model.Event, err error) {
	defer func() { observability.RecordStoreOp("list_events", err) }()

	query := `SELECT ` + eventColumns + ` FROM events WHERE user_id = $1`
	args := []any{userID}
	if !rng.Start.IsZero() {
		args = append(args, rng.Start)
		query += fmt.Sprintf(" AND start_time >= $%d", len(args))
	}
	if !rng.End.IsZero() {
		args = append(args, rng.End)
		query += fmt.Sprintf(" AND start_time <= $%d", len(args))
	}
	query += " ORDER BY start_time, id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		e, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) GetEvent(ctx context.Context, userID, id string) (e model.Event, err error) {
	defer func() { observability.RecordStoreOp("get_event", err) }()
	return r.getEvent(ctx, r.pool, userID, id, false)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repository) getEvent(ctx context.Context, q querier, userID, id string, lock bool) (model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE user_id = $1 AND id = $2`
	if lock {
		query += " FOR UPDATE"
	}
	e, err := r.scanEvent(q.QueryRow(ctx, query, userID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Event{}, store.ErrNotFound
	}
	return e, err
}

func (r *Repository) CreateEvent(ctx context.Context, userID string, d model.EventDraft) (e model.Event, err error) {
	defer func() { observability.RecordStoreOp("create_event", err) }()

	e = store.CanonicalTimes(d.Event(userID))
	if err = store.ValidateEvent(e); err != nil {
		return model.Event{}, err
	}
	e.ID = uuid.NewString()

	const insert = `INSERT INTO events (id, user_id, category, title, notes, location, start_time, end_time,
        repeat_pattern, recurrence_end_date, is_backup, source, external_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING ` + eventColumns
	start, end := r.bounds(e)
	return r.scanEvent(r.pool.QueryRow(ctx, insert,
		e.ID, userID, string(e.Category), e.Title, e.Notes, e.Location, start, end,
		string(e.Repeat), e.RecurrenceEnd, e.IsBackup, e.Source, e.ExternalID,
	))
}

func (r *Repository) UpdateEvent(ctx context.Context, userID, id string, p model.EventPatch) (e model.Event, err error) {
	defer func() { observability.RecordStoreOp("update_event", err) }()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Event{}, err
	}
	defer tx.Rollback(ctx)

	cur, err := r.getEvent(ctx, tx, userID, id, true)
	if err != nil {
		return model.Event{}, err
	}
	next := store.CanonicalTimes(p.Apply(cur))
	if err = store.ValidateEvent(next); err != nil {
		return model.Event{}, err
	}

	const update = `UPDATE events SET category=$3, title=$4, notes=$5, location=$6, start_time=$7, end_time=$8,
        repeat_pattern=$9, recurrence_end_date=$10, is_backup=$11, updated_at=NOW()
        WHERE user_id=$1 AND id=$2
        RETURNING ` + eventColumns
	start, end := r.bounds(next)
	e, err = r.scanEvent(tx.QueryRow(ctx, update,
		userID, id, string(next.Category), next.Title, next.Notes, next.Location, start, end,
		string(next.Repeat), next.RecurrenceEnd, next.IsBackup,
	))
	if err != nil {
		return model.Event{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return model.Event{}, err
	}
	return e, nil
}

func (r *Repository) DeleteEvent(ctx context.Context, userID, id string) (err error) {
	defer func() { observability.RecordStoreOp("delete_event", err) }()

	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE user_id=$1 AND id=$2`, userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) ReplaceSource(ctx context.Context, userID, source string, drafts []model.EventDraft) (n int, err error) {
	defer func() { observability.RecordStoreOp("replace_source", err) }()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err = tx.Exec(ctx, `DELETE FROM events WHERE user_id=$1 AND source=$2`, userID, source); err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, d := range drafts {
		d.Source = source
		e := store.CanonicalTimes(d.Event(userID))
		if err = store.ValidateEvent(e); err != nil {
			return 0, err
		}
		start, end := r.bounds(e)
		batch.Queue(`INSERT INTO events (id, user_id, category, title, notes, location, start_time, end_time,
            repeat_pattern, recurrence_end_date, is_backup, source, external_id)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			uuid.NewString(), userID, string(e.Category), e.Title, e.Notes, e.Location, start, end,
			string(e.Repeat), e.RecurrenceEnd, e.IsBackup, e.Source, e.ExternalID)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, err
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(drafts), nil
}

const indicatorColumns = `id, user_id, event_category, measurement_type, goal_hours, goal_frequency,
        display_order, created_at, updated_at`

func (r *Repository) ListIndicators(ctx context.Context, userID string) (out []model.Indicator, err error) {
	defer func() { observability.RecordStoreOp("list_indicators", err) }()

	rows, err := r.pool.Query(ctx, `SELECT `+indicatorColumns+` FROM key_indicators
        WHERE user_id=$1 ORDER BY display_order, created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		ind, err := scanIndicator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ind)
	}
	return out, rows.Err()
}

func (r *Repository) CreateIndicator(ctx context.Context, userID string, d model.IndicatorDraft) (ind model.Indicator, err error) {
	defer func() { observability.RecordStoreOp("create_indicator", err) }()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Indicator{}, err
	}
	defer tx.Rollback(ctx)

	var count int
	if err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM key_indicators WHERE user_id=$1`, userID).Scan(&count); err != nil {
		return model.Indicator{}, err
	}
	ind = d.Indicator(userID, count)
	if err = store.ValidateIndicator(ind); err != nil {
		return model.Indicator{}, err
	}

	ind, err = scanIndicator(tx.QueryRow(ctx, `INSERT INTO key_indicators
        (id, user_id, event_category, measurement_type, goal_hours, goal_frequency, display_order)
        VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING `+indicatorColumns,
		uuid.NewString(), userID, string(ind.Category), string(ind.MeasurementType),
		ind.GoalHours, ind.GoalFrequency, ind.DisplayOrder))
	if err != nil {
		return model.Indicator{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return model.Indicator{}, err
	}
	return ind, nil
}

func (r *Repository) UpdateIndicator(ctx context.Context, userID, id string, p model.IndicatorPatch) (ind model.Indicator, err error) {
	defer func() { observability.RecordStoreOp("update_indicator", err) }()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Indicator{}, err
	}
	defer tx.Rollback(ctx)

	cur, err := scanIndicator(tx.QueryRow(ctx, `SELECT `+indicatorColumns+` FROM key_indicators
        WHERE user_id=$1 AND id=$2 FOR UPDATE`, userID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Indicator{}, store.ErrNotFound
	}
	if err != nil {
		return model.Indicator{}, err
	}
	next := p.Apply(cur)
	if err = store.ValidateIndicator(next); err != nil {
		return model.Indicator{}, err
	}

	ind, err = scanIndicator(tx.QueryRow(ctx, `UPDATE key_indicators SET event_category=$3, measurement_type=$4,
        goal_hours=$5, goal_frequency=$6, display_order=$7, updated_at=NOW()
        WHERE user_id=$1 AND id=$2 RETURNING `+indicatorColumns,
		userID, id, string(next.Category), string(next.MeasurementType),
		next.GoalHours, next.GoalFrequency, next.DisplayOrder))
	if err != nil {
		return model.Indicator{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return model.Indicator{}, err
	}
	return ind, nil
}

func (r *Repository) DeleteIndicator(ctx context.Context, userID, id string) (err error) {
	defer func() { observability.RecordStoreOp("delete_indicator", err) }()

	tag, err := r.pool.Exec(ctx, `DELETE FROM key_indicators WHERE user_id=$1 AND id=$2`, userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) UserIDs(ctx context.Context) (out []string, err error) {
	defer func() { observability.RecordStoreOp("user_ids", err) }()

	rows, err := r.pool.Query(ctx, `SELECT user_id FROM events UNION SELECT user_id FROM key_indicators ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// bounds places e on the repository's calendar: the start instant on its
// day and the end one derived duration later.
func (r *Repository) bounds(e model.Event) (time.Time, time.Time) {
	y, m, d := e.Date.Date()
	e.Date = time.Date(y, m, d, 0, 0, 0, 0, r.loc)
	return e.StartAt(), e.EndAt()
}

func (r *Repository) scanEvent(row pgx.Row) (model.Event, error) {
	var (
		e          model.Event
		category   string
		repeat     string
		start, end time.Time
		recEnd     *time.Time
	)
	if err := row.Scan(&e.ID, &e.UserID, &category, &e.Title, &e.Notes, &e.Location, &start, &end,
		&repeat, &recEnd, &e.IsBackup, &e.Source, &e.ExternalID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return model.Event{}, err
	}
	e.Category = model.Category(category)
	e.Repeat = model.ParseRepeatPattern(repeat)
	if recEnd != nil {
		y, m, d := recEnd.Date()
		t := time.Date(y, m, d, 0, 0, 0, 0, r.loc)
		e.RecurrenceEnd = &t
	}
	start, end = start.In(r.loc), end.In(r.loc)
	e.Date, e.StartTime = timefmt.FromTime(start)
	_, e.EndTime = timefmt.FromTime(end)
	return e, nil
}

func scanIndicator(row pgx.Row) (model.Indicator, error) {
	var (
		ind         model.Indicator
		category    string
		measurement string
	)
	if err := row.Scan(&ind.ID, &ind.UserID, &category, &measurement, &ind.GoalHours, &ind.GoalFrequency,
		&ind.DisplayOrder, &ind.CreatedAt, &ind.UpdatedAt); err != nil {
		return model.Indicator{}, err
	}
	ind.Category = model.Category(category)
	ind.MeasurementType = model.MeasurementType(measurement)
	return ind, nil
}
