//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"keycal/internal/goals"
	"keycal/internal/model"
	"keycal/internal/store"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("keycal"),
		postgrescontainer.WithUsername("keycal"),
		postgrescontainer.WithPassword("keycal"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	repo := NewRepository(pool, loc)
	require.NoError(t, repo.Migrate(ctx))
	require.NoError(t, repo.Migrate(ctx), "schema is idempotent")
	return repo
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return errors.New("postgres did not become ready")
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func TestRepositoryEventRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	day := time.Date(2026, time.April, 2, 0, 0, 0, 0, repo.loc)

	created, err := repo.CreateEvent(ctx, "u1", model.EventDraft{
		Category:  model.CategoryTravel,
		Title:     "Red-eye",
		Date:      day,
		StartTime: "11:00 PM",
		EndTime:   "1:30 AM",
		Repeat:    model.RepeatWeekly,
		IsBackup:  true,
	})
	require.NoError(t, err)
	require.Equal(t, "11:00 PM", created.StartTime)
	require.Equal(t, "1:30 AM", created.EndTime)
	require.Equal(t, 2.5, created.DurationHours())
	require.True(t, model.SameDay(day, created.Date))
	require.True(t, created.IsBackup)

	got, err := repo.GetEvent(ctx, "u1", created.ID)
	require.NoError(t, err)
	require.Equal(t, created.StartTime, got.StartTime)
	require.Equal(t, model.RepeatWeekly, got.Repeat)

	_, err = repo.GetEvent(ctx, "u2", created.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	next := day.AddDate(0, 0, 1)
	moved, err := repo.UpdateEvent(ctx, "u1", created.ID, model.RescheduleTo(next, "9:15 AM", "11:45 AM"))
	require.NoError(t, err)
	require.True(t, model.SameDay(next, moved.Date))
	require.Equal(t, "9:15 AM", moved.StartTime)
	require.Equal(t, "Red-eye", moved.Title)

	list, err := repo.ListEvents(ctx, "u1", model.DateRange{Start: next, End: next.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = repo.ListEvents(ctx, "u1", model.DateRange{End: next})
	require.NoError(t, err)
	require.Empty(t, list)

	require.NoError(t, repo.DeleteEvent(ctx, "u1", created.ID))
	require.ErrorIs(t, repo.DeleteEvent(ctx, "u1", created.ID), store.ErrNotFound)
}

func TestRepositoryIndicatorsAndProgress(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	require.NoError(t, store.SeedDemo(ctx, repo, "demo", time.Date(2026, time.April, 2, 0, 0, 0, 0, repo.loc)))

	inds, err := repo.ListIndicators(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, inds, 4)
	require.Equal(t, model.CategoryChurch, inds[0].Category)
	require.Equal(t, 3, inds[3].DisplayOrder)

	freq := model.MeasureFrequency
	upd, err := repo.UpdateIndicator(ctx, "demo", inds[3].ID, model.IndicatorPatch{MeasurementType: &freq})
	require.NoError(t, err)
	require.Nil(t, upd.GoalHours)
	require.NotNil(t, upd.GoalFrequency)

	events, err := repo.ListEvents(ctx, "demo", model.DateRange{})
	require.NoError(t, err)
	require.Len(t, events, 7)

	inds, err = repo.ListIndicators(ctx, "demo")
	require.NoError(t, err)
	progress := goals.Progress(inds, events, events[0].Date)
	require.Equal(t, 1, progress[3].ActualFrequency)

	users, err := repo.UserIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"demo"}, users)
}

func TestRepositoryReplaceSource(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	day := time.Date(2026, time.April, 2, 0, 0, 0, 0, repo.loc)
	draft := func(start, end string) model.EventDraft {
		return model.EventDraft{Category: model.CategorySchool, Title: "Class", Date: day, StartTime: start, EndTime: end, ExternalID: start}
	}

	n, err := repo.ReplaceSource(ctx, "u1", "school", []model.EventDraft{draft("8:00 AM", "9:00 AM"), draft("10:00 AM", "11:00 AM")})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = repo.ReplaceSource(ctx, "u1", "school", []model.EventDraft{draft("1:00 PM", "2:00 PM")})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	events, err := repo.ListEvents(ctx, "u1", model.DateRange{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "school", events[0].Source)
	require.Equal(t, "1:00 PM", events[0].ExternalID)
}
