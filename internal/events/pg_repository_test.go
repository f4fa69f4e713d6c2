package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatherly/eventchat/internal/events"
	"github.com/gatherly/eventchat/internal/testutil"
)

func TestPgRepositoryGetEvent(t *testing.T) {
	pool, gooseDB, migDir := testutil.DbInit(t)
	defer testutil.DbCleanup(t, pool, gooseDB, migDir)

	ctx := context.Background()
	starts := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	ends := starts.Add(2 * time.Hour)

	_, err := pool.Exec(ctx, `
		INSERT INTO events (event_id, title, host_id, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5)`,
		"evt-pi-day", "Pi Day Meetup", "host-1", starts, ends)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO events (event_id, title, host_id, starts_at)
		VALUES ($1, $2, $3, $4)`,
		"evt-open-ended", "Open Ended", "host-2", starts)
	require.NoError(t, err)

	repo := events.NewPgRepository(pool)

	ev, err := repo.GetEvent(ctx, "evt-pi-day")
	require.NoError(t, err)
	require.Equal(t, "evt-pi-day", ev.ID)
	require.Equal(t, "Pi Day Meetup", ev.Title)
	require.Equal(t, "host-1", ev.HostID)
	require.True(t, starts.Equal(ev.StartsAt))
	require.NotNil(t, ev.EndsAt)
	require.True(t, ends.Equal(*ev.EndsAt))

	ev, err = repo.GetEvent(ctx, "evt-open-ended")
	require.NoError(t, err)
	require.Nil(t, ev.EndsAt)

	_, err = repo.GetEvent(ctx, "no-such-event")
	require.True(t, errors.Is(err, events.ErrNotFound))
}
