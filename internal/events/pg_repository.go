package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/eventchat/internal/chat"
)

// PgRepository reads event metadata from postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const getEventQuery = `
SELECT event_id, title, host_id, starts_at, ends_at
FROM events
WHERE event_id = $1
`

func (r *PgRepository) GetEvent(ctx context.Context, id string) (chat.Event, error) {
	var (
		ev     chat.Event
		starts pgtype.Timestamptz
		ends   pgtype.Timestamptz
	)

	row := r.pool.QueryRow(ctx, getEventQuery, id)
	if err := row.Scan(&ev.ID, &ev.Title, &ev.HostID, &starts, &ends); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return chat.Event{}, ErrNotFound
		}
		return chat.Event{}, fmt.Errorf("internal/events: get event: %w", err)
	}

	ev.StartsAt = starts.Time
	if ends.Valid {
		t := ends.Time
		ev.EndsAt = &t
	}
	return ev, nil
}

var _ Repository = (*PgRepository)(nil)
