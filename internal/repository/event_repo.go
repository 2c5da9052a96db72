package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"meetup-sync/internal/domain"
)

type EventRepository interface {
	Create(ctx context.Context, event domain.Event) error
	GetByID(ctx context.Context, id string) (domain.Event, error)
	GetByCode(ctx context.Context, code string) (domain.Event, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Event, error)
	AddParticipant(ctx context.Context, eventID, userID string) (bool, error)
	RemoveParticipant(ctx context.Context, eventID, userID string) error
	RemoveParticipantEverywhere(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string) error
	DeleteOwnedBy(ctx context.Context, ownerID string) error
}

type PgEventRepository struct {
	pool *pgxpool.Pool
}

func NewPgEventRepository(pool *pgxpool.Pool) *PgEventRepository {
	return &PgEventRepository{pool: pool}
}

const eventColumns = `id, name, description, owner_id, code, start_date, end_date, participants, created_at`

func (r *PgEventRepository) Create(ctx context.Context, event domain.Event) error {
	const query = `
		INSERT INTO events (id, name, description, owner_id, code, start_date, end_date, participants, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		event.ID,
		event.Name,
		event.Description,
		event.OwnerID,
		event.Code,
		event.Window.From.Time(),
		event.Window.To.Time(),
		event.Participants,
		event.CreatedAt,
	)
	return mapWriteError(err)
}

func (r *PgEventRepository) GetByID(ctx context.Context, id string) (domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEvent(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *PgEventRepository) GetByCode(ctx context.Context, code string) (domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE code = $1`
	return scanEvent(conn(ctx, r.pool).QueryRow(ctx, query, code))
}

func (r *PgEventRepository) ListForUser(ctx context.Context, userID string) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE $1 = ANY(participants) ORDER BY start_date, created_at`
	rows, err := conn(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// AddParticipant agrega al usuario si no participa aun. Devuelve true si hubo cambio.
func (r *PgEventRepository) AddParticipant(ctx context.Context, eventID, userID string) (bool, error) {
	const query = `
		UPDATE events SET participants = array_append(participants, $2)
		WHERE id = $1 AND NOT ($2 = ANY(participants))
	`
	tag, err := conn(ctx, r.pool).Exec(ctx, query, eventID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgEventRepository) RemoveParticipant(ctx context.Context, eventID, userID string) error {
	const query = `UPDATE events SET participants = array_remove(participants, $2) WHERE id = $1`
	return execOne(ctx, conn(ctx, r.pool), query, eventID, userID)
}

func (r *PgEventRepository) RemoveParticipantEverywhere(ctx context.Context, userID string) error {
	const query = `
		UPDATE events SET participants = array_remove(participants, $1)
		WHERE $1 = ANY(participants)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query, userID)
	return err
}

func (r *PgEventRepository) Delete(ctx context.Context, id string) error {
	return execOne(ctx, conn(ctx, r.pool), `DELETE FROM events WHERE id = $1`, id)
}

func (r *PgEventRepository) DeleteOwnedBy(ctx context.Context, ownerID string) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM events WHERE owner_id = $1`, ownerID)
	return err
}

func scanEvent(row pgx.Row) (domain.Event, error) {
	var (
		e        domain.Event
		from, to time.Time
	)
	err := row.Scan(
		&e.ID,
		&e.Name,
		&e.Description,
		&e.OwnerID,
		&e.Code,
		&from,
		&to,
		&e.Participants,
		&e.CreatedAt,
	)
	if err != nil {
		return domain.Event{}, err
	}
	e.Window = domain.DateRange{From: domain.DayOf(from), To: domain.DayOf(to)}
	return e, nil
}
