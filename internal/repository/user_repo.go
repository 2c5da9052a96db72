package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"meetup-sync/internal/domain"
	"meetup-sync/internal/metrics"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateConfirmCode(ctx context.Context, id, codeHash string, expiresAt time.Time) error
	MarkConfirmed(ctx context.Context, id string, verifiedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// BlockedDatesRepository es la puerta de persistencia de blocked dates.
// Add y Remove son una unica sentencia atomica sobre la fila del usuario.
type BlockedDatesRepository interface {
	GetBlockedDates(ctx context.Context, userID string) ([]domain.CalendarDay, error)
	GetBlockedDatesForUsers(ctx context.Context, userIDs []string) (map[string][]domain.CalendarDay, error)
	AddBlockedDates(ctx context.Context, userID string, days []domain.CalendarDay) error
	RemoveBlockedDates(ctx context.Context, userID string, days []domain.CalendarDay) error
}

// PgUserRepository implementa UserRepository y BlockedDatesRepository usando pgxpool.
type PgUserRepository struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

func NewPgUserRepository(pool *pgxpool.Pool, m *metrics.Metrics) *PgUserRepository {
	return &PgUserRepository{pool: pool, metrics: m}
}

const userColumns = `id, email, username, display_name, password_hash, email_verified_at,
		confirm_code_hash, confirm_expires_at, blocked_dates, created_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, email, username, display_name, password_hash,
			confirm_code_hash, confirm_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.DisplayName,
		user.PasswordHash,
		user.ConfirmCodeHash,
		user.ConfirmExpiresAt,
		user.CreatedAt,
	)
	return mapWriteError(err)
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(conn(ctx, r.pool).QueryRow(ctx, query, email))
}

func (r *PgUserRepository) UpdateConfirmCode(ctx context.Context, id, codeHash string, expiresAt time.Time) error {
	const query = `
		UPDATE users SET confirm_code_hash = $2, confirm_expires_at = $3
		WHERE id = $1
	`
	return execOne(ctx, conn(ctx, r.pool), query, id, codeHash, expiresAt)
}

func (r *PgUserRepository) MarkConfirmed(ctx context.Context, id string, verifiedAt time.Time) error {
	const query = `
		UPDATE users
		SET email_verified_at = $2, confirm_code_hash = '', confirm_expires_at = NULL
		WHERE id = $1
	`
	return execOne(ctx, conn(ctx, r.pool), query, id, verifiedAt)
}

func (r *PgUserRepository) Delete(ctx context.Context, id string) error {
	return execOne(ctx, conn(ctx, r.pool), `DELETE FROM users WHERE id = $1`, id)
}

func (r *PgUserRepository) GetBlockedDates(ctx context.Context, userID string) (days []domain.CalendarDay, err error) {
	defer func(start time.Time) { r.metrics.ObserveDB("get_blocked_dates", start, err) }(time.Now())

	var raw []time.Time
	err = conn(ctx, r.pool).QueryRow(ctx, `SELECT blocked_dates FROM users WHERE id = $1`, userID).Scan(&raw)
	if err != nil {
		return nil, err
	}
	return toDays(raw), nil
}

func (r *PgUserRepository) GetBlockedDatesForUsers(ctx context.Context, userIDs []string) (out map[string][]domain.CalendarDay, err error) {
	defer func(start time.Time) { r.metrics.ObserveDB("get_blocked_dates_many", start, err) }(time.Now())

	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT id, blocked_dates FROM users WHERE id = ANY($1)`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = make(map[string][]domain.CalendarDay, len(userIDs))
	for rows.Next() {
		var (
			id  string
			raw []time.Time
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		out[id] = toDays(raw)
	}
	return out, rows.Err()
}

// AddBlockedDates agrega al final los dias que aun no esten presentes.
// La diferencia se recalcula dentro de la sentencia, bajo el lock de la fila.
func (r *PgUserRepository) AddBlockedDates(ctx context.Context, userID string, days []domain.CalendarDay) (err error) {
	defer func(start time.Time) { r.metrics.ObserveDB("add_blocked_dates", start, err) }(time.Now())

	const query = `
		UPDATE users
		SET blocked_dates = blocked_dates || ARRAY(
			SELECT d FROM unnest($2::date[]) WITH ORDINALITY AS t(d, n)
			WHERE NOT (d = ANY(blocked_dates))
			ORDER BY n
		)
		WHERE id = $1
	`
	return execOne(ctx, conn(ctx, r.pool), query, userID, fromDays(days))
}

// RemoveBlockedDates quita los dias indicados conservando el orden del resto.
func (r *PgUserRepository) RemoveBlockedDates(ctx context.Context, userID string, days []domain.CalendarDay) (err error) {
	defer func(start time.Time) { r.metrics.ObserveDB("remove_blocked_dates", start, err) }(time.Now())

	const query = `
		UPDATE users
		SET blocked_dates = ARRAY(
			SELECT d FROM unnest(blocked_dates) WITH ORDINALITY AS t(d, n)
			WHERE NOT (d = ANY($2::date[]))
			ORDER BY n
		)
		WHERE id = $1
	`
	return execOne(ctx, conn(ctx, r.pool), query, userID, fromDays(days))
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u   domain.User
		raw []time.Time
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.DisplayName,
		&u.PasswordHash,
		&u.EmailVerifiedAt,
		&u.ConfirmCodeHash,
		&u.ConfirmExpiresAt,
		&raw,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.BlockedDates = toDays(raw)
	return u, nil
}

// execOne ejecuta una sentencia que debe afectar exactamente una fila.
func execOne(ctx context.Context, q querier, query string, args ...any) error {
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func toDays(raw []time.Time) []domain.CalendarDay {
	days := make([]domain.CalendarDay, 0, len(raw))
	for _, t := range raw {
		days = append(days, domain.DayOf(t))
	}
	return days
}

func fromDays(days []domain.CalendarDay) []time.Time {
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		out = append(out, d.Time())
	}
	return out
}
