package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"meetup-sync/internal/broker"
	"meetup-sync/internal/domain"
	"meetup-sync/internal/metrics"
	"meetup-sync/internal/repository"
)

// ParseDateRange valida dos fechas crudas y construye el rango inclusivo.
// Con maxDays > 0 rechaza rangos de mas de maxDays dias.
func ParseDateRange(fromRaw, toRaw string, maxDays int) (domain.DateRange, error) {
	from, err := domain.ParseCalendarDay(fromRaw)
	if err != nil {
		return domain.DateRange{}, ErrInvalidDateFormat
	}
	to, err := domain.ParseCalendarDay(toRaw)
	if err != nil {
		return domain.DateRange{}, ErrInvalidDateFormat
	}
	r, err := domain.NewDateRange(from, to)
	if err != nil {
		return domain.DateRange{}, ErrFromAfterTo
	}
	if maxDays > 0 && r.Len() > maxDays {
		return domain.DateRange{}, ErrRangeTooLong
	}
	return r, nil
}

// BlockedDatesService reconcilia rangos de dias bloqueados contra el conjunto
// persistido del usuario. Cada operacion hace a lo sumo una escritura.
type BlockedDatesService struct {
	logger    *zap.Logger
	store     repository.BlockedDatesRepository
	publisher broker.Publisher
	metrics   *metrics.Metrics
	maxDays   int
}

func NewBlockedDatesService(
	logger *zap.Logger,
	store repository.BlockedDatesRepository,
	publisher broker.Publisher,
	m *metrics.Metrics,
	maxDays int,
) *BlockedDatesService {
	if publisher == nil {
		publisher = broker.NewNopPublisher()
	}
	return &BlockedDatesService{
		logger:    logger,
		store:     store,
		publisher: publisher,
		metrics:   m,
		maxDays:   maxDays,
	}
}

type blockedDatesChanged struct {
	UserID string   `json:"user_id"`
	Op     string   `json:"op"`
	Days   []string `json:"days"`
}

// List devuelve los dias bloqueados en orden de almacenamiento.
func (s *BlockedDatesService) List(ctx context.Context, userID string) ([]domain.CalendarDay, error) {
	days, err := s.store.GetBlockedDates(ctx, userID)
	if err != nil {
		return nil, translateUserErr(err)
	}
	return days, nil
}

// AddRange bloquea todos los dias de [fromRaw, toRaw]. Los dias ya bloqueados se ignoran.
func (s *BlockedDatesService) AddRange(ctx context.Context, userID, fromRaw, toRaw string) error {
	r, err := ParseDateRange(fromRaw, toRaw, s.maxDays)
	if err != nil {
		return err
	}
	current, err := s.store.GetBlockedDates(ctx, userID)
	if err != nil {
		return translateUserErr(err)
	}

	newDays := domain.MissingDays(slices.Collect(r.Days()), current)
	s.metrics.ObserveBlockedDates("add", len(newDays))
	if len(newDays) == 0 {
		return nil
	}
	if err := s.store.AddBlockedDates(ctx, userID, newDays); err != nil {
		return fmt.Errorf("add blocked dates: %w", translateUserErr(err))
	}
	s.notify(ctx, userID, "add", newDays)
	return nil
}

// RemoveRange desbloquea los dias de [fromRaw, toRaw] que esten bloqueados.
func (s *BlockedDatesService) RemoveRange(ctx context.Context, userID, fromRaw, toRaw string) error {
	r, err := ParseDateRange(fromRaw, toRaw, s.maxDays)
	if err != nil {
		return err
	}
	current, err := s.store.GetBlockedDates(ctx, userID)
	if err != nil {
		return translateUserErr(err)
	}

	toRemove := domain.PresentDays(slices.Collect(r.Days()), current)
	s.metrics.ObserveBlockedDates("remove", len(toRemove))
	if len(toRemove) == 0 {
		return nil
	}
	if err := s.store.RemoveBlockedDates(ctx, userID, toRemove); err != nil {
		return fmt.Errorf("remove blocked dates: %w", translateUserErr(err))
	}
	s.notify(ctx, userID, "remove", toRemove)
	return nil
}

func (s *BlockedDatesService) notify(ctx context.Context, userID, op string, days []domain.CalendarDay) {
	payload := blockedDatesChanged{UserID: userID, Op: op, Days: make([]string, 0, len(days))}
	for _, d := range days {
		payload.Days = append(payload.Days, d.String())
	}
	if err := s.publisher.Publish(ctx, broker.TopicBlockedDatesChanged, userID, payload); err != nil && s.logger != nil {
		s.logger.Warn("publish blocked dates change failed", zap.Error(err), zap.String("user_id", userID))
	}
}

func translateUserErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}
