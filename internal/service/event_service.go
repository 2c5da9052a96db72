package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"meetup-sync/internal/broker"
	"meetup-sync/internal/domain"
	"meetup-sync/internal/repository"
)

const (
	joinCodeLength   = 8
	joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	joinCodeAttempts = 3
)

// EventService gestiona eventos grupales y calcula la disponibilidad comun.
type EventService struct {
	logger    *zap.Logger
	events    repository.EventRepository
	blocked   repository.BlockedDatesRepository
	publisher broker.Publisher
	maxDays   int
}

func NewEventService(
	logger *zap.Logger,
	events repository.EventRepository,
	blocked repository.BlockedDatesRepository,
	publisher broker.Publisher,
	maxDays int,
) *EventService {
	if publisher == nil {
		publisher = broker.NewNopPublisher()
	}
	return &EventService{
		logger:    logger,
		events:    events,
		blocked:   blocked,
		publisher: publisher,
		maxDays:   maxDays,
	}
}

type CreateEventInput struct {
	Name        string
	Description string
	StartDate   string
	EndDate     string
}

type eventMembership struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
}

// Create guarda el evento con un codigo de union nuevo. El owner queda como primer participante.
func (s *EventService) Create(ctx context.Context, ownerID string, input CreateEventInput) (domain.Event, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Event{}, ErrInvalidEvent
	}
	window, err := ParseDateRange(input.StartDate, input.EndDate, s.maxDays)
	if err != nil {
		return domain.Event{}, err
	}

	event := domain.Event{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  strings.TrimSpace(input.Description),
		OwnerID:      ownerID,
		Window:       window,
		Participants: []string{ownerID},
		CreatedAt:    time.Now().UTC(),
	}
	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		event.Code, err = generateJoinCode()
		if err != nil {
			return domain.Event{}, err
		}
		err = s.events.Create(ctx, event)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

// Get devuelve el evento si userID participa en el.
func (s *EventService) Get(ctx context.Context, userID, eventID string) (domain.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return domain.Event{}, translateEventErr(err)
	}
	if !event.HasParticipant(userID) {
		return domain.Event{}, ErrForbidden
	}
	return event, nil
}

func (s *EventService) ListForUser(ctx context.Context, userID string) ([]domain.Event, error) {
	events, err := s.events.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}

// Join agrega al usuario al evento del codigo. Unirse dos veces no tiene efecto.
func (s *EventService) Join(ctx context.Context, userID, code string) (domain.Event, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != joinCodeLength {
		return domain.Event{}, ErrEventNotFound
	}
	event, err := s.events.GetByCode(ctx, code)
	if err != nil {
		return domain.Event{}, translateEventErr(err)
	}
	if event.HasParticipant(userID) {
		return event, nil
	}
	changed, err := s.events.AddParticipant(ctx, event.ID, userID)
	if err != nil {
		return domain.Event{}, err
	}
	if !changed {
		// otro request lo agrego o el evento ya no existe
		fresh, err := s.events.GetByID(ctx, event.ID)
		if err != nil {
			return domain.Event{}, translateEventErr(err)
		}
		return fresh, nil
	}
	event.Participants = append(event.Participants, userID)
	s.notify(ctx, broker.TopicEventJoined, event.ID, userID)
	return event, nil
}

func (s *EventService) Leave(ctx context.Context, userID, eventID string) error {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return translateEventErr(err)
	}
	if event.OwnerID == userID {
		return ErrOwnerCannotLeave
	}
	if !event.HasParticipant(userID) {
		return nil
	}
	if err := s.events.RemoveParticipant(ctx, eventID, userID); err != nil {
		return translateEventErr(err)
	}
	s.notify(ctx, broker.TopicEventLeft, eventID, userID)
	return nil
}

func (s *EventService) Delete(ctx context.Context, userID, eventID string) error {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return translateEventErr(err)
	}
	if event.OwnerID != userID {
		return ErrForbidden
	}
	return translateEventErr(s.events.Delete(ctx, eventID))
}

// FreeDays devuelve, en orden cronologico, los dias de la ventana del evento
// que ningun participante tiene bloqueados.
func (s *EventService) FreeDays(ctx context.Context, userID, eventID string) ([]domain.CalendarDay, error) {
	event, err := s.Get(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	byUser, err := s.blocked.GetBlockedDatesForUsers(ctx, event.Participants)
	if err != nil {
		return nil, err
	}
	var blocked []domain.CalendarDay
	for _, days := range byUser {
		blocked = append(blocked, days...)
	}
	free := domain.MissingDays(slices.Collect(event.Window.Days()), blocked)
	slices.SortFunc(free, domain.CalendarDay.Compare)
	return free, nil
}

func (s *EventService) notify(ctx context.Context, topic, eventID, userID string) {
	payload := eventMembership{EventID: eventID, UserID: userID}
	if err := s.publisher.Publish(ctx, topic, eventID, payload); err != nil && s.logger != nil {
		s.logger.Warn("publish event membership failed", zap.Error(err), zap.String("topic", topic))
	}
}

func generateJoinCode() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	for i := 0; i < joinCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(joinCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func translateEventErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrEventNotFound
	}
	return err
}
