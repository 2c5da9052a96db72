package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"meetup-sync/internal/domain"
	"meetup-sync/internal/repository"
)

// mockUserRepo guarda usuarios en memoria y cumple UserRepository y BlockedDatesRepository.
type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	usersByEmail map[string]string

	addCalls    [][]domain.CalendarDay
	removeCalls [][]domain.CalendarDay
	getErr      error
	writeErr    error
	deleted     []string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) put(user domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usersByID[user.ID] = user
	if user.Email != "" {
		m.usersByEmail[user.Email] = user.ID
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.usersByEmail[user.Email]; ok {
		return repository.ErrDuplicate
	}
	for _, u := range m.usersByID {
		if u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	id, ok := m.usersByEmail[email]
	m.mu.Unlock()
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) UpdateConfirmCode(_ context.Context, id, codeHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.ConfirmCodeHash = codeHash
	user.ConfirmExpiresAt = &expiresAt
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) MarkConfirmed(_ context.Context, id string, verifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.EmailVerifiedAt = &verifiedAt
	user.ConfirmCodeHash = ""
	user.ConfirmExpiresAt = nil
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(m.usersByID, id)
	delete(m.usersByEmail, user.Email)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockUserRepo) GetBlockedDates(ctx context.Context, userID string) ([]domain.CalendarDay, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	user, err := m.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(user.BlockedDates), nil
}

func (m *mockUserRepo) GetBlockedDatesForUsers(_ context.Context, userIDs []string) (map[string][]domain.CalendarDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]domain.CalendarDay, len(userIDs))
	for _, id := range userIDs {
		if user, ok := m.usersByID[id]; ok {
			out[id] = slices.Clone(user.BlockedDates)
		}
	}
	return out, nil
}

func (m *mockUserRepo) AddBlockedDates(_ context.Context, userID string, days []domain.CalendarDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls = append(m.addCalls, slices.Clone(days))
	if m.writeErr != nil {
		return m.writeErr
	}
	user, ok := m.usersByID[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.BlockedDates = domain.AppendDays(user.BlockedDates, days)
	m.usersByID[userID] = user
	return nil
}

func (m *mockUserRepo) RemoveBlockedDates(_ context.Context, userID string, days []domain.CalendarDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeCalls = append(m.removeCalls, slices.Clone(days))
	if m.writeErr != nil {
		return m.writeErr
	}
	user, ok := m.usersByID[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.BlockedDates = domain.RemoveDays(user.BlockedDates, days)
	m.usersByID[userID] = user
	return nil
}

type mockEventRepo struct {
	events map[string]domain.Event

	createErrs    []error
	createdCodes  []string
	ownerDeletes  []string
	participantRm []string
	deleteOwnErr  error
	beforeAdd     func()
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{events: make(map[string]domain.Event)}
}

func (m *mockEventRepo) Create(_ context.Context, event domain.Event) error {
	m.createdCodes = append(m.createdCodes, event.Code)
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	event.Participants = slices.Clone(event.Participants)
	m.events[event.ID] = event
	return nil
}

func (m *mockEventRepo) GetByID(_ context.Context, id string) (domain.Event, error) {
	event, ok := m.events[id]
	if !ok {
		return domain.Event{}, pgx.ErrNoRows
	}
	event.Participants = slices.Clone(event.Participants)
	return event, nil
}

func (m *mockEventRepo) GetByCode(ctx context.Context, code string) (domain.Event, error) {
	for _, event := range m.events {
		if event.Code == code {
			return m.GetByID(ctx, event.ID)
		}
	}
	return domain.Event{}, pgx.ErrNoRows
}

func (m *mockEventRepo) ListForUser(_ context.Context, userID string) ([]domain.Event, error) {
	var out []domain.Event
	for _, event := range m.events {
		if event.HasParticipant(userID) {
			out = append(out, event)
		}
	}
	return out, nil
}

func (m *mockEventRepo) AddParticipant(_ context.Context, eventID, userID string) (bool, error) {
	if m.beforeAdd != nil {
		m.beforeAdd()
	}
	event, ok := m.events[eventID]
	if !ok || event.HasParticipant(userID) {
		return false, nil
	}
	event.Participants = append(event.Participants, userID)
	m.events[eventID] = event
	return true, nil
}

func (m *mockEventRepo) RemoveParticipant(_ context.Context, eventID, userID string) error {
	event, ok := m.events[eventID]
	if !ok {
		return pgx.ErrNoRows
	}
	event.Participants = slices.DeleteFunc(event.Participants, func(id string) bool { return id == userID })
	m.events[eventID] = event
	return nil
}

func (m *mockEventRepo) RemoveParticipantEverywhere(ctx context.Context, userID string) error {
	m.participantRm = append(m.participantRm, userID)
	for id := range m.events {
		_ = m.RemoveParticipant(ctx, id, userID)
	}
	return nil
}

func (m *mockEventRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.events[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.events, id)
	return nil
}

func (m *mockEventRepo) DeleteOwnedBy(_ context.Context, ownerID string) error {
	if m.deleteOwnErr != nil {
		return m.deleteOwnErr
	}
	m.ownerDeletes = append(m.ownerDeletes, ownerID)
	for id, event := range m.events {
		if event.OwnerID == ownerID {
			delete(m.events, id)
		}
	}
	return nil
}

type mockFollowRepo struct {
	edges      []domain.Follow
	deletedFor []string
}

func (m *mockFollowRepo) Create(_ context.Context, follow domain.Follow) (bool, error) {
	for _, e := range m.edges {
		if e.FollowerID == follow.FollowerID && e.FolloweeID == follow.FolloweeID {
			return false, nil
		}
	}
	m.edges = append(m.edges, follow)
	return true, nil
}

func (m *mockFollowRepo) Delete(_ context.Context, followerID, followeeID string) error {
	m.edges = slices.DeleteFunc(m.edges, func(e domain.Follow) bool {
		return e.FollowerID == followerID && e.FolloweeID == followeeID
	})
	return nil
}

func (m *mockFollowRepo) ListFollowers(_ context.Context, userID string) ([]domain.PublicUser, error) {
	out := []domain.PublicUser{}
	for _, e := range m.edges {
		if e.FolloweeID == userID {
			out = append(out, domain.PublicUser{ID: e.FollowerID})
		}
	}
	return out, nil
}

func (m *mockFollowRepo) ListFollowing(_ context.Context, userID string) ([]domain.PublicUser, error) {
	out := []domain.PublicUser{}
	for _, e := range m.edges {
		if e.FollowerID == userID {
			out = append(out, domain.PublicUser{ID: e.FolloweeID})
		}
	}
	return out, nil
}

func (m *mockFollowRepo) DeleteAllFor(_ context.Context, userID string) error {
	m.deletedFor = append(m.deletedFor, userID)
	m.edges = slices.DeleteFunc(m.edges, func(e domain.Follow) bool {
		return e.FollowerID == userID || e.FolloweeID == userID
	})
	return nil
}

// mockTx ejecuta fn directamente y registra el resultado.
type mockTx struct {
	calls   int
	lastErr error
}

func (m *mockTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	m.lastErr = fn(ctx)
	return m.lastErr
}

type mockSender struct {
	lastTo   string
	lastCode string
	calls    int
	err      error
}

func (m *mockSender) SendConfirmationCode(_ context.Context, to, code string, _ time.Time) error {
	m.calls++
	m.lastTo = to
	m.lastCode = code
	return m.err
}

type published struct {
	topic   string
	key     string
	payload any
}

type mockPublisher struct {
	msgs []published
	err  error
}

func (m *mockPublisher) Publish(_ context.Context, topic, key string, payload any) error {
	m.msgs = append(m.msgs, published{topic: topic, key: key, payload: payload})
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

type fixedLimiter struct {
	allow bool
}

func (l fixedLimiter) Allow(string) bool { return l.allow }

var errBoom = errors.New("boom")

func day(y int, m time.Month, d int) domain.CalendarDay {
	return domain.DayOf(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func dayStrings(days []domain.CalendarDay) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.String())
	}
	return out
}
