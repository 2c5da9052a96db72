package http

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"meetup-sync/internal/domain"
	"meetup-sync/internal/metrics"
	"meetup-sync/internal/repository"
	"meetup-sync/internal/service"
)

// memStore implementa en memoria todos los repositorios usados por los handlers.
type memStore struct {
	mu      sync.Mutex
	users   map[string]domain.User
	events  map[string]domain.Event
	follows []domain.Follow

	failWrites error
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[string]domain.User),
		events: make(map[string]domain.Event),
	}
}

func (s *memStore) Create(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	u.BlockedDates = slices.Clone(u.BlockedDates)
	return u, nil
}

func (s *memStore) GetByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (s *memStore) UpdateConfirmCode(_ context.Context, id, codeHash string, expiresAt time.Time) error {
	return s.update(id, func(u *domain.User) {
		u.ConfirmCodeHash = codeHash
		u.ConfirmExpiresAt = &expiresAt
	})
}

func (s *memStore) MarkConfirmed(_ context.Context, id string, verifiedAt time.Time) error {
	return s.update(id, func(u *domain.User) {
		u.EmailVerifiedAt = &verifiedAt
		u.ConfirmCodeHash = ""
		u.ConfirmExpiresAt = nil
	})
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.users, id)
	return nil
}

func (s *memStore) GetBlockedDates(ctx context.Context, userID string) ([]domain.CalendarDay, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.BlockedDates == nil {
		return []domain.CalendarDay{}, nil
	}
	return u.BlockedDates, nil
}

func (s *memStore) GetBlockedDatesForUsers(_ context.Context, userIDs []string) (map[string][]domain.CalendarDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]domain.CalendarDay, len(userIDs))
	for _, id := range userIDs {
		if u, ok := s.users[id]; ok {
			out[id] = slices.Clone(u.BlockedDates)
		}
	}
	return out, nil
}

func (s *memStore) AddBlockedDates(_ context.Context, userID string, days []domain.CalendarDay) error {
	return s.update(userID, func(u *domain.User) {
		u.BlockedDates = domain.AppendDays(u.BlockedDates, days)
	})
}

func (s *memStore) RemoveBlockedDates(_ context.Context, userID string, days []domain.CalendarDay) error {
	return s.update(userID, func(u *domain.User) {
		u.BlockedDates = domain.RemoveDays(u.BlockedDates, days)
	})
}

func (s *memStore) update(id string, fn func(*domain.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	u, ok := s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	fn(&u)
	s.users[id] = u
	return nil
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memEvents y memFollows comparten el estado de memStore.
type memEvents struct{ s *memStore }

func (e memEvents) Create(_ context.Context, event domain.Event) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	e.s.events[event.ID] = event
	return nil
}

func (e memEvents) GetByID(_ context.Context, id string) (domain.Event, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	ev, ok := e.s.events[id]
	if !ok {
		return domain.Event{}, pgx.ErrNoRows
	}
	ev.Participants = slices.Clone(ev.Participants)
	return ev, nil
}

func (e memEvents) GetByCode(ctx context.Context, code string) (domain.Event, error) {
	e.s.mu.Lock()
	var id string
	for _, ev := range e.s.events {
		if ev.Code == code {
			id = ev.ID
		}
	}
	e.s.mu.Unlock()
	return e.GetByID(ctx, id)
}

func (e memEvents) ListForUser(_ context.Context, userID string) ([]domain.Event, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	var out []domain.Event
	for _, ev := range e.s.events {
		if ev.HasParticipant(userID) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (e memEvents) AddParticipant(_ context.Context, eventID, userID string) (bool, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	ev, ok := e.s.events[eventID]
	if !ok || ev.HasParticipant(userID) {
		return false, nil
	}
	ev.Participants = append(slices.Clone(ev.Participants), userID)
	e.s.events[eventID] = ev
	return true, nil
}

func (e memEvents) RemoveParticipant(_ context.Context, eventID, userID string) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	ev, ok := e.s.events[eventID]
	if !ok {
		return pgx.ErrNoRows
	}
	ev.Participants = slices.DeleteFunc(slices.Clone(ev.Participants), func(id string) bool { return id == userID })
	e.s.events[eventID] = ev
	return nil
}

func (e memEvents) RemoveParticipantEverywhere(ctx context.Context, userID string) error {
	for _, id := range e.ids() {
		_ = e.RemoveParticipant(ctx, id, userID)
	}
	return nil
}

func (e memEvents) Delete(_ context.Context, id string) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if _, ok := e.s.events[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(e.s.events, id)
	return nil
}

func (e memEvents) DeleteOwnedBy(_ context.Context, ownerID string) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	for id, ev := range e.s.events {
		if ev.OwnerID == ownerID {
			delete(e.s.events, id)
		}
	}
	return nil
}

func (e memEvents) ids() []string {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	ids := make([]string, 0, len(e.s.events))
	for id := range e.s.events {
		ids = append(ids, id)
	}
	return ids
}

type memFollows struct{ s *memStore }

func (f memFollows) Create(_ context.Context, follow domain.Follow) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, e := range f.s.follows {
		if e.FollowerID == follow.FollowerID && e.FolloweeID == follow.FolloweeID {
			return false, nil
		}
	}
	f.s.follows = append(f.s.follows, follow)
	return true, nil
}

func (f memFollows) Delete(_ context.Context, followerID, followeeID string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.follows = slices.DeleteFunc(f.s.follows, func(e domain.Follow) bool {
		return e.FollowerID == followerID && e.FolloweeID == followeeID
	})
	return nil
}

func (f memFollows) ListFollowers(_ context.Context, userID string) ([]domain.PublicUser, error) {
	return f.list(func(e domain.Follow) (string, bool) { return e.FollowerID, e.FolloweeID == userID })
}

func (f memFollows) ListFollowing(_ context.Context, userID string) ([]domain.PublicUser, error) {
	return f.list(func(e domain.Follow) (string, bool) { return e.FolloweeID, e.FollowerID == userID })
}

func (f memFollows) list(match func(domain.Follow) (string, bool)) ([]domain.PublicUser, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []domain.PublicUser{}
	for _, e := range f.s.follows {
		if id, ok := match(e); ok {
			out = append(out, f.s.users[id].Public())
		}
	}
	return out, nil
}

func (f memFollows) DeleteAllFor(_ context.Context, userID string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.follows = slices.DeleteFunc(f.s.follows, func(e domain.Follow) bool {
		return e.FollowerID == userID || e.FolloweeID == userID
	})
	return nil
}

type fakeSender struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (f *fakeSender) SendConfirmationCode(_ context.Context, to, code string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.codes == nil {
		f.codes = make(map[string]string)
	}
	f.codes[to] = code
	return nil
}

func (f *fakeSender) code(to string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codes[to]
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

type testServer struct {
	router  *gin.Engine
	store   *memStore
	jwt     *service.JWTService
	sender  *fakeSender
	metrics *metrics.Metrics
	reg     *prometheus.Registry
}

type serverOption func(*serverConfig)

type serverConfig struct {
	limiter service.ConfirmRateLimiter
	checks  []ReadinessCheck
}

func withLimiter(l service.ConfirmRateLimiter) serverOption {
	return func(c *serverConfig) { c.limiter = l }
}

func withReadiness(checks ...ReadinessCheck) serverOption {
	return func(c *serverConfig) { c.checks = checks }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var cfg serverConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := zap.NewNop()
	store := newMemStore()
	sender := &fakeSender{}
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	jwtSvc := service.NewJWTService("secret", 15*time.Minute, time.Hour, service.NewMemoryRefreshTokenStore())

	userSvc := service.NewUserService(logger, store, memEvents{store}, memFollows{store}, store, sender, cfg.limiter)
	blockedSvc := service.NewBlockedDatesService(logger, store, nil, m, 366)
	followSvc := service.NewFollowService(logger, store, memFollows{store}, nil)
	eventSvc := service.NewEventService(logger, memEvents{store}, store, nil, 366)

	router := NewRouter(logger, m, reg, jwtSvc, Handlers{
		Health:       NewHealthHandler(logger, cfg.checks...),
		Users:        NewUserHandler(logger, userSvc, jwtSvc),
		BlockedDates: NewBlockedDatesHandler(logger, blockedSvc),
		Follows:      NewFollowHandler(logger, followSvc),
		Events:       NewEventHandler(logger, eventSvc),
	})
	return &testServer{router: router, store: store, jwt: jwtSvc, sender: sender, metrics: m, reg: reg}
}

// seedUser crea un usuario confirmado y devuelve un access token para el.
func (ts *testServer) seedUser(t *testing.T, id string, blocked ...domain.CalendarDay) string {
	t.Helper()
	now := time.Now().UTC()
	ts.store.users[id] = domain.User{
		ID:              id,
		Email:           id + "@example.com",
		Username:        id,
		EmailVerifiedAt: &now,
		BlockedDates:    blocked,
		CreatedAt:       now,
	}
	pair, err := ts.jwt.GeneratePair(context.Background(), ts.store.users[id])
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	return pair.AccessToken
}

var errStoreDown = errors.New("connection refused")
