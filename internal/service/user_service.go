package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"meetup-sync/internal/domain"
	"meetup-sync/internal/email"
	"meetup-sync/internal/repository"
)

// UserService coordina registro, confirmacion, login y baja de usuarios.
type UserService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	events      repository.EventRepository
	follows     repository.FollowRepository
	tx          repository.TxManager
	emailSender email.Sender
	limiter     ConfirmRateLimiter
}

func NewUserService(
	logger *zap.Logger,
	users repository.UserRepository,
	events repository.EventRepository,
	follows repository.FollowRepository,
	tx repository.TxManager,
	emailSender email.Sender,
	limiter ConfirmRateLimiter,
) *UserService {
	if limiter == nil {
		limiter = NewConfirmRateLimiter(confirmCodeTTL, 3)
	}
	return &UserService{
		logger:      logger,
		users:       users,
		events:      events,
		follows:     follows,
		tx:          tx,
		emailSender: emailSender,
		limiter:     limiter,
	}
}

type RegisterInput struct {
	Email       string
	Username    string
	DisplayName string
	Password    string
}

const (
	confirmCodeTTL    = 10 * time.Minute
	minPasswordLength = 8
)

// Register crea un usuario sin confirmar y le envia el codigo de confirmacion.
// Un fallo de envio no invalida el registro: el codigo puede reenviarse.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" || !strings.Contains(emailAddr, "@") {
		return domain.User{}, ErrInvalidEmail
	}
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if !isValidUsername(username) {
		return domain.User{}, ErrInvalidUsername
	}
	password := strings.TrimSpace(input.Password)
	if len(password) < minPasswordLength {
		return domain.User{}, ErrWeakPassword
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	code, codeHash, expiresAt, err := generateConfirmCode()
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:               uuid.NewString(),
		Email:            emailAddr,
		Username:         username,
		DisplayName:      strings.TrimSpace(input.DisplayName),
		PasswordHash:     string(hashBytes),
		ConfirmCodeHash:  codeHash,
		ConfirmExpiresAt: &expiresAt,
		BlockedDates:     []domain.CalendarDay{},
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, err
	}

	if err := s.sendCode(ctx, emailAddr, code, expiresAt); err != nil && s.logger != nil {
		s.logger.Warn("send confirmation code on register failed", zap.Error(err), zap.String("user_id", user.ID))
	}
	return user, nil
}

// ResendConfirmation genera un codigo nuevo para una cuenta sin confirmar.
func (s *UserService) ResendConfirmation(ctx context.Context, emailAddr string) error {
	if s.users == nil {
		return errors.New("user service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}
	if s.limiter != nil && !s.limiter.Allow(emailAddr) {
		return ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if user.Confirmed() {
		return ErrAlreadyConfirmed
	}

	code, hash, expiresAt, err := generateConfirmCode()
	if err != nil {
		return err
	}
	if err := s.users.UpdateConfirmCode(ctx, user.ID, hash, expiresAt); err != nil {
		return err
	}
	if err := s.sendCode(ctx, emailAddr, code, expiresAt); err != nil {
		if s.logger != nil {
			s.logger.Warn("send confirmation code failed", zap.Error(err), zap.String("email", emailAddr))
		}
		return ErrEmailSendFailure
	}
	return nil
}

// Confirm valida el codigo y marca la cuenta como confirmada.
func (s *UserService) Confirm(ctx context.Context, emailAddr, code string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	code = strings.TrimSpace(code)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	if !isValidConfirmCode(code) {
		return domain.User{}, ErrCodeInvalid
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if user.Confirmed() {
		return domain.User{}, ErrAlreadyConfirmed
	}
	if user.ConfirmCodeHash == "" || user.ConfirmExpiresAt == nil {
		return domain.User{}, ErrCodeNotRequested
	}
	if time.Now().UTC().After(*user.ConfirmExpiresAt) {
		return domain.User{}, ErrCodeExpired
	}
	if !verifyConfirmCode(code, user.ConfirmCodeHash) {
		return domain.User{}, ErrCodeInvalid
	}

	verifiedAt := time.Now().UTC()
	if err := s.users.MarkConfirmed(ctx, user.ID, verifiedAt); err != nil {
		return domain.User{}, err
	}

	user.EmailVerifiedAt = &verifiedAt
	user.ConfirmCodeHash = ""
	user.ConfirmExpiresAt = nil
	return user, nil
}

func (s *UserService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	password = strings.TrimSpace(password)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	if !user.Confirmed() {
		return domain.User{}, ErrNotConfirmed
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, translateUserErr(err)
	}
	return user, nil
}

// Delete elimina al usuario junto con sus eventos, participaciones y follows
// en una sola transaccion.
func (s *UserService) Delete(ctx context.Context, id string) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.events.DeleteOwnedBy(ctx, id); err != nil {
			return fmt.Errorf("delete owned events: %w", err)
		}
		if err := s.events.RemoveParticipantEverywhere(ctx, id); err != nil {
			return fmt.Errorf("remove participations: %w", err)
		}
		if err := s.follows.DeleteAllFor(ctx, id); err != nil {
			return fmt.Errorf("delete follows: %w", err)
		}
		return s.users.Delete(ctx, id)
	})
	return translateUserErr(err)
}

func (s *UserService) sendCode(ctx context.Context, to, code string, expiresAt time.Time) error {
	if s.emailSender == nil {
		return ErrEmailSendFailure
	}
	return s.emailSender.SendConfirmationCode(ctx, to, code, expiresAt)
}

func generateConfirmCode() (string, string, time.Time, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", "", time.Time{}, err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", time.Time{}, err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])

	expiresAt := time.Now().UTC().Add(confirmCodeTTL)
	return code, saltStr + ":" + hash, expiresAt, nil
}

func verifyConfirmCode(code, stored string) bool {
	saltStr, expectedHash, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])
	return subtle.ConstantTimeCompare([]byte(hash), []byte(expectedHash)) == 1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidConfirmCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isValidUsername(username string) bool {
	if len(username) < 3 || len(username) > 30 {
		return false
	}
	for _, r := range username {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// ConfirmRateLimiter limita la frecuencia de reenvios de codigo por clave.
type ConfirmRateLimiter interface {
	Allow(key string) bool
}

type confirmRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
}

// NewConfirmRateLimiter crea un rate limiter en memoria.
func NewConfirmRateLimiter(window time.Duration, max int) ConfirmRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &confirmRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
	}
}

func (l *confirmRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	cutoff := now.Add(-l.window)
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	kept = append(kept, now)
	l.hits[key] = kept
	return true
}
