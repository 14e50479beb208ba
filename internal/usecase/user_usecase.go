package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/domain/events"
	"github.com/qrave1/PeerCall/internal/domain/models"
	"github.com/qrave1/PeerCall/internal/infra/adapters/memory"
	"github.com/qrave1/PeerCall/internal/infra/adapters/postgres/repository"
)

const (
	tokenTTL = 72 * time.Hour

	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 6

	// LogoutReason - причина в user-logged-out при явном выходе
	LogoutReason = "logout"
)

// UserUsecase определяет интерфейс для работы с пользователями
type UserUsecase interface {
	// Создание пользователя
	CreateUser(ctx context.Context, username, password string) (*models.User, error)

	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// Аутентификация
	ValidateCredentials(ctx context.Context, username, password string) (*models.User, error)
	GenerateJWT(user *models.User) (string, error)

	// Онлайн пользователи, кроме запросившего
	GetOnlineUsers(ctx context.Context, except uuid.UUID) ([]*models.User, error)

	// Logout рассылает user-logged-out всем подключенным
	Logout(ctx context.Context, userID uuid.UUID) error
}

type userUsecase struct {
	jwtSecret []byte

	userRepo     repository.UserRepository
	presenceRepo memory.PresenceRepository
	wsRepo       memory.WebsocketConnectionRepository
	calls        memory.CallRegistry
}

// NewUserUsecase создает новый экземпляр UserUsecase
func NewUserUsecase(
	jwtSecret []byte,
	userRepo repository.UserRepository,
	presenceRepo memory.PresenceRepository,
	wsRepo memory.WebsocketConnectionRepository,
	calls memory.CallRegistry,
) UserUsecase {
	return &userUsecase{
		jwtSecret:    jwtSecret,
		userRepo:     userRepo,
		presenceRepo: presenceRepo,
		wsRepo:       wsRepo,
		calls:        calls,
	}
}

// CreateUser создает нового пользователя с хешированным паролем
func (uc *userUsecase) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return nil, fmt.Errorf("%w: username must be %d-%d characters", ErrBadRequest, minUsernameLen, maxUsernameLen)
	}

	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrBadRequest, minPasswordLen)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.NewUser(username, string(hashedPassword))

	if err = uc.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: username taken", ErrConflict)
		}

		return nil, err
	}

	// Убираем пароль из ответа
	user.Password = ""
	return user, nil
}

// GetUserByID получает пользователя по ID
func (uc *userUsecase) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := uc.userRepo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	user.Password = ""
	return user, nil
}

// ValidateCredentials проверяет учетные данные пользователя
func (uc *userUsecase) ValidateCredentials(ctx context.Context, username, password string) (*models.User, error) {
	user, err := uc.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}

		return nil, err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}

	user.Password = ""
	return user, nil
}

// GenerateJWT генерирует JWT токен для пользователя
func (uc *userUsecase) GenerateJWT(user *models.User) (string, error) {
	claims := &jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(uc.jwtSecret)
}

func (uc *userUsecase) GetOnlineUsers(ctx context.Context, except uuid.UUID) ([]*models.User, error) {
	ids, err := uc.presenceRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}

	filtered := ids[:0]
	for _, id := range ids {
		if id != except {
			filtered = append(filtered, id)
		}
	}

	users, err := uc.userRepo.GetUsersByIDs(ctx, filtered)
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		u.Password = ""
	}

	return users, nil
}

func (uc *userUsecase) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := uc.presenceRepo.Remove(ctx, userID); err != nil {
		slog.Error("remove presence", slog.Any(constant.UserID, userID), slog.Any(constant.Error, err))
	}

	// Собеседник завершит звонок сам по user-logged-out
	uc.calls.End(userID)

	msg, err := events.NewMessage(events.UserLoggedOut, events.UserLoggedOutEvent{
		UserID: userID.String(),
		Reason: LogoutReason,
	})
	if err != nil {
		return err
	}
	msg.From = userID.String()

	uc.wsRepo.Broadcast(msg, userID)

	slog.Info("user logged out", slog.Any(constant.UserID, userID))

	return nil
}
