package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/taskkeeper/internal/models"
	"github.com/iudanet/taskkeeper/internal/server/jwt"
	"github.com/iudanet/taskkeeper/internal/server/storage"
)

// TokenPair представляет пару access + refresh token
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // время жизни access token в секундах
}

// Service управляет жизненным циклом сессий: регистрация, вход,
// ротация refresh token, выход, текущий пользователь
type Service struct {
	logger *slog.Logger
	users  storage.UserStorage
	tokens storage.TokenStorage
	signer *jwt.Service
}

// NewService создает новый сервис аутентификации
func NewService(logger *slog.Logger, users storage.UserStorage, tokens storage.TokenStorage, signer *jwt.Service) *Service {
	return &Service{
		logger: logger,
		users:  users,
		tokens: tokens,
		signer: signer,
	}
}

// Register регистрирует нового пользователя и выдает пару токенов.
// Предварительная проверка email оставляет маленькое окно гонки;
// UNIQUE constraint в хранилище закрывает его для проигравшего.
func (s *Service) Register(ctx context.Context, email, password string) (*TokenPair, error) {
	// Проверяем, что email свободен
	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrDuplicateUser
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, storeFailure(err)
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			// Проиграли гонку регистрации за тот же email
			return nil, ErrDuplicateUser
		}
		return nil, storeFailure(err)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID))

	return s.issueTokens(ctx, user)
}

// Login аутентифицирует пользователя и выдает пару токенов.
// Неизвестный email и неверный пароль дают одинаковый исход.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeFailure(err)
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID))

	return s.issueTokens(ctx, user)
}

// Refresh выполняет ротацию: предъявленный токен атомарно отзывается,
// взамен выдается новая пара. Токен одноразовый - при двух конкурентных
// вызовах ровно один получает новую пару, второй - ErrTokenRevoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	stored, err := s.tokens.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, storeFailure(err)
	}

	if stored.Revoked {
		return nil, ErrTokenRevoked
	}

	// Истечение проверяется лениво при предъявлении, фонового sweeper нет
	if time.Now().After(stored.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	// Условный отзыв решает гонку двух конкурентных Refresh:
	// новая пара выдается только тому, чей отзыв реально применился
	applied, err := s.tokens.RevokeRefreshToken(ctx, stored.ID)
	if err != nil {
		return nil, storeFailure(err)
	}
	if !applied {
		s.logger.WarnContext(ctx, "refresh token already rotated",
			slog.String("user_id", stored.UserID),
			slog.String("token_id", stored.ID))
		return nil, ErrTokenRevoked
	}

	user, err := s.users.GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, storeFailure(err)
	}

	s.logger.InfoContext(ctx, "tokens rotated",
		slog.String("user_id", user.ID))

	return s.issueTokens(ctx, user)
}

// Logout отзывает предъявленный refresh token.
// Идемпотентен: неизвестный или уже отозванный токен - no-op успех.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	stored, err := s.tokens.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil
		}
		return storeFailure(err)
	}

	if stored.Revoked {
		return nil
	}

	// Результат условного отзыва не важен: проигрыш гонки
	// означает, что токен уже отозван
	if _, err := s.tokens.RevokeRefreshToken(ctx, stored.ID); err != nil {
		return storeFailure(err)
	}

	s.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", stored.UserID))

	return nil
}

// CurrentUser возвращает профиль пользователя по ID из access token
func (s *Service) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeFailure(err)
	}
	return user, nil
}

// issueTokens выдает и сохраняет новую пару токенов для пользователя.
// Каждый вызов создает независимую строку refresh token.
func (s *Service) issueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessToken, expiresIn, err := s.signer.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, expiresAt, err := s.signer.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	row := &models.RefreshToken{
		ID:        uuid.New().String(),
		Token:     refreshToken,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}

	if err := s.tokens.SaveRefreshToken(ctx, row); err != nil {
		return nil, storeFailure(err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}

// storeFailure помечает ошибку хранилища как transient
func storeFailure(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
