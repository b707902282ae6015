package service

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TIRP-Group3/design1/internal/models"
	"github.com/TIRP-Group3/design1/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var ( // Define custom errors
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var jwtSecret = []byte("malware_secret_key")

// SetJWTSecret overrides the signing key from configuration.
func SetJWTSecret(secret string) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
}

// GetJWTSecret returns the JWT secret key.
func GetJWTSecret() []byte {
	return jwtSecret
}

type AuthService interface {
	Register(username, email, password string) (*models.User, error)
	Login(username, password string) (string, time.Time, error) // Returns JWT token, expiration time, and error
	UserByUsername(username string) (*models.User, error)
}

type authService struct {
	repo   repository.AuthRepository
	logger *zap.Logger
}

func NewAuthService(repo repository.AuthRepository, logger *zap.Logger) AuthService {
	return &authService{
		repo:   repo,
		logger: logger,
	}
}

func (s *authService) Register(username, email, password string) (*models.User, error) {
	if _, err := s.repo.GetUserByUsername(username); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Error("Failed to check existing user", zap.Error(err))
		return nil, fmt.Errorf("failed to check existing users: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// The very first account becomes the administrator.
	role := models.RoleUser
	count, err := s.repo.CountUsers()
	if err != nil {
		s.logger.Error("Failed to count users", zap.Error(err))
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if count == 0 {
		role = models.RoleAdmin
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(passwordHash),
		Role:         role,
	}
	if err := s.repo.CreateUser(user); err != nil {
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (s *authService) Login(username, password string) (string, time.Time, error) {
	user, err := s.repo.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, ErrUserNotFound
		}
		s.logger.Error("Failed to get user by username", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	expirationTime := time.Now().Add(24 * time.Hour)
	claims := &models.Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		s.logger.Error("Failed to generate JWT token", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("User logged in successfully.", zap.String("username", user.Username))

	return tokenString, expirationTime, nil
}

func (s *authService) UserByUsername(username string) (*models.User, error) {
	user, err := s.repo.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
