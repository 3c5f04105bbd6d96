package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/elskow/corona-deployments/internal/config"
)

const (
	generatedPasswordBytes = 12
	defaultMaxFailedLogins = 5
	defaultLockDuration    = 15 * time.Minute
)

type Service struct {
	config     *config.AuthConfig
	log        *zap.Logger
	repository Repository
	now        func() time.Time
}

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID returns the id of the user the token was issued to.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

func NewService(config *config.AuthConfig, log *zap.Logger, repo Repository) *Service {
	return &Service{
		config:     config,
		log:        log,
		repository: repo,
		now:        time.Now,
	}
}

func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func (s *Service) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateUser stores an active user with a generated password. The password is
// returned once and only its hash is kept.
func (s *Service) CreateUser(name, username string) (*User, string, error) {
	name = strings.TrimSpace(name)
	username = strings.ToLower(strings.TrimSpace(username))
	if name == "" || username == "" {
		return nil, "", errors.New("name and username are required")
	}

	password, err := generatePassword()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate password: %w", err)
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user := &User{
		ID:           uuid.New(),
		Name:         name,
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repository.CreateUser(user); err != nil {
		return nil, "", err
	}

	s.log.Info("user created", zap.String("username", username), zap.String("user_id", user.ID.String()))
	return user, password, nil
}

func (s *Service) GenerateToken(user *User) (string, error) {
	now := s.now()
	claims := &Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// Login checks the credentials and returns a session token.
func (s *Service) Login(username, password string) (string, error) {
	user, err := s.repository.GetUserByUsername(strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.HashPassword("dummy") // Prevent timing attacks
			return "", ErrUserNotFound
		}
		return "", err
	}

	if !user.IsActive {
		return "", ErrInactiveUser
	}
	if user.lockedAt(s.now()) {
		return "", ErrAccountLocked
	}

	if !s.CheckPasswordHash(password, user.PasswordHash) {
		if err := s.repository.UpdateLoginAttempts(user.ID, true); err != nil {
			s.log.Error("failed to update login attempts", zap.Error(err))
		}

		if user.FailedLoginCount+1 >= s.maxFailedLogins() {
			if err := s.repository.LockAccount(user.ID, s.now().Add(s.lockDuration())); err != nil {
				s.log.Error("failed to lock account", zap.Error(err))
			}
		}

		return "", ErrInvalidPassword
	}

	if err := s.repository.UpdateLoginAttempts(user.ID, false); err != nil {
		s.log.Error("failed to reset login attempts", zap.Error(err))
	}

	return s.GenerateToken(user)
}

// Authenticate resolves a session token to an active user.
func (s *Service) Authenticate(tokenString string) (*User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("invalid token subject: %w", err)
	}

	user, err := s.repository.GetUserByID(id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

func (s *Service) maxFailedLogins() int {
	if s.config.MaxFailedLogins > 0 {
		return s.config.MaxFailedLogins
	}
	return defaultMaxFailedLogins
}

func (s *Service) lockDuration() time.Duration {
	if s.config.LockDuration > 0 {
		return s.config.LockDuration
	}
	return defaultLockDuration
}

func generatePassword() (string, error) {
	buf := make([]byte, generatedPasswordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
