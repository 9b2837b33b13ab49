// Package service provides the portal's business logic for accounts, tokens
// and items, delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/GophMaps/internal/models"
	"github.com/atinyakov/GophMaps/internal/repository"
)

// AuthRepository defines the persistence operations
// required by the authentication service.
type AuthRepository interface {
	// UserExists returns true if a user with the given username exists.
	UserExists(ctx context.Context, username string) (bool, error)
	// CreateUser stores a new account. It returns repository.ErrDuplicate
	// if the username is taken.
	CreateUser(ctx context.Context, u models.User) error
	// GetUser returns the account or nil if there is none.
	GetUser(ctx context.Context, username string) (*models.User, error)
}

// AuthConfig configures token issuing and the registered OAuth clients.
type AuthConfig struct {
	// Secret signs access tokens.
	Secret []byte
	// TokenTTL is the longest lifetime of an issued token.
	TokenTTL time.Duration
	// Issuer is written to and required in every token.
	Issuer string
	// Clients maps an OAuth client id to the prefix its redirect URIs must have.
	Clients map[string]string
}

// Service implements account registration, sign-in and access tokens.
type Service struct {
	repo AuthRepository
	cfg  AuthConfig
	now  func() time.Time
}

// NewAuthService constructs a new Service using the provided repository.
func NewAuthService(repo AuthRepository, cfg AuthConfig) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 2 * time.Hour
	}
	return &Service{repo: repo, cfg: cfg, now: time.Now}
}

// UserExists checks whether a user with the specified username exists.
func (s *Service) UserExists(ctx context.Context, username string) (bool, error) {
	return s.repo.UserExists(ctx, username)
}

// Register creates an account with a bcrypt hash of password.
func (s *Service) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return err
	}
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}

	exists, err := s.repo.UserExists(ctx, username)
	if err != nil {
		return err
	}
	if exists {
		return ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = s.repo.CreateUser(ctx, models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Created:      s.now().UnixMilli(),
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrUserExists
	}
	return err
}

func validateUsername(username string) error {
	if username == "" || len(username) > 64 {
		return fmt.Errorf("%w: username must be 1 to 64 characters", ErrInvalidInput)
	}
	if strings.ContainsAny(username, " \t/?#%") {
		return fmt.Errorf("%w: username contains invalid characters", ErrInvalidInput)
	}
	return nil
}

// Authenticate checks the password of username.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.repo.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// IssueToken signs an access token for username. A positive want shorter
// than the configured TTL shortens the token's life.
func (s *Service) IssueToken(username string, want time.Duration) (string, time.Duration, error) {
	ttl := s.cfg.TokenTTL
	if want > 0 && want < ttl {
		ttl = want
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    s.cfg.Issuer,
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}
	return token, ttl, nil
}

// ParseToken verifies token and returns the username it was issued to.
func (s *Service) ParseToken(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// ValidateClient checks that clientID is registered and redirectURI
// falls under its registered prefix. Scheme, host and path are compared
// after parsing; a prefix ending in ":" accepts any port.
func (s *Service) ValidateClient(clientID, redirectURI string) error {
	prefix, ok := s.cfg.Clients[clientID]
	if !ok {
		return ErrInvalidClient
	}
	u, err := url.Parse(redirectURI)
	if err != nil || u.Scheme == "" || u.Host == "" || u.Fragment != "" || u.User != nil {
		return ErrInvalidClient
	}
	p, err := url.Parse(prefix)
	if err != nil || p.Host == "" {
		return ErrInvalidClient
	}
	if !strings.EqualFold(u.Scheme, p.Scheme) || !strings.EqualFold(u.Hostname(), p.Hostname()) {
		return ErrInvalidClient
	}
	if !strings.HasSuffix(p.Host, ":") && u.Port() != p.Port() {
		return ErrInvalidClient
	}
	if !strings.HasPrefix(u.EscapedPath(), p.EscapedPath()) {
		return ErrInvalidClient
	}
	return nil
}
