package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deskchat/deskchat-server/internal/chat"
	"github.com/deskchat/deskchat-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when registering with a taken email.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidName is returned when the display name is unusable.
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidEmail is returned when the email is unusable.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPassword is returned when the password is too short.
	ErrInvalidPassword = errors.New("invalid password")
)

// Service is the identity provider: it owns credentials and display
// identities, and implements chat.IdentityGate for the messaging core.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new identity service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new account and returns a signed token.
func (s *Service) Register(ctx context.Context, name, email, password string) (string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" || len(name) > 64 {
		return "", ErrInvalidName
	}
	if !strings.Contains(email, "@") {
		return "", ErrInvalidEmail
	}
	if len(password) < 6 {
		return "", ErrInvalidPassword
	}

	if existing, err := s.store.GetUserByEmail(ctx, email); err == nil && existing != nil {
		return "", ErrUserExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, name, email, hashedPassword, store.RoleUser)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Name, user.Role)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// Login validates credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Name, user.Role)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// Authenticate verifies a bearer credential. Implements chat.IdentityGate.
func (s *Service) Authenticate(token string) (chat.Identity, error) {
	claims, err := ValidateToken(s.jwtConfig, token)
	if err != nil {
		return chat.Identity{}, fmt.Errorf("%w: %v", chat.ErrUnauthenticated, err)
	}
	return chat.Identity{
		UserID: claims.UserID,
		Name:   claims.Name,
		Role:   claims.Role,
	}, nil
}

// Lookup resolves a user id to its display identity. Implements
// chat.IdentityGate.
func (s *Service) Lookup(ctx context.Context, userID int64) (chat.Identity, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return chat.Identity{}, fmt.Errorf("%w: user %d", chat.ErrNotFound, userID)
		}
		return chat.Identity{}, fmt.Errorf("lookup user: %w", err)
	}
	return chat.Identity{
		UserID: user.ID,
		Name:   user.Name,
		Role:   user.Role,
	}, nil
}

// SearchChatPartners lists users the caller may open a direct room
// with, respecting the messaging-restriction policy: regular users
// only see admins.
func (s *Service) SearchChatPartners(ctx context.Context, actor chat.Identity, q string) ([]*store.User, error) {
	return s.store.SearchChatPartners(ctx, actor.UserID, actor.Role, strings.TrimSpace(q))
}
