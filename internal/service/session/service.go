package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/repository"
	"github.com/Richiestixx/SiteRightApp/pkg/config"
	jwtpkg "github.com/Richiestixx/SiteRightApp/pkg/jwt"
)

// ErrUnauthorized is returned when a token cannot be resolved to a user.
var ErrUnauthorized = errors.New("unauthorized")

// Service issues and resolves anonymous identities.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

// Session is an identity plus the token that proves it.
type Session struct {
	User      domain.User
	Token     string
	ExpiresIn time.Duration
}

// Scope returns the collection owner for this session.
func (s Session) Scope() repository.Scope {
	return repository.Scope{AppID: s.User.AppID, UserID: s.User.ID}
}

// Start resumes the identity behind token when it is still valid, otherwise
// it creates a new anonymous identity. Identities are stable across resumes.
func (s Service) Start(ctx context.Context, token string) (Session, error) {
	if strings.TrimSpace(token) != "" {
		user, _, err := s.Authorize(ctx, token)
		if err == nil {
			s.logger.Info("session resumed", "user_id", user.ID)
			return s.issue(*user)
		}
		s.logger.Info("session token rejected, starting anonymous session", "error", err)
	}
	return s.Anonymous(ctx)
}

// Anonymous registers a fresh anonymous user.
func (s Service) Anonymous(ctx context.Context) (Session, error) {
	user := domain.User{
		ID:        uuid.NewString(),
		AppID:     s.cfg.AppID,
		Anonymous: true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, &user); err != nil {
		return Session{}, err
	}
	s.logger.Info("anonymous user created", "user_id", user.ID)
	return s.issue(user)
}

// Authorize validates a bearer token and returns the associated user and claims.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, *jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil, ErrUnauthorized
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, nil, errors.Join(ErrUnauthorized, err)
	}
	if claims.AppID != s.cfg.AppID {
		return nil, nil, ErrUnauthorized
	}
	user, err := s.users.GetUserByID(ctx, claims.AppID, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, err
	}
	return user, claims, nil
}

func (s Service) issue(user domain.User) (Session, error) {
	token, err := jwtpkg.GenerateToken(user.ID, user.AppID, s.cfg.JWTSecret, s.cfg.SessionTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Token: token, ExpiresIn: s.cfg.SessionTTL}, nil
}
