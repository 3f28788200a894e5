package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	apperrors "github.com/nexuscrm/taskdesk/pkg/errors"
	"github.com/nexuscrm/taskdesk/pkg/models"
	"github.com/nexuscrm/taskdesk/pkg/utils"
)

// LoginResult contains the result of a successful login
type LoginResult struct {
	Token     string           `json:"token"`
	User      auth.UserSession `json:"user"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Name     string             `json:"name"`
	Email    string             `json:"email"`
	Password string             `json:"password"`
	Role     constants.UserRole `json:"role,omitempty"`
}

// AuthService handles authentication, session management and user registration.
type AuthService struct {
	users      UserStore
	sessions   SessionStore
	tokens     *auth.TokenManager
	tx         TxRunner
	dispatcher ports.EventDispatcher
	logger     *slog.Logger
}

func NewAuthService(users UserStore, sessions SessionStore, tokens *auth.TokenManager, tx TxRunner, dispatcher ports.EventDispatcher, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		tx:         tx,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Login authenticates a user and creates a session
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if user == nil || !user.IsActive {
		s.logger.WarnContext(ctx, "login failed: unknown or inactive user", "email", email)
		return nil, apperrors.NewUnauthorizedError("Invalid email or password")
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		s.logger.WarnContext(ctx, "login failed: invalid password", "email", email)
		return nil, apperrors.NewUnauthorizedError("Invalid email or password")
	}

	session := auth.UserSession{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
	token, jti, err := s.tokens.GenerateToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.tokens.TTL())
	if err := s.sessions.Insert(ctx, &models.Session{
		ID:           utils.GenerateID(),
		UserID:       user.ID,
		TokenID:      jti,
		ExpiresAt:    expiresAt,
		LastActivity: now,
		CreatedAt:    now,
	}); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login", "user_id", user.ID, "error", err)
	}

	return &LoginResult{Token: token, User: session, ExpiresAt: expiresAt}, nil
}

// ValidateSession checks the token signature and that its session is live.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid or expired token")
	}
	session, err := s.sessions.GetByTokenID(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if session == nil {
		return nil, apperrors.NewUnauthorizedError("Session not found")
	}
	if session.IsRevoked {
		return nil, apperrors.NewUnauthorizedError("Session has been revoked")
	}
	return claims, nil
}

// TouchSession records activity on a session. Failures only get logged.
func (s *AuthService) TouchSession(ctx context.Context, tokenID string) {
	if err := s.sessions.Touch(ctx, tokenID, time.Now().UTC()); err != nil {
		s.logger.DebugContext(ctx, "session touch failed", "error", err)
	}
}

// Logout revokes the session behind the token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := auth.DecodeToken(token)
	if err != nil {
		return apperrors.NewValidationError("token", "Invalid token")
	}
	if err := s.sessions.Revoke(ctx, claims.ID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user logged out", "user_id", claims.Subject)
	return nil
}

// Me returns the current user.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NewNotFoundError("user", userID)
	}
	return user, nil
}

// Register creates a user. Only admins may register users; a nil actor is the
// bootstrap seeding the first admin.
func (s *AuthService) Register(ctx context.Context, actor *auth.UserSession, in RegisterInput) (*models.User, error) {
	if actor != nil && !actor.IsAdmin() {
		return nil, apperrors.NewPermissionError("register", "user")
	}

	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" {
		return nil, apperrors.NewValidationError("name", "is required")
	}
	if !auth.IsValidEmail(email) {
		return nil, apperrors.NewValidationError("email", "invalid email address")
	}
	if err := auth.ValidatePasswordStrength(in.Password); err != nil {
		return nil, apperrors.NewValidationError("password", err.Error())
	}
	role := in.Role
	if role == "" {
		role = constants.UserRoleMember
	}
	if role != constants.UserRoleAdmin && role != constants.UserRoleMember {
		return nil, apperrors.NewValidationError("role", "must be admin or member")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}
	user := &models.User{
		ID:           utils.GenerateID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}

	err = mutate(ctx, s.tx, s.dispatcher, func(ctx context.Context) ([]*events.Event, error) {
		exists, err := s.users.CheckUserExistsByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperrors.NewConflictError("user", "email already registered")
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		ev, err := newEvent(ctx, events.UserRegistered, actor, constants.SubjectUser, user.ID, userPayload(user))
		if err != nil {
			return nil, err
		}
		return []*events.Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// userPayload relies on PasswordHash being excluded from JSON.
func userPayload(u *models.User) map[string]any {
	return map[string]any{events.KeyUser: u}
}

// PurgeExpiredSessions deletes sessions that expired before now.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, time.Now().UTC())
}
