// Package auth implements password sign-up and login, bearer sessions and
// account lockout.
package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"tenantkit/internal/types"
)

// UserRepo is the user data access the Service needs.
type UserRepo interface {
	Create(ctx context.Context, u *types.User) error
	GetByID(ctx context.Context, id string) (*types.User, error)
	GetByEmail(ctx context.Context, email string) (*types.User, error)
	RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (*time.Time, error)
	ResetLoginFailures(ctx context.Context, id string) error
	UpdatePreferences(ctx context.Context, id string, prefs types.UserPreferences) error
}

// SessionRepo is the session data access the Service needs.
type SessionRepo interface {
	Create(ctx context.Context, s *types.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*types.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TxManager runs fn with transaction-scoped repositories.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, users UserRepo, sessions SessionRepo) error) error
}

// Config holds the credential policy.
type Config struct {
	SessionTTL      time.Duration
	MaxFailedLogins int
	LockoutDuration time.Duration
}

// DefaultConfig locks an account for 15 minutes after 5 failed logins and
// issues 30-day sessions.
func DefaultConfig() Config {
	return Config{
		SessionTTL:      30 * 24 * time.Hour,
		MaxFailedLogins: 5,
		LockoutDuration: 15 * time.Minute,
	}
}

// IDGenerator mints primary keys for new rows.
type IDGenerator func(prefix string) string

// ServiceDeps holds the Service dependencies. Hasher, Tokens, NewID, Clock and
// Logger default when nil.
type ServiceDeps struct {
	Users    UserRepo
	Sessions SessionRepo
	Tx       TxManager
	Hasher   PasswordHasher
	Tokens   TokenGenerator
	NewID    IDGenerator
	Clock    types.Clock
	Logger   *slog.Logger
}

// Service implements sign-up, login, logout and bearer authentication.
type Service struct {
	users    UserRepo
	sessions SessionRepo
	tx       TxManager
	hasher   PasswordHasher
	tokens   TokenGenerator
	newID    IDGenerator
	clock    types.Clock
	logger   *slog.Logger
	cfg      Config
	validate *validator.Validate
}

func NewService(deps ServiceDeps, cfg Config) *Service {
	s := &Service{
		users:    deps.Users,
		sessions: deps.Sessions,
		tx:       deps.Tx,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		newID:    deps.NewID,
		clock:    deps.Clock,
		logger:   deps.Logger,
		cfg:      cfg,
		validate: validator.New(),
	}
	if s.hasher == nil {
		s.hasher = BcryptHasher{}
	}
	if s.tokens == nil {
		s.tokens = CryptoTokenGenerator{}
	}
	if s.clock == nil {
		s.clock = types.RealClock{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.newID == nil {
		s.newID = func(prefix string) string { return prefix + uuid.NewString() }
	}
	if s.cfg.SessionTTL <= 0 {
		s.cfg.SessionTTL = DefaultConfig().SessionTTL
	}
	if s.cfg.MaxFailedLogins <= 0 {
		s.cfg.MaxFailedLogins = DefaultConfig().MaxFailedLogins
	}
	if s.cfg.LockoutDuration <= 0 {
		s.cfg.LockoutDuration = DefaultConfig().LockoutDuration
	}
	return s
}

// SignupInput is the data needed to create an account.
type SignupInput struct {
	Email    string
	Name     string
	Password string
	Language string
}

// IssuedSession pairs a stored session with the raw bearer token handed to
// the client. The token is not recoverable later.
type IssuedSession struct {
	Session *types.Session
	Token   types.SecretString
}

// Signup creates the user and its first session in one transaction.
func (s *Service) Signup(ctx context.Context, in SignupInput, client types.ClientInfo) (*types.User, *IssuedSession, error) {
	email := types.CanonicalEmail(in.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidEmail, "a valid email is required", nil,
			map[string]any{"field": "email"})
	}
	name := strings.TrimSpace(in.Name)
	if len(name) > types.MaxNameLength {
		return nil, nil, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField, "name is too long", nil,
			map[string]any{"field": "name"})
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, nil, err
	}

	hash, err := s.hasher.GenerateFromPassword(in.Password)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}

	now := s.clock.Now()
	user := &types.User{
		ID:           s.newID("user_"),
		Email:        email,
		Name:         name,
		PasswordHash: &hash,
		Preferences:  types.UserPreferences{Language: in.Language, Theme: types.ThemeSystem},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var issued *IssuedSession
	err = s.tx.RunInTx(ctx, func(ctx context.Context, users UserRepo, sessions SessionRepo) error {
		if err := users.Create(ctx, user); err != nil {
			return err
		}
		var err error
		issued, err = s.issue(ctx, sessions, user.ID, client)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID)
	return user, issued, nil
}

// Login verifies credentials and issues a session. Unknown emails and wrong
// passwords return the same error. After MaxFailedLogins consecutive failures
// the account is locked for LockoutDuration.
func (s *Service) Login(ctx context.Context, email, password string, client types.ClientInfo) (*types.User, *IssuedSession, error) {
	invalid := types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeNotFoundUser {
			return nil, nil, invalid
		}
		return nil, nil, err
	}

	now := s.clock.Now()
	if user.IsLocked(now) {
		return nil, nil, lockedErr(*user.LockedUntil)
	}
	if user.PasswordHash == nil {
		return nil, nil, types.NewAppError(types.ErrCodeAuthPasswordNotSet, "this account has no password; use single sign-on", nil)
	}

	if err := s.hasher.CompareHashAndPassword(*user.PasswordHash, password); err != nil {
		lockedUntil, recErr := s.users.RecordLoginFailure(ctx, user.ID, s.cfg.MaxFailedLogins, now.Add(s.cfg.LockoutDuration))
		if recErr != nil {
			s.logger.WarnContext(ctx, "failed to record login failure", "user_id", user.ID, "error", recErr)
			return nil, nil, invalid
		}
		if lockedUntil != nil && now.Before(*lockedUntil) {
			s.logger.WarnContext(ctx, "account locked after repeated login failures", "user_id", user.ID)
			return nil, nil, lockedErr(*lockedUntil)
		}
		return nil, nil, invalid
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.users.ResetLoginFailures(ctx, user.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to reset login failures", "user_id", user.ID, "error", err)
		}
	}

	issued, err := s.issue(ctx, s.sessions, user.ID, client)
	if err != nil {
		return nil, nil, err
	}

	if n, err := s.sessions.DeleteExpired(ctx, now); err != nil {
		s.logger.WarnContext(ctx, "failed to clean expired sessions", "error", err)
	} else if n > 0 {
		s.logger.DebugContext(ctx, "cleaned expired sessions", "count", n)
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return user, issued, nil
}

// Logout deletes the session. Logging out twice is not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// UpdatePreferences replaces the user's language and theme and returns the
// reloaded user. An empty theme keeps the current one.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, prefs types.UserPreferences) (*types.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if prefs.Theme == "" {
		prefs.Theme = user.Preferences.Theme
	}
	switch prefs.Theme {
	case types.ThemeLight, types.ThemeDark, types.ThemeSystem:
	default:
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationBody, "unsupported theme", nil,
			map[string]any{"field": "theme"})
	}
	if prefs.Language == "" {
		prefs.Language = user.Preferences.Language
	}

	if err := s.users.UpdatePreferences(ctx, userID, prefs); err != nil {
		return nil, err
	}
	user.Preferences = prefs
	return user, nil
}

// Authenticate resolves a raw bearer token to its user and session.
func (s *Service) Authenticate(ctx context.Context, token string) (*types.User, *types.Session, error) {
	if token == "" {
		return nil, nil, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil)
	}
	sess, err := s.sessions.GetByTokenHash(ctx, HashToken(token), s.clock.Now())
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeNotFoundSession {
			return nil, nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "session is invalid or expired", nil)
		}
		return nil, nil, err
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeNotFoundUser {
			return nil, nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "session is invalid or expired", nil)
		}
		return nil, nil, err
	}
	return user, sess, nil
}

func (s *Service) issue(ctx context.Context, sessions SessionRepo, userID string, client types.ClientInfo) (*IssuedSession, error) {
	token, err := s.tokens.GenerateToken()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate session token", err)
	}
	now := s.clock.Now()
	sess := &types.Session{
		ID:        s.newID("sess_"),
		UserID:    userID,
		TokenHash: HashToken(token),
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
		CreatedAt: now,
	}
	if err := sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &IssuedSession{Session: sess, Token: types.SecretString(token)}, nil
}

func checkPassword(password string) error {
	if len(password) < types.MinPasswordLength || len(password) > types.MaxPasswordLength {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationPassword,
			"password must be between 8 and 72 characters", nil,
			map[string]any{"field": "password"})
	}
	return nil
}

func lockedErr(until time.Time) error {
	return types.NewAppErrorWithDetails(types.ErrCodeAuthLocked, "too many failed login attempts; try again later", nil,
		map[string]any{"locked_until": until.UTC().Format(time.RFC3339)})
}
