package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"krishimitra/api/internal/ids"
	"krishimitra/api/internal/models"
	"krishimitra/api/internal/repository"
	"krishimitra/api/internal/security"
	"krishimitra/api/internal/validation"
)

var (
	ErrUserConflict       = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	ExistsByUsernameOrMobile(ctx context.Context, username string, mobile string) (bool, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) bool
}

type TokenIssuer interface {
	Issue(userID string) (security.Token, error)
	Verify(token string) (*security.AccessClaims, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.AuthEvent) error
}

type Denylist interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Option func(*AuthService)

func WithEvents(p EventPublisher) Option {
	return func(s *AuthService) { s.events = p }
}

// WithDenylist makes logout revoke the presented token and makes
// Authenticate reject revoked ones.
func WithDenylist(d Denylist) Option {
	return func(s *AuthService) { s.denylist = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

type AuthService struct {
	users    UserStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	events   EventPublisher
	denylist Denylist
	now      func() time.Time
	log      zerolog.Logger

	decoyOnce sync.Once
	decoyHash string
}

func NewAuthService(users UserStore, hasher PasswordHasher, tokens TokenIssuer, log zerolog.Logger, opts ...Option) *AuthService {
	s := &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		now:    time.Now,
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestMeta describes the caller for audit records only.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
}

type AuthResult struct {
	User  models.User
	Token security.Token
}

// Identity is a caller resolved from a bearer token.
type Identity struct {
	User   models.User
	Claims *security.AccessClaims
}

func (s *AuthService) Signup(ctx context.Context, input validation.SignupInput, meta RequestMeta) (AuthResult, error) {
	if err := validation.ValidateSignup(input); err != nil {
		return AuthResult{}, err
	}

	exists, err := s.users.ExistsByUsernameOrMobile(ctx, input.Username, input.Mobile)
	if err != nil {
		return AuthResult{}, err
	}
	if exists {
		return AuthResult{}, ErrUserConflict
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, models.User{
		ID:           ids.New(),
		Username:     input.Username,
		Mobile:       input.Mobile,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserConflict) {
			return AuthResult{}, ErrUserConflict
		}
		return AuthResult{}, err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return AuthResult{}, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	s.publish(ctx, models.AuthEventSignup, user.ID, user.Username, meta)

	return AuthResult{User: user, Token: token}, nil
}

// Login answers an unknown username and a wrong password identically,
// including the time spent hashing.
func (s *AuthService) Login(ctx context.Context, input validation.LoginInput, meta RequestMeta) (AuthResult, error) {
	if err := validation.ValidateLogin(input); err != nil {
		return AuthResult{}, err
	}

	user, err := s.users.FindByUsername(ctx, input.Username)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, err
		}
		s.hasher.Verify(input.Password, s.decoy())
		s.publish(ctx, models.AuthEventLoginFailure, "", input.Username, meta)
		return AuthResult{}, ErrInvalidCredentials
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		s.publish(ctx, models.AuthEventLoginFailure, user.ID, user.Username, meta)
		return AuthResult{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("update last login failed")
	} else {
		user.LastLoginAt = &now
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return AuthResult{}, err
	}

	s.publish(ctx, models.AuthEventLoginSuccess, user.ID, user.Username, meta)
	return AuthResult{User: user, Token: token}, nil
}

// Authenticate resolves a bearer token to its user. Every token problem,
// including a user that no longer exists, is ErrUnauthorized.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Identity, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	if s.denylist != nil && claims.ID != "" {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Identity{}, err
		}
		if revoked {
			return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, security.ErrTokenRevoked)
		}
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return Identity{}, err
	}

	return Identity{User: user, Claims: claims}, nil
}

// Refresh issues a new token for the same user. Earlier tokens stay valid
// until their own expiry.
func (s *AuthService) Refresh(ctx context.Context, id Identity, meta RequestMeta) (security.Token, error) {
	token, err := s.tokens.Issue(id.User.ID)
	if err != nil {
		return security.Token{}, err
	}
	s.publish(ctx, models.AuthEventTokenRefresh, id.User.ID, id.User.Username, meta)
	return token, nil
}

// Logout is an acknowledgement unless a denylist is configured, in which
// case the presented token is revoked until it expires.
func (s *AuthService) Logout(ctx context.Context, id Identity, meta RequestMeta) error {
	if s.denylist != nil && id.Claims != nil && id.Claims.ID != "" && id.Claims.ExpiresAt != nil {
		if err := s.denylist.Revoke(ctx, id.Claims.ID, id.Claims.ExpiresAt.Time); err != nil {
			return err
		}
	}
	s.publish(ctx, models.AuthEventLogout, id.User.ID, id.User.Username, meta)
	return nil
}

func (s *AuthService) publish(ctx context.Context, typ models.AuthEventType, userID, username string, meta RequestMeta) {
	if s.events == nil {
		return
	}
	event := models.AuthEvent{
		ID:         ids.New(),
		Type:       typ,
		UserID:     userID,
		Username:   truncate(username, validation.UsernameMaxLength),
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", string(typ)).Msg("publish auth event failed")
	}
}

// truncate cuts s to at most n runes. Failed logins carry whatever
// username the caller typed.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (s *AuthService) decoy() string {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash(ids.New())
		if err != nil {
			s.log.Error().Err(err).Msg("build decoy hash failed")
			return
		}
		s.decoyHash = hash
	})
	return s.decoyHash
}
