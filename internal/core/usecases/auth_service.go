package usecases

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/ports"
	"github.com/samirrijal/taxiportal/internal/pkg/logging"
	"github.com/samirrijal/taxiportal/internal/pkg/metrics"
)

// Token types carried in the "typ" claim.
const (
	TokenAccess    = "access"
	TokenRefresh   = "refresh"
	TokenTwoFactor = "2fa"
	TokenReset     = "reset"
)

const resetTokenTTL = time.Hour

// AuthConfig tunes token issuing and password rules.
type AuthConfig struct {
	Secret          []byte
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	TwoFactorTTL    time.Duration
	BcryptCost      int
	PasswordMinSize int

	// CodeGenerator returns verification codes; nil means six random digits.
	CodeGenerator func() (string, error)
}

type tokenClaims struct {
	Email string `json:"email"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

type pendingTwoFactor struct {
	Code  string `json:"code"`
	Email string `json:"email"`
}

// AuthService handles login, tokens, two-factor codes and profile changes.
type AuthService struct {
	users    ports.UserRepository
	cache    ports.CacheService
	notifier ports.NotificationService
	events   ports.EventPublisher
	clock    ports.Clock
	cfg      AuthConfig
}

// NewAuthService creates a new AuthService. events may be nil.
func NewAuthService(users ports.UserRepository, cache ports.CacheService, notifier ports.NotificationService, events ports.EventPublisher, clock ports.Clock, cfg AuthConfig) *AuthService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.PasswordMinSize == 0 {
		cfg.PasswordMinSize = 8
	}
	if cfg.CodeGenerator == nil {
		cfg.CodeGenerator = randomCode
	}
	return &AuthService{users: users, cache: cache, notifier: notifier, events: events, clock: clock, cfg: cfg}
}

// Login checks credentials. Users with two-factor enabled get a temporary
// token and an emailed code instead of a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.Logins.WithLabelValues("invalid").Inc()
			return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		metrics.Logins.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}

	if user.TwoFactorEnabled {
		temp, jti, err := s.issue(user, TokenTwoFactor, s.cfg.TwoFactorTTL)
		if err != nil {
			return nil, err
		}
		target := user.TwoFactorEmail
		if target == "" {
			target = user.Email
		}
		if err := s.sendCode(ctx, "2fa:login:"+jti, target); err != nil {
			return nil, err
		}
		metrics.Logins.WithLabelValues("two_factor").Inc()
		return &domain.LoginResult{RequiresTwoFactor: true, TempToken: temp}, nil
	}

	return s.completeLogin(ctx, user)
}

// VerifyTwoFactor exchanges a temporary token and emailed code for tokens.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, tempToken, code string) (*domain.LoginResult, error) {
	claims, err := s.parse(tempToken, TokenTwoFactor)
	if err != nil {
		return nil, err
	}
	key := "2fa:login:" + claims.ID
	if _, err := s.checkCode(ctx, key, code); err != nil {
		metrics.Logins.WithLabelValues("invalid_code").Inc()
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return s.completeLogin(ctx, user)
}

// Refresh issues a new token pair from a refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.AuthTokens, error) {
	claims, err := s.parse(refreshToken, TokenRefresh)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return s.tokens(user)
}

// Authenticate validates an access token and returns the caller's session.
func (s *AuthService) Authenticate(accessToken string) (ports.Session, error) {
	claims, err := s.parse(accessToken, TokenAccess)
	if err != nil {
		return ports.Session{}, err
	}
	return ports.Session{UserID: claims.Subject, Email: claims.Email}, nil
}

// Me returns the account of the session.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ForgotPassword emails a reset token. It reports success for unknown
// addresses so accounts cannot be enumerated.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}
	token, _, err := s.issue(user, TokenReset, resetTokenTTL)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Para restablecer tu contraseña usa este código en la aplicación:\n\n%s\n\nCaduca en 1 hora.", token)
	if err := s.notifier.SendEmail(ctx, user.Email, "Restablecer contraseña", body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ResetPassword sets a new password using a reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.parse(token, TokenReset)
	if err != nil {
		return err
	}
	if err := s.checkPassword(newPassword); err != nil {
		return err
	}
	if err := s.setPassword(ctx, claims.Subject, newPassword); err != nil {
		return err
	}
	s.record(ctx, claims.Subject, domain.ActivityPasswordChanged, "Contraseña restablecida")
	return nil
}

// RequestEnableTwoFactor sends a confirmation code to email, or to the
// account address when email is empty.
func (s *AuthService) RequestEnableTwoFactor(ctx context.Context, userID, email string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return fmt.Errorf("%w: two-factor authentication is already enabled", domain.ErrConflict)
	}
	target := strings.TrimSpace(email)
	if target == "" {
		target = user.Email
	}
	if !strings.Contains(target, "@") {
		return domain.NewValidationError(-1, "email", "invalid email address")
	}
	return s.sendCode(ctx, "2fa:enable:"+userID, target)
}

// ConfirmEnableTwoFactor turns two-factor on once the emailed code matches.
func (s *AuthService) ConfirmEnableTwoFactor(ctx context.Context, userID, code string) error {
	pending, err := s.checkCode(ctx, "2fa:enable:"+userID, code)
	if err != nil {
		return err
	}
	if err := s.users.SetTwoFactor(ctx, userID, true, pending.Email); err != nil {
		return fmt.Errorf("enable two-factor: %w", err)
	}
	s.record(ctx, userID, domain.ActivityTwoFactorEnabled, "Verificación en dos pasos activada")
	return nil
}

// DisableTwoFactor turns two-factor off after re-checking the password.
func (s *AuthService) DisableTwoFactor(ctx context.Context, userID, password string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return fmt.Errorf("%w: incorrect password", domain.ErrUnauthorized)
	}
	if err := s.users.SetTwoFactor(ctx, userID, false, ""); err != nil {
		return fmt.Errorf("disable two-factor: %w", err)
	}
	s.record(ctx, userID, domain.ActivityTwoFactorDisabled, "Verificación en dos pasos desactivada")
	return nil
}

// UpdateProfile changes the display name and phone.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, name, phone string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError(-1, "name", "name is required")
	}
	if err := s.users.UpdateProfile(ctx, userID, name, strings.TrimSpace(phone)); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.record(ctx, userID, domain.ActivityProfileUpdated, "Perfil actualizado")
	return s.users.GetByID(ctx, userID)
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(current)) != nil {
		return fmt.Errorf("%w: current password is incorrect", domain.ErrUnauthorized)
	}
	if err := s.checkPassword(next); err != nil {
		return err
	}
	if current == next {
		return domain.NewValidationError(-1, "new_password", "new password must differ from the current one")
	}
	if err := s.setPassword(ctx, userID, next); err != nil {
		return err
	}
	s.record(ctx, userID, domain.ActivityPasswordChanged, "Contraseña cambiada")
	return nil
}

// HashPassword hashes a password with the configured cost.
func (s *AuthService) HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
}

func (s *AuthService) completeLogin(ctx context.Context, user *domain.User) (*domain.LoginResult, error) {
	tokens, err := s.tokens(user)
	if err != nil {
		return nil, err
	}
	metrics.Logins.WithLabelValues("ok").Inc()
	s.record(ctx, user.ID, domain.ActivityLogin, "Inicio de sesión")
	return &domain.LoginResult{Tokens: tokens, User: user}, nil
}

func (s *AuthService) tokens(user *domain.User) (*domain.AuthTokens, error) {
	access, _, err := s.issue(user, TokenAccess, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.issue(user, TokenRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &domain.AuthTokens{
		Token:        access,
		RefreshToken: refresh,
		ExpiresAt:    s.clock.Now().Add(s.cfg.AccessTTL),
	}, nil
}

func (s *AuthService) issue(user *domain.User, typ string, ttl time.Duration) (string, string, error) {
	now := s.clock.Now()
	jti := uuid.NewString()
	claims := tokenClaims{
		Email: user.Email,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, jti, nil
}

func (s *AuthService) parse(token, typ string) (*tokenClaims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: expected %s token", domain.ErrUnauthorized, typ)
	}
	return &claims, nil
}

func (s *AuthService) sendCode(ctx context.Context, key, email string) error {
	if s.cache == nil {
		return errors.New("two-factor codes need a cache")
	}
	code, err := s.cfg.CodeGenerator()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	data, _ := json.Marshal(pendingTwoFactor{Code: code, Email: email})
	if err := s.cache.Set(ctx, key, data, int(s.cfg.TwoFactorTTL.Seconds())); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	body := fmt.Sprintf("Tu código de verificación es: %s\n\nCaduca en %d minutos.", code, int(s.cfg.TwoFactorTTL.Minutes()))
	if err := s.notifier.SendEmail(ctx, email, "Código de verificación", body); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	return nil
}

func (s *AuthService) checkCode(ctx context.Context, key, code string) (*pendingTwoFactor, error) {
	if s.cache == nil {
		return nil, errors.New("two-factor codes need a cache")
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: code expired or not requested", domain.ErrUnauthorized)
	}
	var p pendingTwoFactor
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode pending code: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(p.Code), []byte(strings.TrimSpace(code))) != 1 {
		return nil, fmt.Errorf("%w: invalid verification code", domain.ErrUnauthorized)
	}
	_ = s.cache.Delete(ctx, key)
	return &p, nil
}

func (s *AuthService) checkPassword(pw string) error {
	if len(pw) < s.cfg.PasswordMinSize {
		return domain.NewValidationError(-1, "new_password",
			fmt.Sprintf("password must be at least %d characters", s.cfg.PasswordMinSize))
	}
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, userID, pw string) error {
	hash, err := s.HashPassword(pw)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// record publishes an activity; failures are logged.
func (s *AuthService) record(ctx context.Context, userID, typ, desc string) {
	if s.events == nil {
		return
	}
	a := &domain.Activity{UserID: userID, Type: typ, Description: desc, CreatedAt: s.clock.Now()}
	if err := s.events.PublishActivity(ctx, a); err != nil {
		logging.FromContext(ctx).Warn("publish activity", "type", typ, "error", err)
	}
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
