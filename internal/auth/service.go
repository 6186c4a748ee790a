package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/apperr"
	authrepo "github.com/ovaphlow/pitchfork/service-giftlist/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-giftlist/pkg/utilities"
)

// OtpRequestedMessage is returned for every OTP request, registered or not.
const OtpRequestedMessage = "Se l'email è registrata, riceverai un codice"

const (
	sessionTokenBytes = 32
	otpMin            = 100000
	otpMax            = 999999
)

var (
	ErrMissingToken      = apperr.New(apperr.KindAuthentication, "Token mancante")
	ErrInvalidSession    = apperr.New(apperr.KindAuthentication, "Sessione non valida o scaduta")
	ErrInvalidOtp        = apperr.New(apperr.KindAuthentication, "Codice non valido o scaduto")
	ErrForbidden         = apperr.New(apperr.KindAuthorization, "Accesso non autorizzato")
	ErrInvalidSetupKey   = apperr.New(apperr.KindAuthorization, "Chiave di setup non valida")
	ErrMissingCredential = apperr.Validation("Email e password sono richiesti")
	ErrMissingOtpFields  = apperr.Validation("Email e codice sono richiesti")
	ErrMissingEmail      = apperr.Validation("Email richiesta")
)

// Users is the slice of the user service the auth flows depend on.
type Users interface {
	Authenticate(ctx context.Context, email, password string) (*entity.AdminUser, error)
	FindByEmail(ctx context.Context, email string) (*entity.AdminUser, error)
	TouchLastLogin(ctx context.Context, id int64) error
	BootstrapAdmin(ctx context.Context, email, name, password string) (*entity.Summary, error)
}

type SessionStore interface {
	Create(ctx context.Context, userID int64, token string, ttl time.Duration) (time.Time, error)
	FindValid(ctx context.Context, token string) (*entity.Summary, error)
	Delete(ctx context.Context, token string) error
}

type OtpStore interface {
	Create(ctx context.Context, userID int64, code, token string, ttl time.Duration) (time.Time, error)
	Consume(ctx context.Context, userID int64, code string) (bool, error)
}

// OtpSender delivers an issued code to its owner.
type OtpSender interface {
	Send(ctx context.Context, otp OtpIssued) error
}

// Options carries the deployment settings of the auth flows.
type Options struct {
	SessionTTL time.Duration
	OtpTTL     time.Duration
	SetupKey   string
}

// AuthService implements password login, bearer sessions, one-time codes
// and first-admin setup.
type AuthService struct {
	users    Users
	sessions SessionStore
	otps     OtpStore
	sender   OtpSender
	opts     Options
	logger   *zap.SugaredLogger
}

func NewAuthService(users Users, sessions SessionStore, otps OtpStore, sender OtpSender, opts Options, logger *zap.SugaredLogger) *AuthService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.OtpTTL <= 0 {
		opts.OtpTTL = 15 * time.Minute
	}
	return &AuthService{users: users, sessions: sessions, otps: otps, sender: sender, opts: opts, logger: logger}
}

// Login checks the password and issues a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingCredential
	}
	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.issueSession(ctx, u)
}

func (s *AuthService) issueSession(ctx context.Context, u *entity.AdminUser) (*LoginResult, error) {
	token, err := utilities.NewOpaqueToken(sessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("session token: %w", err)
	}
	expiresAt, err := s.sessions.Create(ctx, u.ID, token, s.opts.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := s.users.TouchLastLogin(ctx, u.ID); err != nil {
		s.logger.Warnw("update last_login failed", "user_id", u.ID, "err", err)
	}
	return &LoginResult{Token: token, User: u.Summary(), ExpiresAt: expiresAt}, nil
}

// Logout revokes token. Unknown or empty tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// VerifySession resolves a bearer token to its account.
func (s *AuthService) VerifySession(ctx context.Context, token string) (*entity.Summary, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	u, err := s.sessions.FindValid(ctx, token)
	if err != nil {
		if authrepo.IsNotFound(err) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return u, nil
}

// RequestOtp issues a code when the account exists. The caller always
// answers with OtpRequestedMessage; failures are only logged.
func (s *AuthService) RequestOtp(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrMissingEmail
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			s.logger.Errorw("otp lookup failed", "err", err)
		}
		return nil
	}
	code, err := utilities.NewNumericCode(otpMin, otpMax)
	if err != nil {
		s.logger.Errorw("otp generation failed", "err", err)
		return nil
	}
	token := utilities.NewKSUID()
	expiresAt, err := s.otps.Create(ctx, u.ID, code, token, s.opts.OtpTTL)
	if err != nil {
		s.logger.Errorw("otp persist failed", "user_id", u.ID, "err", err)
		return nil
	}
	if err := s.sender.Send(ctx, OtpIssued{Email: u.Email, Code: code, Token: token, ExpiresAt: expiresAt}); err != nil {
		s.logger.Errorw("otp delivery failed", "user_id", u.ID, "err", err)
	}
	return nil
}

// VerifyOtp redeems a code and issues a session.
func (s *AuthService) VerifyOtp(ctx context.Context, email, code string) (*LoginResult, error) {
	code = strings.TrimSpace(code)
	if strings.TrimSpace(email) == "" || code == "" {
		return nil, ErrMissingOtpFields
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidOtp
		}
		return nil, err
	}
	ok, err := s.otps.Consume(ctx, u.ID, code)
	if err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	if !ok {
		return nil, ErrInvalidOtp
	}
	return s.issueSession(ctx, u)
}

// SetupInput is the body of the first-admin bootstrap.
type SetupInput struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	SetupKey string `json:"setupKey"`
}

// Setup creates the first admin. An unset setup key disables it.
func (s *AuthService) Setup(ctx context.Context, in SetupInput) (*entity.Summary, error) {
	key := s.opts.SetupKey
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(in.SetupKey)) != 1 {
		return nil, ErrInvalidSetupKey
	}
	u, err := s.users.BootstrapAdmin(ctx, in.Email, in.Name, in.Password)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("first admin created", "id", u.ID)
	return u, nil
}
