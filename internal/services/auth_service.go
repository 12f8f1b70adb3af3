package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"eurodoor_admin/internal/apperr"
	"eurodoor_admin/internal/models"
	"eurodoor_admin/internal/redis"
	"eurodoor_admin/pkg/backend"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgNetworkError       = "Network error. Please try again later."
	msgLoginRequired      = "Please log in to continue"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// fieldMessages maps "Field.tag" validation failures to the login form's messages.
var fieldMessages = map[string]string{
	"Email.required":    "Email is required",
	"Email.adminemail":  "Please enter a valid email address",
	"Password.required": "Password is required",
	"Password.min":      "Password must be at least 4 characters long",
	"Password.max":      "Password cannot exceed 6 characters",
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,adminemail"`
	Password string `json:"password" validate:"required,min=4,max=6"`
}

// SessionStore persists admin sessions.
type SessionStore interface {
	SetSession(ctx context.Context, session *models.AdminSession, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*models.AdminSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Authenticator checks admin credentials against the backend.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*backend.LoginResult, error)
}

// LoginRecorder persists login attempts.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, audit *models.LoginAudit) error
}

type AuthService interface {
	Login(ctx context.Context, in LoginInput, clientIP string) (*models.AdminSession, error)
	Logout(ctx context.Context, sessionID string) error
	Authenticate(ctx context.Context, sessionID string) (*models.AdminSession, error)
}

type authService struct {
	auth     Authenticator
	sessions SessionStore
	recorder LoginRecorder
	ttl      time.Duration
	validate *validator.Validate
	log      *zap.Logger
}

func NewAuthService(auth Authenticator, sessions SessionStore, recorder LoginRecorder, ttl time.Duration, log *zap.Logger) AuthService {
	v := validator.New()
	_ = v.RegisterValidation("adminemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return &authService{
		auth:     auth,
		sessions: sessions,
		recorder: recorder,
		ttl:      ttl,
		validate: v,
		log:      log,
	}
}

// ValidateLogin returns the first failing rule, email before password.
func (s *authService) ValidateLogin(in LoginInput) error {
	// blank input counts as missing
	if strings.TrimSpace(in.Email) == "" {
		in.Email = ""
	}
	if strings.TrimSpace(in.Password) == "" {
		in.Password = ""
	}

	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Wrap(fmt.Errorf("failed to validate login: %w", err))
	}
	fe := verrs[0]
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return apperr.ValidationErr(msg)
	}
	return apperr.ValidationErr(fmt.Sprintf("%s is invalid", fe.Field()))
}

func (s *authService) Login(ctx context.Context, in LoginInput, clientIP string) (*models.AdminSession, error) {
	if err := s.ValidateLogin(in); err != nil {
		return nil, err
	}

	audit := &models.LoginAudit{Email: in.Email, ClientIP: clientIP}

	result, err := s.auth.Login(ctx, in.Email, in.Password)
	if err != nil {
		audit.Reason = msgNetworkError
		s.record(ctx, audit)
		s.log.Error("Login request failed", zap.String("email", in.Email), zap.Error(err))
		return nil, apperr.FetchErr(msgNetworkError, err)
	}
	if !result.OK {
		msg := result.Message
		if msg == "" {
			msg = msgInvalidCredentials
		}
		audit.Reason = msg
		s.record(ctx, audit)
		s.log.Info("Login rejected", zap.String("email", in.Email))
		return nil, apperr.UnauthorizedErr(msg)
	}

	now := time.Now().UTC()
	session := &models.AdminSession{
		ID:        uuid.NewString(),
		Email:     in.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.SetSession(ctx, session, s.ttl); err != nil {
		return nil, apperr.Wrap(fmt.Errorf("failed to store session: %w", err))
	}

	audit.Success = true
	s.record(ctx, audit)
	s.log.Info("Admin logged in", zap.String("email", in.Email))
	return session, nil
}

func (s *authService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return apperr.Wrap(fmt.Errorf("failed to delete session: %w", err))
	}
	return nil
}

// Authenticate resolves a session id to a live session.
func (s *authService) Authenticate(ctx context.Context, sessionID string) (*models.AdminSession, error) {
	if sessionID == "" {
		return nil, apperr.UnauthorizedErr(msgLoginRequired)
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, apperr.UnauthorizedErr(msgLoginRequired)
		}
		return nil, apperr.Wrap(fmt.Errorf("failed to load session: %w", err))
	}
	if session.Expired(time.Now()) {
		return nil, apperr.UnauthorizedErr(msgLoginRequired)
	}
	return session, nil
}

func (s *authService) record(ctx context.Context, audit *models.LoginAudit) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordLogin(context.WithoutCancel(ctx), audit); err != nil {
		s.log.Warn("Failed to record login audit", zap.String("email", audit.Email), zap.Error(err))
	}
}
