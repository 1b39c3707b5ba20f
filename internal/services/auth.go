package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"telemed-server/internal/apperrors"
	"telemed-server/internal/config"
	"telemed-server/internal/models"
	"telemed-server/internal/store"
	"telemed-server/internal/utils"
)

// RegisterInput is a new account. An empty Role registers a patient.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      string
}

// Session is the token pair handed out on login and refresh.
type Session struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

type AuthService struct {
	store store.Store
	cfg   *config.Config
	log   *zap.Logger
	now   func() time.Time
}

func NewAuthService(st store.Store, cfg *config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{store: st, cfg: cfg, log: logger, now: time.Now}
}

// Register creates the account. Doctors wait in pending until an admin approves them.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	role := models.RolePatient
	if in.Role != "" {
		parsed, ok := models.ParseRole(in.Role)
		if !ok {
			return nil, apperrors.Validation("Unknown role %q", in.Role)
		}
		role = parsed
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := s.store.FindUserByEmail(ctx, email); err == nil {
		return nil, apperrors.Conflict("User with this email already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Internal(err, "Failed to check email")
	}

	status := models.UserStatusActive
	if role == models.RoleDoctor {
		status = models.UserStatusPending
	}
	user := &models.User{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     email,
		Role:      role,
		Status:    status,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, apperrors.Internal(err, "Failed to hash password")
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.Conflict("User with this email already exists")
		}
		return nil, apperrors.Internal(err, "Failed to create user")
	}

	s.log.Info("AuthService.Register registered user",
		zap.String("userId", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("status", string(user.Status)),
	)
	return user, nil
}

// Login checks credentials and starts a session. Blocked accounts are refused.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.Unauthorized("Invalid email or password")
		}
		return nil, apperrors.Internal(err, "Failed to load user")
	}
	if !user.CheckPassword(password) {
		return nil, apperrors.Unauthorized("Invalid email or password")
	}
	if user.Status == models.UserStatusBlocked {
		return nil, apperrors.Forbidden("Your account has been blocked. Please contact support.")
	}
	return s.issue(ctx, user)
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*Session, error) {
	accessToken, refreshToken, err := utils.GenerateTokens(user, s.cfg)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to generate tokens")
	}
	stored := &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: s.now().Add(time.Duration(s.cfg.JWTRefreshExpirationHours) * time.Hour),
	}
	if err := s.store.SaveRefreshToken(ctx, stored); err != nil {
		return nil, apperrors.Internal(err, "Failed to store refresh token")
	}
	return &Session{AccessToken: accessToken, RefreshToken: refreshToken, User: user.Sanitize()}, nil
}

// Refresh rotates the refresh token: the presented one is revoked and a new pair is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := utils.ValidateToken(refreshToken, s.cfg.JWTRefreshSecret)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid refresh token")
	}
	stored, err := s.store.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.Unauthorized("Refresh token not found, expired, or revoked")
		}
		return nil, apperrors.Internal(err, "Failed to check refresh token")
	}
	if stored.UserID != claims.UserID || !stored.Usable(s.now()) {
		return nil, apperrors.Unauthorized("Refresh token not found, expired, or revoked")
	}

	user, err := s.store.FindUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, lookupErr(err, "User not found")
	}
	if user.Status == models.UserStatusBlocked {
		return nil, apperrors.Forbidden("Your account has been blocked. Please contact support.")
	}

	stored.IsRevoked = true
	if err := s.store.SaveRefreshToken(ctx, stored); err != nil {
		return nil, apperrors.Internal(err, "Failed to revoke refresh token")
	}
	return s.issue(ctx, user)
}

// Logout revokes the refresh token. Unknown or already revoked tokens are fine.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	stored, err := s.store.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return apperrors.Internal(err, "Failed to find refresh token")
	}
	if stored.IsRevoked {
		return nil
	}
	stored.IsRevoked = true
	stored.ExpiresAt = s.now()
	if err := s.store.SaveRefreshToken(ctx, stored); err != nil {
		return apperrors.Internal(err, "Failed to revoke refresh token")
	}
	return nil
}
