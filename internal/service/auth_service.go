package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/course-management-api/internal/models"
	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
	"github.com/noah-isme/course-management-api/pkg/validation"
)

const adminUserID = "admin-1"

// AuthConfig defines configuration for the demo login.
type AuthConfig struct {
	AdminUsername string
	AdminPassword string
	TokenSecret   string
	TokenExpiry   time.Duration
	Issuer        string
}

// AuthService issues and verifies tokens for the single demo administrator.
type AuthService struct {
	validator    *validation.Validator
	activity     activityRecorder
	logger       *zap.Logger
	config       AuthConfig
	passwordHash []byte
}

// NewAuthService hashes the configured admin password once so logins compare with bcrypt.
func NewAuthService(config AuthConfig, validate *validation.Validator, activity activityRecorder, logger *zap.Logger) (*AuthService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.Default()
	}
	if activity == nil {
		activity = noopRecorder{}
	}
	if config.TokenExpiry <= 0 {
		config.TokenExpiry = 24 * time.Hour
	}
	if config.TokenSecret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(config.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &AuthService{validator: validate, activity: activity, logger: logger, config: config, passwordHash: hash}, nil
}

// Login checks the demo credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(req.Username)
	if username != s.config.AdminUsername {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)); err != nil {
		s.logger.Info("login rejected", zap.String("username", username), zap.String("ip", req.IP))
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "Invalid credentials")
	}

	user := models.UserInfo{ID: adminUserID, Username: username, Role: models.RoleAdmin}
	token, err := s.generateToken(user)
	if err != nil {
		return nil, internalError(err, "failed to create access token")
	}

	s.activity.Record(ctx, models.Activity{
		Action:     models.ActionUserLogin,
		EntityType: models.EntityUser,
		EntityID:   user.ID,
		Message:    fmt.Sprintf("User %q logged in.", user.Username),
	})
	return &models.LoginResponse{
		Message:   "Login successful",
		Token:     token,
		ExpiresIn: int64(s.config.TokenExpiry.Seconds()),
		User:      user,
	}, nil
}

// Logout is a no-op for stateless tokens; it only logs the event.
func (s *AuthService) Logout(ctx context.Context, userID string) {
	s.logger.Info("logout", zap.String("user_id", userID))
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) generateToken(user models.UserInfo) (string, error) {
	issuedAt := time.Now().UTC()
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.TokenSecret))
}
