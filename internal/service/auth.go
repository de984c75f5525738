package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Shivanand-hulikatti/event-planner/internal/apperror"
	"github.com/Shivanand-hulikatti/event-planner/internal/auth"
	"github.com/Shivanand-hulikatti/event-planner/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// UserStore is the identity store used by AuthService.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error)
}

var (
	errInvalidCredentials = apperror.New(apperror.Unauthorized, "Invalid email or password")
	errDeactivated        = apperror.New(apperror.Unauthorized, "Account has been deactivated")
)

// Session is a user together with a freshly issued token.
type Session struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// AuthService handles registration, login and token verification.
type AuthService struct {
	users    UserStore
	tokens   *auth.JWTManager
	hasher   *auth.PasswordHasher
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewAuthService(users UserStore, tokens *auth.JWTManager, hasher *auth.PasswordHasher, logger zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		validate: newValidator(),
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// Register creates an active account and signs it in.
func (s *AuthService) Register(ctx context.Context, req model.RegisterUserRequest) (*Session, error) {
	req.Email = model.NormalizeEmail(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.City = strings.TrimSpace(req.City)
	if err := validate(s.validate, req); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperror.New(apperror.Conflict, "Email already registered")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName, _, _ = strings.Cut(req.Email, "@")
	}

	user := &model.User{
		Email:        req.Email,
		PasswordHash: hash,
		DisplayName:  displayName,
		City:         req.City,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return &Session{User: user, Token: token}, nil
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password yield the same error.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*Session, error) {
	req.Email = model.NormalizeEmail(req.Email)
	if err := validate(s.validate, req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errDeactivated
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Debug().Str("user_id", user.ID).Msg("login rejected")
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token}, nil
}

// Authenticate verifies token and re-fetches its user, failing if the account
// no longer exists or has been deactivated.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Validate(token)
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return nil, apperror.New(apperror.Unauthorized, "Access denied. No token provided.")
	case errors.Is(err, auth.ErrExpiredToken):
		return nil, apperror.New(apperror.Unauthorized, "Token expired. Please log in again.")
	case err != nil:
		return nil, apperror.New(apperror.Unauthorized, "Invalid token.")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.New(apperror.Unauthorized, "User not found. Please log in again.")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperror.New(apperror.Unauthorized, "Account has been deactivated.")
	}
	return user, nil
}

// Me returns the current profile of userID.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile changes displayName and/or city.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req model.UpdateProfileRequest) (*model.User, error) {
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		req.DisplayName = &name
	}
	if req.City != nil {
		city := strings.TrimSpace(*req.City)
		req.City = &city
	}
	if err := validate(s.validate, req); err != nil {
		return nil, err
	}
	if req.DisplayName != nil && *req.DisplayName == "" {
		return nil, fieldError("displayName", "displayName cannot be empty")
	}

	user, err := s.users.UpdateProfile(ctx, userID, model.ProfileUpdate{DisplayName: req.DisplayName, City: req.City})
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("user_id", userID).Msg("profile updated")
	return user, nil
}
