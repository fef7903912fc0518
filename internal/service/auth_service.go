package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"product_catalog/internal/apperr"
	"product_catalog/internal/model"
	"product_catalog/internal/repository"
	"product_catalog/internal/utils"

	"github.com/google/uuid"
)

var (
	ErrEmailTaken         = apperr.New(apperr.KindConflict, "email is already in use")
	ErrInvalidCredentials = apperr.New(apperr.KindAuthentication, "invalid email or password")
	ErrIncorrectPassword  = apperr.New(apperr.KindValidation, "current password is incorrect")
	ErrUserNotFound       = apperr.New(apperr.KindNotFound, "user not found")

	ErrNoToken           = apperr.New(apperr.KindAuthentication, "authentication required")
	ErrTokenMalformed    = apperr.New(apperr.KindAuthentication, "invalid token")
	ErrTokenExpired      = apperr.New(apperr.KindAuthentication, "token has expired")
	ErrTokenRevoked      = apperr.New(apperr.KindAuthentication, "token has been revoked")
	ErrPrincipalNotFound = apperr.New(apperr.KindAuthentication, "user no longer exists")
)

// AuthService provides authentication related services
type AuthService interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.User, string, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	// Authenticate resolves a token to its principal. It is read-only.
	Authenticate(ctx context.Context, token string) (model.Principal, error)
	LogoutAllDevices(ctx context.Context, principal model.Principal) error
	GetProfile(ctx context.Context, principal model.Principal) (*model.User, error)
	// UpdateProfile returns a fresh token when the password changed, otherwise ""
	UpdateProfile(ctx context.Context, principal model.Principal, req model.UpdateProfileRequest) (*model.User, string, error)
	// ChangePassword revokes every earlier token and returns a fresh one
	ChangePassword(ctx context.Context, principal model.Principal, currentPassword, newPassword string) (string, error)
}

type authService struct {
	userRepo repository.UserRepository
	jwtUtil  *utils.JWTUtil
	logger   *slog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo repository.UserRepository, jwtUtil *utils.JWTUtil, logger *slog.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		jwtUtil:  jwtUtil,
		logger:   logger,
	}
}

func (s *authService) issueToken(user *model.User) (string, error) {
	token, err := s.jwtUtil.GenerateToken(utils.TokenSubject{
		UserID:       user.ID.String(),
		Email:        user.Email,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("failed to generate token: %w", err))
	}
	return token, nil
}

// Register creates a new user account
func (s *authService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, string, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := validate(requestValidator, req); err != nil {
		return nil, "", err
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, "", apperr.Internal(fmt.Errorf("failed to hash password: %w", err))
	}

	role := req.Role
	if role == "" {
		role = model.RoleUser
	}

	user := &model.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Role:         role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", apperr.Internal(fmt.Errorf("failed to create user in repository: %w", err))
	}

	token, err := s.issueToken(user)
	if err != nil {
		s.logger.Error("user created but token generation failed", slog.String("user_id", user.ID.String()), utils.ErrAttr(err))
		return nil, "", err
	}

	return user, token, nil
}

// Login authenticates a user and returns a JWT token. Unknown email and
// wrong password are indistinguishable.
func (s *authService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, "", apperr.Internal(fmt.Errorf("error finding user by email: %w", err))
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate verifies the token, then checks its version against the
// stored counter. The counter is read on every call.
func (s *authService) Authenticate(ctx context.Context, token string) (model.Principal, error) {
	if token == "" {
		return model.Principal{}, ErrNoToken
	}

	claims, err := s.jwtUtil.ValidateToken(token)
	if err != nil {
		if errors.Is(err, utils.ErrTokenExpired) {
			return model.Principal{}, ErrTokenExpired
		}
		return model.Principal{}, ErrTokenMalformed
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return model.Principal{}, ErrTokenMalformed
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return model.Principal{}, apperr.Internal(fmt.Errorf("failed to load token owner: %w", err))
	}
	if user == nil {
		return model.Principal{}, ErrPrincipalNotFound
	}
	if user.TokenVersion != claims.TokenVersion {
		return model.Principal{}, ErrTokenRevoked
	}

	return model.Principal{ID: user.ID, Email: user.Email, Role: user.Role}, nil
}

// LogoutAllDevices invalidates every token issued so far
func (s *authService) LogoutAllDevices(ctx context.Context, principal model.Principal) error {
	if _, err := s.userRepo.IncrementTokenVersion(ctx, principal.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return apperr.Internal(fmt.Errorf("failed to revoke tokens: %w", err))
	}
	return nil
}

func (s *authService) loadUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to load user: %w", err))
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *authService) GetProfile(ctx context.Context, principal model.Principal) (*model.User, error) {
	return s.loadUser(ctx, principal.ID)
}

// UpdateProfile changes name, email and optionally the password. A new
// password requires the current one.
func (s *authService) UpdateProfile(ctx context.Context, principal model.Principal, req model.UpdateProfileRequest) (*model.User, string, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if req.Email != nil {
		trimmed := strings.TrimSpace(*req.Email)
		req.Email = &trimmed
	}
	if err := validate(requestValidator, req); err != nil {
		return nil, "", err
	}
	if req.NewPassword != nil && (req.CurrentPassword == nil || *req.CurrentPassword == "") {
		return nil, "", apperr.Validation("validation failed", map[string]string{
			"currentPassword": "is required to set a new password",
		})
	}

	user, err := s.loadUser(ctx, principal.ID)
	if err != nil {
		return nil, "", err
	}

	if req.NewPassword != nil && !utils.CheckPasswordHash(*req.CurrentPassword, user.PasswordHash) {
		return nil, "", ErrIncorrectPassword
	}

	if req.Name != nil || req.Email != nil {
		if req.Name != nil {
			user.Name = *req.Name
		}
		if req.Email != nil {
			user.Email = *req.Email
		}
		if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
			switch {
			case errors.Is(err, repository.ErrDuplicateEmail):
				return nil, "", ErrEmailTaken
			case errors.Is(err, repository.ErrNotFound):
				return nil, "", ErrUserNotFound
			}
			return nil, "", apperr.Internal(fmt.Errorf("failed to update profile: %w", err))
		}
	}

	if req.NewPassword == nil {
		return user, "", nil
	}

	token, err := s.setPassword(ctx, user, *req.NewPassword)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *authService) ChangePassword(ctx context.Context, principal model.Principal, currentPassword, newPassword string) (string, error) {
	if err := validate(requestValidator, model.ChangePasswordRequest{CurrentPassword: currentPassword, NewPassword: newPassword}); err != nil {
		return "", err
	}

	user, err := s.loadUser(ctx, principal.ID)
	if err != nil {
		return "", err
	}
	if !utils.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return "", ErrIncorrectPassword
	}
	return s.setPassword(ctx, user, newPassword)
}

// setPassword stores the new hash, bumping the token version, and issues a
// token carrying the new version.
func (s *authService) setPassword(ctx context.Context, user *model.User, newPassword string) (string, error) {
	hashedPassword, err := utils.HashPassword(newPassword)
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("failed to hash password: %w", err))
	}

	version, err := s.userRepo.UpdatePassword(ctx, user.ID, hashedPassword)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", apperr.Internal(fmt.Errorf("failed to update password: %w", err))
	}
	user.PasswordHash = hashedPassword
	user.TokenVersion = version

	return s.issueToken(user)
}
