package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"finwise/internal/auth"
	"finwise/internal/core"
)

// AuthService registers users, checks credentials and resets passwords.
type AuthService struct {
	users UserStore
	// dummyHash is compared against when the email is unknown, so both
	// failure paths cost one bcrypt comparison.
	dummyHash string
}

func NewAuthService(users UserStore) *AuthService {
	h, err := auth.HashPassword("not-a-real-password")
	if err != nil {
		slog.Warn("Failed to prepare dummy password hash", "error", err)
	}
	return &AuthService{users: users, dummyHash: h}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user. The password must satisfy the policy; a taken
// username or email yields core.ErrDuplicateUser.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return core.User{}, core.ErrEmptyField
	}
	if failed := auth.CheckPassword(password); len(failed) > 0 {
		return core.User{}, auth.PolicyError(failed)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}

	u, err := s.users.CreateUser(ctx, username, email, hash)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateUser) {
			slog.InfoContext(ctx, "Registration rejected, user exists", "username", username)
			return core.User{}, err
		}
		return core.User{}, fmt.Errorf("register: %w", err)
	}
	return u, nil
}

// Login returns the user with this email if the password matches. An
// unknown email and a wrong password both yield core.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (core.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return core.User{}, core.ErrEmptyField
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			auth.VerifyPassword(s.dummyHash, password)
			return core.User{}, core.ErrInvalidCredentials
		}
		return core.User{}, fmt.Errorf("login: %w", err)
	}

	ok, needsUpgrade := auth.VerifyPassword(u.PasswordHash, password)
	if !ok {
		return core.User{}, core.ErrInvalidCredentials
	}

	if needsUpgrade {
		s.upgradeHash(ctx, u.Email, password)
	}
	return u, nil
}

// upgradeHash rewrites a legacy digest as a bcrypt hash. Failure is logged
// only; the login itself already succeeded.
func (s *AuthService) upgradeHash(ctx context.Context, email, password string) {
	hash, err := auth.HashPassword(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, email, hash)
	}
	if err != nil {
		slog.WarnContext(ctx, "Failed to upgrade legacy password hash", "error", err)
		return
	}
	slog.InfoContext(ctx, "Upgraded legacy password hash")
}

// ResetPassword replaces the password of the user with this email.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = NormalizeEmail(email)
	if email == "" || newPassword == "" {
		return core.ErrEmptyField
	}
	if failed := auth.CheckPassword(newPassword); len(failed) > 0 {
		return auth.PolicyError(failed)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, email, hash); err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("reset password: %w", err)
	}

	slog.InfoContext(ctx, "Password reset")
	return nil
}
