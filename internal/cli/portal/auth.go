package portal

import (
	"context"
	"fmt"

	"github.com/gridsight-dev/gridsight/internal/cli/session"
)

// Credentials are the login form fields
type Credentials struct {
	Username string           `validate:"required"`
	Password string           `validate:"required"`
	UserType session.UserType `validate:"required,oneof=user admin"`
}

// Registration is the self sign-up form
type Registration struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

// PasswordChange is the change-password form
type PasswordChange struct {
	OldPassword string           `json:"old_password" validate:"required"`
	NewPassword string           `json:"new_password" validate:"required,min=6,nefield=OldPassword"`
	UserType    session.UserType `json:"user_type" validate:"required,oneof=user admin"`
}

// Login authenticates and stores the resulting session in one write
func (s *Service) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	if err := s.check(creds); err != nil {
		return nil, err
	}

	env, err := s.api.Request(ctx, "POST", "/api/auth/login", map[string]string{
		"username":  creds.Username,
		"password":  HashPassword(creds.Password),
		"user_type": string(creds.UserType),
	}, nil)
	if err != nil {
		return nil, err
	}

	var result LoginResult
	if err := env.DecodeBody(&result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, fmt.Errorf("login response did not include a token")
	}

	role, err := session.ParseUserType(result.UserType)
	if err != nil {
		// older portals omit user_type for plain users
		role = creds.UserType
	}

	if err := s.sessions.Save(ctx, session.Session{Token: result.Token, UserType: role}); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return &result, nil
}

// Logout destroys the local session. The portal has no server-side logout.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Register creates a plain user account
func (s *Service) Register(ctx context.Context, reg Registration) (string, error) {
	if err := s.check(reg); err != nil {
		return "", err
	}
	return s.send(ctx, "POST", "/api/auth/register", reg)
}

// ChangePassword changes the caller's password. Passwords go over the wire in clear text
// here because the portal hashes them itself on this endpoint.
func (s *Service) ChangePassword(ctx context.Context, change PasswordChange) (string, error) {
	if err := s.check(change); err != nil {
		return "", err
	}
	return s.send(ctx, "POST", "/api/auth/change_password", change)
}
