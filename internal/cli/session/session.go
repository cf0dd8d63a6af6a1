package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// UserType is the portal role carried by a session
type UserType string

const (
	UserTypeUser  UserType = "user"
	UserTypeAdmin UserType = "admin"
)

// ParseUserType parses a role name, case-insensitively
func ParseUserType(s string) (UserType, error) {
	switch UserType(strings.ToLower(strings.TrimSpace(s))) {
	case UserTypeUser:
		return UserTypeUser, nil
	case UserTypeAdmin:
		return UserTypeAdmin, nil
	default:
		return "", fmt.Errorf("invalid user type '%s', must be one of: user, admin", s)
	}
}

// Valid reports whether u is a known role
func (u UserType) Valid() bool {
	return u == UserTypeUser || u == UserTypeAdmin
}

// Session is the client-held proof of authentication.
// The zero value is the absent session.
type Session struct {
	Token    string   `json:"token"`
	UserType UserType `json:"userType"`
}

// Authenticated reports whether both the token and a valid role are present
func (s Session) Authenticated() bool {
	return s.Token != "" && s.UserType.Valid()
}

// normalize drops half-written records so callers only ever observe a full session or none
func (s Session) normalize() Session {
	if !s.Authenticated() {
		return Session{}
	}
	return s
}

// Store persists the session for one portal server.
// Save and Clear replace the whole record in a single operation.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

func encode(s Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return data, nil
}

func decode(data []byte) (Session, error) {
	if len(data) == 0 {
		return Session{}, nil
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("failed to parse session: %w", err)
	}
	return s.normalize(), nil
}

func validateForSave(s Session) error {
	if s.Token == "" {
		return fmt.Errorf("cannot save session without a token")
	}
	if !s.UserType.Valid() {
		return fmt.Errorf("cannot save session with user type '%s'", s.UserType)
	}
	return nil
}
