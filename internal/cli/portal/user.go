package portal

import (
	"context"
)

func (s *Service) Info(ctx context.Context) (*UserInfo, error) {
	var info UserInfo
	if err := s.get(ctx, "/api/user/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *Service) CheckPermissions(ctx context.Context) (*Permissions, error) {
	var perms Permissions
	if err := s.get(ctx, "/api/user/check-permissions", nil, &perms); err != nil {
		return nil, err
	}
	return &perms, nil
}

// Logs returns the caller's own recognition history, newest first
func (s *Service) Logs(ctx context.Context, q PageQuery) (*Page[UserLog], error) {
	return getPage[UserLog](ctx, s, "/api/user/logs", "logs", q)
}
