package portal

import (
	"context"
	"fmt"
)

// Users lists accounts, newest first
func (s *Service) Users(ctx context.Context, q PageQuery) (*Page[User], error) {
	return getPage[User](ctx, s, "/api/admin/users", "users", q)
}

// CreateUser returns the id assigned to the new account
func (s *Service) CreateUser(ctx context.Context, u NewUser) (int, error) {
	if err := s.check(u); err != nil {
		return 0, err
	}
	env, err := s.api.Request(ctx, "POST", "/api/admin/user", u, nil)
	if err != nil {
		return 0, err
	}
	var created struct {
		ID int `json:"id"`
	}
	if err := env.DecodeData(&created); err != nil {
		return 0, err
	}
	return created.ID, nil
}

func (s *Service) UpdateUser(ctx context.Context, id int, u UserUpdate) (string, error) {
	if u.ImageLimit == nil && u.BatchLimit == nil && u.RealtimePermission == nil {
		return "", fmt.Errorf("nothing to update")
	}
	if err := s.check(u); err != nil {
		return "", err
	}
	return s.send(ctx, "PUT", userPath(id), u)
}

func (s *Service) DeleteUser(ctx context.Context, id int) (string, error) {
	return s.send(ctx, "DELETE", userPath(id), nil)
}

// AdjustLimits adds the deltas to the remaining quotas; unlimited quotas are unaffected
func (s *Service) AdjustLimits(ctx context.Context, id int, d LimitDelta) (string, error) {
	if d.ImageDelta == nil && d.BatchDelta == nil {
		return "", fmt.Errorf("nothing to adjust")
	}
	return s.send(ctx, "POST", userPath(id)+"/limits", d)
}

// SetBanned bans or unbans an account
func (s *Service) SetBanned(ctx context.Context, id int, banned bool) (string, error) {
	return s.send(ctx, "PUT", userPath(id)+"/status", map[string]bool{"banned": banned})
}

// AdminLogs lists admin actions
func (s *Service) AdminLogs(ctx context.Context, q PageQuery) (*Page[AdminLog], error) {
	return getPage[AdminLog](ctx, s, "/api/admin/logs", "logs", q)
}

// UserLogs lists one account's operations
func (s *Service) UserLogs(ctx context.Context, id int, q PageQuery) (*Page[UserLog], error) {
	return getPage[UserLog](ctx, s, fmt.Sprintf("/api/admin/user_logs/%d", id), "logs", q)
}

// AllUserLogs lists operations across every account
func (s *Service) AllUserLogs(ctx context.Context, q PageQuery) (*Page[UserLog], error) {
	return getPage[UserLog](ctx, s, "/api/admin/user_logs/all", "logs", q)
}

func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	var stats Statistics
	if err := s.get(ctx, "/api/admin/statistics", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func userPath(id int) string {
	return fmt.Sprintf("/api/admin/user/%d", id)
}
