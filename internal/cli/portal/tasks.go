package portal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Progress reads a batch task's progress. Finished tasks stay readable for a short while.
func (s *Service) Progress(ctx context.Context, taskID string) (*TaskProgress, error) {
	env, err := s.api.Request(ctx, "GET", "/api/tasks/progress/"+url.PathEscape(taskID), nil, nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Progress TaskProgress `json:"progress"`
	}
	if err := env.DecodeBody(&body); err != nil {
		return nil, err
	}
	return &body.Progress, nil
}

// Cancel stops a running batch task
func (s *Service) Cancel(ctx context.Context, taskID string) (string, error) {
	return s.send(ctx, "POST", "/api/tasks/cancel/"+url.PathEscape(taskID), nil)
}

// ErrInvalidInterval is returned by WatchProgress for a zero or negative poll interval
var ErrInvalidInterval = errors.New("poll interval must be positive")

// WatchProgress polls a task until it finishes, calling fn with every reading
func (s *Service) WatchProgress(ctx context.Context, taskID string, every time.Duration, fn func(TaskProgress)) (*TaskProgress, error) {
	if every <= 0 {
		return nil, fmt.Errorf("%w, got %s", ErrInvalidInterval, every)
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		p, err := s.Progress(ctx, taskID)
		if err != nil {
			return nil, err
		}
		fn(*p)
		if p.Finished() {
			return p, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("stopped watching task %s: %w", taskID, ctx.Err())
		}
	}
}
