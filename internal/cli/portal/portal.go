package portal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/gridsight-dev/gridsight/internal/assert"
	"github.com/gridsight-dev/gridsight/internal/cli/api"
	"github.com/gridsight-dev/gridsight/internal/cli/session"
)

// Requester is the facade surface used by the portal calls
type Requester interface {
	Request(ctx context.Context, method, url string, data any, cfg *api.Config) (*api.Envelope, error)
}

// Service exposes the portal API on top of the facade
type Service struct {
	api      Requester
	sessions session.Store
	validate *validator.Validate
}

// New creates a portal service. sessions receives the session written by Login.
func New(requester Requester, sessions session.Store) *Service {
	return &Service{
		api:      requester,
		sessions: sessions,
		validate: validator.New(),
	}
}

// HashPassword returns the hex sha256 digest the portal expects in place of the password
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	digest := hex.EncodeToString(sum[:])
	assert.Length(digest, 64)
	return digest
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

func (s *Service) get(ctx context.Context, path string, params any, out any) error {
	env, err := s.api.Request(ctx, "GET", path, params, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return env.DecodeData(out)
}

// send performs a write call and returns the portal's confirmation message
func (s *Service) send(ctx context.Context, method, path string, body any) (string, error) {
	env, err := s.api.Request(ctx, method, path, body, nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// getPage fetches a paginated list whose items live under listKey
func getPage[T any](ctx context.Context, s *Service, path, listKey string, q PageQuery) (*Page[T], error) {
	if err := s.check(q); err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := s.get(ctx, path, pageParams(q), &raw); err != nil {
		return nil, err
	}

	page := &Page[T]{}
	if items, ok := raw[listKey]; ok {
		if err := json.Unmarshal(items, &page.Items); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", listKey, err)
		}
	}
	for key, dst := range map[string]*int{"total": &page.Total, "page": &page.Page, "limit": &page.Limit} {
		if v, ok := raw[key]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", key, err)
			}
		}
	}
	return page, nil
}

func pageParams(q PageQuery) url.Values {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return params
}
