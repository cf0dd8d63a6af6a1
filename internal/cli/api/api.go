package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gridsight-dev/gridsight/internal/cli/client"
)

// Sender is the part of the HTTP client the facade needs
type Sender interface {
	Send(ctx context.Context, r client.Request) (*client.Response, error)
}

// Config carries per-call options. Header entries override the Authorization header set by the client.
type Config struct {
	Header http.Header
	Query  url.Values
}

// Facade normalizes portal calls through one client
type Facade struct {
	sender  Sender
	loading *Loading
	log     zerolog.Logger
}

// Option configures a Facade
type Option func(*Facade)

// WithLoading shares a loading flag between facades
func WithLoading(l *Loading) Option {
	return func(f *Facade) {
		f.loading = l
	}
}

// WithLogger sets the logger used for call tracing
func WithLogger(log zerolog.Logger) Option {
	return func(f *Facade) {
		f.log = log
	}
}

// New creates a facade over sender
func New(sender Sender, opts ...Option) *Facade {
	f := &Facade{
		sender: sender,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.loading == nil {
		f.loading = &Loading{}
	}
	return f
}

// Loading returns the flag toggled around every call
func (f *Facade) Loading() *Loading {
	return f.loading
}

// Request performs method on url and returns the full envelope when success is true.
// GET sends data as query parameters, POST and PUT as a JSON body, DELETE ignores it.
// A *client.Form passed to POST or PUT is sent as multipart/form-data.
func (f *Facade) Request(ctx context.Context, method, url string, data any, cfg *Config) (*Envelope, error) {
	f.loading.start()
	defer f.loading.done()

	method = strings.ToUpper(method)
	log := f.log.With().Str("method", method).Str("url", url).Logger()

	req := client.Request{Method: method, Path: url}
	if cfg != nil {
		req.Header = cfg.Header
		req.Query = cfg.Query
	}

	switch method {
	case http.MethodGet:
		params, err := encodeQuery(data)
		if err != nil {
			log.Error().Err(err).Msg("invalid query parameters")
			return nil, &ApplicationError{Message: err.Error(), Err: fmt.Errorf("%w: %w", ErrInvalidQuery, err)}
		}
		req.Query = mergeQuery(req.Query, params)
	case http.MethodPost, http.MethodPut:
		req.Body = data
	case http.MethodDelete:
	default:
		log.Error().Msg("unsupported HTTP method")
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}

	log.Debug().Msg("api request")

	resp, err := f.sender.Send(ctx, req)
	if err != nil {
		appErr := &ApplicationError{Message: DefaultErrorMessage, Err: err}
		var statusErr *client.StatusError
		if errors.As(err, &statusErr) {
			if msg := envelopeMessage(statusErr.Body); msg != "" {
				appErr.Message = msg
			}
		}
		log.Warn().Err(err).Str("message", appErr.Message).Msg("api request failed")
		return nil, appErr
	}

	env, err := parseEnvelope(resp.Body)
	if err != nil {
		log.Warn().Err(err).Msg("api response is not an envelope")
		return nil, &ApplicationError{Message: DefaultErrorMessage, Err: err}
	}

	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = DefaultErrorMessage
		}
		log.Warn().Str("message", msg).Msg("api request rejected")
		return nil, &ApplicationError{Message: msg}
	}

	log.Debug().Int("status", resp.StatusCode).Msg("api response")
	return env, nil
}

// Get is shorthand for Request(ctx, "GET", ...)
func (f *Facade) Get(ctx context.Context, url string, params any) (*Envelope, error) {
	return f.Request(ctx, http.MethodGet, url, params, nil)
}

// Post is shorthand for Request(ctx, "POST", ...)
func (f *Facade) Post(ctx context.Context, url string, body any) (*Envelope, error) {
	return f.Request(ctx, http.MethodPost, url, body, nil)
}

// Put is shorthand for Request(ctx, "PUT", ...)
func (f *Facade) Put(ctx context.Context, url string, body any) (*Envelope, error) {
	return f.Request(ctx, http.MethodPut, url, body, nil)
}

// Delete is shorthand for Request(ctx, "DELETE", ...)
func (f *Facade) Delete(ctx context.Context, url string) (*Envelope, error) {
	return f.Request(ctx, http.MethodDelete, url, nil, nil)
}

// encodeQuery turns GET data into query parameters.
// Structs and other values are mapped through their JSON field names.
func encodeQuery(data any) (url.Values, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case url.Values:
		return v, nil
	case map[string]string:
		values := url.Values{}
		for key, val := range v {
			values.Set(key, val)
		}
		return values, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query parameters: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("query parameters must be an object: %w", err)
	}

	values := url.Values{}
	for key, val := range fields {
		switch val := val.(type) {
		case nil:
			continue
		case string:
			values.Set(key, val)
		case []any:
			for _, item := range val {
				values.Add(key, fmt.Sprint(item))
			}
		case float64:
			values.Set(key, strconv.FormatFloat(val, 'f', -1, 64))
		default:
			values.Set(key, fmt.Sprint(val))
		}
	}
	return values, nil
}

func mergeQuery(base, extra url.Values) url.Values {
	if len(base) == 0 {
		return extra
	}
	merged := url.Values{}
	for key, vals := range base {
		merged[key] = append([]string(nil), vals...)
	}
	for key, vals := range extra {
		merged[key] = append(merged[key], vals...)
	}
	return merged
}
