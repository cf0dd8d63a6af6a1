package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gridsight-dev/gridsight/internal/cli/events"
)

// maxRedirects bounds redirect chains; the portal table never needs more than one hop
const maxRedirects = 3

// Navigator owns the current location. It is the only component that commits navigation,
// including the forced move to login after the HTTP client reports an expired session.
type Navigator struct {
	guard    *Guard
	log      zerolog.Logger
	mu       sync.Mutex
	current  string
	onCommit []func(path string)
}

// NewNavigator creates a navigator starting at start
func NewNavigator(guard *Guard, start string, log zerolog.Logger) *Navigator {
	return &Navigator{
		guard:   guard,
		current: start,
		log:     log.With().Str("component", "navigator").Logger(),
	}
}

// Current returns the committed location
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// OnCommit registers fn, called after every committed navigation that changed the location
func (n *Navigator) OnCommit(fn func(path string)) {
	n.mu.Lock()
	n.onCommit = append(n.onCommit, fn)
	n.mu.Unlock()
}

// Navigate evaluates the guard for path and commits the final destination.
// The returned decision is the first one, so callers can tell a redirect happened.
func (n *Navigator) Navigate(ctx context.Context, path string) (Decision, error) {
	first, err := n.guard.Evaluate(ctx, path)
	if err != nil {
		return Decision{}, err
	}

	decision := first
	for hops := 0; decision.Outcome != Allow; hops++ {
		if hops == maxRedirects {
			return Decision{}, fmt.Errorf("too many redirects navigating to %s", path)
		}
		n.log.Debug().Str("from", path).Str("decision", decision.String()).Msg("navigation redirected")
		decision, err = n.guard.Evaluate(ctx, decision.Target)
		if err != nil {
			return Decision{}, err
		}
	}

	n.commit(decision.Target)
	return first, nil
}

func (n *Navigator) commit(target string) {
	n.mu.Lock()
	changed := n.current != target
	n.current = target
	hooks := n.onCommit
	n.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range hooks {
		fn(target)
	}
}

// Listen moves to the login route whenever the bus reports an expired session.
// Repeated signals are harmless: the second one finds the navigator already at login.
func (n *Navigator) Listen(bus *events.Bus) error {
	return bus.OnAuthExpired(func(ev events.AuthExpired) {
		n.log.Info().Str("url", ev.URL).Msg("session expired, returning to login")
		if _, err := n.Navigate(context.Background(), LoginPath); err != nil {
			n.log.Error().Err(err).Msg("failed to navigate to login")
		}
	})
}
