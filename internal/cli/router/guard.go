package router

import (
	"context"
	"fmt"

	"github.com/gridsight-dev/gridsight/internal/cli/session"
)

// Outcome is the result of one guard evaluation
type Outcome int

const (
	Allow Outcome = iota
	RedirectLogin
	RedirectHome
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "ALLOW"
	case RedirectLogin:
		return "REDIRECT_LOGIN"
	case RedirectHome:
		return "REDIRECT_HOME"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Decision says whether a navigation may proceed and, if not, where to go instead
type Decision struct {
	Outcome Outcome
	// Role is set for RedirectHome
	Role session.UserType
	// Target is the route actually reached: the requested one, login, or the role home
	Target string
}

func (d Decision) String() string {
	if d.Outcome == RedirectHome {
		return fmt.Sprintf("%s(%s) -> %s", d.Outcome, d.Role, d.Target)
	}
	return fmt.Sprintf("%s -> %s", d.Outcome, d.Target)
}

// Guard authorizes navigation against the stored session
type Guard struct {
	table    *Table
	sessions session.Store
}

// NewGuard creates a guard over table and sessions
func NewGuard(table *Table, sessions session.Store) *Guard {
	return &Guard{table: table, sessions: sessions}
}

// Evaluate runs the guard for a navigation to path
func (g *Guard) Evaluate(ctx context.Context, path string) (Decision, error) {
	route, err := g.table.Lookup(path)
	if err != nil {
		return Decision{}, err
	}

	sess, err := g.sessions.Load(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load session: %w", err)
	}

	return Decide(route, sess), nil
}

// Decide applies the rules in order; the first match wins.
//  1. login route while authenticated: go to the role home
//  2. protected route without a token: go to login
//  3. protected route for another role: go to the caller's own home
//  4. otherwise allow
func Decide(route Route, sess session.Session) Decision {
	switch {
	case route.Path == LoginPath && sess.Token != "":
		return redirectHome(sess.UserType)
	case route.RequiresAuth && sess.Token == "":
		return Decision{Outcome: RedirectLogin, Target: LoginPath}
	case route.RequiresAuth && route.UserType != "" && route.UserType != sess.UserType:
		return redirectHome(sess.UserType)
	default:
		return Decision{Outcome: Allow, Target: route.Path}
	}
}

func redirectHome(role session.UserType) Decision {
	return Decision{Outcome: RedirectHome, Role: role, Target: HomePath(role)}
}
