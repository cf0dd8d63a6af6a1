package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gridsight-dev/gridsight/internal/assert"
	"github.com/gridsight-dev/gridsight/internal/cli/session"
)

const (
	LoginPath     = "/login"
	RegisterPath  = "/register"
	UserHomePath  = "/user/home"
	AdminHomePath = "/admin/home"
)

// ErrRouteNotFound is returned for paths missing from the route table
var ErrRouteNotFound = errors.New("route not found")

// Route is a static route descriptor.
// UserType is empty for routes any authenticated role may open.
type Route struct {
	Path         string
	Name         string
	Title        string
	RequiresAuth bool
	UserType     session.UserType
}

// Table is an immutable set of routes keyed by path
type Table struct {
	routes []Route
	byPath map[string]Route
}

// NewTable builds a table, rejecting duplicate or malformed paths
func NewTable(routes []Route) (*Table, error) {
	t := &Table{byPath: make(map[string]Route, len(routes))}
	for _, r := range routes {
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("route path must start with '/': %q", r.Path)
		}
		if _, exists := t.byPath[r.Path]; exists {
			return nil, fmt.Errorf("duplicate route: %s", r.Path)
		}
		if r.UserType != "" && !r.UserType.Valid() {
			return nil, fmt.Errorf("route %s declares invalid user type '%s'", r.Path, r.UserType)
		}
		t.byPath[r.Path] = r
		t.routes = append(t.routes, r)
	}
	if _, ok := t.byPath[LoginPath]; !ok {
		return nil, fmt.Errorf("route table must contain %s", LoginPath)
	}
	return t, nil
}

// Lookup finds the route for path. A trailing slash and query string are ignored.
func (t *Table) Lookup(path string) (Route, error) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	if r, ok := t.byPath[path]; ok {
		return r, nil
	}
	return Route{}, fmt.Errorf("%w: %s", ErrRouteNotFound, path)
}

// Routes returns the routes in declaration order
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// HomePath is the landing route for a role
func HomePath(role session.UserType) string {
	if role == session.UserTypeAdmin {
		return AdminHomePath
	}
	return UserHomePath
}

// PortalRoutes is the route table of the recognition portal
var PortalRoutes = []Route{
	{Path: "/", Name: "root", Title: "Home"},
	{Path: LoginPath, Name: "login", Title: "Login"},
	{Path: RegisterPath, Name: "register", Title: "Register"},

	{Path: UserHomePath, Name: "user-home", Title: "Dashboard", RequiresAuth: true, UserType: session.UserTypeUser},
	{Path: "/user/recognition", Name: "user-recognition", Title: "Image recognition", RequiresAuth: true, UserType: session.UserTypeUser},
	{Path: "/user/batch", Name: "user-batch", Title: "Batch processing", RequiresAuth: true, UserType: session.UserTypeUser},
	{Path: "/user/realtime", Name: "user-realtime", Title: "Realtime detection", RequiresAuth: true, UserType: session.UserTypeUser},
	{Path: "/user/logs", Name: "user-logs", Title: "My history", RequiresAuth: true, UserType: session.UserTypeUser},

	{Path: AdminHomePath, Name: "admin-home", Title: "Admin dashboard", RequiresAuth: true, UserType: session.UserTypeAdmin},
	{Path: "/admin/users", Name: "admin-users", Title: "User management", RequiresAuth: true, UserType: session.UserTypeAdmin},
	{Path: "/admin/logs", Name: "admin-logs", Title: "Admin actions", RequiresAuth: true, UserType: session.UserTypeAdmin},
	{Path: "/admin/user-logs", Name: "admin-user-logs", Title: "User activity", RequiresAuth: true, UserType: session.UserTypeAdmin},
	{Path: "/admin/statistics", Name: "admin-statistics", Title: "Statistics", RequiresAuth: true, UserType: session.UserTypeAdmin},

	{Path: "/profile/password", Name: "change-password", Title: "Change password", RequiresAuth: true},
}

// DefaultTable returns the portal route table
func DefaultTable() *Table {
	t, err := NewTable(PortalRoutes)
	assert.NoError(err)
	return t
}
