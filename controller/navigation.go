package controller

import (
	"net/url"
	"strings"

	"github.com/tradevault/go-auth-client/authstate"
	"github.com/tradevault/go-auth-client/routeguard"
)

// DecideNavigation is the single place redirect policy lives. Given the
// state transition that just happened and the path the user is on, it
// returns the path to navigate to, or false when the user stays put.
//
// Rules:
//   - becoming authenticated while on the landing page or inside the auth
//     section moves the user to their return target (the login page's
//     redirect parameter) or the dashboard;
//   - being unauthenticated on a protected route moves the user to the
//     login page, carrying the origin path as the return target;
//   - everything else stays where it is.
func DecideNavigation(guard *routeguard.Policy, prev, next authstate.State, currentPath string) (string, bool) {
	if next.IsLoading {
		return "", false
	}

	if next.IsAuthenticated {
		if prev.IsAuthenticated {
			return "", false
		}
		if pathOnly(currentPath) == routeguard.RouteHome || routeguard.IsAuthSection(currentPath) {
			return ResolveReturnTarget(currentPath), true
		}
		return "", false
	}

	if guard.RequiresAuth(currentPath) {
		return LoginRedirect(currentPath), true
	}
	return "", false
}

// LoginRedirect builds the login path carrying origin as the return target.
func LoginRedirect(origin string) string {
	return routeguard.RouteLogin + "?" + routeguard.RedirectParam + "=" + url.QueryEscape(origin)
}

// ResolveReturnTarget extracts the return target from a login-style path
// (e.g. "/auth/login?redirect=%2Fjournal%2F42"), defaulting to the
// dashboard. Only same-site absolute paths are honoured, anything else
// would be an open redirect.
func ResolveReturnTarget(loginPath string) string {
	parsed, err := url.Parse(loginPath)
	if err != nil {
		return routeguard.RouteDashboard
	}
	target := parsed.Query().Get(routeguard.RedirectParam)
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return routeguard.RouteDashboard
	}
	return target
}

func pathOnly(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
