package routeguard

// Route path constants
// All routes the auth subsystem navigates to are defined here to ensure
// consistency and prevent typos
const (
	// Auth Routes
	RouteLogin          = "/auth/login"
	RouteSignup         = "/auth/signup"
	RouteCallback       = "/auth/callback"
	RouteForgotPassword = "/auth/forgot-password"
	RouteResetPassword  = "/auth/reset-password"
	RouteVerifyEmail    = "/auth/verify-email"

	// Landing pages
	RouteHome      = "/"
	RouteDashboard = "/dashboard"

	// Prefix covering the whole auth section
	AuthSectionPrefix = "/auth"

	// Query parameter carrying the originating path through a login redirect
	RedirectParam = "redirect"
)

// DefaultProtectedPrefixes are the application regions that require an
// authenticated session.
var DefaultProtectedPrefixes = []string{
	"/trades",
	"/journal",
	"/analytics",
	"/playbook",
	"/brokers",
	"/profile",
	"/settings",
	"/dashboard",
}
