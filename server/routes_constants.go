package server

// Route path constants
const (
	// Credential routes
	RouteToken      = "/token"
	RouteVideoToken = "/video-token"

	// Operational routes
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
