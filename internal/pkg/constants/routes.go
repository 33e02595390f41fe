package constants

// Static route constants
const (
	UploadsRoute = "/uploads"
	AssetsRoute  = "/assets"
	PublicRoute  = "/"
	// Upload path without leading slash for URL construction
	UploadsPath = "uploads"

	APIPrefix   = "/api/v1"
	DocsRoute   = "/docs/api/"
	MetricsPath = "/metrics"
)
