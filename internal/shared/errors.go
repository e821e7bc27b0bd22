package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Catalog errors
	ErrInvalidReference   = fmt.Errorf("invalid playlist reference")
	ErrCatalogUnavailable = fmt.Errorf("source catalog unavailable")
	ErrSearchFailed       = fmt.Errorf("target catalog search failed")

	// Cache errors
	ErrDownloadFailed = fmt.Errorf("download failed")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrNoPendingFlow    = fmt.Errorf("no pending authorization flow")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrInvalidSession   = fmt.Errorf("invalid session")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrRunNotFound        = fmt.Errorf("run not found")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
