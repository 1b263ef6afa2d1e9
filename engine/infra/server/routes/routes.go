package routes

import "fmt"

// version is the API version segment used in routing.
const version = "v0"

// Version returns the current API version string used in routing (e.g., "v0").
func Version() string {
	return version
}

// Base returns the versioned API base path (e.g., "/api/v0").
func Base() string {
	return fmt.Sprintf("/api/%s", Version())
}

func buildSurfaceRoute(surface string) string {
	return Base() + "/" + surface
}

// AI returns the agent surface base path (e.g., "/api/v0/ai").
func AI() string { return buildSurfaceRoute("ai") }

// Chat returns the chat history base path (e.g., "/api/v0/chat").
func Chat() string { return buildSurfaceRoute("chat") }

// Context returns the agent memory base path (e.g., "/api/v0/context").
func Context() string { return buildSurfaceRoute("context") }

// Errors returns the diagnostics base path (e.g., "/api/v0/errors").
func Errors() string { return buildSurfaceRoute("errors") }

// Preview returns the preview base path (e.g., "/api/v0/preview").
func Preview() string { return buildSurfaceRoute("preview") }

// Backends returns the backend process base path (e.g., "/api/v0/backends").
func Backends() string { return buildSurfaceRoute("backends") }

// Projects returns the project base path (e.g., "/api/v0/projects").
func Projects() string { return buildSurfaceRoute("projects") }

// Packages returns the package install base path (e.g., "/api/v0/packages").
func Packages() string { return buildSurfaceRoute("packages") }

// Database returns the database admin base path (e.g., "/api/v0/database").
func Database() string { return buildSurfaceRoute("database") }

// HealthVersioned returns the versioned health path (e.g., "/api/v0/health").
// The primary health endpoint is versioned and mounted under the API base path.
func HealthVersioned() string {
	return Base() + "/health"
}
