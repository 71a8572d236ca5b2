// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//   - Database connection timeouts
//
// AppConfig is where everything specific to TournHub lives: the Mongo
// connection, cookie signing, the identity provider endpoint, and the
// guest quota switch.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session management configuration
	SessionKey    string // Secret key for signing session and guest cookies (must be strong in production)
	SessionDomain string // Cookie domain (blank means current host)

	// Identity provider configuration
	ProviderURL    string // Base URL of the hosted identity provider
	ProviderAPIKey string // Public API key sent with provider requests

	// Base URL for the provider callback redirect
	BaseURL string // e.g., "https://tournhub.app" or "http://localhost:3000"

	// Guest quota
	GuestLimitEnabled bool // Enforce the guest tournament quota

	// Admin bootstrap
	AdminEmail string // Email of the application admin (promotes/creates on startup)

	// Audit logging destinations per category: "all", "db", "log", or "off"
	AuditLogAuth  string // Sign-in, sign-out, guest sessions, merges
	AuditLogAdmin string // Role changes, removals, transfers, invitations
}
