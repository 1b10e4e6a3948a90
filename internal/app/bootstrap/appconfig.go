// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP/HTTPS
// ports, TLS, logging level and format. AppConfig is where everything
// specific to QuestHub lives: the database, sessions and tokens, storage
// and the external collaborators.
//
// The struct is passed to most lifecycle hooks, so any configuration needed
// during startup, request handling, or shutdown should live here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: questhub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Bearer tokens
	JWTSecret string
	TokenTTL  time.Duration

	// Accounts
	AllowTeacherSignup bool   // let /api/auth/register create teachers
	AdminEmail         string // promoted to (or created as) admin on startup
	AdminPassword      string // initial password when AdminEmail has to be created
	LoginRateLimit     int    // sign-in attempts per IP per minute

	// CORS
	CORSOrigins []string

	// File storage configuration
	StorageType      string // Storage backend: "local" or "s3"
	StorageLocalPath string // Local storage path (e.g., "./uploads")
	StorageLocalURL  string // URL prefix for serving local files (e.g., "/uploads/")

	// S3 configuration (only used if StorageType is "s3")
	StorageS3Region    string
	StorageS3Bucket    string
	StorageS3Prefix    string // Key prefix (e.g., "evidence/")
	StorageS3PublicURL string // CDN or website base URL; blank uses the bucket URL

	// GitHub commit sync
	GitHubToken   string
	GitHubBaseURL string

	// Template generation (OpenAI-compatible chat completions)
	TemplateEndpoint string
	TemplateAPIKey   string
	TemplateModel    string

	// Code execution sandbox
	CodeExecEndpoint string

	// Notification dispatcher
	NotifyQueueSize int

	// Audit logging destinations: all, db, log, off
	AuditLogAuth  string
	AuditLogAdmin string

	// Handler deadlines
	Timeouts TimeoutConfig
}

// TimeoutConfig mirrors timeouts.Config so it can be loaded from keys.
type TimeoutConfig struct {
	Short    time.Duration
	Medium   time.Duration
	Long     time.Duration
	Upstream time.Duration
}
