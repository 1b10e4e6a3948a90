// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/questhub/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for QuestHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: QUESTHUB_MONGO_URI, QUESTHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "questhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "questhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},

	// Bearer tokens
	{Name: "jwt_secret", Default: "dev-only-jwt-secret-change-me-0123456789", Desc: "HS256 signing secret for API tokens (32+ chars in prod)"},
	{Name: "token_ttl", Default: "24h", Desc: "API token lifetime"},

	// Accounts
	{Name: "allow_teacher_signup", Default: false, Desc: "Allow self-registration with the teacher role"},
	{Name: "admin_email", Default: "", Desc: "Email of a user to promote to admin on startup (created if missing)"},
	{Name: "admin_password", Default: "", Desc: "Initial password used only when admin_email does not exist yet"},
	{Name: "login_rate_limit", Default: 20, Desc: "Sign-in attempts allowed per IP per minute"},

	// CORS
	{Name: "cors_origins", Default: "http://localhost:5173", Desc: "Comma-separated list of allowed browser origins"},

	// File storage configuration
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for uploaded files"},
	{Name: "storage_local_url", Default: "/uploads/", Desc: "URL prefix for serving local files"},

	// S3 configuration
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "uploads/", Desc: "S3 key prefix"},
	{Name: "storage_s3_public_url", Default: "", Desc: "Public base URL for stored objects (CDN)"},

	// External collaborators
	{Name: "github_token", Default: "", Desc: "GitHub token for commit sync (blank makes unauthenticated calls)"},
	{Name: "github_base_url", Default: "https://api.github.com", Desc: "GitHub REST API base URL"},
	{Name: "template_endpoint", Default: "", Desc: "OpenAI-compatible API base URL for template generation (blank uses built-ins)"},
	{Name: "template_api_key", Default: "", Desc: "API key for the template endpoint"},
	{Name: "template_model", Default: "gpt-4o-mini", Desc: "Model name for template generation"},
	{Name: "code_exec_endpoint", Default: "https://emkc.org/api/v2/piston", Desc: "Code execution sandbox base URL (blank disables /api/code/run)"},

	// Notifications
	{Name: "notify_queue_size", Default: 256, Desc: "Notification dispatch queue capacity"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Handler deadlines
	{Name: "timeout_short", Default: "5s", Desc: "Deadline for single-document operations"},
	{Name: "timeout_medium", Default: "10s", Desc: "Deadline for list queries"},
	{Name: "timeout_long", Default: "30s", Desc: "Deadline for multi-collection writes"},
	{Name: "timeout_upstream", Default: "20s", Desc: "Deadline for calls to external services"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, QUESTHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "QUESTHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 30*24*time.Hour),

		JWTSecret: appValues.String("jwt_secret"),
		TokenTTL:  appValues.Duration("token_ttl", 24*time.Hour),

		AllowTeacherSignup: appValues.Bool("allow_teacher_signup"),
		AdminEmail:         appValues.String("admin_email"),
		AdminPassword:      appValues.String("admin_password"),
		LoginRateLimit:     appValues.Int("login_rate_limit"),

		CORSOrigins: splitList(appValues.String("cors_origins")),

		// File storage
		StorageType:      strings.ToLower(appValues.String("storage_type")),
		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),

		// S3
		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageS3PublicURL: appValues.String("storage_s3_public_url"),

		GitHubToken:      appValues.String("github_token"),
		GitHubBaseURL:    appValues.String("github_base_url"),
		TemplateEndpoint: appValues.String("template_endpoint"),
		TemplateAPIKey:   appValues.String("template_api_key"),
		TemplateModel:    appValues.String("template_model"),
		CodeExecEndpoint: appValues.String("code_exec_endpoint"),

		NotifyQueueSize: appValues.Int("notify_queue_size"),

		// Audit logging
		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),

		Timeouts: TimeoutConfig{
			Short:    appValues.Duration("timeout_short", 5*time.Second),
			Medium:   appValues.Duration("timeout_medium", 10*time.Second),
			Long:     appValues.Duration("timeout_long", 30*time.Second),
			Upstream: appValues.Duration("timeout_upstream", 20*time.Second),
		},
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// QuestHub validates the MongoDB URI format to catch configuration
// errors early, before attempting to connect.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(coreCfg.Env, appCfg)
}

// validateApp holds the checks that do not need a logger.
func validateApp(env string, appCfg AppConfig) error {
	switch appCfg.StorageType {
	case "local":
		if appCfg.StorageLocalPath == "" {
			return fmt.Errorf("storage_type local requires storage_local_path")
		}
	case "s3":
		if appCfg.StorageS3Bucket == "" || appCfg.StorageS3Region == "" {
			return fmt.Errorf("storage_type s3 requires storage_s3_bucket and storage_s3_region")
		}
	default:
		return fmt.Errorf("storage_type must be 'local' or 's3', got %q", appCfg.StorageType)
	}

	if env == "prod" && len(appCfg.JWTSecret) < 32 {
		return fmt.Errorf("jwt_secret must be at least 32 characters in prod")
	}

	for name, mode := range map[string]string{"audit_log_auth": appCfg.AuditLogAuth, "audit_log_admin": appCfg.AuditLogAdmin} {
		switch mode {
		case auditlog.ModeAll, auditlog.ModeDB, auditlog.ModeLog, auditlog.ModeOff:
		default:
			return fmt.Errorf("%s must be all, db, log or off, got %q", name, mode)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
