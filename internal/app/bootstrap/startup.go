// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/questhub/internal/app/store/audit"
	groupstore "github.com/dalemusser/questhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/questhub/internal/app/store/memberships"
	notificationstore "github.com/dalemusser/questhub/internal/app/store/notifications"
	projectstore "github.com/dalemusser/questhub/internal/app/store/projects"
	taskstore "github.com/dalemusser/questhub/internal/app/store/tasks"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/auditlog"
	"github.com/dalemusser/questhub/internal/app/system/codeexec"
	"github.com/dalemusser/questhub/internal/app/system/github"
	"github.com/dalemusser/questhub/internal/app/system/objectstore"
	"github.com/dalemusser/questhub/internal/app/system/ratelimit"
	"github.com/dalemusser/questhub/internal/app/system/templategen"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/app/system/workers"
	"github.com/dalemusser/questhub/internal/app/taskflow"
	"github.com/dalemusser/questhub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Services are the long-lived collaborators shared by the handlers.
type Services struct {
	AuditLog     *auditlog.Logger
	Notifier     *workers.Notifier
	LoginLimiter *ratelimit.LoginLimiter
	Objects      objectstore.Store
	LocalFiles   *objectstore.Local // set only for the local backend
	Templates    *templategen.Generator
	CodeExec     *codeexec.Client // refuses runs when no endpoint is configured
	Engine       *taskflow.Engine
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built: deadlines
// are applied, the admin account is ensured and the background workers and
// external clients are created.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:    appCfg.Timeouts.Short,
		Medium:   appCfg.Timeouts.Medium,
		Long:     appCfg.Timeouts.Long,
		Upstream: appCfg.Timeouts.Upstream,
	})
	timeouts.Log(logger)

	db := deps.MongoDatabase
	if appCfg.AdminEmail != "" {
		if err := ensureAdmin(ctx, db, appCfg.AdminEmail, appCfg.AdminPassword, logger); err != nil {
			return err
		}
	}

	svc := deps.Services
	svc.AuditLog = auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})

	objects, local, err := openObjectStore(ctx, appCfg)
	if err != nil {
		return err
	}
	svc.Objects, svc.LocalFiles = objects, local
	logger.Info("object storage ready", zap.String("type", appCfg.StorageType))

	gen, err := templategen.New(templategen.Config{
		Endpoint: appCfg.TemplateEndpoint,
		APIKey:   appCfg.TemplateAPIKey,
		Model:    appCfg.TemplateModel,
		Timeout:  timeouts.Upstream(),
	}, logger)
	if err != nil {
		return err
	}
	svc.Templates = gen

	svc.CodeExec = codeexec.New(appCfg.CodeExecEndpoint, timeouts.Upstream())

	svc.LoginLimiter = ratelimit.NewLoginLimiter(appCfg.LoginRateLimit)

	svc.Notifier = workers.NewNotifier(notificationstore.New(db), logger, appCfg.NotifyQueueSize)
	svc.Notifier.Start()

	svc.Engine = taskflow.New(taskflow.Deps{
		Tasks:       taskstore.New(db),
		Projects:    projectstore.New(db),
		Users:       userstore.New(db),
		Groups:      groupstore.New(db),
		Memberships: membershipstore.New(db),
		Notifier:    svc.Notifier,
		Commits:     github.New(appCfg.GitHubToken, appCfg.GitHubBaseURL, timeouts.Upstream()),
		Log:         logger,
	})
	return nil
}

func openObjectStore(ctx context.Context, appCfg AppConfig) (objectstore.Store, *objectstore.Local, error) {
	if appCfg.StorageType == "s3" {
		s3, err := objectstore.NewS3(ctx, objectstore.S3Config{
			Region:    appCfg.StorageS3Region,
			Bucket:    appCfg.StorageS3Bucket,
			Prefix:    appCfg.StorageS3Prefix,
			PublicURL: appCfg.StorageS3PublicURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3, nil, nil
	}
	local, err := objectstore.NewLocal(appCfg.StorageLocalPath, appCfg.StorageLocalURL)
	if err != nil {
		return nil, nil, err
	}
	return local, local, nil
}

// ensureAdmin promotes the user with email to admin, creating the account
// with password when it does not exist yet.
func ensureAdmin(ctx context.Context, db *mongo.Database, email, password string, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	users := userstore.New(db)
	u, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role == models.RoleAdmin && u.IsActive {
			return nil
		}
		if err := users.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
			return fmt.Errorf("promote admin: %w", err)
		}
		logger.Info("promoted user to admin", zap.String("email", u.Email), zap.String("previous_role", u.Role))
		return nil
	case errors.Is(err, userstore.ErrNotFound):
		if password == "" {
			logger.Warn("admin_email does not exist and no admin_password is set; skipping", zap.String("email", email))
			return nil
		}
		created, err := users.Create(ctx, models.User{FullName: "Administrator", Email: email, Role: models.RoleAdmin}, password)
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		logger.Info("created admin user", zap.String("email", created.Email))
		return nil
	default:
		return fmt.Errorf("look up admin: %w", err)
	}
}
