// internal/app/features/account/handler.go
package account

import (
	"github.com/dalemusser/questhub/internal/app/system/auditlog"
	"github.com/dalemusser/questhub/internal/app/system/auth"
	"github.com/dalemusser/questhub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves registration, sign-in and the caller's own account.
type Handler struct {
	DB         *mongo.Database
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter
	AuditLog   *auditlog.Logger
	Log        *zap.Logger

	// AllowTeacherSignup lets self-registration create teacher accounts.
	// Students can always register.
	AllowTeacherSignup bool
}

func NewHandler(db *mongo.Database, sm *auth.SessionManager, limiter *ratelimit.LoginLimiter, audit *auditlog.Logger, allowTeacherSignup bool, logger *zap.Logger) *Handler {
	return &Handler{
		DB:                 db,
		SessionMgr:         sm,
		Limiter:            limiter,
		AuditLog:           audit,
		Log:                logger,
		AllowTeacherSignup: allowTeacherSignup,
	}
}
