// internal/app/features/admin/handler.go
package admin

import (
	"github.com/dalemusser/questhub/internal/app/system/auditlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the admin-only user directory and site statistics.
type Handler struct {
	DB       *mongo.Database
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{DB: db, AuditLog: audit, Log: logger}
}
