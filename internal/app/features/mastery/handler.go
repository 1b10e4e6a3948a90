// internal/app/features/mastery/handler.go
package mastery

import (
	"github.com/dalemusser/questhub/internal/app/system/auditlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler records student mastery scores, one student at a time or in bulk
// from a CSV file.
type Handler struct {
	DB       *mongo.Database
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{DB: db, AuditLog: audit, Log: logger}
}
