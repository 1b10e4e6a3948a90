// internal/app/features/groups/handler.go
package groups

import (
	"github.com/dalemusser/questhub/internal/app/system/auditlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the groups feature.
// It holds the Mongo database, the audit logger and the logger so that
// the list, edit and balance handlers share the same dependencies.
type Handler struct {
	DB    *mongo.Database
	Audit *auditlog.Logger
	Log   *zap.Logger
}

// NewHandler constructs a new groups Handler. It is typically called
// from the bootstrap BuildHandler function, where the application's
// DB and logger are already initialized.
func NewHandler(db *mongo.Database, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:    db,
		Audit: audit,
		Log:   logger,
	}
}
