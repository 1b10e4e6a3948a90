// internal/app/features/projects/handler.go
package projects

import (
	"github.com/dalemusser/questhub/internal/app/system/auditlog"
	"github.com/dalemusser/questhub/internal/app/system/templategen"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the dependency container for the projects feature. Stores are
// built per request from DB, the same way the other features do it.
type Handler struct {
	DB        *mongo.Database
	Templates *templategen.Generator
	Audit     *auditlog.Logger
	Log       *zap.Logger
}

// NewHandler constructs a projects Handler. templates may be nil, in which
// case only explicit task lists can be applied.
func NewHandler(db *mongo.Database, templates *templategen.Generator, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:        db,
		Templates: templates,
		Audit:     audit,
		Log:       logger,
	}
}
