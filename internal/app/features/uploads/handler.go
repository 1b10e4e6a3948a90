// internal/app/features/uploads/handler.go
package uploads

import (
	"github.com/dalemusser/questhub/internal/app/system/objectstore"
	"go.uber.org/zap"
)

// Handler stores evidence files. The returned url and storage_id are then
// attached to a task through the evidence endpoint.
type Handler struct {
	Store objectstore.Store
	Log   *zap.Logger
}

func NewHandler(store objectstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Log: logger}
}
