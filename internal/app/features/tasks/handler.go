// internal/app/features/tasks/handler.go
package tasks

import (
	"github.com/dalemusser/questhub/internal/app/taskflow"
	"go.uber.org/zap"
)

// Handler serves the task endpoints. All task rules live in the engine;
// the handlers only translate between HTTP and engine calls.
type Handler struct {
	Engine *taskflow.Engine
	Log    *zap.Logger
}

// NewHandler constructs a tasks Handler.
func NewHandler(engine *taskflow.Engine, logger *zap.Logger) *Handler {
	return &Handler{
		Engine: engine,
		Log:    logger,
	}
}
