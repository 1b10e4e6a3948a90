// internal/app/features/health/handler.go
package health

import (
	"context"
	"net/http"

	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// QueueReporter reports the notification queue fill level.
type QueueReporter interface {
	QueueDepth() (depth, capacity int)
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client *mongo.Client
	Queue  QueueReporter
	Log    *zap.Logger
}

// NewHandler constructs a health Handler. queue may be nil.
func NewHandler(client *mongo.Client, queue QueueReporter, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		Queue:  queue,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string       `json:"status"`
	Database string       `json:"database"`
	Message  string       `json:"message,omitempty"`
	Error    string       `json:"error,omitempty"`
	Queue    *queueStatus `json:"notify_queue,omitempty"`
}

type queueStatus struct {
	Depth    int `json:"depth"`
	Capacity int `json:"capacity"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "notify_queue":{"depth":0,"capacity":256} }
//
// On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}
	if h.Queue != nil {
		depth, capacity := h.Queue.QueueDepth()
		resp.Queue = &queueStatus{Depth: depth, Capacity: capacity}
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		jsonutil.Write(w, http.StatusServiceUnavailable, resp)
		return
	}

	jsonutil.OK(w, resp)
}
