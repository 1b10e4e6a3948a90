// internal/app/features/auditlog/list.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/questhub/internal/app/store/audit"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/normalize"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const pageSize = 50

const dateLayout = "2006-01-02"

// ServeList handles GET /api/admin/audit.
//
// Filters: ?category=, ?event_type=, ?user_id=, ?start_date= and
// ?end_date= (YYYY-MM-DD, end date inclusive). Offset paging via ?page=.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := normalize.FilterID(q.Get("category"))
	if !knownCategory(category) {
		jsonutil.Error(w, r, h.Log, apierr.Invalid("unknown category", nil))
		return
	}

	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	filter := audit.QueryFilter{
		Category:  category,
		EventType: normalize.FilterID(q.Get("event_type")),
		Limit:     pageSize,
		Offset:    int64((page - 1) * pageSize),
	}
	if raw := normalize.FilterID(q.Get("user_id")); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			jsonutil.Error(w, r, h.Log, apierr.Invalid("bad user id", nil))
			return
		}
		filter.UserID = &id
	}
	if raw := strings.TrimSpace(q.Get("start_date")); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			jsonutil.Error(w, r, h.Log, apierr.Invalid("start_date must be YYYY-MM-DD", nil))
			return
		}
		filter.StartTime = &t
	}
	if raw := strings.TrimSpace(q.Get("end_date")); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			jsonutil.Error(w, r, h.Log, apierr.Invalid("end_date must be YYYY-MM-DD", nil))
			return
		}
		// End of day
		end := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &end
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	store := audit.New(h.DB)
	events, err := store.Query(ctx, filter)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	total, err := store.Count(ctx, filter)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	names := h.resolveNames(ctx, events)
	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{
			ID:        e.ID.Hex(),
			Timestamp: e.Timestamp,
			Category:  e.Category,
			EventType: e.EventType,
			IP:        e.IP,
			Success:   e.Success,
			Reason:    e.FailureReason,
			Details:   e.Details,
		}
		if e.ActorID != nil {
			item.ActorName = nameOr(names, *e.ActorID)
		}
		if e.UserID != nil {
			item.TargetName = nameOr(names, *e.UserID)
		}
		items = append(items, item)
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	jsonutil.OK(w, listResponse{
		Events:     items,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	})
}

// ServeTypes handles GET /api/admin/audit/types.
func (h *Handler) ServeTypes(w http.ResponseWriter, r *http.Request) {
	jsonutil.OK(w, map[string]any{"categories": allCategories()})
}

// resolveNames batch-fetches user names for every actor and target. A
// lookup failure is logged and the raw ids are shown instead.
func (h *Handler) resolveNames(ctx context.Context, events []audit.Event) map[primitive.ObjectID]string {
	seen := make(map[primitive.ObjectID]struct{})
	for _, e := range events {
		if e.ActorID != nil {
			seen[*e.ActorID] = struct{}{}
		}
		if e.UserID != nil {
			seen[*e.UserID] = struct{}{}
		}
	}
	names := make(map[primitive.ObjectID]string, len(seen))
	if len(seen) == 0 {
		return names
	}
	ids := make([]primitive.ObjectID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	users, err := userstore.New(h.DB).GetMany(ctx, ids)
	if err != nil {
		h.Log.Warn("failed to fetch user names for audit log", zap.Error(err))
		return names
	}
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	return names
}

func nameOr(names map[primitive.ObjectID]string, id primitive.ObjectID) string {
	if n, ok := names[id]; ok {
		return n
	}
	return id.Hex()
}
