// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/questhub/internal/app/store/audit"
)

// listItem is one audit event with actor and target names resolved.
type listItem struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Category   string            `json:"category"`
	EventType  string            `json:"event_type"`
	ActorName  string            `json:"actor_name,omitempty"`  // resolved from ActorID
	TargetName string            `json:"target_name,omitempty"` // resolved from UserID
	IP         string            `json:"ip"`
	Success    bool              `json:"success"`
	Reason     string            `json:"failure_reason,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

type listResponse struct {
	Events     []listItem `json:"events"`
	Page       int        `json:"page"`
	TotalPages int        `json:"total_pages"`
	Total      int64      `json:"total"`
	HasPrev    bool       `json:"has_prev"`
	HasNext    bool       `json:"has_next"`
}

type categoryOption struct {
	Value  string   `json:"value"`
	Label  string   `json:"label"`
	Events []string `json:"events"`
}

// allCategories returns the filterable categories and their event types.
func allCategories() []categoryOption {
	return []categoryOption{
		{Value: audit.CategoryAuth, Label: "Authentication", Events: eventTypesForCategory(audit.CategoryAuth)},
		{Value: audit.CategoryAdmin, Label: "Administration", Events: eventTypesForCategory(audit.CategoryAdmin)},
	}
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types.
func eventTypesForCategory(category string) []string {
	authEvents := []string{
		audit.EventLoginSuccess,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedUserDisabled,
		audit.EventLoginFailedRateLimit,
		audit.EventLogout,
		audit.EventRegistered,
	}

	adminEvents := []string{
		audit.EventUserActivated,
		audit.EventUserDeactivated,
		audit.EventProjectDeleted,
		audit.EventGroupCreated,
		audit.EventGroupUpdated,
		audit.EventGroupDeleted,
		audit.EventGroupsBalanced,
		audit.EventMasteryUpdated,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryAdmin:
		return adminEvents
	default:
		return append(append([]string{}, authEvents...), adminEvents...)
	}
}

func knownCategory(c string) bool {
	return c == "" || c == audit.CategoryAuth || c == audit.CategoryAdmin
}
