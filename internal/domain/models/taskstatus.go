// internal/domain/models/taskstatus.go
package models

import (
	"errors"
	"strings"
)

// TaskStatus is the closed set of board states a task can be in.
type TaskStatus string

const (
	StatusBacklog        TaskStatus = "Backlog"
	StatusInProgress     TaskStatus = "In Progress"
	StatusReadyForReview TaskStatus = "Ready for Review"
	StatusNeedsRevision  TaskStatus = "Needs Revision"
	StatusDone           TaskStatus = "Done"
)

// TaskStatuses lists every canonical status in board order.
var TaskStatuses = []TaskStatus{
	StatusBacklog,
	StatusInProgress,
	StatusReadyForReview,
	StatusNeedsRevision,
	StatusDone,
}

// DefaultColumns is used for projects created without an explicit column list.
var DefaultColumns = []TaskStatus{
	StatusBacklog,
	StatusInProgress,
	StatusReadyForReview,
	StatusNeedsRevision,
	StatusDone,
}

// ErrUnknownStatus is returned by ParseTaskStatus for strings that are neither
// canonical nor a known legacy alias.
var ErrUnknownStatus = errors.New("unknown task status")

// legacyStatuses maps folded legacy spellings to canonical statuses.
var legacyStatuses = map[string]TaskStatus{
	"backlog":          StatusBacklog,
	"to do":            StatusBacklog,
	"todo":             StatusBacklog,
	"in progress":      StatusInProgress,
	"in-progress":      StatusInProgress,
	"ready for review": StatusReadyForReview,
	"review":           StatusReadyForReview,
	"under review":     StatusReadyForReview,
	"pending":          StatusReadyForReview,
	"needs revision":   StatusNeedsRevision,
	"revision":         StatusNeedsRevision,
	"rejected":         StatusNeedsRevision,
	"done":             StatusDone,
	"completed":        StatusDone,
}

// ParseTaskStatus maps canonical names and legacy aliases to a TaskStatus.
// Matching ignores case and surrounding whitespace.
func ParseTaskStatus(s string) (TaskStatus, error) {
	key := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if st, ok := legacyStatuses[key]; ok {
		return st, nil
	}
	return "", ErrUnknownStatus
}

// IsReview reports whether s is the review state.
func (s TaskStatus) IsReview() bool { return s == StatusReadyForReview }

// IsTerminal reports whether s is the completed state.
func (s TaskStatus) IsTerminal() bool { return s == StatusDone }

// Valid reports whether s is a canonical status.
func (s TaskStatus) Valid() bool {
	for _, c := range TaskStatuses {
		if c == s {
			return true
		}
	}
	return false
}
