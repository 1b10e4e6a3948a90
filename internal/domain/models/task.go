// internal/domain/models/task.go
package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Priority levels for a task.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
	PriorityUrgent = "Urgent"
)

// Priorities is the canonical list of priorities.
var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// ParsePriority matches s case-insensitively against Priorities and
// returns the canonical spelling. An empty s yields Medium.
func ParsePriority(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PriorityMedium, true
	}
	for _, p := range Priorities {
		if strings.EqualFold(p, s) {
			return p, true
		}
	}
	return "", false
}

// DefaultTaskPoints is the XP payout for a task created without explicit points.
const DefaultTaskPoints = 10

// Evidence resource types.
const (
	ResourceImage = "image"
	ResourceVideo = "video"
	ResourceRaw   = "raw"
	ResourceLink  = "link"
)

// Submission types.
const (
	SubmissionLink   = "link"
	SubmissionFile   = "file"
	SubmissionCode   = "code"
	SubmissionGitHub = "github"
)

// IsSubmissionType reports whether s is a known submission type.
func IsSubmissionType(s string) bool {
	switch s {
	case SubmissionLink, SubmissionFile, SubmissionCode, SubmissionGitHub:
		return true
	}
	return false
}

// Task is one unit of student work inside a project.
type Task struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectID   primitive.ObjectID `bson:"project_id" json:"project_id"`
	AssigneeID  primitive.ObjectID `bson:"assignee_id" json:"assignee_id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Status      TaskStatus         `bson:"status" json:"status"`
	Priority    string             `bson:"priority" json:"priority"`
	Points      int                `bson:"points" json:"points"`
	DueDate     *time.Time         `bson:"due_date,omitempty" json:"due_date,omitempty"`

	// Evidence ledger. EvidenceLinks is append-only.
	EvidenceLinks  []Evidence         `bson:"evidence_links" json:"evidence_links"`
	GitHubRepo     *GitHubRepo        `bson:"github_repo,omitempty" json:"github_repo,omitempty"`
	GitHubCommits  []GitHubCommit     `bson:"github_commits,omitempty" json:"github_commits,omitempty"`
	CodeSubmission *CodeSubmission    `bson:"code_submission,omitempty" json:"code_submission,omitempty"`
	SubmissionType string             `bson:"submission_type,omitempty" json:"submission_type,omitempty"`
	Feedback       *Feedback          `bson:"feedback,omitempty" json:"feedback,omitempty"`
	ReviewCycle    int                `bson:"review_cycle" json:"review_cycle"`
	XPAwarded      bool               `bson:"xp_awarded" json:"xp_awarded"`
	CompletedAt    *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CreatedByID    primitive.ObjectID `bson:"created_by_id" json:"created_by_id"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Evidence is one entry of a task's evidence ledger.
type Evidence struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	URL          string             `bson:"url" json:"url"`
	StorageID    string             `bson:"storage_id,omitempty" json:"storage_id,omitempty"`
	ResourceType string             `bson:"resource_type" json:"resource_type"`
	AddedByID    primitive.ObjectID `bson:"added_by_id" json:"added_by_id"`
	AddedAt      time.Time          `bson:"added_at" json:"added_at"`
}

// GitHubRepo is the single-slot repository binding of a task.
type GitHubRepo struct {
	Owner    string    `bson:"owner" json:"owner"`
	Repo     string    `bson:"repo" json:"repo"`
	URL      string    `bson:"url" json:"url"`
	LinkedAt time.Time `bson:"linked_at" json:"linked_at"`
}

// GitHubCommit is one entry of the last fetched commit snapshot.
type GitHubCommit struct {
	SHA     string    `bson:"sha" json:"sha"`
	Message string    `bson:"message" json:"message"`
	Author  string    `bson:"author" json:"author"`
	Date    time.Time `bson:"date" json:"date"`
	URL     string    `bson:"url" json:"url"`
}

// CodeSubmission is the latest code a student submitted for a task.
type CodeSubmission struct {
	Code        string    `bson:"code" json:"code"`
	Language    string    `bson:"language" json:"language"`
	SubmittedAt time.Time `bson:"submitted_at" json:"submitted_at"`
}

// Feedback is the teacher's comment for one review cycle.
type Feedback struct {
	Text      string             `bson:"text" json:"text"`
	AuthorID  primitive.ObjectID `bson:"author_id" json:"author_id"`
	Cycle     int                `bson:"cycle" json:"cycle"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// EffectivePoints returns the configured XP payout, falling back to the default.
func (t Task) EffectivePoints() int {
	if t.Points <= 0 {
		return DefaultTaskPoints
	}
	return t.Points
}

// LastEvidenceAt returns the timestamp of the newest evidence entry, or zero.
func (t Task) LastEvidenceAt() time.Time {
	var last time.Time
	for _, e := range t.EvidenceLinks {
		if e.AddedAt.After(last) {
			last = e.AddedAt
		}
	}
	return last
}
