// internal/app/policy/taskpolicy/taskpolicy.go
package taskpolicy

import (
	"context"

	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Relation is how a user relates to a task. The first match wins.
type Relation int

const (
	None Relation = iota
	Teacher
	Assignee
	GroupMember
)

func (r Relation) String() string {
	switch r {
	case Teacher:
		return "teacher"
	case Assignee:
		return "assignee"
	case GroupMember:
		return "group_member"
	}
	return "none"
}

// StudentSide reports whether r is limited to the student update schema.
func (r Relation) StudentSide() bool { return r == Assignee || r == GroupMember }

// Groups finds the groups bound to a project.
type Groups interface {
	IDsByProject(ctx context.Context, projectID primitive.ObjectID) ([]primitive.ObjectID, error)
}

// Memberships answers group membership questions.
type Memberships interface {
	IsMemberOfAny(ctx context.Context, groupIDs []primitive.ObjectID, userID primitive.ObjectID) (bool, error)
}

// Resolve determines userID's relation to task, checking the project's
// teacher first, then the assignee, then membership in a group bound to
// the task's project. Group lookups only happen when the cheaper checks fail.
func Resolve(ctx context.Context, groups Groups, members Memberships, project models.Project, task models.Task, userID primitive.ObjectID) (Relation, error) {
	if userID.IsZero() {
		return None, nil
	}
	if project.TeacherID == userID {
		return Teacher, nil
	}
	if task.AssigneeID == userID {
		return Assignee, nil
	}
	groupIDs, err := groups.IDsByProject(ctx, task.ProjectID)
	if err != nil {
		return None, err
	}
	ok, err := members.IsMemberOfAny(ctx, groupIDs, userID)
	if err != nil {
		return None, err
	}
	if ok {
		return GroupMember, nil
	}
	return None, nil
}

// studentMoves is the full set of status changes a student-side actor may make.
var studentMoves = map[models.TaskStatus][]models.TaskStatus{
	models.StatusBacklog:       {models.StatusInProgress, models.StatusReadyForReview},
	models.StatusInProgress:    {models.StatusBacklog, models.StatusReadyForReview},
	models.StatusNeedsRevision: {models.StatusInProgress, models.StatusReadyForReview},
}

// StudentCanMove reports whether a student-side actor may move a task from
// one status to another. Staying put is always allowed.
func StudentCanMove(from, to models.TaskStatus) bool {
	if from == to {
		return true
	}
	for _, s := range studentMoves[from] {
		if s == to {
			return true
		}
	}
	return false
}
