// internal/app/taskflow/update.go
package taskflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dalemusser/questhub/internal/app/policy/taskpolicy"
	taskstore "github.com/dalemusser/questhub/internal/app/store/tasks"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/questhub/internal/app/system/inputval"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CodeInput is a code submission as sent by the client.
type CodeInput struct {
	Code     string `json:"code" validate:"required,max=65536" label:"Code"`
	Language string `json:"language" validate:"required,max=32" label:"Language"`
}

// EvidenceInput is one evidence entry as sent by the client.
type EvidenceInput struct {
	URL          string `json:"url" validate:"required,max=2048,httpurl" label:"URL"`
	StorageID    string `json:"storage_id" validate:"max=256" label:"Storage ID"`
	ResourceType string `json:"resource_type" validate:"omitempty,oneof=image video raw link" label:"Resource type"`
}

// StudentUpdate is everything an assignee or group member may send.
// Any other field rejects the whole request.
type StudentUpdate struct {
	Status         *string         `json:"status"`
	CodeSubmission *CodeInput      `json:"code_submission"`
	SubmissionType *string         `json:"submission_type" validate:"omitempty,submissiontype" label:"Submission type"`
	EvidenceLinks  []EvidenceInput `json:"evidence_links" validate:"dive"`
}

// TeacherUpdate is everything the project's teacher may send.
type TeacherUpdate struct {
	Title          *string         `json:"title" validate:"omitempty,max=200" label:"Title"`
	Description    *string         `json:"description" validate:"omitempty,max=10000" label:"Description"`
	Status         *string         `json:"status"`
	Priority       *string         `json:"priority" validate:"omitempty,priority" label:"Priority"`
	Points         *int            `json:"points"`
	DueDate        *time.Time      `json:"due_date"`
	ClearDueDate   bool            `json:"clear_due_date"`
	AssigneeID     *string         `json:"assignee_id" validate:"omitempty,objectid" label:"Assignee"`
	Feedback       *string         `json:"feedback" validate:"omitempty,max=5000" label:"Feedback"`
	CodeSubmission *CodeInput      `json:"code_submission"`
	SubmissionType *string         `json:"submission_type" validate:"omitempty,submissiontype" label:"Submission type"`
	EvidenceLinks  []EvidenceInput `json:"evidence_links" validate:"dive"`
}

// MaxPoints caps the XP a teacher can put on a single task.
const MaxPoints = 1000

// change is the filtered, validated form of an update.
type change struct {
	patch    taskstore.Patch
	evidence []EvidenceInput
	to       models.TaskStatus // zero when status is unchanged
}

// Update applies a partial update sent by a. The body is decoded against
// the schema for a's relation to the task: a student-side caller sending a
// field outside StudentUpdate is refused and nothing is written.
func (e *Engine) Update(ctx context.Context, a Actor, taskID primitive.ObjectID, body []byte) (Outcome, error) {
	sc, err := e.authorize(ctx, a, taskID)
	if err != nil {
		return Outcome{}, err
	}

	var ch change
	if sc.rel == taskpolicy.Teacher {
		var u TeacherUpdate
		if field, err := decodeStrict(body, &u); err != nil {
			return Outcome{}, err
		} else if field != "" {
			return Outcome{}, apierr.Invalid(fmt.Sprintf("unknown field %q", field), nil)
		}
		if ch, err = e.teacherChange(ctx, a, sc, u); err != nil {
			return Outcome{}, err
		}
	} else {
		var u StudentUpdate
		if field, err := decodeStrict(body, &u); err != nil {
			return Outcome{}, err
		} else if field != "" {
			return Outcome{}, apierr.Forbidden(fmt.Sprintf(
				"students may only change status, code_submission, submission_type and evidence_links (got %q)", field))
		}
		if ch, err = e.studentChange(sc, u); err != nil {
			return Outcome{}, err
		}
	}
	if ch.patch.Empty() && len(ch.evidence) == 0 {
		return Outcome{}, apierr.Invalid("nothing to update", nil)
	}

	// persist
	t := sc.task
	if !ch.patch.Empty() {
		if t, err = e.tasks.Apply(ctx, t.ID, ch.patch); err != nil {
			return Outcome{}, storeErr(err)
		}
	}
	if len(ch.evidence) > 0 {
		if t, err = e.appendEvidence(ctx, a, t, ch.evidence); err != nil {
			return Outcome{}, err
		}
	}

	// notify
	e.notifyUpdate(a, sc, t, ch)

	// pay out
	out := Outcome{Task: t}
	if ch.to == models.StatusDone {
		e.payout(ctx, &out)
	}
	return out, nil
}

// studentChange filters a student-side update down to a patch.
func (e *Engine) studentChange(sc scope, u StudentUpdate) (change, error) {
	if res := inputval.Validate(u); res.HasErrors() {
		return change{}, invalid(res)
	}
	ch := change{evidence: u.EvidenceLinks}

	if u.Status != nil {
		to, err := e.targetStatus(sc.project, *u.Status)
		if err != nil {
			return change{}, err
		}
		if to != sc.task.Status && !taskpolicy.StudentCanMove(sc.task.Status, to) {
			return change{}, apierr.Forbidden(fmt.Sprintf("students cannot move a task from %s to %s", sc.task.Status, to))
		}
		ch.setStatus(sc.task, to, e.now())
	}
	if err := ch.setCode(u.CodeSubmission, u.SubmissionType, e.now()); err != nil {
		return change{}, err
	}
	return ch, nil
}

// teacherChange filters a teacher update down to a patch.
func (e *Engine) teacherChange(ctx context.Context, a Actor, sc scope, u TeacherUpdate) (change, error) {
	if res := inputval.Validate(u); res.HasErrors() {
		return change{}, invalid(res)
	}
	ch := change{evidence: u.EvidenceLinks}
	p := &ch.patch

	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return change{}, apierr.Invalid("Title is required.", map[string]string{"title": "Title is required."})
		}
		p.Title = &title
	}
	if u.Description != nil {
		desc := htmlsanitize.Sanitize(*u.Description)
		p.Description = &desc
	}
	if u.Priority != nil {
		pr, _ := models.ParsePriority(*u.Priority)
		p.Priority = &pr
	}
	if u.Points != nil {
		if *u.Points < 1 || *u.Points > MaxPoints {
			msg := fmt.Sprintf("Points must be between 1 and %d.", MaxPoints)
			return change{}, apierr.Invalid(msg, map[string]string{"points": msg})
		}
		p.Points = u.Points
	}
	if u.ClearDueDate {
		p.ClearDueDate = true
	} else if u.DueDate != nil {
		d := u.DueDate.UTC()
		p.DueDate = &d
	}
	if u.AssigneeID != nil {
		id, _ := primitive.ObjectIDFromHex(*u.AssigneeID)
		if id != sc.task.AssigneeID {
			if err := e.activeStudent(ctx, id); err != nil {
				return change{}, err
			}
			p.AssigneeID = &id
		}
	}
	if u.Status != nil {
		to, err := e.targetStatus(sc.project, *u.Status)
		if err != nil {
			return change{}, err
		}
		ch.setStatus(sc.task, to, e.now())
	}
	if u.Feedback != nil {
		text := htmlsanitize.Sanitize(strings.TrimSpace(*u.Feedback))
		if text == "" {
			return change{}, apierr.Invalid("Feedback is required.", map[string]string{"feedback": "Feedback is required."})
		}
		cycle := sc.task.ReviewCycle
		if p.IncReviewCycle {
			cycle++
		}
		p.Feedback = &models.Feedback{Text: text, AuthorID: a.ID, Cycle: cycle, CreatedAt: e.now()}
	}
	if err := ch.setCode(u.CodeSubmission, u.SubmissionType, e.now()); err != nil {
		return change{}, err
	}
	return ch, nil
}

// targetStatus parses raw and checks it against the project's columns.
func (e *Engine) targetStatus(p models.Project, raw string) (models.TaskStatus, error) {
	to, err := models.ParseTaskStatus(raw)
	if err != nil {
		msg := fmt.Sprintf("unknown status %q", raw)
		return "", apierr.Invalid(msg, map[string]string{"status": msg})
	}
	if !p.HasColumn(to) {
		msg := fmt.Sprintf("%s is not a column of this project", to)
		return "", apierr.Invalid(msg, map[string]string{"status": msg})
	}
	return to, nil
}

// setStatus records a status move guarded on the status the caller saw.
// Moving to the current status is a no-op.
func (ch *change) setStatus(t models.Task, to models.TaskStatus, now time.Time) {
	if to == t.Status {
		return
	}
	from := t.Status
	ch.to = to
	ch.patch.Status = &to
	ch.patch.IfStatus = &from
	if to.IsReview() {
		ch.patch.IncReviewCycle = true
	}
	if to == models.StatusDone {
		ch.patch.CompletedAt = &now
	}
}

func (ch *change) setCode(code *CodeInput, subType *string, now time.Time) error {
	if code != nil {
		if res := inputval.Validate(code); res.HasErrors() {
			return invalid(res)
		}
		ch.patch.CodeSubmission = &models.CodeSubmission{
			Code:        code.Code,
			Language:    strings.ToLower(strings.TrimSpace(code.Language)),
			SubmittedAt: now,
		}
	}
	switch {
	case subType != nil:
		st := *subType
		ch.patch.SubmissionType = &st
	case code != nil:
		st := models.SubmissionCode
		ch.patch.SubmissionType = &st
	}
	return nil
}

// notifyUpdate tells the counter-party about the update.
func (e *Engine) notifyUpdate(a Actor, sc scope, t models.Task, ch change) {
	if sc.rel.StudentSide() {
		if ch.to.IsReview() {
			e.notify(a, sc.project.TeacherID, t, models.NotifySubmission,
				fmt.Sprintf("%s submitted %q for review.", a.Name, t.Title))
		}
		if len(ch.evidence) > 0 {
			e.notify(a, sc.project.TeacherID, t, models.NotifyEvidence,
				fmt.Sprintf("%s added evidence to %q.", a.Name, t.Title))
		}
		return
	}
	if ch.patch.Feedback != nil {
		e.notify(a, t.AssigneeID, t, models.NotifyFeedback,
			fmt.Sprintf("New feedback on %q.", t.Title))
	}
	switch ch.to {
	case models.StatusDone:
		e.notify(a, t.AssigneeID, t, models.NotifySystem, fmt.Sprintf("%q was approved.", t.Title))
	case models.StatusNeedsRevision:
		e.notify(a, t.AssigneeID, t, models.NotifySystem, fmt.Sprintf("%q needs revision.", t.Title))
	}
}

// notify hands a notification to the dispatcher. It never fails the caller.
func (e *Engine) notify(a Actor, recipient primitive.ObjectID, t models.Task, kind, msg string) {
	if e.notifier == nil || recipient.IsZero() || recipient == a.ID {
		return
	}
	taskID := t.ID
	ok := e.notifier.Notify(models.Notification{
		SenderID:    a.ID,
		RecipientID: recipient,
		Type:        kind,
		Message:     msg,
		TaskID:      &taskID,
	})
	if !ok {
		e.log.Debug("notification not queued",
			zap.String("task_id", t.ID.Hex()),
			zap.String("type", kind))
	}
}

// decodeStrict decodes body into v rejecting undeclared fields. An unknown
// field is reported by name with a nil error so callers can pick the error
// kind.
func decodeStrict(body []byte, v any) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if field, ok := jsonutil.UnknownField(err); ok {
			return field, nil
		}
		if errors.Is(err, io.EOF) {
			return "", apierr.Invalid("request body is empty", nil)
		}
		return "", apierr.Invalid("malformed JSON body", nil)
	}
	return "", nil
}

func invalid(res *inputval.Result) error {
	return apierr.Invalid(res.First(), res.Fields())
}
