package taskflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/questhub/internal/app/gamify"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUpdate_CompletionPaysOnce(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	w.setStatus(models.StatusReadyForReview)

	out, err := w.engine.Update(ctx, w.teacher, w.task.ID, []byte(`{"status":"Done"}`))
	require.NoError(t, err)
	assert.True(t, out.XPAwarded)
	assert.Equal(t, 35, out.Points)
	assert.True(t, out.Task.XPAwarded)
	assert.Equal(t, 1, out.Level)
	assert.False(t, out.LevelUp)

	var ids []string
	for _, b := range out.Achievements {
		ids = append(ids, b.ID)
	}
	assert.ElementsMatch(t, []string{gamify.BadgeTaskBronze, gamify.BadgeSpeedster, gamify.BadgeProjectMaster}, ids)

	// Reopen and complete again: no second payout.
	_, err = w.engine.Update(ctx, w.teacher, w.task.ID, []byte(`{"status":"Needs Revision"}`))
	require.NoError(t, err)
	out, err = w.engine.Update(ctx, w.teacher, w.task.ID, []byte(`{"status":"Done"}`))
	require.NoError(t, err)
	assert.False(t, out.XPAwarded)
	assert.Empty(t, out.Achievements)

	assert.True(t, w.stored().XPAwarded)
	assert.Equal(t, 35, w.users.users[w.alice.ID].XP)
	assert.Equal(t, 1, w.users.awards)
}

func TestPayout_ConcurrentCompletionsPayOnce(t *testing.T) {
	w := newWorld()
	w.setStatus(models.StatusDone)
	done := w.stored()

	var wg sync.WaitGroup
	paid := make([]bool, 8)
	for i := range paid {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out := Outcome{Task: done}
			w.engine.payout(context.Background(), &out)
			paid[i] = out.XPAwarded
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, p := range paid {
		if p {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, w.users.awards)
	assert.Equal(t, 35, w.users.users[w.alice.ID].XP)
}

func TestPayout_ReleasesClaimWhenCreditFails(t *testing.T) {
	w := newWorld()
	w.setStatus(models.StatusReadyForReview)
	w.users.failAward = true

	out, err := w.engine.Update(context.Background(), w.teacher, w.task.ID, []byte(`{"status":"Done"}`))
	require.NoError(t, err, "a failed payout must not fail the status change")
	assert.False(t, out.XPAwarded)
	assert.Equal(t, models.StatusDone, w.stored().Status)
	assert.False(t, w.stored().XPAwarded, "claim should be released for a later retry")

	w.users.failAward = false
	out = Outcome{Task: w.stored()}
	w.engine.payout(context.Background(), &out)
	assert.True(t, out.XPAwarded)
	assert.Equal(t, 35, w.users.users[w.alice.ID].XP)
}

func TestUpdate_LevelUp(t *testing.T) {
	w := newWorld()
	w.users.users[w.alice.ID].XP = 90
	w.setStatus(models.StatusReadyForReview)

	out, err := w.engine.Update(context.Background(), w.teacher, w.task.ID, []byte(`{"status":"Done"}`))
	require.NoError(t, err)
	assert.True(t, out.LevelUp)
	assert.Equal(t, 2, out.Level)
	assert.Equal(t, 125, out.TotalXP)
}

func TestUpdate_StudentDisallowedFieldIsForbidden(t *testing.T) {
	w := newWorld()
	w.setStatus(models.StatusInProgress)
	before := w.stored()

	for _, body := range []string{
		`{"priority":"Urgent"}`,
		`{"status":"Ready for Review","priority":"Urgent"}`,
		`{"feedback":"looks great"}`,
		`{"points":500}`,
	} {
		_, err := w.engine.Update(context.Background(), w.alice, w.task.ID, []byte(body))
		assert.True(t, apierr.Is(err, apierr.KindForbidden), "body %s: got %v", body, err)
	}

	after := w.stored()
	assert.Equal(t, before.Priority, after.Priority)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.Points, after.Points)
	assert.Nil(t, after.Feedback)
	assert.Empty(t, w.notifier.all())
}

func TestUpdate_OutsiderIsForbidden(t *testing.T) {
	w := newWorld()
	ctx := context.Background()

	_, err := w.engine.Update(ctx, w.outsider, w.task.ID, []byte(`{"status":"In Progress"}`))
	assert.True(t, apierr.Is(err, apierr.KindForbidden))

	_, err = w.engine.AddEvidence(ctx, w.outsider, w.task.ID, EvidenceInput{URL: "https://example.com/a.png"})
	assert.True(t, apierr.Is(err, apierr.KindForbidden))

	_, err = w.engine.LinkRepo(ctx, w.outsider, w.task.ID, "https://github.com/o/r")
	assert.True(t, apierr.Is(err, apierr.KindForbidden))

	_, err = w.engine.Get(ctx, w.outsider, w.task.ID)
	assert.True(t, apierr.Is(err, apierr.KindForbidden))

	// Another teacher is not the project's teacher.
	other := Actor{ID: primitive.NewObjectID(), Name: "Mr. Park", Role: models.RoleTeacher}
	_, err = w.engine.Update(ctx, other, w.task.ID, []byte(`{"status":"Done"}`))
	assert.True(t, apierr.Is(err, apierr.KindForbidden))

	assert.Equal(t, models.StatusBacklog, w.stored().Status)
	assert.Empty(t, w.stored().EvidenceLinks)
}

func TestUpdate_StudentTransitions(t *testing.T) {
	tests := []struct {
		from    models.TaskStatus
		to      string
		allowed bool
	}{
		{models.StatusBacklog, "In Progress", true},
		{models.StatusBacklog, "Ready for Review", true},
		{models.StatusInProgress, "Backlog", true},
		{models.StatusInProgress, "Review", true},
		{models.StatusNeedsRevision, "In Progress", true},
		{models.StatusNeedsRevision, "Ready for Review", true},
		{models.StatusInProgress, "Done", false},
		{models.StatusInProgress, "Completed", false},
		{models.StatusReadyForReview, "In Progress", false},
		{models.StatusReadyForReview, "Done", false},
		{models.StatusDone, "In Progress", false},
		{models.StatusInProgress, "Needs Revision", false},
	}
	for _, tt := range tests {
		w := newWorld()
		w.setStatus(tt.from)
		_, err := w.engine.Update(context.Background(), w.alice, w.task.ID, []byte(`{"status":"`+tt.to+`"}`))
		if tt.allowed {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
			assert.NotEqual(t, tt.from, w.stored().Status)
		} else {
			assert.True(t, apierr.Is(err, apierr.KindForbidden), "%s -> %s: got %v", tt.from, tt.to, err)
			assert.Equal(t, tt.from, w.stored().Status)
		}
	}
}

func TestUpdate_SubmitForReviewNotifiesTeacher(t *testing.T) {
	w := newWorld()
	w.setStatus(models.StatusInProgress)

	out, err := w.engine.Update(context.Background(), w.alice, w.task.ID, []byte(`{"status":"Ready for Review"}`))
	require.NoError(t, err)
	assert.Equal(t, models.StatusReadyForReview, out.Task.Status)
	assert.Equal(t, 1, out.Task.ReviewCycle)
	assert.False(t, out.XPAwarded)

	sent := w.notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, w.teacher.ID, sent[0].RecipientID)
	assert.Equal(t, w.alice.ID, sent[0].SenderID)
	assert.Equal(t, models.NotifySubmission, sent[0].Type)
	require.NotNil(t, sent[0].TaskID)
	assert.Equal(t, w.task.ID, *sent[0].TaskID)
}

func TestUpdate_GroupMemberMayUpdate(t *testing.T) {
	w := newWorld()
	w.setStatus(models.StatusInProgress)

	out, err := w.engine.Update(context.Background(), w.bob, w.task.ID,
		[]byte(`{"status":"Ready for Review","code_submission":{"code":"print(1)","language":"Python"}}`))
	require.NoError(t, err)
	assert.Equal(t, models.StatusReadyForReview, out.Task.Status)
	require.NotNil(t, out.Task.CodeSubmission)
	assert.Equal(t, "python", out.Task.CodeSubmission.Language)
	assert.Equal(t, w.clock, out.Task.CodeSubmission.SubmittedAt)
	assert.Equal(t, models.SubmissionCode, out.Task.SubmissionType)
}

func TestUpdate_StatusMustBeProjectColumn(t *testing.T) {
	w := newWorld()
	w.engine.projects = fakeProjects{w.project.ID: {
		ID:        w.project.ID,
		TeacherID: w.teacher.ID,
		Columns:   []models.TaskStatus{models.StatusBacklog, models.StatusInProgress, models.StatusDone},
	}}

	_, err := w.engine.Update(context.Background(), w.teacher, w.task.ID, []byte(`{"status":"Ready for Review"}`))
	assert.True(t, apierr.Is(err, apierr.KindValidation))

	_, err = w.engine.Update(context.Background(), w.teacher, w.task.ID, []byte(`{"status":"Shipped"}`))
	assert.True(t, apierr.Is(err, apierr.KindValidation))
	assert.Equal(t, models.StatusBacklog, w.stored().Status)
}

func TestUpdate_FeedbackOncePerCycle(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	w.setStatus(models.StatusInProgress)

	_, err := w.engine.Update(ctx, w.alice, w.task.ID, []byte(`{"status":"Ready for Review"}`))
	require.NoError(t, err)

	out, err := w.engine.Update(ctx, w.teacher, w.task.ID,
		[]byte(`{"status":"Needs Revision","feedback":"Add a <b>photo</b><script>x()</script>"}`))
	require.NoError(t, err)
	require.NotNil(t, out.Task.Feedback)
	assert.Equal(t, 1, out.Task.Feedback.Cycle)
	assert.NotContains(t, out.Task.Feedback.Text, "<script>")

	_, err = w.engine.Update(ctx, w.teacher, w.task.ID, []byte(`{"feedback":"one more thing"}`))
	assert.True(t, apierr.Is(err, apierr.KindConflict))

	// A new review cycle opens the slot again.
	_, err = w.engine.Update(ctx, w.alice, w.task.ID, []byte(`{"status":"Ready for Review"}`))
	require.NoError(t, err)
	out, err = w.engine.Update(ctx, w.teacher, w.task.ID, []byte(`{"feedback":"better"}`))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Task.Feedback.Cycle)

	var feedback, system int
	for _, n := range w.notifier.all() {
		switch n.Type {
		case models.NotifyFeedback:
			feedback++
			assert.Equal(t, w.alice.ID, n.RecipientID)
		case models.NotifySystem:
			system++
		}
	}
	assert.Equal(t, 2, feedback)
	assert.Equal(t, 1, system, "needs revision notice")
}

func TestUpdate_TeacherUnknownFieldIsInvalid(t *testing.T) {
	w := newWorld()
	_, err := w.engine.Update(context.Background(), w.teacher, w.task.ID, []byte(`{"xp_awarded":true}`))
	assert.True(t, apierr.Is(err, apierr.KindValidation))
}

func TestUpdate_EmptyBody(t *testing.T) {
	w := newWorld()
	_, err := w.engine.Update(context.Background(), w.alice, w.task.ID, []byte(`{}`))
	assert.True(t, apierr.Is(err, apierr.KindValidation))
}

func TestUpdate_TeacherAssigneeMustBeActiveStudent(t *testing.T) {
	w := newWorld()
	body := []byte(`{"assignee_id":"` + w.teacher.ID.Hex() + `"}`)
	_, err := w.engine.Update(context.Background(), w.teacher, w.task.ID, body)
	assert.True(t, apierr.Is(err, apierr.KindValidation))

	body = []byte(`{"assignee_id":"` + w.bob.ID.Hex() + `","priority":"urgent","points":25}`)
	out, err := w.engine.Update(context.Background(), w.teacher, w.task.ID, body)
	require.NoError(t, err)
	assert.Equal(t, w.bob.ID, out.Task.AssigneeID)
	assert.Equal(t, models.PriorityUrgent, out.Task.Priority)
	assert.Equal(t, 25, out.Task.Points)
}

func TestAddEvidence_AppendOnly(t *testing.T) {
	w := newWorld()
	ctx := context.Background()

	first, err := w.engine.AddEvidence(ctx, w.alice, w.task.ID,
		EvidenceInput{URL: "https://cdn.example.com/a.png", StorageID: "s1", ResourceType: "image"})
	require.NoError(t, err)
	require.Len(t, first.EvidenceLinks, 1)
	original := first.EvidenceLinks[0]

	// Same clock reading: the second entry still gets a later timestamp.
	second, err := w.engine.AddEvidence(ctx, w.alice, w.task.ID,
		EvidenceInput{URL: "https://example.com/write-up"})
	require.NoError(t, err)
	require.Len(t, second.EvidenceLinks, 2)

	assert.Equal(t, original, second.EvidenceLinks[0])
	assert.True(t, second.EvidenceLinks[1].AddedAt.After(second.EvidenceLinks[0].AddedAt))
	assert.Equal(t, models.ResourceLink, second.EvidenceLinks[1].ResourceType)
	assert.Equal(t, w.alice.ID, second.EvidenceLinks[1].AddedByID)

	sent := w.notifier.all()
	require.Len(t, sent, 2)
	for _, n := range sent {
		assert.Equal(t, models.NotifyEvidence, n.Type)
		assert.Equal(t, w.teacher.ID, n.RecipientID)
	}
}

func TestAddEvidence_RejectsBadURL(t *testing.T) {
	w := newWorld()
	for _, in := range []EvidenceInput{
		{URL: ""},
		{URL: "javascript:alert(1)"},
		{URL: "example.com/no-scheme"},
		{URL: "https://example.com/x", ResourceType: "pdf"},
	} {
		_, err := w.engine.AddEvidence(context.Background(), w.alice, w.task.ID, in)
		assert.True(t, apierr.Is(err, apierr.KindValidation), "%+v: %v", in, err)
	}
	assert.Empty(t, w.stored().EvidenceLinks)
}

func TestUpdate_EvidenceViaUpdate(t *testing.T) {
	w := newWorld()
	body := []byte(`{"evidence_links":[{"url":"https://a.example/1"},{"url":"https://a.example/2","resource_type":"video"}]}`)

	out, err := w.engine.Update(context.Background(), w.alice, w.task.ID, body)
	require.NoError(t, err)
	require.Len(t, out.Task.EvidenceLinks, 2)
	assert.True(t, out.Task.EvidenceLinks[1].AddedAt.After(out.Task.EvidenceLinks[0].AddedAt))
	assert.Len(t, w.notifier.all(), 1)
}

func TestUpdate_EvidenceWrittenTogether(t *testing.T) {
	w := newWorld()
	body := []byte(`{"evidence_links":[{"url":"https://a.example/1"},{"url":"https://a.example/2"},{"url":"https://a.example/3"}]}`)

	out, err := w.engine.Update(context.Background(), w.alice, w.task.ID, body)
	require.NoError(t, err)
	require.Len(t, out.Task.EvidenceLinks, 3)
	assert.Equal(t, 1, w.tasks.appends)
}

func TestUpdate_EvidenceWriteFailureStoresNothing(t *testing.T) {
	w := newWorld()
	w.tasks.appendErr = errors.New("write failed")
	body := []byte(`{"evidence_links":[{"url":"https://a.example/1"},{"url":"https://a.example/2"}]}`)

	_, err := w.engine.Update(context.Background(), w.alice, w.task.ID, body)
	require.Error(t, err)
	assert.Equal(t, 1, w.tasks.appends)
	assert.Empty(t, w.stored().EvidenceLinks)
	assert.Empty(t, w.notifier.all())
}

func TestLinkRepo(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	w.commits.commits = []models.GitHubCommit{{SHA: "abc", Message: "init"}}

	_, err := w.engine.LinkRepo(ctx, w.alice, w.task.ID, "git@github.com:octo/garden.git")
	require.NoError(t, err)
	_, err = w.engine.SyncCommits(ctx, w.alice, w.task.ID)
	require.NoError(t, err)
	require.Len(t, w.stored().GitHubCommits, 1)

	got, err := w.engine.LinkRepo(ctx, w.alice, w.task.ID, "https://github.com/octo/greenhouse")
	require.NoError(t, err)
	require.NotNil(t, got.GitHubRepo)
	assert.Equal(t, "octo", got.GitHubRepo.Owner)
	assert.Equal(t, "greenhouse", got.GitHubRepo.Repo)
	assert.Empty(t, got.GitHubCommits, "relinking clears the snapshot")

	_, err = w.engine.LinkRepo(ctx, w.alice, w.task.ID, "https://gitlab.com/octo/garden")
	assert.True(t, apierr.Is(err, apierr.KindValidation))

	types := map[string]int{}
	for _, n := range w.notifier.all() {
		types[n.Type]++
	}
	assert.Equal(t, 2, types[models.NotifyEvidence])
}

func TestSyncCommits_Errors(t *testing.T) {
	w := newWorld()
	ctx := context.Background()

	_, err := w.engine.SyncCommits(ctx, w.alice, w.task.ID)
	assert.True(t, apierr.Is(err, apierr.KindValidation), "no repo linked")

	_, err = w.engine.LinkRepo(ctx, w.alice, w.task.ID, "https://github.com/octo/garden")
	require.NoError(t, err)
	w.commits.err = errors.New("connection reset")

	_, err = w.engine.SyncCommits(ctx, w.alice, w.task.ID)
	assert.True(t, apierr.Is(err, apierr.KindUpstream))
	assert.Equal(t, 1, w.commits.calls, "no retry")
}

func TestGet_StudentStartsBacklogTask(t *testing.T) {
	w := newWorld()
	ctx := context.Background()

	got, err := w.engine.Get(ctx, w.teacher, w.task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBacklog, got.Status, "teacher views do not start work")

	got, err = w.engine.Get(ctx, w.alice, w.task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Equal(t, models.StatusInProgress, w.stored().Status)

	w.setStatus(models.StatusReadyForReview)
	got, err = w.engine.Get(ctx, w.bob, w.task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReadyForReview, got.Status)
}

func TestGet_MissingProjectIsMissingParent(t *testing.T) {
	w := newWorld()
	w.engine.projects = fakeProjects{}

	_, err := w.engine.Get(context.Background(), w.alice, w.task.ID)
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindNotFound))
	var ae *apierr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "missing parent project", ae.Msg)

	_, err = w.engine.Get(context.Background(), w.alice, primitive.NewObjectID())
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "task not found", ae.Msg)
}

func TestCreate(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	due := w.clock.Add(72 * time.Hour)

	_, err := w.engine.Create(ctx, w.alice, w.project.ID, NewTask{Title: "x", AssigneeID: w.alice.ID.Hex()})
	assert.True(t, apierr.Is(err, apierr.KindForbidden))

	_, err = w.engine.Create(ctx, w.teacher, w.project.ID, NewTask{Title: "x", AssigneeID: w.teacher.ID.Hex()})
	assert.True(t, apierr.Is(err, apierr.KindValidation), "teacher is not a student")

	w.users.users[w.bob.ID].IsActive = false
	_, err = w.engine.Create(ctx, w.teacher, w.project.ID, NewTask{Title: "x", AssigneeID: w.bob.ID.Hex()})
	assert.True(t, apierr.Is(err, apierr.KindValidation), "inactive student")

	_, err = w.engine.Create(ctx, w.teacher, w.project.ID, NewTask{Title: "  ", AssigneeID: w.alice.ID.Hex()})
	assert.True(t, apierr.Is(err, apierr.KindValidation))

	task, err := w.engine.Create(ctx, w.teacher, w.project.ID, NewTask{
		Title:      " Measure soil pH ",
		AssigneeID: w.alice.ID.Hex(),
		Priority:   "urgent",
		Status:     "todo",
		DueDate:    &due,
	})
	require.NoError(t, err)
	assert.Equal(t, "Measure soil pH", task.Title)
	assert.Equal(t, models.PriorityUrgent, task.Priority)
	assert.Equal(t, models.StatusBacklog, task.Status)
	assert.Equal(t, models.DefaultTaskPoints, task.Points)
	assert.Equal(t, w.teacher.ID, task.CreatedByID)
}

func TestCreate_OnlyInitialStatuses(t *testing.T) {
	w := newWorld()
	ctx := context.Background()

	for _, status := range []string{"Ready for Review", "Needs Revision", "Done", "Completed"} {
		_, err := w.engine.Create(ctx, w.teacher, w.project.ID, NewTask{Title: "x", AssigneeID: w.alice.ID.Hex(), Status: status})
		assert.True(t, apierr.Is(err, apierr.KindValidation), "status %q", status)
	}

	task, err := w.engine.Create(ctx, w.teacher, w.project.ID, NewTask{Title: "x", AssigneeID: w.alice.ID.Hex(), Status: "In Progress"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, task.Status)
	assert.False(t, task.XPAwarded)
	assert.Zero(t, task.ReviewCycle)
}

func TestBoardAndVisibility(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	_, err := w.engine.Create(ctx, w.teacher, w.project.ID, NewTask{Title: "Second", AssigneeID: w.outsider.ID.Hex(), Status: "In Progress"})
	require.NoError(t, err)

	board, err := w.engine.Board(ctx, w.teacher, w.project.ID)
	require.NoError(t, err)
	require.Len(t, board.Columns, len(models.DefaultColumns))
	assert.Len(t, board.Columns[0].Tasks, 1)
	assert.Len(t, board.Columns[1].Tasks, 1)

	_, tasks, err := w.engine.ListByProject(ctx, w.bob, w.project.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 2, "group members see the whole project")

	_, tasks, err = w.engine.ListByProject(ctx, w.outsider, w.project.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1, "other students see only their own tasks")

	stranger := Actor{ID: primitive.NewObjectID(), Role: models.RoleStudent}
	_, _, err = w.engine.ListByProject(ctx, stranger, w.project.ID)
	assert.True(t, apierr.Is(err, apierr.KindForbidden))
}

func TestDelete(t *testing.T) {
	w := newWorld()
	ctx := context.Background()

	err := w.engine.Delete(ctx, w.alice, w.task.ID)
	assert.True(t, apierr.Is(err, apierr.KindForbidden))

	require.NoError(t, w.engine.Delete(ctx, w.teacher, w.task.ID))
	_, err = w.engine.Get(ctx, w.teacher, w.task.ID)
	assert.True(t, apierr.Is(err, apierr.KindNotFound))
}
