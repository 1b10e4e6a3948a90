// internal/app/taskflow/evidence.go
package taskflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/github"
	"github.com/dalemusser/questhub/internal/app/system/inputval"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AddEvidence appends one entry to the task's evidence ledger.
func (e *Engine) AddEvidence(ctx context.Context, a Actor, taskID primitive.ObjectID, in EvidenceInput) (models.Task, error) {
	sc, err := e.authorize(ctx, a, taskID)
	if err != nil {
		return models.Task{}, err
	}
	if res := inputval.Validate(in); res.HasErrors() {
		return models.Task{}, invalid(res)
	}

	t, err := e.appendEvidence(ctx, a, sc.task, []EvidenceInput{in})
	if err != nil {
		return models.Task{}, err
	}

	if sc.rel.StudentSide() {
		e.notify(a, sc.project.TeacherID, t, models.NotifyEvidence,
			fmt.Sprintf("%s added evidence to %q.", a.Name, t.Title))
	}
	return t, nil
}

// appendEvidence builds every entry first and stores them in a single
// write. Each entry's timestamp is strictly after the previous entry's, at
// millisecond resolution, so entries stay ordered even when the clock does
// not advance.
func (e *Engine) appendEvidence(ctx context.Context, a Actor, t models.Task, in []EvidenceInput) (models.Task, error) {
	last := t.LastEvidenceAt()
	entries := make([]models.Evidence, 0, len(in))
	for _, ev := range in {
		at := e.now().Truncate(time.Millisecond)
		if !at.After(last) {
			at = last.Truncate(time.Millisecond).Add(time.Millisecond)
		}
		rt := strings.TrimSpace(ev.ResourceType)
		if rt == "" {
			rt = models.ResourceLink
		}
		entries = append(entries, models.Evidence{
			ID:           primitive.NewObjectID(),
			URL:          strings.TrimSpace(ev.URL),
			StorageID:    strings.TrimSpace(ev.StorageID),
			ResourceType: rt,
			AddedByID:    a.ID,
			AddedAt:      at,
		})
		last = at
	}
	t, err := e.tasks.AppendEvidence(ctx, t.ID, entries)
	if err != nil {
		return models.Task{}, storeErr(err)
	}
	return t, nil
}

// LinkRepo binds a GitHub repository to the task, replacing any previous
// binding and its commit snapshot.
func (e *Engine) LinkRepo(ctx context.Context, a Actor, taskID primitive.ObjectID, rawURL string) (models.Task, error) {
	sc, err := e.authorize(ctx, a, taskID)
	if err != nil {
		return models.Task{}, err
	}
	owner, repo, err := github.ParseRepoURL(rawURL)
	if err != nil {
		msg := "Repository URL must look like https://github.com/owner/repo."
		return models.Task{}, apierr.Invalid(msg, map[string]string{"url": msg})
	}

	t, err := e.tasks.SetGitHubRepo(ctx, taskID, models.GitHubRepo{
		Owner:    owner,
		Repo:     repo,
		URL:      github.CanonicalURL(owner, repo),
		LinkedAt: e.now(),
	})
	if err != nil {
		return models.Task{}, storeErr(err)
	}

	if sc.rel.StudentSide() {
		e.notify(a, sc.project.TeacherID, t, models.NotifyEvidence,
			fmt.Sprintf("%s linked %s/%s to %q.", a.Name, owner, repo, t.Title))
	}
	return t, nil
}

// SyncCommits refetches the linked repository's commits and replaces the
// stored snapshot. Upstream failures are returned, not retried.
func (e *Engine) SyncCommits(ctx context.Context, a Actor, taskID primitive.ObjectID) (models.Task, error) {
	sc, err := e.authorize(ctx, a, taskID)
	if err != nil {
		return models.Task{}, err
	}
	if sc.task.GitHubRepo == nil {
		return models.Task{}, apierr.Invalid("no repository is linked to this task", nil)
	}
	if e.commits == nil {
		return models.Task{}, apierr.Upstream("source control is not configured", nil)
	}

	r := sc.task.GitHubRepo
	commits, err := e.commits.ListCommits(ctx, r.Owner, r.Repo, CommitLimit)
	if err != nil {
		e.log.Warn("commit sync failed",
			zap.String("task_id", taskID.Hex()),
			zap.String("repo", r.Owner+"/"+r.Repo),
			zap.Error(err))
		if errors.Is(err, github.ErrRepoNotFound) {
			return models.Task{}, apierr.Upstream("repository not found or not accessible", err)
		}
		return models.Task{}, apierr.Upstream("could not fetch commits", err)
	}

	t, err := e.tasks.ReplaceCommits(ctx, taskID, commits)
	if err != nil {
		return models.Task{}, storeErr(err)
	}
	return t, nil
}
