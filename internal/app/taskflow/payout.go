// internal/app/taskflow/payout.go
package taskflow

import (
	"context"

	"github.com/dalemusser/questhub/internal/app/gamify"
	"github.com/dalemusser/questhub/internal/app/system/metrics"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.uber.org/zap"
)

// Outcome is the result of a task mutation. The reward fields are only set
// when this call paid out the task's XP.
type Outcome struct {
	Task         models.Task    `json:"task"`
	XPAwarded    bool           `json:"xp_awarded"`
	Points       int            `json:"points,omitempty"`
	Award        *gamify.Award  `json:"award,omitempty"`
	Achievements []gamify.Badge `json:"achievements,omitempty"`
	LevelUp      bool           `json:"level_up"`
	Level        int            `json:"level,omitempty"`
	TotalXP      int            `json:"total_xp,omitempty"`
}

// payout credits the assignee for a task that just reached Done.
//
// The xp_awarded flag is claimed with a compare-and-set before anything
// else; only the caller that flips it pays. If crediting the user fails the
// flag is released so a later completion can retry. Payout problems are
// logged and never fail the status change that triggered them.
func (e *Engine) payout(ctx context.Context, out *Outcome) {
	t := out.Task
	log := e.log.With(zap.String("task_id", t.ID.Hex()), zap.String("assignee_id", t.AssigneeID.Hex()))

	won, err := e.tasks.MarkXPAwarded(ctx, t.ID)
	if err != nil {
		log.Error("claim xp payout", zap.Error(err))
		return
	}
	if !won {
		return
	}

	release := func(reason string, err error) {
		log.Error(reason, zap.Error(err))
		if rerr := e.tasks.ReleaseXPAward(ctx, t.ID); rerr != nil {
			log.Error("release xp payout claim", zap.Error(rerr))
		}
	}

	user, err := e.users.GetByID(ctx, t.AssigneeID)
	if err != nil {
		release("load assignee for payout", err)
		return
	}
	completed, err := e.tasks.CountCompletedByAssignee(ctx, t.AssigneeID)
	if err != nil {
		release("count completed tasks", err)
		return
	}
	projectDone, err := e.tasks.ProjectComplete(ctx, t.ProjectID)
	if err != nil {
		release("check project completion", err)
		return
	}

	completedAt := e.now()
	if t.CompletedAt != nil {
		completedAt = *t.CompletedAt
	}
	award := gamify.AwardFor(t, completedAt)
	unlocked := gamify.EvaluateBadges(user.Badges,
		gamify.Completion{CreatedAt: t.CreatedAt, CompletedAt: completedAt},
		gamify.Stats{CompletedTasks: int(completed), ProjectCompleted: projectDone})

	updated, err := e.users.AwardXP(ctx, t.AssigneeID, award.Total(), unlocked)
	if err != nil {
		release("credit xp", err)
		return
	}

	metrics.XPPayouts.Inc()
	metrics.XPAwarded.Add(float64(award.Total()))
	achievements := make([]gamify.Badge, 0, len(unlocked))
	for _, id := range unlocked {
		metrics.BadgeUnlocks.WithLabelValues(id).Inc()
		if b, ok := gamify.BadgeByID(id); ok {
			achievements = append(achievements, b)
		}
	}

	out.Task.XPAwarded = true
	out.XPAwarded = true
	out.Points = award.Total()
	out.Award = &award
	out.Achievements = achievements
	out.Level = gamify.Level(updated.XP)
	out.LevelUp = out.Level > gamify.Level(updated.XP-award.Total())
	out.TotalXP = updated.XP

	log.Info("xp paid out",
		zap.Int("xp", award.Total()),
		zap.Strings("badges", unlocked),
		zap.Int("level", out.Level))
}
