package gamify

import (
	"time"

	"github.com/dalemusser/questhub/internal/domain/models"
)

// Bonus amounts added on top of a task's points.
const (
	HighPriorityBonus   = 20
	UrgentPriorityBonus = 30
	SpeedBonus          = 5
)

// SpeedWindow is how soon after creation a task must be completed to count as fast.
const SpeedWindow = 24 * time.Hour

// Award is the itemised XP payout for one completion.
type Award struct {
	Base          int `json:"base"`
	PriorityBonus int `json:"priority_bonus"`
	SpeedBonus    int `json:"speed_bonus"`
}

// Total is the sum of all components.
func (a Award) Total() int { return a.Base + a.PriorityBonus + a.SpeedBonus }

// CompletedQuickly reports whether completedAt falls within SpeedWindow of createdAt.
func CompletedQuickly(createdAt, completedAt time.Time) bool {
	if createdAt.IsZero() || completedAt.Before(createdAt) {
		return false
	}
	return completedAt.Sub(createdAt) <= SpeedWindow
}

// AwardFor computes the payout for completing t at completedAt.
// Bonuses are additive and evaluated independently.
func AwardFor(t models.Task, completedAt time.Time) Award {
	a := Award{Base: t.EffectivePoints()}
	switch t.Priority {
	case models.PriorityHigh:
		a.PriorityBonus = HighPriorityBonus
	case models.PriorityUrgent:
		a.PriorityBonus = UrgentPriorityBonus
	}
	if CompletedQuickly(t.CreatedAt, completedAt) {
		a.SpeedBonus = SpeedBonus
	}
	return a
}
