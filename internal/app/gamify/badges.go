package gamify

import "time"

// Badge identifiers. These are stored on the user record.
const (
	BadgeTaskBronze    = "TASK_BRONZE"
	BadgeTaskSilver    = "TASK_SILVER"
	BadgeTaskGold      = "TASK_GOLD"
	BadgeSpeedster     = "SPEEDSTER"
	BadgeProjectMaster = "PROJECT_MASTER"
)

// Badge describes an unlockable achievement.
type Badge struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Catalogue lists every badge in evaluation order.
var Catalogue = []Badge{
	{ID: BadgeTaskBronze, Name: "Bronze Tasker", Description: "Complete your first task."},
	{ID: BadgeTaskSilver, Name: "Silver Tasker", Description: "Complete 10 tasks."},
	{ID: BadgeTaskGold, Name: "Gold Tasker", Description: "Complete 50 tasks."},
	{ID: BadgeSpeedster, Name: "Speedster", Description: "Complete a task within 24 hours of it being created."},
	{ID: BadgeProjectMaster, Name: "Project Master", Description: "Every task in a project is done."},
}

// BadgeByID looks up a catalogue entry.
func BadgeByID(id string) (Badge, bool) {
	for _, b := range Catalogue {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

// Completion describes the task that was just completed.
type Completion struct {
	CreatedAt   time.Time
	CompletedAt time.Time
}

// Stats are the aggregates a badge evaluation needs. CompletedTasks includes
// the completion being evaluated.
type Stats struct {
	CompletedTasks   int
	ProjectCompleted bool
}

type rule struct {
	badge string
	met   func(Completion, Stats) bool
}

var rules = []rule{
	{BadgeTaskBronze, func(_ Completion, s Stats) bool { return s.CompletedTasks >= 1 }},
	{BadgeTaskSilver, func(_ Completion, s Stats) bool { return s.CompletedTasks >= 10 }},
	{BadgeTaskGold, func(_ Completion, s Stats) bool { return s.CompletedTasks >= 50 }},
	{BadgeSpeedster, func(c Completion, _ Stats) bool { return CompletedQuickly(c.CreatedAt, c.CompletedAt) }},
	{BadgeProjectMaster, func(_ Completion, s Stats) bool { return s.ProjectCompleted }},
}

// EvaluateBadges returns the badges newly unlocked by a completion.
// Every rule is evaluated; badges in held are never returned again.
func EvaluateBadges(held []string, c Completion, s Stats) []string {
	have := make(map[string]struct{}, len(held))
	for _, b := range held {
		have[b] = struct{}{}
	}
	var unlocked []string
	for _, r := range rules {
		if _, ok := have[r.badge]; ok {
			continue
		}
		if r.met(c, s) {
			unlocked = append(unlocked, r.badge)
		}
	}
	return unlocked
}
