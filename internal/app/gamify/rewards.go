package gamify

// LevelReward is a display-only description of what a level unlocks.
// Nothing on the server enforces these.
type LevelReward struct {
	Level       int    `json:"level"`
	XP          int    `json:"xp"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Rewards is the reward ladder shown to students.
var Rewards = []LevelReward{
	{Level: 2, XP: 100, Title: "Apprentice", Description: "Profile border unlocked."},
	{Level: 3, XP: 200, Title: "Explorer", Description: "Pick a custom board color."},
	{Level: 5, XP: 400, Title: "Builder", Description: "Pin one project to your profile."},
	{Level: 8, XP: 700, Title: "Innovator", Description: "Choose the next class showcase theme."},
	{Level: 11, XP: 1000, Title: "Master Maker", Description: "Hall of fame listing."},
}

// NextReward returns the first reward above xp, if any.
func NextReward(xp int) (LevelReward, bool) {
	for _, r := range Rewards {
		if r.XP > xp {
			return r, true
		}
	}
	return LevelReward{}, false
}
