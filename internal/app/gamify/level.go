// Package gamify holds the pure reward rules: levels, XP payouts and badges.
//
// Nothing in this package touches the database. The task lifecycle calls
// these functions at the moment of first completion and persists the result.
package gamify

// XPPerLevel is the amount of XP between consecutive levels.
const XPPerLevel = 100

// Level returns the level for an XP total. Level 1 starts at 0 XP and there is
// no upper bound. Negative totals are treated as 0.
func Level(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return 1 + xp/XPPerLevel
}

// Progress describes where an XP total sits inside its level.
type Progress struct {
	Level       int `json:"level"`
	XP          int `json:"xp"`
	IntoLevel   int `json:"into_level"`
	ToNextLevel int `json:"to_next_level"`
	NextLevelAt int `json:"next_level_at"`
}

// ProgressFor computes level progress for xp.
func ProgressFor(xp int) Progress {
	if xp < 0 {
		xp = 0
	}
	lvl := Level(xp)
	next := lvl * XPPerLevel
	return Progress{
		Level:       lvl,
		XP:          xp,
		IntoLevel:   xp - (lvl-1)*XPPerLevel,
		ToNextLevel: next - xp,
		NextLevelAt: next,
	}
}
