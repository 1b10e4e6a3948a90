// Package grouping partitions a student roster into teams balanced by mastery.
package grouping

import (
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Team size limits.
const (
	MinTeamSize = 2
	MaxTeamSize = 4
)

// ErrTeamSize is returned when the requested size is outside MinTeamSize..MaxTeamSize.
var ErrTeamSize = fmt.Errorf("team size must be between %d and %d", MinTeamSize, MaxTeamSize)

// ErrEmptyRoster is returned when there is nobody to group.
var ErrEmptyRoster = errors.New("roster is empty")

// Student is one roster entry.
type Student struct {
	ID      primitive.ObjectID
	Name    string
	Mastery map[string]float64
}

// Member is a student placed in a team together with their scalar score.
type Member struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Score float64            `json:"score"`
}

// Team is one proposed group.
type Team struct {
	Name         string   `json:"name"`
	Members      []Member `json:"members"`
	AverageScore float64  `json:"average_score"`
}

// Score is the arithmetic mean of all subject scores, or 0 with none recorded.
func Score(mastery map[string]float64) float64 {
	if len(mastery) == 0 {
		return 0
	}
	var sum float64
	for _, v := range mastery {
		sum += v
	}
	return sum / float64(len(mastery))
}

// Balance splits roster into ceil(len/size) teams with a snake draft:
// students are ranked by score (ties keep roster order) and dealt
// left-to-right, then right-to-left, alternating each round.
// The result depends only on the roster and its order.
func Balance(roster []Student, size int) ([]Team, error) {
	if size < MinTeamSize || size > MaxTeamSize {
		return nil, ErrTeamSize
	}
	if len(roster) == 0 {
		return nil, ErrEmptyRoster
	}

	ranked := make([]Member, len(roster))
	for i, s := range roster {
		ranked[i] = Member{ID: s.ID, Name: s.Name, Score: Score(s.Mastery)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	count := (len(ranked) + size - 1) / size
	teams := make([]Team, count)
	for i := range teams {
		teams[i].Name = fmt.Sprintf("Group %d", i+1)
	}

	for i, m := range ranked {
		round, pos := i/count, i%count
		if round%2 == 1 {
			pos = count - 1 - pos
		}
		teams[pos].Members = append(teams[pos].Members, m)
	}

	for i := range teams {
		teams[i].AverageScore = average(teams[i].Members)
	}
	return teams, nil
}

func average(ms []Member) float64 {
	if len(ms) == 0 {
		return 0
	}
	var sum float64
	for _, m := range ms {
		sum += m.Score
	}
	return sum / float64(len(ms))
}

// Spread is the gap between the highest and lowest team average.
func Spread(teams []Team) float64 {
	if len(teams) == 0 {
		return 0
	}
	lo, hi := teams[0].AverageScore, teams[0].AverageScore
	for _, t := range teams[1:] {
		if t.AverageScore < lo {
			lo = t.AverageScore
		}
		if t.AverageScore > hi {
			hi = t.AverageScore
		}
	}
	return hi - lo
}
