package grouping_test

import (
	"fmt"
	"testing"

	"github.com/dalemusser/questhub/internal/app/grouping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func roster(scores ...float64) []grouping.Student {
	out := make([]grouping.Student, len(scores))
	for i, s := range scores {
		out[i] = grouping.Student{
			ID:      primitive.NewObjectID(),
			Name:    fmt.Sprintf("Student %d", i+1),
			Mastery: map[string]float64{"math": s},
		}
	}
	return out
}

func scoresOf(t grouping.Team) []float64 {
	var out []float64
	for _, m := range t.Members {
		out = append(out, m.Score)
	}
	return out
}

func TestScore(t *testing.T) {
	assert.Equal(t, 0.0, grouping.Score(nil))
	assert.Equal(t, 75.0, grouping.Score(map[string]float64{"math": 70, "science": 80}))
}

func TestBalance_SnakeDraft(t *testing.T) {
	teams, err := grouping.Balance(roster(90, 80, 70, 60, 50, 40, 30, 20, 10), 3)
	require.NoError(t, err)
	require.Len(t, teams, 3)

	assert.Equal(t, []float64{90, 40, 30}, scoresOf(teams[0]))
	assert.Equal(t, []float64{80, 50, 20}, scoresOf(teams[1]))
	assert.Equal(t, []float64{70, 60, 10}, scoresOf(teams[2]))

	for i, tm := range teams {
		assert.Len(t, tm.Members, 3)
		assert.Equal(t, fmt.Sprintf("Group %d", i+1), tm.Name)
	}

	// Contiguous chunks of the same ranking: 80, 50, 20 -> spread 60.
	assert.Less(t, grouping.Spread(teams), 60.0)
}

func TestBalance_UnsortedInput(t *testing.T) {
	teams, err := grouping.Balance(roster(10, 90, 50, 70), 2)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, []float64{90, 10}, scoresOf(teams[0]))
	assert.Equal(t, []float64{70, 50}, scoresOf(teams[1]))
}

func TestBalance_UnevenRoster(t *testing.T) {
	teams, err := grouping.Balance(roster(100, 90, 80, 70, 60, 50, 40, 30, 20, 10), 3)
	require.NoError(t, err)
	require.Len(t, teams, 4)

	total := 0
	for _, tm := range teams {
		assert.LessOrEqual(t, len(tm.Members), 3)
		assert.GreaterOrEqual(t, len(tm.Members), 2)
		total += len(tm.Members)
	}
	assert.Equal(t, 10, total)
}

func TestBalance_TiesKeepRosterOrder(t *testing.T) {
	r := roster(50, 50, 50, 50)
	teams, err := grouping.Balance(r, 2)
	require.NoError(t, err)
	assert.Equal(t, r[0].ID, teams[0].Members[0].ID)
	assert.Equal(t, r[1].ID, teams[1].Members[0].ID)
	assert.Equal(t, r[2].ID, teams[1].Members[1].ID)
	assert.Equal(t, r[3].ID, teams[0].Members[1].ID)
}

func TestBalance_Deterministic(t *testing.T) {
	r := roster(33, 87, 12, 65, 65, 44, 90)
	a, err := grouping.Balance(r, 3)
	require.NoError(t, err)
	b, err := grouping.Balance(r, 3)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBalance_NoScoresAveragesZero(t *testing.T) {
	r := []grouping.Student{{ID: primitive.NewObjectID()}, {ID: primitive.NewObjectID()}}
	teams, err := grouping.Balance(r, 2)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, 0.0, teams[0].AverageScore)
}

func TestBalance_Errors(t *testing.T) {
	_, err := grouping.Balance(roster(1, 2, 3), 1)
	assert.ErrorIs(t, err, grouping.ErrTeamSize)

	_, err = grouping.Balance(roster(1, 2, 3), 5)
	assert.ErrorIs(t, err, grouping.ErrTeamSize)

	_, err = grouping.Balance(nil, 3)
	assert.ErrorIs(t, err, grouping.ErrEmptyRoster)
}
