// internal/app/features/groups/types.go
package groups

import (
	"github.com/dalemusser/questhub/internal/app/gamify"
	"github.com/dalemusser/questhub/internal/app/grouping"
	"github.com/dalemusser/questhub/internal/domain/models"
)

type groupRequest struct {
	Name      string   `json:"name" validate:"required,max=100" label:"Name"`
	MemberIDs []string `json:"member_ids" validate:"max=50,dive,objectid" label:"Members"`
	ProjectID *string  `json:"project_id" validate:"omitempty,objectid" label:"Project"`
}

type balanceRequest struct {
	StudentIDs []string `json:"student_ids" validate:"max=500,dive,objectid" label:"Students"`
	Size       int      `json:"size" validate:"required,min=2,max=4" label:"Group size"`
}

type commitTeam struct {
	Name      string   `json:"name" validate:"required,max=100" label:"Name"`
	MemberIDs []string `json:"member_ids" validate:"required,min=1,max=4,dive,objectid" label:"Members"`
}

type commitRequest struct {
	Teams     []commitTeam `json:"teams" validate:"required,min=1,max=200,dive" label:"Groups"`
	ProjectID *string      `json:"project_id" validate:"omitempty,objectid" label:"Project"`
}

type memberView struct {
	ID       string  `json:"id"`
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	XP       int     `json:"xp"`
	Level    int     `json:"level"`
	Mastery  float64 `json:"mastery"`
}

type groupView struct {
	models.Group
	Members     []memberView `json:"members"`
	MemberCount int          `json:"member_count"`
}

type balanceResponse struct {
	Size   int             `json:"size"`
	Teams  []grouping.Team `json:"teams"`
	Spread float64         `json:"spread"`
}

func viewMember(u models.User) memberView {
	return memberView{
		ID:       u.ID.Hex(),
		FullName: u.FullName,
		Email:    u.Email,
		XP:       u.XP,
		Level:    gamify.Level(u.XP),
		Mastery:  grouping.Score(u.Mastery),
	}
}
