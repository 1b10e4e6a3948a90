// internal/app/features/shared/user.go
package shared

import (
	"github.com/dalemusser/questhub/internal/app/gamify"
	"github.com/dalemusser/questhub/internal/domain/models"
)

// UserView is a user as returned by the API, with the derived level.
type UserView struct {
	models.User
	Level int `json:"level"`
}

// ViewUser derives the level for u.
func ViewUser(u models.User) UserView {
	return UserView{User: u, Level: gamify.Level(u.XP)}
}
