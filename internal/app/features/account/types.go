// internal/app/features/account/types.go
package account

import (
	"time"

	"github.com/dalemusser/questhub/internal/app/features/shared"
)

type registerRequest struct {
	FullName string `json:"full_name" validate:"required,max=100" label:"Full name"`
	Email    string `json:"email" validate:"required,email,max=254" label:"Email"`
	Password string `json:"password" validate:"required,min=8,max=72" label:"Password"`
	Role     string `json:"role" validate:"omitempty,oneof=student teacher" label:"Role"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
}

type updateMeRequest struct {
	FullName string `json:"full_name" validate:"required,max=100" label:"Full name"`
}

type passwordRequest struct {
	Current string `json:"current_password" validate:"required" label:"Current password"`
	New     string `json:"new_password" validate:"required,min=8,max=72,nefield=Current" label:"New password"`
}

type sessionResponse struct {
	User      shared.UserView `json:"user"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
}
