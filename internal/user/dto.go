// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

const (
	MsgEmailExists     = "user with this email already exists."
	MsgUsernameExists  = "user with this username already exists."
	MsgPasswordsDiffer = "The two password fields didn't match."
)

// CreateAccountRequest is the registration body.
type CreateAccountRequest struct {
	Email      string  `json:"email"       validate:"required,email,max=254"`
	Username   string  `json:"username"    validate:"required,min=1,max=100"`
	Password   string  `json:"password"    validate:"required,min=8,max=128"`
	RePassword *string `json:"re_password"`
	FirstName  string  `json:"first_name"  validate:"max=100"`
	LastName   string  `json:"last_name"   validate:"max=100"`
	Phone      *string `json:"phone"       validate:"omitempty,max=20"`
	Picture    *string `json:"picture"`
}

// StaffCreateRequest lets staff set the privileged fields at creation.
type StaffCreateRequest struct {
	CreateAccountRequest
	Role     *string `json:"role"      validate:"omitempty,oneof=customer moderator admin owner"`
	IsStaff  *bool   `json:"is_staff"`
	Verified *bool   `json:"verified"`
}

// UpdateProfileRequest is what an account may change about itself.
type UpdateProfileRequest struct {
	Username  *string `json:"username"   validate:"omitempty,min=1,max=100"`
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name"  validate:"omitempty,max=100"`
	Phone     *string `json:"phone"      validate:"omitempty,max=20"`
	Picture   *string `json:"picture"`
}

// StaffUpdateRequest adds the fields only staff may change.
type StaffUpdateRequest struct {
	UpdateProfileRequest
	Email    *string `json:"email"    validate:"omitempty,email,max=254"`
	Role     *string `json:"role"     validate:"omitempty,oneof=customer moderator admin owner"`
	IsStaff  *bool   `json:"is_staff"`
	Verified *bool   `json:"verified"`
}

type DeleteAccountRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
}

type AccountResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	Phone      *string   `json:"phone"`
	Picture    string    `json:"picture"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	IsOnline   bool      `json:"is_online"`
	IsActive   bool      `json:"is_active"`
	IsStaff    bool      `json:"is_staff"`
	Role       string    `json:"role"`
	Verified   bool      `json:"verified"`
	DateJoined time.Time `json:"date_joined"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func ToAccountResponse(a *Account, publicURL func(string) string) AccountResponse {
	picture := a.Picture
	if publicURL != nil && picture != "" {
		picture = publicURL(picture)
	}

	return AccountResponse{
		ID:         a.ID,
		Email:      a.Email,
		Username:   a.Username,
		Phone:      a.Phone,
		Picture:    picture,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		IsOnline:   a.IsOnline,
		IsActive:   a.IsActive,
		IsStaff:    a.IsStaff,
		Role:       a.Role,
		Verified:   a.Verified,
		DateJoined: a.DateJoined,
		UpdatedAt:  a.UpdatedAt,
	}
}
