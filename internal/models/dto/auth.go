package dto

import "github.com/hongminglow/bountyboard/internal/models"

type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// UpdateProfileRequest carries optional profile changes; nil fields are left alone.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	DigestOptIn *bool   `json:"digest_opt_in"`
}
