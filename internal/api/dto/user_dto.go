package dto

// CreateUserRequest payload for the admin create endpoint.
type CreateUserRequest struct {
	FullName string `json:"full_name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=admin user"`
	Status   string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// UpdateUserRequest payload for profile updates. Omitted fields stay as-is.
type UpdateUserRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin user"`
	Status   *string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// ChangePasswordRequest payload. CurrentPassword may be empty when an admin
// sets another user's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// ListMeta describes pagination of a list response.
type ListMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
