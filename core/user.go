package core

import "time"

type (
	// Profile is the application-side user record mirrored into the backend's
	// users table on sign-in.
	Profile struct {
		ID        string    `json:"id"`
		Email     string    `json:"email,omitempty"`
		FirstName string    `json:"first_name,omitempty"`
		LastName  string    `json:"last_name,omitempty"`
		AvatarURL string    `json:"avatar_url,omitempty"`
		UpdatedAt time.Time `json:"updated_at"`
	}
)
