package user

import "errors"

var ErrNotFound = errors.New("user: not found")

// Profile is the public part of a user account shown next to chat participants.
type Profile struct {
	ID    string
	Name  string
	Email string
}

// DisplayName falls back to the id when the profile has no name.
func (p Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
