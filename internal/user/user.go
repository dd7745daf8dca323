package user

import "time"

type User struct {
	ID           int       `json:"userId"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createAt"`
}

// Identity is the minimal view of a signed-in user kept in sessions and
// tokens. It never carries the password hash.
type Identity struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username}
}
