package domain

import "time"

type User struct {
	ID           string
	Username     string
	PasswordHash string   // argon2 encoded
	Scopes       []string // authorities this user can be granted
	Salary       int64
	Age          int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
