package identity

import "time"

// User represents a registered account owner.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	FullName     string
	CreatedAt    time.Time
}

// Credentials carries registration/login input.
type Credentials struct {
	Email    string
	Password string
	FullName string
}
