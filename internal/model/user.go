package model

import "time"

type User struct {
	ID        string    `json:"id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}
