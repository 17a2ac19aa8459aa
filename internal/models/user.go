package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles as stored in the users table
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleUser      = "user"
)

type User struct {
	ID                uuid.UUID
	CreatedAt         time.Time
	EmployeeNumber    int64
	Name              string
	Picture           string
	Role              string
	HashedPassword    string
	PasswordChangedAt time.Time
}

// CreateUser holds fields required to create a user record
type CreateUser struct {
	EmployeeNumber int64
	Name           string
	Picture        string
	Role           string
	HashedPassword string
}
