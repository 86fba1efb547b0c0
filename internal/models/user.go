package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles recognized by the identity layer.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a marketplace account that can take part in conversations.
type User struct {
	ID          string `gorm:"primaryKey" json:"id"` // UUID
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName string `gorm:"type:text;not null" json:"display_name"`
	// Role is either "user" or "admin". Admins may open listing-less rooms.
	Role string `gorm:"type:text;not null;default:'user'" json:"role"`
}

// BeforeCreate is a GORM hook that generates a UUID for the user
// if the ID has not been set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return
}
