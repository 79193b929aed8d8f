package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the read-side view of an account, used for notifications.
type User struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	FullName   string     `gorm:"size:255;not null" json:"full_name"`
	Email      string     `gorm:"size:255;not null;unique" json:"email"`
	Role       string     `gorm:"size:20;not null;default:'CUSTOMER'" json:"role"`
	PropertyID *uuid.UUID `gorm:"type:uuid" json:"property_id,omitempty"`
	IsActive   bool       `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
