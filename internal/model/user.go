package model

import "time"

type UserRole string

const (
	Admin      UserRole = "admin"
	Creator    UserRole = "creator"
	Respondent UserRole = "respondent"
)

type User struct {
	BaseModel
	Name       string     `gorm:"size:100;not null" json:"name"`
	Email      string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password   string     `gorm:"size:255;not null" json:"-"`
	Role       UserRole   `gorm:"size:20;default:'creator'" json:"role"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}
