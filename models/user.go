package models

import "time"

type Role string

const (
	RoleClient Role = "CLIENT"
	RoleAdmin  Role = "ADMIN"
)

// User is an account. Accounts start inactive and are activated once through
// their verification token.
type User struct {
	Model
	Email       string  `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Password    string  `gorm:"not null" json:"-"`
	Username    string  `gorm:"index;size:100" json:"username"`
	DisplayName string  `gorm:"size:100" json:"displayName"`
	Avatar      *string `json:"avatar"`
	// AvatarPublicID is the asset store key of Avatar.
	AvatarPublicID *string    `json:"-"`
	Role           Role       `gorm:"index;size:10;not null;default:CLIENT" json:"role"`
	IsActive       bool       `gorm:"not null;default:false" json:"isActive"`
	VerifyToken    *string    `gorm:"size:64" json:"-"`
	LastLoginAt    *time.Time `json:"-"`
}

// PublicUser is the subset of user fields exposed by the API.
type PublicUser struct {
	ID          string    `json:"_id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName,omitempty"`
	Avatar      *string   `json:"avatar"`
	Role        Role      `json:"role"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
		Role:        u.Role,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
