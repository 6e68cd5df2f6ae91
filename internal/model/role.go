package model

// DefaultRoleName is attached to every user at registration. The row is
// created lazily on first use (see service.AuthService).
const DefaultRoleName = "User"

type Role struct {
	Base
	Name        string `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Description string `gorm:"size:255" json:"description"`

	Users []*User `gorm:"many2many:user_roles" json:"-"`
}

func (Role) TableName() string { return "roles" }
