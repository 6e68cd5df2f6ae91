package model

type User struct {
	Base
	Email        string  `gorm:"uniqueIndex;size:191;not null" json:"email"`
	PasswordHash string  `gorm:"size:191;not null" json:"-"`
	FirstName    string  `gorm:"size:64" json:"firstName"`
	LastName     string  `gorm:"size:64" json:"lastName"`
	MiddleName   *string `gorm:"size:64" json:"middleName,omitempty"`

	// Password is the write-only plaintext input; it is digested into
	// PasswordHash before persistence and never stored or echoed back.
	Password string `gorm:"-" json:"password,omitempty" binding:"omitempty,min=6"`

	Roles []*Role `gorm:"many2many:user_roles" json:"roles,omitempty"`
}

func (User) TableName() string { return "users" }

// SyncAudit carries the stored credential digest forward on updates.
// PasswordHash never travels over the wire, so an inbound update that does
// not set a new password must keep the row's digest intact.
func (u *User) SyncAudit(from Entity) {
	u.Base.SyncAudit(from)
	if prev, ok := from.(*User); ok && u.PasswordHash == "" {
		u.PasswordHash = prev.PasswordHash
	}
}

// RoleNames returns the names of the assigned roles, in relation order.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}
