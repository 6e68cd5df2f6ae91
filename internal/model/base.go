package model

import "time"

// Entity is the capability set every persisted type must provide.
// The repository relies on it for soft-delete bookkeeping and the
// pre-save timestamp hook.
type Entity interface {
	PrimaryKey() int
	CreatedAt() time.Time
	UpdatedAt() time.Time
	SetDeleted(deleted bool)
	Deleted() bool
	UpdateBeforeSave(now time.Time)
	EnsureTimestamps(now time.Time)
	SyncAudit(from Entity)
}

// Base carries identity, audit timestamps and the soft-delete flag.
// Embed it in every persisted model.
type Base struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	DateCreate time.Time `gorm:"not null" json:"dateCreate"`
	DateUpdate time.Time `gorm:"not null" json:"dateUpdate"`
	IsDelete   bool      `gorm:"index;not null;default:false" json:"-"`
}

// NewBase stamps both timestamps with the same creation instant.
func NewBase() Base {
	now := time.Now().UTC()
	return Base{DateCreate: now, DateUpdate: now}
}

func (b *Base) PrimaryKey() int { return b.ID }

func (b *Base) CreatedAt() time.Time { return b.DateCreate }

func (b *Base) UpdatedAt() time.Time { return b.DateUpdate }

func (b *Base) SetDeleted(deleted bool) { b.IsDelete = deleted }

func (b *Base) Deleted() bool { return b.IsDelete }

// UpdateBeforeSave refreshes DateUpdate; DateCreate never changes.
func (b *Base) UpdateBeforeSave(now time.Time) { b.DateUpdate = now }

// EnsureTimestamps fills in missing audit timestamps on entities built
// outside NewBase (e.g. decoded from a request body).
func (b *Base) EnsureTimestamps(now time.Time) {
	if b.DateCreate.IsZero() {
		b.DateCreate = now
	}
	if b.DateUpdate.Before(b.DateCreate) {
		b.DateUpdate = b.DateCreate
	}
}

// SyncAudit copies identity, creation instant and delete flag from the
// stored row so an inbound update cannot rewrite them.
func (b *Base) SyncAudit(from Entity) {
	b.ID = from.PrimaryKey()
	b.DateCreate = from.CreatedAt()
	b.IsDelete = from.Deleted()
}
