// ABOUTME: Gorm structs mirroring the demo tables for the gorm-backed adapters
// ABOUTME: Column names follow gorm's snake_case convention and match the goose migrations

package demo

import "time"

// User is a row of the "user" table.
type User struct {
	ID           int64   `gorm:"primaryKey"`
	Username     string  `gorm:"uniqueIndex;not null"`
	Phone        *string
	HashPassword string `gorm:"not null"`
	IsSuperuser  bool
	IsActive     bool
	Roles        string
	CreatedAt    time.Time
}

// TableName implements gorm's tabler.
func (User) TableName() string { return TableUser }

// UserMessage is a note attached to a user and edited inline.
type UserMessage struct {
	ID      int64  `gorm:"primaryKey"`
	UserID  int64  `gorm:"not null;index"`
	Message string `gorm:"not null"`
}

// TableName implements gorm's tabler.
func (UserMessage) TableName() string { return TableUserMessage }

// Event is keyed by a UUID string.
type Event struct {
	ID          string `gorm:"primaryKey;type:text"`
	Name        string `gorm:"not null"`
	Description string
	Kind        string
	StartsOn    *time.Time `gorm:"type:date"`
	Capacity    int64
	Price       float64
	IsPublic    bool
	OwnerID     *int64
}

// TableName implements gorm's tabler.
func (Event) TableName() string { return TableEvent }
