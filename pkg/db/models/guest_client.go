package models

import (
	"time"

	"github.com/google/uuid"
)

// GuestClient is a client record with no login credentials, created by an
// admin on behalf of someone who has not registered. Once UpgradedToUserID is
// set the row is retired: it is excluded from active listings and match
// searches and never mutated again.
type GuestClient struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name             string     `gorm:"type:text;not null"`
	Email            *string    `gorm:"type:text"`
	Phone            *string    `gorm:"type:text"`
	Course           *string    `gorm:"type:text"`
	Notes            *string    `gorm:"type:text"`
	UpgradedToUserID *uuid.UUID `gorm:"type:uuid;column:upgraded_to_user_id;index"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Upgraded reports whether this guest has been merged into a registered user.
func (g GuestClient) Upgraded() bool {
	return g.UpgradedToUserID != nil
}
