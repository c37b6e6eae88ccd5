package models

import (
	"time"
)

// RefreshToken is a long-lived token a client trades for a new access
// token. Rotated on every refresh, deleted on logout.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UserID    uint      `json:"userId" gorm:"not null;index"`
	Token     string    `json:"-" gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null"`
}

// Expired reports whether the token can no longer be used at now.
func (t RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
