package models

import (
	"time"
)

// User owns four relationship sets. Each follow or block edge is a single
// row in the follows or blocks table, so B in A.Followings and A in
// B.Followers can never disagree.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Username  string    `gorm:"unique;not null" json:"username"`
	Email     string    `gorm:"unique;not null" json:"email"`
	Name      string    `json:"name"`
	Password  string    `json:"-"` // Don't expose password in JSON
	Avatar    string    `json:"avatar"`
	AvatarKey string    `json:"-"`
	Bio       string    `gorm:"size:150" json:"bio"`
	UserType  string    `gorm:"not null;default:'personal'" json:"userType"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"isAdmin"`
	GoogleID  *string   `gorm:"unique" json:"-"`

	Followers      []User `json:"followers,omitempty" gorm:"many2many:follows;foreignKey:ID;joinForeignKey:FollowingID;References:ID;joinReferences:FollowerID"`
	Followings     []User `json:"followings,omitempty" gorm:"many2many:follows;foreignKey:ID;joinForeignKey:FollowerID;References:ID;joinReferences:FollowingID"`
	BlockedUsers   []User `json:"blockedUsers,omitempty" gorm:"many2many:blocks;foreignKey:ID;joinForeignKey:BlockerID;References:ID;joinReferences:BlockedID"`
	BlockedByUsers []User `json:"blockedByUsers,omitempty" gorm:"many2many:blocks;foreignKey:ID;joinForeignKey:BlockedID;References:ID;joinReferences:BlockerID"`
}

// IDs flattens a slice of users to their identifiers.
func IDs(users []User) []uint {
	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}
