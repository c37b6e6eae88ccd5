package models

import "time"

// Follow is a directed follow edge: FollowerID follows FollowingID.
type Follow struct {
	FollowerID  uint      `gorm:"primaryKey;autoIncrement:false" json:"followerId"`
	FollowingID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"followingId"`
	CreatedAt   time.Time `json:"createdAt"`
}
