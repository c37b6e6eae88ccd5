package models

import "time"

// Block is a directed block: BlockerID blocked BlockedID.
type Block struct {
	BlockerID uint      `gorm:"primaryKey;autoIncrement:false" json:"blockerId"`
	BlockedID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"blockedId"`
	CreatedAt time.Time `json:"createdAt"`
}
