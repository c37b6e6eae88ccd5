package models

import (
	"time"
)

type Comment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	OwnerID   uint      `json:"ownerId" gorm:"not null;index"`
	PostID    uint      `json:"postId" gorm:"not null;index"`
}
