package models

import (
	"time"

	"github.com/lib/pq"
)

type Post struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Content   string         `json:"content" gorm:"type:text"`
	MediaKeys pq.StringArray `json:"mediaKeys" gorm:"type:text[]"`
	OwnerID   uint           `json:"ownerId" gorm:"not null;index"`
	Owner     *User          `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Comments  []Comment      `json:"comments,omitempty" gorm:"foreignKey:PostID"`
}
