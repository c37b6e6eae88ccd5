package models

import (
	"fmt"
	"time"
)

const (
	NotificationKindFollow = "follow"
)

type Notification struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
	SenderID   uint      `gorm:"not null;index" json:"senderId"`
	Sender     *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReceiverID uint      `gorm:"not null;index" json:"receiverId"`
	Receiver   *User     `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
	PostID     *uint     `json:"postId,omitempty"`
	Post       *Post     `gorm:"foreignKey:PostID" json:"post,omitempty"`
	Kind       string    `gorm:"not null;type:varchar(20)" json:"kind"` // "follow"
	Text       string    `gorm:"not null" json:"text"`
}

// FollowText is the message a user receives when someone follows them.
func FollowText(senderUsername string) string {
	return fmt.Sprintf("%s started following you", senderUsername)
}
