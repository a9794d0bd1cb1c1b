package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationModel struct {
	ID         string         `gorm:"column:id;type:uuid;primaryKey"`
	Event      string         `gorm:"column:event;type:varchar(64);not null"`
	ContextID  string         `gorm:"column:context_id;type:varchar(64);not null"`
	Context    datatypes.JSON `gorm:"column:context;type:jsonb;not null"`
	Actors     datatypes.JSON `gorm:"column:actors;type:jsonb;not null"`
	Entities   datatypes.JSON `gorm:"column:entities;type:jsonb;not null"`
	IsRead     bool           `gorm:"column:is_read;not null;default:false"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
	ModifiedAt time.Time      `gorm:"column:modified_at"`
}

func (NotificationModel) TableName() string {
	return "notifications"
}

func (m *NotificationModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

type UsersNotificationModel struct {
	ID             string            `gorm:"column:id;type:uuid;primaryKey"`
	UserID         string            `gorm:"column:user_id;type:uuid;not null"`
	NotificationID string            `gorm:"column:notification_id;type:uuid;not null"`
	IsRead         bool              `gorm:"column:is_read;not null;default:false"`
	IsSeen         bool              `gorm:"column:is_seen;not null;default:false"`
	CreatedAt      time.Time         `gorm:"column:created_at"`
	EntityAddedAt  time.Time         `gorm:"column:entity_added_at"`
	Notification   NotificationModel `gorm:"foreignKey:NotificationID;references:ID"`
}

func (UsersNotificationModel) TableName() string {
	return "users_notifications"
}

func (m *UsersNotificationModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}
