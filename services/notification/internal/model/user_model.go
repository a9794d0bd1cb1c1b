package model

import "time"

type UserModel struct {
	ID           string    `gorm:"column:id;type:uuid;primaryKey"`
	Email        string    `gorm:"column:email;type:varchar(255)"`
	Username     string    `gorm:"column:username;type:varchar(255);not null"`
	Name         string    `gorm:"column:name;type:varchar(255)"`
	ProfilePhoto string    `gorm:"column:profile_photo;type:text"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (UserModel) TableName() string {
	return "users"
}
