package model

import "time"

type CommunityModel struct {
	ID           string    `gorm:"column:id;type:uuid;primaryKey"`
	Name         string    `gorm:"column:name;type:varchar(255);not null"`
	Slug         string    `gorm:"column:slug;type:varchar(255);not null"`
	Description  string    `gorm:"column:description;type:text"`
	ProfilePhoto string    `gorm:"column:profile_photo;type:text"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (CommunityModel) TableName() string {
	return "communities"
}
