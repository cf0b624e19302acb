package models

import "time"

// UserSettingsModel stores per-user preferences. UserID is the primary key.
type UserSettingsModel struct {
	UserID         string    `json:"user_id"          gorm:"type:char(36);primaryKey"`
	RealTimeSearch bool      `json:"real_time_search" gorm:"default:false"`
	Language       string    `json:"language"         gorm:"type:varchar(16);default:en"`
	UpdatedAt      time.Time `json:"modified"`
}

func (UserSettingsModel) TableName() string { return "user_settings" }
