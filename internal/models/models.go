package models

import (
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	TenantID     uint   `gorm:"index;not null"` // Кампус (организация), к которому привязан пользователь
	Name         string `gorm:"not null"`
	Surname      string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
}

type Group struct {
	gorm.Model
	TenantID uint   `gorm:"index;not null"`
	Name     string `gorm:"not null"` // Название группы, например "БИВТ-21-1"
}

// GroupMember связывает пользователя с группой. Пара (группа, пользователь) уникальна.
type GroupMember struct {
	gorm.Model
	GroupID uint `gorm:"uniqueIndex:idx_group_member;not null"`
	UserID  uint `gorm:"uniqueIndex:idx_group_member;not null"`
}
