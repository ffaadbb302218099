package models

import (
	"time"

	"gorm.io/gorm"
)

// UniversityEvent — университетское мероприятие. Запись пользователя на мероприятие
// порождает (или пополняет) единую запись расписания с источником university_event.
type UniversityEvent struct {
	gorm.Model
	TenantID         uint   `gorm:"index;not null"`
	Title            string `gorm:"not null"`
	Description      string
	PhysicalLocation string
	OnlineLink       string
	StartsAt         time.Time `gorm:"index;not null"`
	EndsAt           time.Time `gorm:"not null"`
	DeliveryType     string    `gorm:"not null"`
	CreatedByUserID  uint
}
