package models

import (
	"time"

	"gorm.io/gorm"
)

// Источник записи расписания: откуда она появилась.
const (
	SourceAdminLesson     = "admin_lesson"     // Пара, созданная администратором группы
	SourceManualPersonal  = "manual_personal"  // Личный слот пользователя
	SourceUniversityEvent = "university_event" // Запись, порождённая университетским мероприятием
)

// Формат проведения.
const (
	DeliveryOffline = "offline"
	DeliveryOnline  = "online"
)

// ScheduleEntry — единая запись расписания для пар, личных слотов и мероприятий.
// Для записей с источником university_event пара (tenant_id, source_type, source_entity_id)
// уникальна: сколько бы пользователей ни записалось на мероприятие, строка одна.
type ScheduleEntry struct {
	gorm.Model
	TenantID         uint    `gorm:"not null;uniqueIndex:idx_schedule_source"`
	GroupID          *uint   `gorm:"index"` // Группа-владелец (пары)
	OwnerUserID      *uint   `gorm:"index"` // Личный владелец (личные слоты)
	SourceType       string  `gorm:"not null;uniqueIndex:idx_schedule_source"`
	SourceEntityID   *string `gorm:"uniqueIndex:idx_schedule_source"` // Внешний ключ корреляции (ID мероприятия)
	Title            string  `gorm:"not null"`
	Description      string
	Teacher          string
	PhysicalLocation string    // Аудитория, обязательна при offline
	OnlineLink       string    // Ссылка, обязательна при online
	StartsAt         time.Time `gorm:"index;not null"`
	EndsAt           time.Time `gorm:"not null"`
	DeliveryType     string    `gorm:"not null"`
	CreatedByUserID  uint
	Attendees        []ScheduleAttendee
}

// ScheduleAttendee — участник записи расписания. Добавляется и удаляется
// только через запись, пара (запись, пользователь) уникальна.
type ScheduleAttendee struct {
	gorm.Model
	ScheduleEntryID uint      `gorm:"uniqueIndex:idx_entry_attendee;not null"`
	UserID          uint      `gorm:"uniqueIndex:idx_entry_attendee;not null"`
	AddedAt         time.Time `gorm:"not null"`
}
