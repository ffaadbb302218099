package models

import (
	"time"

	"gorm.io/gorm"
)

// Статусы дедлайна.
const (
	DeadlineActive    = "active"
	DeadlineCompleted = "completed"
	DeadlineCancelled = "cancelled"
)

// Области видимости дедлайна.
const (
	AccessScopeGroup  = "group"
	AccessScopeTenant = "tenant"
)

// Deadline — задание с крайним сроком, привязанное к группе.
// Удаление мягкое (DeletedAt из gorm.Model): история отметок сохраняется.
type Deadline struct {
	gorm.Model
	TenantID        uint   `gorm:"index;not null"`
	GroupID         uint   `gorm:"index;not null"`
	Title           string `gorm:"not null"`
	DescriptionHTML string `gorm:"type:text"` // Не более 20 КБ, проверяется до записи
	DueAt           time.Time `gorm:"index;not null"`
	Status          string    `gorm:"not null;default:active"`
	AccessScope     string    `gorm:"not null;default:group"`
	ScheduleEntryID *uint     // Необязательная связь с записью расписания (синхронизация срока)
	LastNotifiedAt  *time.Time
	Completions     []DeadlineCompletion
	Reminders       []DeadlineReminder
}

// DeadlineCompletion — отметка пользователя о выполнении. Повторная отметка — no-op.
type DeadlineCompletion struct {
	gorm.Model
	DeadlineID  uint      `gorm:"uniqueIndex:idx_deadline_completion;not null"`
	UserID      uint      `gorm:"uniqueIndex:idx_deadline_completion;not null"`
	CompletedAt time.Time `gorm:"not null"`
}

// DeadlineReminder — учётная запись о зарегистрированном/отправленном напоминании
// для конкретного смещения. Источник истины для планирования — тег задачи, не строка.
type DeadlineReminder struct {
	gorm.Model
	DeadlineID uint   `gorm:"uniqueIndex:idx_deadline_reminder;not null"`
	Offset     string `gorm:"uniqueIndex:idx_deadline_reminder;not null"` // 5d, 2d, 1d, 1h
	SentAt     *time.Time
}
