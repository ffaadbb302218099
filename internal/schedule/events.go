package schedule

import (
	"errors"
	"strconv"
	"time"

	"campus_hub/internal/models"
	"campus_hub/internal/storage"

	"gorm.io/gorm"
)

func eventDetails(ev *models.UniversityEvent) Details {
	return Details{
		Title:            ev.Title,
		Description:      ev.Description,
		StartsAt:         ev.StartsAt,
		EndsAt:           ev.EndsAt,
		DeliveryType:     ev.DeliveryType,
		PhysicalLocation: ev.PhysicalLocation,
		OnlineLink:       ev.OnlineLink,
	}
}

// AddEventSubscription записывает пользователя на мероприятие. Сколько бы
// независимых записей ни пришло, на одно мероприятие существует ровно одна
// запись расписания: первая подписка создаёт её, остальные пополняют
// множество участников. Метаданные записи перезаписываются пришедшими
// (последняя запись побеждает, без разрешения конфликтов). Повторная
// подписка того же пользователя — no-op.
func AddEventSubscription(tenantID uint, ev *models.UniversityEvent, userID uint) (*models.ScheduleEntry, error) {
	sourceID := strconv.FormatUint(uint64(ev.ID), 10)

	var result *models.ScheduleEntry
	err := storage.DB.Transaction(func(tx *gorm.DB) error {
		var entry models.ScheduleEntry
		err := tx.Preload("Attendees").
			Where("tenant_id = ? AND source_type = ? AND source_entity_id = ?",
				tenantID, models.SourceUniversityEvent, sourceID).
			First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created, err := NewEntry(tenantID, models.SourceUniversityEvent, ev.CreatedByUserID, eventDetails(ev))
			if err != nil {
				return err
			}
			SetSourceEntity(created, sourceID)
			created.Attendees = []models.ScheduleAttendee{{UserID: userID, AddedAt: time.Now()}}
			if err := tx.Create(created).Error; err != nil {
				return err
			}
			result = created
			return nil
		}
		if err != nil {
			return err
		}

		if err := UpdateDetails(&entry, eventDetails(ev)); err != nil {
			return err
		}
		if err := tx.Save(&entry).Error; err != nil {
			return err
		}

		for _, a := range entry.Attendees {
			if a.UserID == userID {
				result = &entry
				return nil
			}
		}
		attendee := models.ScheduleAttendee{
			ScheduleEntryID: entry.ID,
			UserID:          userID,
			AddedAt:         time.Now(),
		}
		if err := tx.Create(&attendee).Error; err != nil {
			return err
		}
		entry.Attendees = append(entry.Attendees, attendee)
		result = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EventEntry возвращает единую запись расписания мероприятия с участниками
// либо nil, если на мероприятие ещё никто не записан.
func EventEntry(tenantID, eventID uint) (*models.ScheduleEntry, error) {
	sourceID := strconv.FormatUint(uint64(eventID), 10)

	var entry models.ScheduleEntry
	err := storage.DB.Preload("Attendees").
		Where("tenant_id = ? AND source_type = ? AND source_entity_id = ?",
			tenantID, models.SourceUniversityEvent, sourceID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// SyncEventEntry перезаписывает метаданные записи мероприятия после его
// редактирования. Отсутствие записи (никто не записан) — no-op.
func SyncEventEntry(tenantID uint, ev *models.UniversityEvent) error {
	entry, err := EventEntry(tenantID, ev.ID)
	if err != nil || entry == nil {
		return err
	}
	if err := UpdateDetails(entry, eventDetails(ev)); err != nil {
		return err
	}
	return storage.DB.Save(entry).Error
}

// RemoveEventSubscription отписывает пользователя от мероприятия. Если после
// этого у записи не осталось ни участников, ни группы, ни личного владельца —
// осиротевшая запись удаляется. Запись с группой или владельцем не удаляется
// никогда, даже с пустым множеством участников.
func RemoveEventSubscription(tenantID uint, eventID uint, userID uint) error {
	sourceID := strconv.FormatUint(uint64(eventID), 10)

	return storage.DB.Transaction(func(tx *gorm.DB) error {
		var entry models.ScheduleEntry
		err := tx.
			Where("tenant_id = ? AND source_type = ? AND source_entity_id = ?",
				tenantID, models.SourceUniversityEvent, sourceID).
			First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Unscoped().
			Where("schedule_entry_id = ? AND user_id = ?", entry.ID, userID).
			Delete(&models.ScheduleAttendee{}).Error; err != nil {
			return err
		}

		var remaining int64
		if err := tx.Model(&models.ScheduleAttendee{}).
			Where("schedule_entry_id = ?", entry.ID).
			Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 && entry.GroupID == nil && entry.OwnerUserID == nil {
			return tx.Unscoped().Delete(&entry).Error
		}
		return nil
	})
}
