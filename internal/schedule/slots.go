package schedule

import (
	"errors"

	"campus_hub/internal/models"
	"campus_hub/internal/storage"

	"gorm.io/gorm"
)

// UpsertPersonalSlot создаёт или обновляет личный слот действующего пользователя.
// entryID == nil — всегда создание нового слота (личные слоты не дедуплицируются).
// entryID != nil — запись ищется по (id, владелец, manual_personal); чужая или
// отсутствующая запись даёт ErrNotFound без раскрытия факта существования.
func UpsertPersonalSlot(tenantID, userID uint, entryID *uint, d Details) (*models.ScheduleEntry, error) {
	if entryID == nil {
		entry, err := NewEntry(tenantID, models.SourceManualPersonal, userID, d)
		if err != nil {
			return nil, err
		}
		AssignOwner(entry, userID)
		if err := storage.DB.Create(entry).Error; err != nil {
			return nil, err
		}
		return entry, nil
	}

	var entry models.ScheduleEntry
	err := storage.DB.
		Where("id = ? AND tenant_id = ? AND owner_user_id = ? AND source_type = ?",
			*entryID, tenantID, userID, models.SourceManualPersonal).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := UpdateDetails(&entry, d); err != nil {
		return nil, err
	}
	if err := storage.DB.Save(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// RemovePersonalSlot удаляет личный слот. Отсутствие или чужой слот — тихий no-op.
func RemovePersonalSlot(tenantID, userID, entryID uint) error {
	return storage.DB.Unscoped().
		Where("id = ? AND tenant_id = ? AND owner_user_id = ? AND source_type = ?",
			entryID, tenantID, userID, models.SourceManualPersonal).
		Delete(&models.ScheduleEntry{}).Error
}
