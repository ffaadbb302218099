package schedule

import (
	"errors"

	"campus_hub/internal/models"
	"campus_hub/internal/storage"

	"gorm.io/gorm"
)

// CreateGroupLesson создаёт пару для группы. Каждый вызов — независимая
// новая запись: дедупликации для пар нет, в отличие от мероприятий.
func CreateGroupLesson(tenantID, groupID, actorID uint, d Details) (*models.ScheduleEntry, error) {
	var group models.Group
	if err := storage.DB.Where("id = ? AND tenant_id = ?", groupID, tenantID).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	entry, err := NewEntry(tenantID, models.SourceAdminLesson, actorID, d)
	if err != nil {
		return nil, err
	}
	gid := groupID
	entry.GroupID = &gid

	if err := storage.DB.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdateGroupLesson обновляет пару, найденную по паре (entryID, groupID).
// Несовпадение — тихий no-op, не ошибка.
func UpdateGroupLesson(tenantID, groupID, entryID uint, d Details) error {
	var entry models.ScheduleEntry
	err := storage.DB.
		Where("id = ? AND tenant_id = ? AND group_id = ? AND source_type = ?",
			entryID, tenantID, groupID, models.SourceAdminLesson).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if err := UpdateDetails(&entry, d); err != nil {
		return err
	}
	return storage.DB.Save(&entry).Error
}

// DeleteGroupLesson удаляет пару с той же областью видимости, что и обновление.
// Несовпадение — тихий no-op.
func DeleteGroupLesson(tenantID, groupID, entryID uint) error {
	return storage.DB.Transaction(func(tx *gorm.DB) error {
		var entry models.ScheduleEntry
		err := tx.
			Where("id = ? AND tenant_id = ? AND group_id = ? AND source_type = ?",
				entryID, tenantID, groupID, models.SourceAdminLesson).
			First(&entry).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Unscoped().Where("schedule_entry_id = ?", entry.ID).Delete(&models.ScheduleAttendee{}).Error; err != nil {
			return err
		}
		// Жёсткое удаление: мягко удалённая строка осталась бы в уникальном индексе источника.
		return tx.Unscoped().Delete(&entry).Error
	})
}
