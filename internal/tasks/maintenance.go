package tasks

import (
	"log"
	"time"

	"campus_hub/internal/deadlines"
	"campus_hub/internal/models"
	"campus_hub/internal/storage"

	"github.com/robfig/cron/v3"
)

// RestoreReminderJobs восстанавливает задачи напоминаний после перезапуска:
// встроенный исполнитель держит таймеры в памяти процесса, поэтому при старте
// планирование повторяется для всех активных дедлайнов с будущим сроком.
func RestoreReminderJobs() {
	var list []models.Deadline
	if err := storage.DB.
		Where("status = ? AND due_at > ?", models.DeadlineActive, time.Now()).
		Find(&list).Error; err != nil {
		log.Println("Ошибка загрузки дедлайнов для восстановления напоминаний:", err)
		return
	}
	for i := range list {
		if err := deadlines.Reminders.ScheduleReminders(&list[i]); err != nil {
			log.Println("Ошибка восстановления напоминаний дедлайна:", err)
		}
	}
	log.Printf("Напоминания восстановлены для %d дедлайнов.", len(list))
}

// SweepOrphanedEventEntries удаляет записи мероприятий, оставшиеся без
// участников, группы и владельца. Штатно такие записи убирает сервис слияния
// при отписке; задача подчищает то, что осталось после сбоев.
func SweepOrphanedEventEntries() {
	res := storage.DB.Unscoped().
		Where("source_type = ? AND group_id IS NULL AND owner_user_id IS NULL", models.SourceUniversityEvent).
		Where("id NOT IN (?)", storage.DB.Model(&models.ScheduleAttendee{}).Select("schedule_entry_id")).
		Delete(&models.ScheduleEntry{})
	if res.Error != nil {
		log.Println("Ошибка очистки осиротевших записей мероприятий:", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("Удалено осиротевших записей мероприятий: %d", res.RowsAffected)
	}
}

// PurgeDeletedDeadlines окончательно удаляет дедлайны, мягко удалённые
// более 30 дней назад, вместе с историей отметок и напоминаний.
func PurgeDeletedDeadlines() {
	threshold := time.Now().Add(-30 * 24 * time.Hour)

	var ids []uint
	if err := storage.DB.Unscoped().Model(&models.Deadline{}).
		Where("deleted_at IS NOT NULL AND deleted_at < ?", threshold).
		Pluck("id", &ids).Error; err != nil {
		log.Println("Ошибка поиска дедлайнов для окончательного удаления:", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	if err := storage.DB.Unscoped().Where("deadline_id IN ?", ids).Delete(&models.DeadlineCompletion{}).Error; err != nil {
		log.Println("Ошибка удаления отметок выполнения:", err)
		return
	}
	if err := storage.DB.Unscoped().Where("deadline_id IN ?", ids).Delete(&models.DeadlineReminder{}).Error; err != nil {
		log.Println("Ошибка удаления учётных строк напоминаний:", err)
		return
	}
	if err := storage.DB.Unscoped().Where("id IN ?", ids).Delete(&models.Deadline{}).Error; err != nil {
		log.Println("Ошибка окончательного удаления дедлайнов:", err)
		return
	}
	log.Printf("Окончательно удалено дедлайнов: %d", len(ids))
}

// InitScheduler инициализирует планировщик cron-задач.
func InitScheduler() *cron.Cron {
	c := cron.New(cron.WithSeconds())

	// Подчистка осиротевших записей мероприятий каждый час.
	_, err := c.AddFunc("0 0 * * * *", SweepOrphanedEventEntries)
	if err != nil {
		log.Println("Ошибка запуска cron-задачи SweepOrphanedEventEntries:", err)
	}

	// Окончательное удаление старых мягко удалённых дедлайнов каждый день в 03:00.
	_, err = c.AddFunc("0 0 3 * * *", PurgeDeletedDeadlines)
	if err != nil {
		log.Println("Ошибка запуска cron-задачи PurgeDeletedDeadlines:", err)
	}

	c.Start()
	log.Println("Cron-планировщик запущен.")
	return c
}
