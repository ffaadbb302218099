package deadlines

import (
	"errors"
	"fmt"
	"log"
	"time"

	"campus_hub/internal/jobs"
	"campus_hub/internal/models"
	"campus_hub/internal/storage"

	"gorm.io/gorm"
)

// Notifier доставляет короткое текстовое уведомление пользователю.
// Доставка может не удаться; вызывающий изолирует каждую неудачу.
type Notifier interface {
	Send(userID uint, text string) error
}

// Фиксированные смещения напоминаний: время упреждения вычитается из срока.
const (
	OffsetFiveDays = "5d"
	OffsetTwoDays  = "2d"
	OffsetOneDay   = "1d"
	OffsetOneHour  = "1h"
)

type offsetTemplate struct {
	Name  string
	Lead  time.Duration
	Label string
}

var offsetTemplates = []offsetTemplate{
	{OffsetFiveDays, 5 * 24 * time.Hour, "через 5 дней"},
	{OffsetTwoDays, 2 * 24 * time.Hour, "через 2 дня"},
	{OffsetOneDay, 24 * time.Hour, "завтра"},
	{OffsetOneHour, time.Hour, "через час"},
}

// ReminderTag — детерминированный тег задачи напоминания: один тег на пару
// (дедлайн, смещение), повторная регистрация по тегу заменяет прежнюю задачу.
func ReminderTag(deadlineID uint, offset string) string {
	return fmt.Sprintf("deadline:%d:%s", deadlineID, offset)
}

// Service планирует и исполняет напоминания о дедлайнах.
type Service struct {
	Runner jobs.Runner
	Sender Notifier
}

// Reminders — экземпляр сервиса, инициализируется в main.
var Reminders *Service

func Init(r jobs.Runner, n Notifier) {
	Reminders = &Service{Runner: r, Sender: n}
}

// ScheduleReminders пересчитывает и перерегистрирует задачи напоминаний
// по всем смещениям. Для каждого смещения сначала безусловно снимается
// прежняя задача (идемпотентный сброс), затем, если время срабатывания ещё
// не прошло, регистрируется новая и создаётся (если её нет) учётная строка.
// Смещения с прошедшим временем пропускаются целиком.
func (s *Service) ScheduleReminders(d *models.Deadline) error {
	now := time.Now()
	for _, tpl := range offsetTemplates {
		tag := ReminderTag(d.ID, tpl.Name)
		s.Runner.Cancel(tag)

		fireAt := d.DueAt.Add(-tpl.Lead)
		if !fireAt.After(now) {
			continue
		}

		deadlineID := d.ID
		offset := tpl.Name
		s.Runner.Put(tag, fireAt, func() {
			s.Fire(deadlineID, offset)
		})

		reminder := models.DeadlineReminder{DeadlineID: d.ID, Offset: tpl.Name}
		if err := storage.DB.
			Where("deadline_id = ? AND \"offset\" = ?", d.ID, tpl.Name).
			FirstOrCreate(&reminder).Error; err != nil {
			return err
		}
	}
	return nil
}

// CancelReminders снимает все возможные задачи напоминаний дедлайна
// (снятие отсутствующей задачи безопасно) и удаляет учётные строки.
func (s *Service) CancelReminders(deadlineID uint) error {
	for _, tpl := range offsetTemplates {
		s.Runner.Cancel(ReminderTag(deadlineID, tpl.Name))
	}
	return storage.DB.Unscoped().
		Where("deadline_id = ?", deadlineID).
		Delete(&models.DeadlineReminder{}).Error
}

// Fire — точка входа сработавшего напоминания. Перечитывает дедлайн,
// определяет актуальных получателей (участники группы минус отметившиеся)
// и рассылает уведомления, изолируя неудачу каждой доставки. В конце
// проставляет sent_at напоминания и время последнего уведомления дедлайна.
func (s *Service) Fire(deadlineID uint, offset string) {
	var d models.Deadline
	err := storage.DB.Preload("Completions").First(&d, deadlineID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	if err != nil {
		log.Println("Ошибка загрузки дедлайна для напоминания:", err)
		return
	}
	if d.Status == models.DeadlineCancelled {
		return
	}

	var memberIDs []uint
	if err := storage.DB.Model(&models.GroupMember{}).
		Where("group_id = ?", d.GroupID).
		Pluck("user_id", &memberIDs).Error; err != nil {
		log.Println("Ошибка загрузки участников группы:", err)
		return
	}

	completed := make(map[uint]bool, len(d.Completions))
	for _, c := range d.Completions {
		completed[c.UserID] = true
	}

	text := reminderText(&d, offset)
	for _, userID := range memberIDs {
		if completed[userID] {
			continue
		}
		if err := s.Sender.Send(userID, text); err != nil {
			// Одна неудачная доставка не прерывает рассылку остальным.
			log.Printf("Не удалось доставить напоминание пользователю %d: %v", userID, err)
		}
	}

	now := time.Now()
	if err := storage.DB.Model(&models.DeadlineReminder{}).
		Where("deadline_id = ? AND \"offset\" = ?", deadlineID, offset).
		Update("sent_at", now).Error; err != nil {
		log.Println("Ошибка записи отметки об отправке напоминания:", err)
	}
	if err := storage.DB.Model(&models.Deadline{}).
		Where("id = ?", deadlineID).
		Update("last_notified_at", now).Error; err != nil {
		log.Println("Ошибка обновления времени последнего уведомления:", err)
	}
}

func reminderText(d *models.Deadline, offset string) string {
	label := offset
	for _, tpl := range offsetTemplates {
		if tpl.Name == offset {
			label = tpl.Label
			break
		}
	}
	return fmt.Sprintf("Дедлайн «%s» наступает %s: %s", d.Title, label, d.DueAt.Format("02.01.2006 15:04"))
}

// NotifyChanged — необязательное доменное уведомление о создании/изменении
// дедлайна. Ошибки логируются и никогда не прерывают породившую команду.
func (s *Service) NotifyChanged(d *models.Deadline, action string) {
	memberIDs, err := scheduleMembers(d.GroupID)
	if err != nil {
		log.Println("Ошибка загрузки участников группы для уведомления:", err)
		return
	}
	text := fmt.Sprintf("Дедлайн «%s» %s, срок: %s", d.Title, action, d.DueAt.Format("02.01.2006 15:04"))
	for _, userID := range memberIDs {
		if err := s.Sender.Send(userID, text); err != nil {
			log.Printf("Не удалось доставить уведомление пользователю %d: %v", userID, err)
		}
	}
}

func scheduleMembers(groupID uint) ([]uint, error) {
	var ids []uint
	err := storage.DB.Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Pluck("user_id", &ids).Error
	return ids, err
}
