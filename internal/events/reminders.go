package events

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
type Notifier interface {
	Send(userID uint, text string) error
}

// Упреждение единственного напоминания о мероприятии.
const reminderLead = 24 * time.Hour

// ReminderTag — тег задачи напоминания: один тег на пару (мероприятие, участник).
func ReminderTag(eventID, userID uint) string {
	return fmt.Sprintf("event:%d:user:%d", eventID, userID)
}

// Service планирует напоминания о мероприятиях: по одной задаче на каждого
// записавшегося. Отправленность не персистится — после срабатывания задачи
// следа не остаётся, в отличие от напоминаний о дедлайнах.
type Service struct {
	Runner jobs.Runner
	Sender Notifier
}

// Reminders — экземпляр сервиса, инициализируется в main.
var Reminders *Service

func Init(r jobs.Runner, n Notifier) {
	Reminders = &Service{Runner: r, Sender: n}
}

// ScheduleForRegistration регистрирует напоминание для записавшегося: за сутки
// до начала мероприятия. Если это время уже прошло, напоминание не
// пропускается, а прижимается к «сейчас плюс минута» — политика, намеренно
// отличная от пропуска просроченных смещений у дедлайнов.
func (s *Service) ScheduleForRegistration(ev *models.UniversityEvent, userID uint) {
	tag := ReminderTag(ev.ID, userID)
	s.Runner.Cancel(tag)

	fireAt := ev.StartsAt.Add(-reminderLead)
	if !fireAt.After(time.Now()) {
		fireAt = time.Now().Add(time.Minute)
	}

	eventID := ev.ID
	s.Runner.Put(tag, fireAt, func() {
		s.fire(eventID, userID)
	})
}

// RescheduleForEvent заново применяет планирование ко всем текущим
// записавшимся. Используется после редактирования мероприятия.
func (s *Service) RescheduleForEvent(ev *models.UniversityEvent, registrantIDs []uint) {
	for _, userID := range registrantIDs {
		s.ScheduleForRegistration(ev, userID)
	}
}

// DeleteForRegistration снимает задачу напоминания одного записавшегося.
func (s *Service) DeleteForRegistration(eventID, userID uint) {
	s.Runner.Cancel(ReminderTag(eventID, userID))
}

// DeleteForEvent снимает задачи напоминаний всех записавшихся.
func (s *Service) DeleteForEvent(eventID uint, registrantIDs []uint) {
	for _, userID := range registrantIDs {
		s.Runner.Cancel(ReminderTag(eventID, userID))
	}
}

func (s *Service) fire(eventID, userID uint) {
	var ev models.UniversityEvent
	err := storage.DB.First(&ev, eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	if err != nil {
		log.Println("Ошибка загрузки мероприятия для напоминания:", err)
		return
	}

	text := fmt.Sprintf("Мероприятие «%s» начнётся %s", ev.Title, ev.StartsAt.Format("02.01.2006 15:04"))
	if err := s.Sender.Send(userID, text); err != nil {
		log.Printf("Не удалось доставить напоминание о мероприятии пользователю %d: %v", userID, err)
	}
}
