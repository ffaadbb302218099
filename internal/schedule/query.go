package schedule

import (
	"time"

	"campus_hub/internal/models"
	"campus_hub/internal/storage"
)

// Window — запрошенное окно времени с необязательным фильтром формата.
// Отбор идёт по пересечению интервалов, не по вхождению: запись попадает
// в окно, если ends_at >= from и starts_at <= to.
type Window struct {
	From         time.Time
	To           time.Time
	DeliveryType string // пустая строка — без фильтра
}

// EntryView — запись расписания в том виде, в каком она отдаётся клиенту.
type EntryView struct {
	ID               uint      `json:"id"`
	GroupID          *uint     `json:"group_id,omitempty"`
	SourceType       string    `json:"source_type"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Teacher          string    `json:"teacher,omitempty"`
	StartsAt         time.Time `json:"starts_at"`
	EndsAt           time.Time `json:"ends_at"`
	DeliveryType     string    `json:"delivery_type"`
	PhysicalLocation string    `json:"physical_location,omitempty"`
	OnlineLink       string    `json:"online_link,omitempty"`
	IsPersonal       bool      `json:"is_personal"`
}

// isPersonalFor: запись считается личной для вызывающего, если он её владелец,
// это личный слот или он состоит в участниках.
func isPersonalFor(e *models.ScheduleEntry, callerID uint) bool {
	if e.OwnerUserID != nil && *e.OwnerUserID == callerID {
		return true
	}
	if e.SourceType == models.SourceManualPersonal {
		return true
	}
	for _, a := range e.Attendees {
		if a.UserID == callerID {
			return true
		}
	}
	return false
}

func toView(e *models.ScheduleEntry, callerID uint) EntryView {
	return EntryView{
		ID:               e.ID,
		GroupID:          e.GroupID,
		SourceType:       e.SourceType,
		Title:            e.Title,
		Description:      e.Description,
		Teacher:          e.Teacher,
		StartsAt:         e.StartsAt,
		EndsAt:           e.EndsAt,
		DeliveryType:     e.DeliveryType,
		PhysicalLocation: e.PhysicalLocation,
		OnlineLink:       e.OnlineLink,
		IsPersonal:       isPersonalFor(e, callerID),
	}
}

// QueryByGroup возвращает записи расписания группы, пересекающие окно,
// упорядоченные по времени начала.
func QueryByGroup(tenantID, groupID, callerID uint, w Window) ([]EntryView, error) {
	q := storage.DB.Preload("Attendees").
		Where("tenant_id = ? AND group_id = ?", tenantID, groupID).
		Where("ends_at >= ? AND starts_at <= ?", w.From, w.To)
	if w.DeliveryType != "" {
		q = q.Where("delivery_type = ?", w.DeliveryType)
	}

	var entries []models.ScheduleEntry
	if err := q.Order("starts_at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}

	views := make([]EntryView, 0, len(entries))
	for i := range entries {
		views = append(views, toView(&entries[i], callerID))
	}
	return views, nil
}

// QueryForUser возвращает сводное расписание пользователя: пары его групп,
// его личные слоты и записи, где он участник.
func QueryForUser(tenantID, userID uint, w Window) ([]EntryView, error) {
	var groupIDs []uint
	if err := storage.DB.Model(&models.GroupMember{}).
		Where("user_id = ?", userID).
		Pluck("group_id", &groupIDs).Error; err != nil {
		return nil, err
	}

	q := storage.DB.Preload("Attendees").
		Where("tenant_id = ?", tenantID).
		Where("ends_at >= ? AND starts_at <= ?", w.From, w.To).
		Where(
			storage.DB.Where("group_id IN ?", groupIDs).
				Or("owner_user_id = ?", userID).
				Or("id IN (?)", storage.DB.Model(&models.ScheduleAttendee{}).
					Select("schedule_entry_id").
					Where("user_id = ?", userID)),
		)
	if w.DeliveryType != "" {
		q = q.Where("delivery_type = ?", w.DeliveryType)
	}

	var entries []models.ScheduleEntry
	if err := q.Order("starts_at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}

	views := make([]EntryView, 0, len(entries))
	for i := range entries {
		views = append(views, toView(&entries[i], userID))
	}
	return views, nil
}

// GroupMemberIDs возвращает идентификаторы участников группы.
func GroupMemberIDs(groupID uint) ([]uint, error) {
	var ids []uint
	err := storage.DB.Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// EventRegistrantIDs возвращает пользователей, записанных на мероприятие, —
// участников его единой записи расписания.
func EventRegistrantIDs(tenantID, eventID uint) ([]uint, error) {
	entry, err := EventEntry(tenantID, eventID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	ids := make([]uint, 0, len(entry.Attendees))
	for _, a := range entry.Attendees {
		ids = append(ids, a.UserID)
	}
	return ids, nil
}
