package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"campus_hub/internal/models"
)

// ErrNotFound возвращается, когда запись расписания не существует либо
// не принадлежит действующему пользователю (несовпадение владельца
// намеренно неотличимо от отсутствия записи).
var ErrNotFound = errors.New("запись расписания не найдена")

// ErrGroupNotFound возвращается командами, ссылающимися на несуществующую группу.
var ErrGroupNotFound = errors.New("группа не найдена")

// ValidationError — ошибка проверки входных данных записи расписания.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Details — изменяемые поля записи расписания. Проверяются целиком
// как при создании, так и при обновлении: обходного пути мимо валидации нет.
type Details struct {
	Title            string
	Description      string
	Teacher          string
	StartsAt         time.Time
	EndsAt           time.Time
	DeliveryType     string
	PhysicalLocation string
	OnlineLink       string
}

func (d Details) validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return invalid("название не может быть пустым")
	}
	if !d.EndsAt.After(d.StartsAt) {
		return invalid("время окончания должно быть позже времени начала")
	}
	switch d.DeliveryType {
	case models.DeliveryOffline:
		if strings.TrimSpace(d.PhysicalLocation) == "" {
			return invalid("для офлайн-формата необходимо указать аудиторию")
		}
	case models.DeliveryOnline:
		if strings.TrimSpace(d.OnlineLink) == "" {
			return invalid("для онлайн-формата необходимо указать ссылку")
		}
	default:
		return invalid("неизвестный формат проведения: %q", d.DeliveryType)
	}
	return nil
}

// NewEntry создаёт запись расписания, проверяя инварианты полей.
func NewEntry(tenantID uint, sourceType string, createdBy uint, d Details) (*models.ScheduleEntry, error) {
	switch sourceType {
	case models.SourceAdminLesson, models.SourceManualPersonal, models.SourceUniversityEvent:
	default:
		return nil, invalid("неизвестный источник записи: %q", sourceType)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &models.ScheduleEntry{
		TenantID:         tenantID,
		SourceType:       sourceType,
		Title:            d.Title,
		Description:      d.Description,
		Teacher:          d.Teacher,
		StartsAt:         d.StartsAt,
		EndsAt:           d.EndsAt,
		DeliveryType:     d.DeliveryType,
		PhysicalLocation: d.PhysicalLocation,
		OnlineLink:       d.OnlineLink,
		CreatedByUserID:  createdBy,
	}, nil
}

// UpdateDetails перезаписывает изменяемые поля записи после проверки инвариантов.
func UpdateDetails(e *models.ScheduleEntry, d Details) error {
	if err := d.validate(); err != nil {
		return err
	}
	e.Title = d.Title
	e.Description = d.Description
	e.Teacher = d.Teacher
	e.StartsAt = d.StartsAt
	e.EndsAt = d.EndsAt
	e.DeliveryType = d.DeliveryType
	e.PhysicalLocation = d.PhysicalLocation
	e.OnlineLink = d.OnlineLink
	return nil
}

// AssignOwner назначает личного владельца записи. Узкий мутатор,
// используется только потоком личных слотов.
func AssignOwner(e *models.ScheduleEntry, userID uint) {
	id := userID
	e.OwnerUserID = &id
}

// SetSourceEntity проставляет внешний ключ корреляции. Узкий мутатор,
// используется только сервисом слияния мероприятий.
func SetSourceEntity(e *models.ScheduleEntry, sourceEntityID string) {
	id := sourceEntityID
	e.SourceEntityID = &id
}
