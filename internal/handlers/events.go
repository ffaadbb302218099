package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"campus_hub/internal/events"
	"campus_hub/internal/models"
	"campus_hub/internal/response"
	"campus_hub/internal/schedule"
	"campus_hub/internal/storage"

	"github.com/gin-gonic/gin"
)

type EventRequest struct {
	Title            string    `json:"title" binding:"required"`
	Description      string    `json:"description"`
	StartsAt         time.Time `json:"starts_at" binding:"required"`
	EndsAt           time.Time `json:"ends_at" binding:"required"`
	DeliveryType     string    `json:"delivery_type" binding:"required"`
	PhysicalLocation string    `json:"physical_location"`
	OnlineLink       string    `json:"online_link"`
}

// Мероприятие проверяется теми же правилами, что и запись расписания,
// которую оно порождает.
func (r EventRequest) details() schedule.Details {
	return schedule.Details{
		Title:            r.Title,
		Description:      r.Description,
		StartsAt:         r.StartsAt,
		EndsAt:           r.EndsAt,
		DeliveryType:     r.DeliveryType,
		PhysicalLocation: r.PhysicalLocation,
		OnlineLink:       r.OnlineLink,
	}
}

func loadEvent(c *gin.Context) (*models.UniversityEvent, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_EVENT_ID",
			Message: "Неверный идентификатор мероприятия",
		})
		return nil, false
	}

	tenantID := c.GetUint("tenantID")
	var ev models.UniversityEvent
	if err := storage.DB.Where("id = ? AND tenant_id = ?", id, tenantID).First(&ev).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "EVENT_NOT_FOUND",
			Message: "Мероприятие не найдено",
		})
		return nil, false
	}
	return &ev, true
}

// ListEventsHandler возвращает мероприятия кампуса
// @Summary		Список мероприятий
// @Tags			events
// @Produce		json
// @Security		BearerAuth
// @Success		200	{array}		models.UniversityEvent	"Мероприятия"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/events [get]
func ListEventsHandler(c *gin.Context) {
	tenantID := c.GetUint("tenantID")

	var list []models.UniversityEvent
	if err := storage.DB.
		Where("tenant_id = ?", tenantID).
		Order("starts_at ASC").
		Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки мероприятий",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreateEventHandler создаёт мероприятие
// @Summary		Создание мероприятия
// @Tags			events
// @Accept			json
// @Produce		json
// @Param			event	body		EventRequest	true	"Данные мероприятия"
// @Security		BearerAuth
// @Success		201	{object}	models.UniversityEvent	"Созданное мероприятие"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/events [post]
func CreateEventHandler(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}
	if _, err := schedule.NewEntry(c.GetUint("tenantID"), models.SourceUniversityEvent, c.GetUint("userID"), req.details()); err != nil {
		scheduleError(c, err)
		return
	}

	ev := models.UniversityEvent{
		TenantID:         c.GetUint("tenantID"),
		Title:            req.Title,
		Description:      req.Description,
		StartsAt:         req.StartsAt,
		EndsAt:           req.EndsAt,
		DeliveryType:     req.DeliveryType,
		PhysicalLocation: req.PhysicalLocation,
		OnlineLink:       req.OnlineLink,
		CreatedByUserID:  c.GetUint("userID"),
	}
	if err := storage.DB.Create(&ev).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании мероприятия",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, ev)
}

// UpdateEventHandler обновляет мероприятие
// @Summary		Обновление мероприятия
// @Description	Обновляет мероприятие, пересинхронизирует его запись расписания и напоминания записавшихся
// @Tags			events
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID мероприятия"
// @Param			event	body		EventRequest	true	"Данные мероприятия"
// @Security		BearerAuth
// @Success		200	{object}	models.UniversityEvent	"Обновлённое мероприятие"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		404	{object}	response.ErrorResponse	"Мероприятие не найдено (EVENT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/events/{id} [put]
func UpdateEventHandler(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	ev, ok := loadEvent(c)
	if !ok {
		return
	}

	tenantID := c.GetUint("tenantID")
	if _, err := schedule.NewEntry(tenantID, models.SourceUniversityEvent, ev.CreatedByUserID, req.details()); err != nil {
		scheduleError(c, err)
		return
	}

	ev.Title = req.Title
	ev.Description = req.Description
	ev.StartsAt = req.StartsAt
	ev.EndsAt = req.EndsAt
	ev.DeliveryType = req.DeliveryType
	ev.PhysicalLocation = req.PhysicalLocation
	ev.OnlineLink = req.OnlineLink
	if err := storage.DB.Save(ev).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при обновлении мероприятия",
			Details: err.Error(),
		})
		return
	}

	// Вторичные эффекты: запись расписания и напоминания приводятся к новым данным.
	if err := schedule.SyncEventEntry(tenantID, ev); err != nil {
		log.Println("Ошибка синхронизации записи расписания мероприятия:", err)
	}
	registrants, err := schedule.EventRegistrantIDs(tenantID, ev.ID)
	if err != nil {
		log.Println("Ошибка загрузки записавшихся на мероприятие:", err)
	} else {
		events.Reminders.RescheduleForEvent(ev, registrants)
	}

	c.JSON(http.StatusOK, ev)
}

// DeleteEventHandler удаляет мероприятие
// @Summary		Удаление мероприятия
// @Description	Удаляет мероприятие, снимает напоминания и отписывает всех записавшихся
// @Tags			events
// @Produce		json
// @Param			id	path		string	true	"ID мероприятия"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Мероприятие удалено"
// @Failure		404	{object}	response.ErrorResponse	"Мероприятие не найдено (EVENT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/events/{id} [delete]
func DeleteEventHandler(c *gin.Context) {
	ev, ok := loadEvent(c)
	if !ok {
		return
	}

	tenantID := c.GetUint("tenantID")
	registrants, err := schedule.EventRegistrantIDs(tenantID, ev.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки записавшихся на мероприятие",
			Details: err.Error(),
		})
		return
	}

	events.Reminders.DeleteForEvent(ev.ID, registrants)
	for _, userID := range registrants {
		if err := schedule.RemoveEventSubscription(tenantID, ev.ID, userID); err != nil {
			log.Println("Ошибка отписки пользователя от удаляемого мероприятия:", err)
		}
	}

	if err := storage.DB.Unscoped().Delete(ev).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении мероприятия",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Мероприятие удалено"})
}

// RegisterForEventHandler записывает пользователя на мероприятие
// @Summary		Запись на мероприятие
// @Description	Добавляет пользователя в единую запись расписания мероприятия и регистрирует напоминание
// @Tags			events
// @Produce		json
// @Param			id	path		string	true	"ID мероприятия"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Запись оформлена"
// @Failure		404	{object}	response.ErrorResponse	"Мероприятие не найдено (EVENT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/events/{id}/register [post]
func RegisterForEventHandler(c *gin.Context) {
	ev, ok := loadEvent(c)
	if !ok {
		return
	}

	userID := c.GetUint("userID")
	tenantID := c.GetUint("tenantID")

	if _, err := schedule.AddEventSubscription(tenantID, ev, userID); err != nil {
		scheduleError(c, err)
		return
	}
	events.Reminders.ScheduleForRegistration(ev, userID)

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Вы записаны на мероприятие"})
}

// UnregisterFromEventHandler отписывает пользователя от мероприятия
// @Summary		Отмена записи на мероприятие
// @Description	Убирает пользователя из записи расписания мероприятия и снимает его напоминание
// @Tags			events
// @Produce		json
// @Param			id	path		string	true	"ID мероприятия"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Запись отменена"
// @Failure		404	{object}	response.ErrorResponse	"Мероприятие не найдено (EVENT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/events/{id}/unregister [post]
func UnregisterFromEventHandler(c *gin.Context) {
	ev, ok := loadEvent(c)
	if !ok {
		return
	}

	userID := c.GetUint("userID")
	tenantID := c.GetUint("tenantID")

	if err := schedule.RemoveEventSubscription(tenantID, ev.ID, userID); err != nil {
		scheduleError(c, err)
		return
	}
	events.Reminders.DeleteForRegistration(ev.ID, userID)

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Запись на мероприятие отменена"})
}
