package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"campus_hub/internal/models"
	"campus_hub/internal/response"
	"campus_hub/internal/schedule"
	"campus_hub/internal/storage"

	"github.com/gin-gonic/gin"
)

var scheduleCtx = context.Background()

// parseWindow разбирает обязательные параметры from/to (RFC3339) и
// необязательный delivery_type.
func parseWindow(c *gin.Context) (schedule.Window, bool) {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Необходимо указать from и to",
		})
		return schedule.Window{}, false
	}

	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неверный формат параметра from, ожидается RFC3339",
		})
		return schedule.Window{}, false
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неверный формат параметра to, ожидается RFC3339",
		})
		return schedule.Window{}, false
	}

	deliveryType := c.Query("delivery_type")
	switch deliveryType {
	case "", models.DeliveryOffline, models.DeliveryOnline:
	default:
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неизвестный формат проведения: " + deliveryType,
		})
		return schedule.Window{}, false
	}

	return schedule.Window{From: from, To: to, DeliveryType: deliveryType}, true
}

// scheduleError переводит доменные ошибки расписания в HTTP-ответы.
func scheduleError(c *gin.Context, err error) {
	var vErr *schedule.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: vErr.Reason,
		})
	case errors.Is(err, schedule.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "GROUP_NOT_FOUND",
			Message: "Группа не найдена",
		})
	case errors.Is(err, schedule.ErrNotFound):
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ENTRY_NOT_FOUND",
			Message: "Запись расписания не найдена",
		})
	default:
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка сервера",
			Details: err.Error(),
		})
	}
}

// LessonRequest — тело запроса создания/обновления пары или личного слота.
type LessonRequest struct {
	Title            string    `json:"title" binding:"required"`
	Description      string    `json:"description"`
	Teacher          string    `json:"teacher"`
	StartsAt         time.Time `json:"starts_at" binding:"required"`
	EndsAt           time.Time `json:"ends_at" binding:"required"`
	DeliveryType     string    `json:"delivery_type" binding:"required"`
	PhysicalLocation string    `json:"physical_location"`
	OnlineLink       string    `json:"online_link"`
}

func (r LessonRequest) details() schedule.Details {
	return schedule.Details{
		Title:            r.Title,
		Description:      r.Description,
		Teacher:          r.Teacher,
		StartsAt:         r.StartsAt,
		EndsAt:           r.EndsAt,
		DeliveryType:     r.DeliveryType,
		PhysicalLocation: r.PhysicalLocation,
		OnlineLink:       r.OnlineLink,
	}
}

// GetGroupScheduleHandler возвращает расписание группы за окно времени
// @Summary		Расписание группы
// @Description	Возвращает записи расписания группы, пересекающие окно from..to, с кэшированием в Redis
// @Tags			schedule
// @Accept			json
// @Produce		json
// @Param			groupId	path		string	true	"ID группы"
// @Param			from	query		string	true	"Начало окна (RFC3339)"
// @Param			to	query		string	true	"Конец окна (RFC3339)"
// @Param			delivery_type	query		string	false	"Фильтр формата (offline|online)"
// @Security		BearerAuth
// @Success		200	{array}		schedule.EntryView	"Записи расписания"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/schedule/groups/{groupId} [get]
func GetGroupScheduleHandler(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Param("groupId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_GROUP_ID",
			Message: "Неверный идентификатор группы",
		})
		return
	}

	w, ok := parseWindow(c)
	if !ok {
		return
	}

	userID := c.GetUint("userID")
	tenantID := c.GetUint("tenantID")

	// Ключ включает вызывающего: флаг is_personal зависит от него.
	cacheKey := fmt.Sprintf("schedule_g%d_%d_%d_%s_u%d",
		groupID, w.From.Unix(), w.To.Unix(), w.DeliveryType, userID)
	if cached, err := storage.RedisClient.Get(scheduleCtx, cacheKey).Result(); err == nil && cached != "" {
		var views []schedule.EntryView
		if err := json.Unmarshal([]byte(cached), &views); err == nil {
			c.JSON(http.StatusOK, views)
			return
		}
	}

	views, err := schedule.QueryByGroup(tenantID, uint(groupID), userID, w)
	if err != nil {
		scheduleError(c, err)
		return
	}

	if payload, err := json.Marshal(views); err == nil {
		storage.RedisClient.Set(scheduleCtx, cacheKey, string(payload), 30*time.Second)
	}

	c.JSON(http.StatusOK, views)
}

// CreateGroupLessonHandler создаёт пару для группы
// @Summary		Создание пары
// @Description	Создаёт запись расписания группы; каждая пара — независимая запись
// @Tags			schedule
// @Accept			json
// @Produce		json
// @Param			groupId	path		string	true	"ID группы"
// @Param			lesson	body		LessonRequest	true	"Данные пары"
// @Security		BearerAuth
// @Success		201	{object}	schedule.EntryView	"Созданная запись"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		404	{object}	response.ErrorResponse	"Группа не найдена (GROUP_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/schedule/groups/{groupId}/lessons [post]
func CreateGroupLessonHandler(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Param("groupId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_GROUP_ID",
			Message: "Неверный идентификатор группы",
		})
		return
	}

	var req LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	userID := c.GetUint("userID")
	tenantID := c.GetUint("tenantID")

	entry, err := schedule.CreateGroupLesson(tenantID, uint(groupID), userID, req.details())
	if err != nil {
		scheduleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Пара успешно создана", "id": entry.ID})
}

// UpdateGroupLessonHandler обновляет пару группы
// @Summary		Обновление пары
// @Description	Обновляет запись расписания по паре (entryId, groupId); несовпадение — тихий no-op
// @Tags			schedule
// @Accept			json
// @Produce		json
// @Param			groupId	path		string	true	"ID группы"
// @Param			entryId	path		string	true	"ID записи"
// @Param			lesson	body		LessonRequest	true	"Данные пары"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Пара обновлена"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/schedule/groups/{groupId}/lessons/{entryId} [put]
func UpdateGroupLessonHandler(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Param("groupId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_GROUP_ID",
			Message: "Неверный идентификатор группы",
		})
		return
	}
	entryID, err := strconv.Atoi(c.Param("entryId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ENTRY_ID",
			Message: "Неверный идентификатор записи",
		})
		return
	}

	var req LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	tenantID := c.GetUint("tenantID")
	if err := schedule.UpdateGroupLesson(tenantID, uint(groupID), uint(entryID), req.details()); err != nil {
		scheduleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Пара успешно обновлена"})
}

// DeleteGroupLessonHandler удаляет пару группы
// @Summary		Удаление пары
// @Description	Удаляет запись расписания по паре (entryId, groupId); несовпадение — тихий no-op
// @Tags			schedule
// @Produce		json
// @Param			groupId	path		string	true	"ID группы"
// @Param			entryId	path		string	true	"ID записи"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Пара удалена"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/schedule/groups/{groupId}/lessons/{entryId} [delete]
func DeleteGroupLessonHandler(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Param("groupId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_GROUP_ID",
			Message: "Неверный идентификатор группы",
		})
		return
	}
	entryID, err := strconv.Atoi(c.Param("entryId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ENTRY_ID",
			Message: "Неверный идентификатор записи",
		})
		return
	}

	tenantID := c.GetUint("tenantID")
	if err := schedule.DeleteGroupLesson(tenantID, uint(groupID), uint(entryID)); err != nil {
		scheduleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Пара успешно удалена"})
}
