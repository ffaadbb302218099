package handlers

import (
	"net/http"
	"strconv"

	"campus_hub/internal/response"
	"campus_hub/internal/schedule"

	"github.com/gin-gonic/gin"
)

// GetMyScheduleHandler возвращает сводное расписание пользователя
// @Summary		Моё расписание
// @Description	Объединяет пары групп пользователя, его личные слоты и записи, где он участник
// @Tags			schedule
// @Produce		json
// @Param			from	query		string	true	"Начало окна (RFC3339)"
// @Param			to	query		string	true	"Конец окна (RFC3339)"
// @Param			delivery_type	query		string	false	"Фильтр формата (offline|online)"
// @Security		BearerAuth
// @Success		200	{array}		schedule.EntryView	"Записи расписания"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/schedule/me [get]
func GetMyScheduleHandler(c *gin.Context) {
	w, ok := parseWindow(c)
	if !ok {
		return
	}

	userID := c.GetUint("userID")
	tenantID := c.GetUint("tenantID")

	views, err := schedule.QueryForUser(tenantID, userID, w)
	if err != nil {
		scheduleError(c, err)
		return
	}

	c.JSON(http.StatusOK, views)
}

// CreatePersonalSlotHandler создаёт личный слот
// @Summary		Создание личного слота
// @Description	Создаёт личный слот действующего пользователя; каждый вызов — новая запись
// @Tags			schedule
// @Accept			json
// @Produce		json
// @Param			slot	body		LessonRequest	true	"Данные слота"
// @Security		BearerAuth
// @Success		201	{object}	response.SuccessResponse	"Слот создан"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/schedule/me/slots [post]
func CreatePersonalSlotHandler(c *gin.Context) {
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

	entry, err := schedule.UpsertPersonalSlot(tenantID, userID, nil, req.details())
	if err != nil {
		scheduleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Личный слот успешно создан", "id": entry.ID})
}

// UpdatePersonalSlotHandler обновляет личный слот
// @Summary		Обновление личного слота
// @Description	Обновляет личный слот; чужой или отсутствующий слот — 404 без раскрытия существования
// @Tags			schedule
// @Accept			json
// @Produce		json
// @Param			entryId	path		string	true	"ID записи"
// @Param			slot	body		LessonRequest	true	"Данные слота"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Слот обновлён"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		404	{object}	response.ErrorResponse	"Слот не найден (ENTRY_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/schedule/me/slots/{entryId} [put]
func UpdatePersonalSlotHandler(c *gin.Context) {
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

	userID := c.GetUint("userID")
	tenantID := c.GetUint("tenantID")

	id := uint(entryID)
	if _, err := schedule.UpsertPersonalSlot(tenantID, userID, &id, req.details()); err != nil {
		scheduleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Личный слот успешно обновлён"})
}

// DeletePersonalSlotHandler удаляет личный слот
// @Summary		Удаление личного слота
// @Description	Удаляет личный слот; отсутствие или чужой слот — тихий no-op
// @Tags			schedule
// @Produce		json
// @Param			entryId	path		string	true	"ID записи"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Слот удалён"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/schedule/me/slots/{entryId} [delete]
func DeletePersonalSlotHandler(c *gin.Context) {
	entryID, err := strconv.Atoi(c.Param("entryId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ENTRY_ID",
			Message: "Неверный идентификатор записи",
		})
		return
	}

	userID := c.GetUint("userID")
	tenantID := c.GetUint("tenantID")

	if err := schedule.RemovePersonalSlot(tenantID, userID, uint(entryID)); err != nil {
		scheduleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Личный слот успешно удалён"})
}
