package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"campus_hub/internal/deadlines"
	"campus_hub/internal/models"
	"campus_hub/internal/response"
	"campus_hub/internal/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Предельный размер описания дедлайна в байтах.
const maxDescriptionHTML = 20 * 1024

type DeadlineRequest struct {
	GroupID         uint      `json:"group_id" binding:"required"`
	Title           string    `json:"title" binding:"required"`
	DescriptionHTML string    `json:"description_html"`
	DueAt           time.Time `json:"due_at" binding:"required"`
	AccessScope     string    `json:"access_scope"`
}

type DeadlineView struct {
	ID              uint       `json:"id"`
	GroupID         uint       `json:"group_id"`
	Title           string     `json:"title"`
	DescriptionHTML string     `json:"description_html,omitempty"`
	DueAt           time.Time  `json:"due_at"`
	Status          string     `json:"status"`
	AccessScope     string     `json:"access_scope"`
	ScheduleEntryID *uint      `json:"schedule_entry_id,omitempty"`
	CompletedByMe   bool       `json:"completed_by_me"`
	CompletedCount  int        `json:"completed_count"`
	LastNotifiedAt  *time.Time `json:"last_notified_at,omitempty"`
}

func deadlineView(d *models.Deadline, callerID uint) DeadlineView {
	v := DeadlineView{
		ID:              d.ID,
		GroupID:         d.GroupID,
		Title:           d.Title,
		DescriptionHTML: d.DescriptionHTML,
		DueAt:           d.DueAt,
		Status:          d.Status,
		AccessScope:     d.AccessScope,
		ScheduleEntryID: d.ScheduleEntryID,
		CompletedCount:  len(d.Completions),
		LastNotifiedAt:  d.LastNotifiedAt,
	}
	for _, comp := range d.Completions {
		if comp.UserID == callerID {
			v.CompletedByMe = true
			break
		}
	}
	return v
}

func loadDeadline(c *gin.Context) (*models.Deadline, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_DEADLINE_ID",
			Message: "Неверный идентификатор дедлайна",
		})
		return nil, false
	}

	tenantID := c.GetUint("tenantID")
	var d models.Deadline
	if err := storage.DB.Preload("Completions").
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&d).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "DEADLINE_NOT_FOUND",
			Message: "Дедлайн не найден",
		})
		return nil, false
	}
	return &d, true
}

func validateDeadlineRequest(c *gin.Context, req *DeadlineRequest) bool {
	if len(req.DescriptionHTML) > maxDescriptionHTML {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Описание дедлайна превышает 20 КБ",
		})
		return false
	}
	switch req.AccessScope {
	case "":
		req.AccessScope = models.AccessScopeGroup
	case models.AccessScopeGroup, models.AccessScopeTenant:
	default:
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неизвестная область видимости: " + req.AccessScope,
		})
		return false
	}
	return true
}

// ListDeadlinesHandler возвращает активные дедлайны группы
// @Summary		Список дедлайнов группы
// @Tags			deadlines
// @Produce		json
// @Param			group_id	query		string	true	"ID группы"
// @Security		BearerAuth
// @Success		200	{array}		DeadlineView	"Дедлайны группы"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/deadlines [get]
func ListDeadlinesHandler(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Query("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_GROUP_ID",
			Message: "Необходимо указать корректный group_id",
		})
		return
	}

	tenantID := c.GetUint("tenantID")
	userID := c.GetUint("userID")

	var list []models.Deadline
	if err := storage.DB.Preload("Completions").
		Where("tenant_id = ? AND group_id = ?", tenantID, groupID).
		Order("due_at ASC").
		Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки дедлайнов",
			Details: err.Error(),
		})
		return
	}

	views := make([]DeadlineView, 0, len(list))
	for i := range list {
		views = append(views, deadlineView(&list[i], userID))
	}
	c.JSON(http.StatusOK, views)
}

// GetDeadlineHandler возвращает дедлайн по идентификатору
// @Summary		Дедлайн
// @Tags			deadlines
// @Produce		json
// @Param			id	path		string	true	"ID дедлайна"
// @Security		BearerAuth
// @Success		200	{object}	DeadlineView	"Дедлайн"
// @Failure		404	{object}	response.ErrorResponse	"Дедлайн не найден (DEADLINE_NOT_FOUND)"
// @Router			/deadlines/{id} [get]
func GetDeadlineHandler(c *gin.Context) {
	d, ok := loadDeadline(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, deadlineView(d, c.GetUint("userID")))
}

// CreateDeadlineHandler создаёт дедлайн
// @Summary		Создание дедлайна
// @Description	Создаёт дедлайн группы, рассылает уведомление и регистрирует напоминания
// @Tags			deadlines
// @Accept			json
// @Produce		json
// @Param			deadline	body		DeadlineRequest	true	"Данные дедлайна"
// @Security		BearerAuth
// @Success		201	{object}	DeadlineView	"Созданный дедлайн"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		404	{object}	response.ErrorResponse	"Группа не найдена (GROUP_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/deadlines [post]
func CreateDeadlineHandler(c *gin.Context) {
	var req DeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}
	if !validateDeadlineRequest(c, &req) {
		return
	}

	tenantID := c.GetUint("tenantID")

	var group models.Group
	if err := storage.DB.Where("id = ? AND tenant_id = ?", req.GroupID, tenantID).First(&group).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "GROUP_NOT_FOUND",
			Message: "Группа не найдена",
		})
		return
	}

	d := models.Deadline{
		TenantID:        tenantID,
		GroupID:         req.GroupID,
		Title:           req.Title,
		DescriptionHTML: req.DescriptionHTML,
		DueAt:           req.DueAt,
		Status:          models.DeadlineActive,
		AccessScope:     req.AccessScope,
	}
	if err := storage.DB.Create(&d).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании дедлайна",
			Details: err.Error(),
		})
		return
	}

	// Вторичные эффекты не откатывают созданный дедлайн.
	deadlines.Reminders.NotifyChanged(&d, "создан")
	if err := deadlines.Reminders.ScheduleReminders(&d); err != nil {
		log.Println("Ошибка регистрации напоминаний дедлайна:", err)
	}

	c.JSON(http.StatusCreated, deadlineView(&d, c.GetUint("userID")))
}

// UpdateDeadlineHandler обновляет дедлайн
// @Summary		Обновление дедлайна
// @Description	Обновляет дедлайн и перерегистрирует напоминания под новый срок
// @Tags			deadlines
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID дедлайна"
// @Param			deadline	body		DeadlineRequest	true	"Данные дедлайна"
// @Security		BearerAuth
// @Success		200	{object}	DeadlineView	"Обновлённый дедлайн"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		404	{object}	response.ErrorResponse	"Дедлайн не найден (DEADLINE_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/deadlines/{id} [put]
func UpdateDeadlineHandler(c *gin.Context) {
	var req DeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}
	if !validateDeadlineRequest(c, &req) {
		return
	}

	d, ok := loadDeadline(c)
	if !ok {
		return
	}

	d.Title = req.Title
	d.DescriptionHTML = req.DescriptionHTML
	d.DueAt = req.DueAt
	d.AccessScope = req.AccessScope
	if err := storage.DB.Save(d).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при обновлении дедлайна",
			Details: err.Error(),
		})
		return
	}

	deadlines.Reminders.NotifyChanged(d, "изменён")
	if err := deadlines.Reminders.ScheduleReminders(d); err != nil {
		log.Println("Ошибка перерегистрации напоминаний дедлайна:", err)
	}

	c.JSON(http.StatusOK, deadlineView(d, c.GetUint("userID")))
}

// DeleteDeadlineHandler мягко удаляет дедлайн
// @Summary		Удаление дедлайна
// @Description	Мягко удаляет дедлайн, снимает все задачи напоминаний и их учётные строки
// @Tags			deadlines
// @Produce		json
// @Param			id	path		string	true	"ID дедлайна"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Дедлайн удалён"
// @Failure		404	{object}	response.ErrorResponse	"Дедлайн не найден (DEADLINE_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/deadlines/{id} [delete]
func DeleteDeadlineHandler(c *gin.Context) {
	d, ok := loadDeadline(c)
	if !ok {
		return
	}

	if err := storage.DB.Delete(d).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении дедлайна",
			Details: err.Error(),
		})
		return
	}
	if err := deadlines.Reminders.CancelReminders(d.ID); err != nil {
		log.Println("Ошибка снятия напоминаний удалённого дедлайна:", err)
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Дедлайн успешно удалён"})
}

// CompleteDeadlineHandler отмечает выполнение дедлайна пользователем
// @Summary		Отметка о выполнении
// @Description	Создаёт отметку пользователя о выполнении; повторная отметка — no-op
// @Tags			deadlines
// @Produce		json
// @Param			id	path		string	true	"ID дедлайна"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Отметка сохранена"
// @Failure		404	{object}	response.ErrorResponse	"Дедлайн не найден (DEADLINE_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/deadlines/{id}/complete [post]
func CompleteDeadlineHandler(c *gin.Context) {
	d, ok := loadDeadline(c)
	if !ok {
		return
	}

	userID := c.GetUint("userID")
	completion := models.DeadlineCompletion{
		DeadlineID:  d.ID,
		UserID:      userID,
		CompletedAt: time.Now(),
	}
	err := storage.DB.
		Where("deadline_id = ? AND user_id = ?", d.ID, userID).
		FirstOrCreate(&completion).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при сохранении отметки",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Отметка о выполнении сохранена"})
}

// CancelDeadlineHandler отменяет дедлайн
// @Summary		Отмена дедлайна
// @Description	Переводит дедлайн в статус cancelled; сработавшие напоминания отменённого дедлайна не рассылаются
// @Tags			deadlines
// @Produce		json
// @Param			id	path		string	true	"ID дедлайна"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Дедлайн отменён"
// @Failure		404	{object}	response.ErrorResponse	"Дедлайн не найден (DEADLINE_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/deadlines/{id}/cancel [post]
func CancelDeadlineHandler(c *gin.Context) {
	d, ok := loadDeadline(c)
	if !ok {
		return
	}

	d.Status = models.DeadlineCancelled
	if err := storage.DB.Save(d).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при отмене дедлайна",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Дедлайн отменён"})
}

// ReopenDeadlineHandler возвращает дедлайн в работу
// @Summary		Возобновление дедлайна
// @Description	Переводит дедлайн в статус active и заново регистрирует напоминания
// @Tags			deadlines
// @Produce		json
// @Param			id	path		string	true	"ID дедлайна"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Дедлайн возобновлён"
// @Failure		404	{object}	response.ErrorResponse	"Дедлайн не найден (DEADLINE_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/deadlines/{id}/reopen [post]
func ReopenDeadlineHandler(c *gin.Context) {
	d, ok := loadDeadline(c)
	if !ok {
		return
	}

	d.Status = models.DeadlineActive
	if err := storage.DB.Save(d).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при возобновлении дедлайна",
			Details: err.Error(),
		})
		return
	}
	if err := deadlines.Reminders.ScheduleReminders(d); err != nil {
		log.Println("Ошибка перерегистрации напоминаний дедлайна:", err)
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Дедлайн возобновлён"})
}

type LinkScheduleRequest struct {
	ScheduleEntryID uint `json:"schedule_entry_id" binding:"required"`
}

// LinkScheduleHandler связывает дедлайн с записью расписания
// @Summary		Связь дедлайна с расписанием
// @Description	Привязывает дедлайн к записи расписания и синхронизирует срок с её началом
// @Tags			deadlines
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID дедлайна"
// @Param			link	body		LinkScheduleRequest	true	"Запись расписания"
// @Security		BearerAuth
// @Success		200	{object}	DeadlineView	"Обновлённый дедлайн"
// @Failure		404	{object}	response.ErrorResponse	"Дедлайн или запись не найдены"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/deadlines/{id}/link-schedule [post]
func LinkScheduleHandler(c *gin.Context) {
	var req LinkScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	d, ok := loadDeadline(c)
	if !ok {
		return
	}

	tenantID := c.GetUint("tenantID")
	var entry models.ScheduleEntry
	err := storage.DB.
		Where("id = ? AND tenant_id = ?", req.ScheduleEntryID, tenantID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ENTRY_NOT_FOUND",
			Message: "Запись расписания не найдена",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки записи расписания",
			Details: err.Error(),
		})
		return
	}

	entryID := entry.ID
	d.ScheduleEntryID = &entryID
	d.DueAt = entry.StartsAt
	if err := storage.DB.Save(d).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при связывании дедлайна",
			Details: err.Error(),
		})
		return
	}
	if err := deadlines.Reminders.ScheduleReminders(d); err != nil {
		log.Println("Ошибка перерегистрации напоминаний дедлайна:", err)
	}

	c.JSON(http.StatusOK, deadlineView(d, c.GetUint("userID")))
}
