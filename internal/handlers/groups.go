package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"campus_hub/internal/models"
	"campus_hub/internal/response"
	"campus_hub/internal/storage"

	"github.com/gin-gonic/gin"
)

type GroupView struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// GetGroupsHandler обрабатывает запрос на получение списка групп
// @Summary		Получение списка групп
// @Description	Получает список групп кампуса, кэширует результат в Redis
// @Tags			groups
// @Produce		json
// @Security		BearerAuth
// @Success		200	{array}		GroupView	"Группы кампуса"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/groups [get]
func GetGroupsHandler(c *gin.Context) {
	tenantID := c.GetUint("tenantID")
	cacheKey := "groups_t" + strconv.FormatUint(uint64(tenantID), 10)

	// Проверка кэша
	if cached, err := storage.RedisClient.Get(scheduleCtx, cacheKey).Result(); err == nil && cached != "" {
		var views []GroupView
		if err := json.Unmarshal([]byte(cached), &views); err == nil {
			c.JSON(http.StatusOK, views)
			return
		}
	}

	var groups []models.Group
	if err := storage.DB.Where("tenant_id = ?", tenantID).Order("name ASC").Find(&groups).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки групп",
			Details: err.Error(),
		})
		return
	}

	views := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, GroupView{ID: g.ID, Name: g.Name})
	}

	// Кэширование результата на 10 минут
	if payload, err := json.Marshal(views); err == nil {
		storage.RedisClient.Set(scheduleCtx, cacheKey, string(payload), 10*time.Minute)
	}

	c.JSON(http.StatusOK, views)
}

// JoinGroupHandler добавляет пользователя в группу
// @Summary		Вступление в группу
// @Tags			groups
// @Produce		json
// @Param			id	path		string	true	"ID группы"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Успешное вступление"
// @Failure		404	{object}	response.ErrorResponse	"Группа не найдена (GROUP_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/groups/{id}/join [post]
func JoinGroupHandler(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_GROUP_ID",
			Message: "Неверный идентификатор группы",
		})
		return
	}

	tenantID := c.GetUint("tenantID")
	var group models.Group
	if err := storage.DB.Where("id = ? AND tenant_id = ?", groupID, tenantID).First(&group).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "GROUP_NOT_FOUND",
			Message: "Группа не найдена",
		})
		return
	}

	userID := c.GetUint("userID")
	member := models.GroupMember{GroupID: group.ID, UserID: userID}
	if err := storage.DB.
		Where("group_id = ? AND user_id = ?", group.ID, userID).
		FirstOrCreate(&member).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка вступления в группу",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Вы вступили в группу"})
}

// LeaveGroupHandler убирает пользователя из группы
// @Summary		Выход из группы
// @Tags			groups
// @Produce		json
// @Param			id	path		string	true	"ID группы"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Успешный выход"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/groups/{id}/leave [post]
func LeaveGroupHandler(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_GROUP_ID",
			Message: "Неверный идентификатор группы",
		})
		return
	}

	userID := c.GetUint("userID")
	if err := storage.DB.Unscoped().
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMember{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка выхода из группы",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Вы вышли из группы"})
}
