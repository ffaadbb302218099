package main

import (
	"fmt"
	"log"
	"os"

	_ "campus_hub/docs"
	"campus_hub/internal/auth"
	"campus_hub/internal/deadlines"
	"campus_hub/internal/events"
	"campus_hub/internal/handlers"
	"campus_hub/internal/jobs"
	"campus_hub/internal/models"
	"campus_hub/internal/storage"
	"campus_hub/internal/tasks"
	"campus_hub/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @Title						Единое расписание кампуса
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	key := os.Getenv("ENV_CHEK")
	if key == "" {
		fmt.Println("Подключение к .env")
		err := godotenv.Load()
		if err != nil {
			log.Fatal("Ошибка получения .env")
		}
	}

	storage.ConnectDatabase()

	if err := storage.DB.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMember{},
		&models.ScheduleEntry{},
		&models.ScheduleAttendee{},
		&models.Deadline{},
		&models.DeadlineCompletion{},
		&models.DeadlineReminder{},
		&models.UniversityEvent{},
	); err != nil {
		log.Fatal("Ошибка при миграции... ", err.Error())
	}

	storage.InitRedis()

	go ws.HubInstance.Run()

	runner := jobs.NewTimerRunner()
	deadlines.Init(runner, ws.HubInstance)
	events.Init(runner, ws.HubInstance)

	tasks.InitScheduler()
	tasks.RestoreReminderJobs()

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", handlers.Login)
		authGroup.POST("/register", handlers.Register)
		authGroup.POST("/refresh", handlers.RefreshToken)
	}

	api := r.Group("", auth.AuthMiddleware())
	{
		api.GET("/groups", handlers.GetGroupsHandler)
		api.POST("/groups/:id/join", handlers.JoinGroupHandler)
		api.POST("/groups/:id/leave", handlers.LeaveGroupHandler)

		api.GET("/schedule/groups/:groupId", handlers.GetGroupScheduleHandler)
		api.POST("/schedule/groups/:groupId/lessons", handlers.CreateGroupLessonHandler)
		api.PUT("/schedule/groups/:groupId/lessons/:entryId", handlers.UpdateGroupLessonHandler)
		api.DELETE("/schedule/groups/:groupId/lessons/:entryId", handlers.DeleteGroupLessonHandler)

		api.GET("/schedule/me", handlers.GetMyScheduleHandler)
		api.POST("/schedule/me/slots", handlers.CreatePersonalSlotHandler)
		api.PUT("/schedule/me/slots/:entryId", handlers.UpdatePersonalSlotHandler)
		api.DELETE("/schedule/me/slots/:entryId", handlers.DeletePersonalSlotHandler)

		api.GET("/deadlines", handlers.ListDeadlinesHandler)
		api.POST("/deadlines", handlers.CreateDeadlineHandler)
		api.GET("/deadlines/:id", handlers.GetDeadlineHandler)
		api.PUT("/deadlines/:id", handlers.UpdateDeadlineHandler)
		api.DELETE("/deadlines/:id", handlers.DeleteDeadlineHandler)
		api.POST("/deadlines/:id/complete", handlers.CompleteDeadlineHandler)
		api.POST("/deadlines/:id/cancel", handlers.CancelDeadlineHandler)
		api.POST("/deadlines/:id/reopen", handlers.ReopenDeadlineHandler)
		api.POST("/deadlines/:id/link-schedule", handlers.LinkScheduleHandler)

		api.GET("/events", handlers.ListEventsHandler)
		api.POST("/events", handlers.CreateEventHandler)
		api.PUT("/events/:id", handlers.UpdateEventHandler)
		api.DELETE("/events/:id", handlers.DeleteEventHandler)
		api.POST("/events/:id/register", handlers.RegisterForEventHandler)
		api.POST("/events/:id/unregister", handlers.UnregisterFromEventHandler)

		api.GET("/ws/notifications", ws.NotificationsHandler)
	}

	if err := r.Run(":8080"); err != nil {
		log.Fatal("Ошибка запуска сервера...", err.Error())
	}
}
