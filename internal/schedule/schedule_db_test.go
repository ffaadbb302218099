package schedule

import (
	"os"
	"testing"
	"time"

	"campus_hub/internal/models"
	"campus_hub/internal/storage"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) {
	t.Helper()
	if os.Getenv("TEST_DB_HOST") == "" {
		_ = godotenv.Load("../../.env")
	}
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST не задан, пропускаем тест с базой")
	}

	storage.ConnectTestingDatabase()
	require.NoError(t, storage.DB.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMember{},
		&models.ScheduleEntry{},
		&models.ScheduleAttendee{},
		&models.UniversityEvent{},
	))
	storage.DB.Exec("TRUNCATE TABLE users, groups, group_members, schedule_entries, schedule_attendees, university_events RESTART IDENTITY CASCADE;")
}

func createTestEvent(t *testing.T, tenantID uint, startsAt time.Time) *models.UniversityEvent {
	t.Helper()
	ev := &models.UniversityEvent{
		TenantID:         tenantID,
		Title:            "Хакатон",
		StartsAt:         startsAt,
		EndsAt:           startsAt.Add(4 * time.Hour),
		DeliveryType:     models.DeliveryOffline,
		PhysicalLocation: "Актовый зал",
		CreatedByUserID:  1,
	}
	require.NoError(t, storage.DB.Create(ev).Error)
	return ev
}

func countEventEntries(t *testing.T, tenantID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, storage.DB.Model(&models.ScheduleEntry{}).
		Where("tenant_id = ? AND source_type = ?", tenantID, models.SourceUniversityEvent).
		Count(&n).Error)
	return n
}

// Сколько бы пользователей ни записалось, запись расписания мероприятия одна.
func TestAddEventSubscriptionDedup(t *testing.T) {
	setupDB(t)
	ev := createTestEvent(t, 1, time.Now().Add(72*time.Hour))

	first, err := AddEventSubscription(1, ev, 10)
	require.NoError(t, err)
	second, err := AddEventSubscription(1, ev, 11)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "обе подписки попадают в одну запись")
	assert.Equal(t, int64(1), countEventEntries(t, 1))

	entry, err := EventEntry(1, ev.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Len(t, entry.Attendees, 2)

	// Повторная подписка того же пользователя — no-op.
	_, err = AddEventSubscription(1, ev, 10)
	require.NoError(t, err)
	entry, err = EventEntry(1, ev.ID)
	require.NoError(t, err)
	assert.Len(t, entry.Attendees, 2)
}

// Метаданные записи перезаписываются пришедшими: последняя запись побеждает.
func TestAddEventSubscriptionSyncsMetadata(t *testing.T) {
	setupDB(t)
	ev := createTestEvent(t, 1, time.Now().Add(72*time.Hour))

	_, err := AddEventSubscription(1, ev, 10)
	require.NoError(t, err)

	ev.Title = "Хакатон (перенос)"
	ev.PhysicalLocation = "Ауд. 202"
	_, err = AddEventSubscription(1, ev, 11)
	require.NoError(t, err)

	entry, err := EventEntry(1, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Хакатон (перенос)", entry.Title)
	assert.Equal(t, "Ауд. 202", entry.PhysicalLocation)
}

// Отписка и повторная подписка восстанавливают ровно одну запись участника.
func TestRemoveThenAddSubscription(t *testing.T) {
	setupDB(t)
	ev := createTestEvent(t, 1, time.Now().Add(72*time.Hour))

	_, err := AddEventSubscription(1, ev, 10)
	require.NoError(t, err)
	_, err = AddEventSubscription(1, ev, 11)
	require.NoError(t, err)

	require.NoError(t, RemoveEventSubscription(1, ev.ID, 10))
	_, err = AddEventSubscription(1, ev, 10)
	require.NoError(t, err)

	var n int64
	entry, err := EventEntry(1, ev.ID)
	require.NoError(t, err)
	require.NoError(t, storage.DB.Model(&models.ScheduleAttendee{}).
		Where("schedule_entry_id = ? AND user_id = ?", entry.ID, 10).
		Count(&n).Error)
	assert.Equal(t, int64(1), n)
	assert.Len(t, entry.Attendees, 2)
}

// Отписка последнего участника удаляет осиротевшую запись без группы и владельца.
func TestRemoveLastSubscriptionCollectsOrphan(t *testing.T) {
	setupDB(t)
	ev := createTestEvent(t, 1, time.Now().Add(72*time.Hour))

	_, err := AddEventSubscription(1, ev, 10)
	require.NoError(t, err)
	_, err = AddEventSubscription(1, ev, 11)
	require.NoError(t, err)

	require.NoError(t, RemoveEventSubscription(1, ev.ID, 10))
	assert.Equal(t, int64(1), countEventEntries(t, 1), "запись с оставшимся участником живёт")

	require.NoError(t, RemoveEventSubscription(1, ev.ID, 11))
	assert.Equal(t, int64(0), countEventEntries(t, 1), "осиротевшая запись удаляется")

	// Повторная отписка от несуществующей записи — no-op.
	require.NoError(t, RemoveEventSubscription(1, ev.ID, 11))
}

// Запись с группой не удаляется даже при пустом множестве участников.
func TestRemoveSubscriptionKeepsGroupOwnedEntry(t *testing.T) {
	setupDB(t)

	groupID := uint(5)
	sourceID := "777"
	entry := &models.ScheduleEntry{
		TenantID:         1,
		GroupID:          &groupID,
		SourceType:       models.SourceUniversityEvent,
		SourceEntityID:   &sourceID,
		Title:            "Выездной семинар",
		StartsAt:         time.Now().Add(48 * time.Hour),
		EndsAt:           time.Now().Add(50 * time.Hour),
		DeliveryType:     models.DeliveryOffline,
		PhysicalLocation: "Корпус Б",
		Attendees:        []models.ScheduleAttendee{{UserID: 10, AddedAt: time.Now()}},
	}
	require.NoError(t, storage.DB.Create(entry).Error)

	require.NoError(t, RemoveEventSubscription(1, 777, 10))
	assert.Equal(t, int64(1), countEventEntries(t, 1), "запись с группой не подлежит сборке")

	reloaded, err := EventEntry(1, 777)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Empty(t, reloaded.Attendees)
}

func createTestGroup(t *testing.T, tenantID uint) *models.Group {
	t.Helper()
	g := &models.Group{TenantID: tenantID, Name: "БИВТ-21-1"}
	require.NoError(t, storage.DB.Create(g).Error)
	return g
}

// Сценарий: созданная пара видна в расписании группы, для постороннего — не личная.
func TestGroupLessonScenario(t *testing.T) {
	setupDB(t)
	g := createTestGroup(t, 1)

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	_, err := CreateGroupLesson(1, g.ID, 99, Details{
		Title:            "Физика",
		StartsAt:         start,
		EndsAt:           start.Add(time.Hour),
		DeliveryType:     models.DeliveryOffline,
		PhysicalLocation: "Ауд. 1",
	})
	require.NoError(t, err)

	views, err := QueryByGroup(1, g.ID, 50, Window{
		From: start.Add(-time.Hour),
		To:   start.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Физика", views[0].Title)
	assert.False(t, views[0].IsPersonal, "для постороннего пара не личная")
}

func TestCreateGroupLessonUnknownGroup(t *testing.T) {
	setupDB(t)
	_, err := CreateGroupLesson(1, 12345, 99, validDetails())
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

// Окно отбирается по пересечению интервалов, не по вхождению.
func TestWindowOverlap(t *testing.T) {
	setupDB(t)
	g := createTestGroup(t, 1)

	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) // 10:00–11:00
	_, err := CreateGroupLesson(1, g.ID, 99, Details{
		Title:            "Семинар",
		StartsAt:         start,
		EndsAt:           start.Add(time.Hour),
		DeliveryType:     models.DeliveryOffline,
		PhysicalLocation: "Ауд. 2",
	})
	require.NoError(t, err)

	day := func(h, m int) time.Time {
		return time.Date(2026, 9, 1, h, m, 0, 0, time.UTC)
	}

	views, err := QueryByGroup(1, g.ID, 1, Window{From: day(10, 30), To: day(12, 0)})
	require.NoError(t, err)
	assert.Len(t, views, 1, "частично пересекающее окно включает запись")

	views, err = QueryByGroup(1, g.ID, 1, Window{From: day(11, 30), To: day(12, 0)})
	require.NoError(t, err)
	assert.Len(t, views, 0, "окно после окончания записи её не включает")

	views, err = QueryByGroup(1, g.ID, 1, Window{From: day(11, 0), To: day(12, 0)})
	require.NoError(t, err)
	assert.Len(t, views, 1, "граница ends_at == from включается")
}

func TestQueryByGroupDeliveryFilter(t *testing.T) {
	setupDB(t)
	g := createTestGroup(t, 1)

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	_, err := CreateGroupLesson(1, g.ID, 99, Details{
		Title: "Очная", StartsAt: start, EndsAt: start.Add(time.Hour),
		DeliveryType: models.DeliveryOffline, PhysicalLocation: "Ауд. 1",
	})
	require.NoError(t, err)
	_, err = CreateGroupLesson(1, g.ID, 99, Details{
		Title: "Дистанционная", StartsAt: start.Add(2 * time.Hour), EndsAt: start.Add(3 * time.Hour),
		DeliveryType: models.DeliveryOnline, OnlineLink: "https://meet.example.com/x",
	})
	require.NoError(t, err)

	views, err := QueryByGroup(1, g.ID, 1, Window{
		From: start.Add(-time.Hour), To: start.Add(5 * time.Hour),
		DeliveryType: models.DeliveryOnline,
	})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Дистанционная", views[0].Title)
}

// Обновление и удаление пары с чужой группой — тихий no-op.
func TestLessonScopeMismatchNoop(t *testing.T) {
	setupDB(t)
	g := createTestGroup(t, 1)
	other := createTestGroup(t, 1)

	entry, err := CreateGroupLesson(1, g.ID, 99, validDetails())
	require.NoError(t, err)

	changed := validDetails()
	changed.Title = "Подмена"
	require.NoError(t, UpdateGroupLesson(1, other.ID, entry.ID, changed))

	var reloaded models.ScheduleEntry
	require.NoError(t, storage.DB.First(&reloaded, entry.ID).Error)
	assert.Equal(t, validDetails().Title, reloaded.Title, "запись не изменилась")

	require.NoError(t, DeleteGroupLesson(1, other.ID, entry.ID))
	var n int64
	require.NoError(t, storage.DB.Model(&models.ScheduleEntry{}).Where("id = ?", entry.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n, "запись не удалилась")
}

// Личные слоты не дедуплицируются: два создания дают две независимые записи.
func TestPersonalSlotsNoDedup(t *testing.T) {
	setupDB(t)

	d := validDetails()
	first, err := UpsertPersonalSlot(1, 42, nil, d)
	require.NoError(t, err)
	second, err := UpsertPersonalSlot(1, 42, nil, d)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	var n int64
	require.NoError(t, storage.DB.Model(&models.ScheduleEntry{}).
		Where("owner_user_id = ? AND source_type = ?", 42, models.SourceManualPersonal).
		Count(&n).Error)
	assert.Equal(t, int64(2), n)
}

// Чужой слот неотличим от отсутствующего.
func TestPersonalSlotOwnershipScope(t *testing.T) {
	setupDB(t)

	entry, err := UpsertPersonalSlot(1, 42, nil, validDetails())
	require.NoError(t, err)

	_, err = UpsertPersonalSlot(1, 43, &entry.ID, validDetails())
	assert.ErrorIs(t, err, ErrNotFound)

	// Удаление чужого слота — тихий no-op.
	require.NoError(t, RemovePersonalSlot(1, 43, entry.ID))
	var n int64
	require.NoError(t, storage.DB.Model(&models.ScheduleEntry{}).Where("id = ?", entry.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	require.NoError(t, RemovePersonalSlot(1, 42, entry.ID))
	require.NoError(t, storage.DB.Model(&models.ScheduleEntry{}).Where("id = ?", entry.ID).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

// Сводное расписание объединяет пары групп, личные слоты и участие в мероприятиях.
func TestQueryForUser(t *testing.T) {
	setupDB(t)
	g := createTestGroup(t, 1)
	require.NoError(t, storage.DB.Create(&models.GroupMember{GroupID: g.ID, UserID: 42}).Error)

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	_, err := CreateGroupLesson(1, g.ID, 99, Details{
		Title: "Пара группы", StartsAt: start, EndsAt: start.Add(time.Hour),
		DeliveryType: models.DeliveryOffline, PhysicalLocation: "Ауд. 1",
	})
	require.NoError(t, err)

	slotDetails := validDetails()
	slotDetails.Title = "Личный слот"
	slotDetails.StartsAt = start.Add(2 * time.Hour)
	slotDetails.EndsAt = start.Add(3 * time.Hour)
	_, err = UpsertPersonalSlot(1, 42, nil, slotDetails)
	require.NoError(t, err)

	ev := createTestEvent(t, 1, start.Add(4*time.Hour))
	_, err = AddEventSubscription(1, ev, 42)
	require.NoError(t, err)

	views, err := QueryForUser(1, 42, Window{
		From: start.Add(-time.Hour),
		To:   start.Add(10 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "Пара группы", views[0].Title)
	assert.False(t, views[0].IsPersonal)
	assert.Equal(t, "Личный слот", views[1].Title)
	assert.True(t, views[1].IsPersonal)
	assert.True(t, views[2].IsPersonal, "участие в мероприятии делает запись личной")
}
