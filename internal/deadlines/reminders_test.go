package deadlines

import (
	"errors"
	"os"
	"testing"
	"time"

	"campus_hub/internal/jobs"
	"campus_hub/internal/models"
	"campus_hub/internal/storage"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerOp struct {
	Op     string // "put" | "cancel"
	Tag    string
	FireAt time.Time
}

// fakeRunner записывает операции и хранит ожидающие теги, не исполняя задач.
type fakeRunner struct {
	Ops     []runnerOp
	Pending map[string]time.Time
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{Pending: make(map[string]time.Time)}
}

func (f *fakeRunner) Put(tag string, fireAt time.Time, _ jobs.Job) {
	f.Ops = append(f.Ops, runnerOp{Op: "put", Tag: tag, FireAt: fireAt})
	f.Pending[tag] = fireAt
}

func (f *fakeRunner) Cancel(tag string) {
	f.Ops = append(f.Ops, runnerOp{Op: "cancel", Tag: tag})
	delete(f.Pending, tag)
}

// fakeSender фиксирует попытки доставки и умеет «ронять» отдельных получателей.
type fakeSender struct {
	Attempts []uint
	Sent     []uint
	FailFor  map[uint]bool
}

func (f *fakeSender) Send(userID uint, _ string) error {
	f.Attempts = append(f.Attempts, userID)
	if f.FailFor[userID] {
		return errors.New("соединение закрыто")
	}
	f.Sent = append(f.Sent, userID)
	return nil
}

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
		&models.Deadline{},
		&models.DeadlineCompletion{},
		&models.DeadlineReminder{},
	))
	storage.DB.Exec("TRUNCATE TABLE users, groups, group_members, deadlines, deadline_completions, deadline_reminders RESTART IDENTITY CASCADE;")
}

func createTestDeadline(t *testing.T, dueAt time.Time) *models.Deadline {
	t.Helper()
	g := &models.Group{TenantID: 1, Name: "БИВТ-21-1"}
	require.NoError(t, storage.DB.Create(g).Error)
	d := &models.Deadline{
		TenantID:    1,
		GroupID:     g.ID,
		Title:       "Курсовая работа",
		DueAt:       dueAt,
		Status:      models.DeadlineActive,
		AccessScope: models.AccessScopeGroup,
	}
	require.NoError(t, storage.DB.Create(d).Error)
	return d
}

func reminderRowCount(t *testing.T, deadlineID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, storage.DB.Model(&models.DeadlineReminder{}).
		Where("deadline_id = ?", deadlineID).Count(&n).Error)
	return n
}

// Дедлайн через шесть дней: регистрируются все четыре смещения.
func TestScheduleRemindersAllOffsets(t *testing.T) {
	setupDB(t)
	fr := newFakeRunner()
	svc := &Service{Runner: fr, Sender: &fakeSender{}}

	d := createTestDeadline(t, time.Now().Add(6*24*time.Hour))
	require.NoError(t, svc.ScheduleReminders(d))

	assert.Len(t, fr.Pending, 4)
	for _, offset := range []string{OffsetFiveDays, OffsetTwoDays, OffsetOneDay, OffsetOneHour} {
		fireAt, ok := fr.Pending[ReminderTag(d.ID, offset)]
		require.True(t, ok, "смещение %s должно быть зарегистрировано", offset)
		assert.True(t, fireAt.After(time.Now()))
	}
	assert.Equal(t, int64(4), reminderRowCount(t, d.ID))
}

// Дедлайн через двенадцать часов: прошедшие смещения пропускаются целиком,
// регистрируется только часовое.
func TestScheduleRemindersSkipsPast(t *testing.T) {
	setupDB(t)
	fr := newFakeRunner()
	svc := &Service{Runner: fr, Sender: &fakeSender{}}

	d := createTestDeadline(t, time.Now().Add(12*time.Hour))
	require.NoError(t, svc.ScheduleReminders(d))

	require.Len(t, fr.Pending, 1)
	_, ok := fr.Pending[ReminderTag(d.ID, OffsetOneHour)]
	assert.True(t, ok, "остаётся только часовое смещение")
	assert.Equal(t, int64(1), reminderRowCount(t, d.ID))
}

// Перенос срока перерегистрирует задачи: для каждого тега сначала снятие,
// затем регистрация, устаревших ожидающих тегов не остаётся.
func TestScheduleRemindersReplacesOnReschedule(t *testing.T) {
	setupDB(t)
	fr := newFakeRunner()
	svc := &Service{Runner: fr, Sender: &fakeSender{}}

	d := createTestDeadline(t, time.Now().Add(6*24*time.Hour))
	require.NoError(t, svc.ScheduleReminders(d))

	d.DueAt = time.Now().Add(10 * 24 * time.Hour)
	require.NoError(t, storage.DB.Save(d).Error)
	require.NoError(t, svc.ScheduleReminders(d))

	assert.Len(t, fr.Pending, 4, "после переноса по-прежнему четыре задачи")
	fireAt := fr.Pending[ReminderTag(d.ID, OffsetOneHour)]
	assert.WithinDuration(t, d.DueAt.Add(-time.Hour), fireAt, time.Second)

	// Порядок операций по каждому тегу: cancel строго раньше put.
	lastOp := make(map[string]string)
	for _, op := range fr.Ops {
		if op.Op == "put" {
			assert.Equal(t, "cancel", lastOp[op.Tag], "перед регистрацией тег снимается")
		}
		lastOp[op.Tag] = op.Op
	}

	// FirstOrCreate не плодит дубликатов учётных строк.
	assert.Equal(t, int64(4), reminderRowCount(t, d.ID))
}

func TestCancelReminders(t *testing.T) {
	setupDB(t)
	fr := newFakeRunner()
	svc := &Service{Runner: fr, Sender: &fakeSender{}}

	d := createTestDeadline(t, time.Now().Add(6*24*time.Hour))
	require.NoError(t, svc.ScheduleReminders(d))
	require.NoError(t, svc.CancelReminders(d.ID))

	assert.Empty(t, fr.Pending)
	assert.Equal(t, int64(0), reminderRowCount(t, d.ID))
}

// Рассылка идёт участникам группы за вычетом отметившихся; неудачная доставка
// одному получателю не прерывает остальных.
func TestFireRecipientsAndIsolation(t *testing.T) {
	setupDB(t)
	fr := newFakeRunner()
	sender := &fakeSender{FailFor: map[uint]bool{1: true}}
	svc := &Service{Runner: fr, Sender: sender}

	d := createTestDeadline(t, time.Now().Add(30*time.Minute))
	for _, userID := range []uint{1, 2, 3} {
		require.NoError(t, storage.DB.Create(&models.GroupMember{GroupID: d.GroupID, UserID: userID}).Error)
	}
	require.NoError(t, storage.DB.Create(&models.DeadlineCompletion{
		DeadlineID: d.ID, UserID: 2, CompletedAt: time.Now(),
	}).Error)
	require.NoError(t, storage.DB.Create(&models.DeadlineReminder{
		DeadlineID: d.ID, Offset: OffsetOneHour,
	}).Error)

	svc.Fire(d.ID, OffsetOneHour)

	assert.ElementsMatch(t, []uint{1, 3}, sender.Attempts, "отметившийся не получает напоминания")
	assert.Equal(t, []uint{3}, sender.Sent, "сбой доставки пользователю 1 не мешает пользователю 3")

	var reminder models.DeadlineReminder
	require.NoError(t, storage.DB.
		Where("deadline_id = ? AND \"offset\" = ?", d.ID, OffsetOneHour).
		First(&reminder).Error)
	assert.NotNil(t, reminder.SentAt)

	var reloaded models.Deadline
	require.NoError(t, storage.DB.First(&reloaded, d.ID).Error)
	assert.NotNil(t, reloaded.LastNotifiedAt)
}

// Сработавшая задача отменённого дедлайна ничего не рассылает.
func TestFireCancelledDeadlineNoop(t *testing.T) {
	setupDB(t)
	sender := &fakeSender{}
	svc := &Service{Runner: newFakeRunner(), Sender: sender}

	d := createTestDeadline(t, time.Now().Add(30*time.Minute))
	require.NoError(t, storage.DB.Create(&models.GroupMember{GroupID: d.GroupID, UserID: 1}).Error)
	require.NoError(t, storage.DB.Model(d).Update("status", models.DeadlineCancelled).Error)

	svc.Fire(d.ID, OffsetOneHour)
	assert.Empty(t, sender.Attempts)
}

func TestFireMissingDeadlineNoop(t *testing.T) {
	setupDB(t)
	sender := &fakeSender{}
	svc := &Service{Runner: newFakeRunner(), Sender: sender}

	svc.Fire(999999, OffsetOneHour)
	assert.Empty(t, sender.Attempts)
}
