package events

import (
	"testing"
	"time"

	"campus_hub/internal/jobs"
	"campus_hub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
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

func testEvent(id uint, startsAt time.Time) *models.UniversityEvent {
	return &models.UniversityEvent{
		Model:        gorm.Model{ID: id},
		TenantID:     1,
		Title:        "День открытых дверей",
		StartsAt:     startsAt,
		EndsAt:       startsAt.Add(2 * time.Hour),
		DeliveryType: models.DeliveryOffline,
	}
}

func TestScheduleForRegistrationFuture(t *testing.T) {
	fr := newFakeRunner()
	svc := &Service{Runner: fr}

	start := time.Now().Add(72 * time.Hour)
	svc.ScheduleForRegistration(testEvent(7, start), 10)

	tag := ReminderTag(7, 10)
	fireAt, ok := fr.Pending[tag]
	require.True(t, ok, "задача должна быть зарегистрирована")
	assert.WithinDuration(t, start.Add(-24*time.Hour), fireAt, time.Second,
		"напоминание регистрируется за сутки до начала")

	// Сначала снимается прежняя задача, затем регистрируется новая.
	require.Len(t, fr.Ops, 2)
	assert.Equal(t, "cancel", fr.Ops[0].Op)
	assert.Equal(t, "put", fr.Ops[1].Op)
	assert.Equal(t, tag, fr.Ops[1].Tag)
}

// Просроченное время напоминания не пропускается, а прижимается к «сейчас плюс минута».
func TestScheduleForRegistrationClampsPast(t *testing.T) {
	fr := newFakeRunner()
	svc := &Service{Runner: fr}

	now := time.Now()
	svc.ScheduleForRegistration(testEvent(8, now.Add(2*time.Hour)), 10)

	fireAt, ok := fr.Pending[ReminderTag(8, 10)]
	require.True(t, ok, "задача должна быть зарегистрирована даже при просроченном упреждении")
	assert.WithinDuration(t, now.Add(time.Minute), fireAt, 2*time.Second)
}

func TestRescheduleForEvent(t *testing.T) {
	fr := newFakeRunner()
	svc := &Service{Runner: fr}

	start := time.Now().Add(96 * time.Hour)
	ev := testEvent(9, start)
	svc.RescheduleForEvent(ev, []uint{1, 2, 3})

	assert.Len(t, fr.Pending, 3, "по одной задаче на каждого записавшегося")
	for _, userID := range []uint{1, 2, 3} {
		fireAt, ok := fr.Pending[ReminderTag(9, userID)]
		require.True(t, ok)
		assert.WithinDuration(t, start.Add(-24*time.Hour), fireAt, time.Second)
	}
}

func TestDeleteForRegistration(t *testing.T) {
	fr := newFakeRunner()
	svc := &Service{Runner: fr}

	ev := testEvent(11, time.Now().Add(72*time.Hour))
	svc.ScheduleForRegistration(ev, 5)
	svc.ScheduleForRegistration(ev, 6)

	svc.DeleteForRegistration(11, 5)
	_, ok := fr.Pending[ReminderTag(11, 5)]
	assert.False(t, ok, "задача отписавшегося должна быть снята")
	_, ok = fr.Pending[ReminderTag(11, 6)]
	assert.True(t, ok, "задачи остальных не трогаются")
}

func TestDeleteForEvent(t *testing.T) {
	fr := newFakeRunner()
	svc := &Service{Runner: fr}

	ev := testEvent(12, time.Now().Add(72*time.Hour))
	svc.RescheduleForEvent(ev, []uint{1, 2})

	svc.DeleteForEvent(12, []uint{1, 2})
	assert.Empty(t, fr.Pending, "после удаления мероприятия ожидающих задач не остаётся")
}
