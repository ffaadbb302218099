package jobs

import (
	"sync"
	"time"
)

// Job — отложенная одноразовая задача.
type Job func()

// Runner — внешний исполнитель одноразовых задач, адресуемых строковым тегом.
// Повторный Put с тем же тегом заменяет ранее зарегистрированную задачу:
// на один тег всегда не более одной ожидающей задачи. Cancel для
// несуществующего тега — безопасный no-op.
type Runner interface {
	Put(tag string, fireAt time.Time, job Job)
	Cancel(tag string)
}

// TimerRunner — встроенная реализация Runner на таймерах процесса.
// Задачи не переживают перезапуск: при старте сервиса они восстанавливаются
// из базы (см. tasks.RestoreReminderJobs).
type TimerRunner struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTimerRunner() *TimerRunner {
	return &TimerRunner{timers: make(map[string]*time.Timer)}
}

func (r *TimerRunner) Put(tag string, fireAt time.Time, job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[tag]; ok {
		t.Stop()
	}

	d := time.Until(fireAt)
	if d < 0 {
		d = 0
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		r.mu.Lock()
		// Удаляем запись, только если она всё ещё наша: тег могли перезаписать.
		if r.timers[tag] == t {
			delete(r.timers, tag)
		}
		r.mu.Unlock()
		job()
	})
	r.timers[tag] = t
}

func (r *TimerRunner) Cancel(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[tag]; ok {
		t.Stop()
		delete(r.timers, tag)
	}
}

// Pending возвращает количество ожидающих задач.
func (r *TimerRunner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}
