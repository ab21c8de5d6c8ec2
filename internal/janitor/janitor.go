// Package janitor — фоновая вычистка протухших данных по расписанию.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultSchedule = "@every 10m"

// Store — хранилище с протухающими записями.
type Store interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Janitor периодически удаляет изменения профиля, так и не
// подтверждённые OTP-кодом.
type Janitor struct {
	store    Store
	logger   *slog.Logger
	schedule string
	cron     *cron.Cron
}

// New создаёт janitor. Пустой schedule — каждые 10 минут.
func New(store Store, logger *slog.Logger, schedule string) *Janitor {
	if schedule == "" {
		schedule = defaultSchedule
	}
	return &Janitor{
		store:    store,
		logger:   logger,
		schedule: schedule,
	}
}

// Start запускает расписание.
func (j *Janitor) Start() error {
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(j.schedule, j.sweep); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("janitor started", "schedule", j.schedule)
	return nil
}

// Stop останавливает расписание и дожидается текущего прохода.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
	j.logger.Info("janitor stopped")
}

// sweep — один проход вычистки.
func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := j.store.DeleteExpired(ctx, time.Now())
	if err != nil {
		j.logger.Error("failed to delete expired pending updates", "error", err)
		return
	}
	if n > 0 {
		j.logger.Info("deleted expired pending updates", "count", n)
	}
}
