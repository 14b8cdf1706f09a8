package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"moiledger/internal/notify"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Claimer hands out due jobs. *Repo implements it on Postgres.
type Claimer interface {
	Claim(workerID string, types []string) (*Job, error)
	MarkDone(id uint64) error
	MarkFailed(id uint64, errMsg string) error
	RetryLater(id uint64, attempts int, runAt time.Time, errMsg string) error
}

type Worker struct {
	ID     string
	Repo   Claimer
	DB     *gorm.DB
	Notify *notify.Service
	Log    logrus.FieldLogger
}

type eventRow struct {
	ID       string    `gorm:"column:id"`
	FamilyID string    `gorm:"column:family_id"`
	Title    string    `gorm:"column:title"`
	Date     time.Time `gorm:"column:date"`
	Status   string    `gorm:"column:status"`
}

func (eventRow) TableName() string { return "events" }

type membershipRow struct {
	UserID   string `gorm:"column:user_id"`
	FamilyID string `gorm:"column:family_id"`
}

func (membershipRow) TableName() string { return "memberships" }

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(800 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := w.Repo.Claim(w.ID, []string{TypeEventReminder})
			if err != nil {
				w.Log.WithError(err).Error("worker claim error")
				continue
			}
			if job == nil {
				continue
			}
			w.handle(ctx, job)
		}
	}
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	log := w.Log.WithFields(logrus.Fields{"job_id": job.ID, "job_type": job.Type})
	switch job.Type {
	case TypeEventReminder:
		w.handleEventReminder(ctx, log, job)
	default:
		w.finish(log, w.Repo.MarkFailed(job.ID, "unknown job type"))
	}
}

func (w *Worker) handleEventReminder(ctx context.Context, log logrus.FieldLogger, job *Job) {
	var p eventReminderPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil || p.EventID == "" {
		w.finish(log, w.Repo.MarkFailed(job.ID, "bad payload"))
		return
	}

	var ev eventRow
	if err := w.DB.WithContext(ctx).Where("id = ?", p.EventID).First(&ev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			w.finish(log, w.Repo.MarkDone(job.ID))
			return
		}
		w.retry(log, job, "db read error")
		return
	}
	if ev.Status == "closed" {
		w.finish(log, w.Repo.MarkDone(job.ID))
		return
	}

	var members []membershipRow
	if err := w.DB.WithContext(ctx).Where("family_id = ?", ev.FamilyID).Find(&members).Error; err != nil {
		w.retry(log, job, "db read error")
		return
	}

	if _, err := w.Notify.CreateMany(ctx, reminderInputs(ev, members)); err != nil {
		w.retry(log, job, err.Error())
		return
	}

	log.WithFields(logrus.Fields{"event_id": ev.ID, "recipients": len(members)}).Info("event reminder sent")
	w.finish(log, w.Repo.MarkDone(job.ID))
}

func reminderInputs(ev eventRow, members []membershipRow) []notify.Input {
	familyID := ev.FamilyID
	msg := fmt.Sprintf("%s is on %s", ev.Title, ev.Date.Format("Mon, 02 Jan 2006"))
	out := make([]notify.Input, 0, len(members))
	for _, m := range members {
		out = append(out, notify.Input{
			UserID:   m.UserID,
			FamilyID: &familyID,
			Type:     notify.TypeEventReminder,
			Title:    "Upcoming Event",
			Message:  msg,
		})
	}
	return out
}

func (w *Worker) retry(log logrus.FieldLogger, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		w.finish(log, w.Repo.MarkFailed(job.ID, errMsg))
		return
	}

	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	next := time.Now().Add(time.Duration(sec) * time.Second)

	w.finish(log, w.Repo.RetryLater(job.ID, attempts, next, errMsg))
}

func (w *Worker) finish(log logrus.FieldLogger, err error) {
	if err != nil {
		log.WithError(err).Error("update job status")
	}
}
