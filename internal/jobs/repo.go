package jobs

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Repo struct {
	DB *gorm.DB
}

// ReplaceEventReminder drops pending reminders for the event and, when runAt is
// still ahead, schedules a new one. Pass a transaction to make it atomic with the
// event write.
func ReplaceEventReminder(tx *gorm.DB, userID, familyID, eventID string, runAt time.Time) error {
	if err := CancelPending(tx, TypeEventReminder, eventID); err != nil {
		return err
	}
	if !runAt.After(time.Now()) {
		return nil
	}
	j := NewEventReminder(userID, familyID, eventID, runAt)
	return tx.Create(&j).Error
}

func CancelPending(tx *gorm.DB, jobType, refID string) error {
	return tx.Where("type = ? AND ref_id = ? AND status = ?", jobType, refID, StatusPending).
		Delete(&Job{}).Error
}

// Claim one due job of the given types atomically using SKIP LOCKED.
// Works on Postgres.
func (r *Repo) Claim(workerID string, types []string) (*Job, error) {
	var job Job
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		// requeue stuck RUNNING jobs
		if err := tx.Exec(`
update jobs
set status='PENDING', locked_by=null, locked_at=null, updated_at=now()
where status='RUNNING' and locked_at is not null and locked_at < now() - interval '5 minutes'
`).Error; err != nil {
			return err
		}

		// FOR UPDATE SKIP LOCKED ensures no double-claim
		q := tx.Raw(`
with cte as (
  select id
  from jobs
  where status='PENDING' and run_at <= now() and type = any(?)
  order by run_at asc
  for update skip locked
  limit 1
)
update jobs
set status='RUNNING', locked_by=?, locked_at=now(), updated_at=now()
where id in (select id from cte)
returning *;
`, pq.Array(types), workerID)

		return q.Scan(&job).Error
	})
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *Repo) MarkDone(id uint64) error {
	return r.DB.Model(&Job{}).Where("id = ?", id).Updates(map[string]any{
		"status":     StatusDone,
		"updated_at": time.Now(),
	}).Error
}

func (r *Repo) MarkFailed(id uint64, errMsg string) error {
	return r.DB.Model(&Job{}).Where("id = ?", id).Updates(map[string]any{
		"status":     StatusFailed,
		"last_error": errMsg,
		"updated_at": time.Now(),
	}).Error
}

func (r *Repo) RetryLater(id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.DB.Model(&Job{}).Where("id = ?", id).Updates(map[string]any{
		"status":     StatusPending,
		"attempts":   attempts,
		"run_at":     runAt,
		"locked_by":  nil,
		"locked_at":  nil,
		"last_error": errMsg,
		"updated_at": time.Now(),
	}).Error
}
