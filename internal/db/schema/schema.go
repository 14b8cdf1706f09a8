// Package schema migrates every table of the application.
package schema

import (
	"moiledger/internal/auth"
	"moiledger/internal/db"
	"moiledger/internal/family"
	"moiledger/internal/jobs"
	"moiledger/internal/ledger"
	"moiledger/internal/notify"

	"gorm.io/gorm"
)

func Models() []any {
	return []any{
		&auth.User{},
		&family.Family{},
		&family.Membership{},
		&ledger.Event{},
		&ledger.Transaction{},
		&ledger.ContributionHistory{},
		&ledger.FavoriteEvent{},
		&notify.Notification{},
		&jobs.Job{},
	}
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return err
	}

	// Portable between postgres and sqlite.
	return db.Exec(gdb,
		`create index if not exists idx_history_family_person on contribution_histories(family_id, person_name);`,
		`create index if not exists idx_history_family_date on contribution_histories(family_id, date desc);`,
		`create index if not exists idx_transactions_family_created on moi_transactions(family_id, created_at);`,
		`create index if not exists idx_events_family_date on events(family_id, date desc);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
	)
}
