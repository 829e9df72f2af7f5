package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	syncVisibilitySQL = `UPDATE flashcards
SET is_public = (SELECT folders.is_public FROM folders WHERE folders.id = flashcards.folder_id)
WHERE EXISTS (
	SELECT 1 FROM folders
	WHERE folders.id = flashcards.folder_id AND folders.is_public <> flashcards.is_public
)`

	syncCountsSQL = `UPDATE folders
SET flashcard_count = (SELECT COUNT(*) FROM flashcards WHERE flashcards.folder_id = folders.id)
WHERE flashcard_count <> (SELECT COUNT(*) FROM flashcards WHERE flashcards.folder_id = folders.id)`
)

// Reconciler repairs derived state: card visibility that lags its folder
// after a partial propagation, and folder counters that drifted.
type Reconciler struct {
	db   *gorm.DB
	log  logrus.FieldLogger
	cron *cron.Cron
}

func NewReconciler(db *gorm.DB, log logrus.FieldLogger) *Reconciler {
	return &Reconciler{db: db, log: log}
}

// Run performs one reconciliation pass.
func (r *Reconciler) Run(ctx context.Context) error {
	vis := r.db.WithContext(ctx).Exec(syncVisibilitySQL)
	if vis.Error != nil {
		return fmt.Errorf("reconcile flashcard visibility: %w", vis.Error)
	}

	counts := r.db.WithContext(ctx).Exec(syncCountsSQL)
	if counts.Error != nil {
		return fmt.Errorf("reconcile flashcard counts: %w", counts.Error)
	}

	if vis.RowsAffected > 0 || counts.RowsAffected > 0 {
		r.log.WithFields(logrus.Fields{
			"flashcards_synced": vis.RowsAffected,
			"folders_recounted": counts.RowsAffected,
		}).Info("reconciled derived folder state")
	}
	return nil
}

// Start schedules Run on a cron spec such as "@every 10m".
func (r *Reconciler) Start(spec string) error {
	r.cron = cron.New()
	_, err := r.cron.AddFunc(spec, func() {
		if err := r.Run(context.Background()); err != nil {
			r.log.WithError(err).Error("reconciliation failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reconciliation: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop waits for a running pass to finish.
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
