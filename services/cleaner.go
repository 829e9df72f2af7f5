package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Cleaner deletes stored assets on a best-effort basis. Failures are logged
// and never reach the caller; Delete returns once every attempt finished.
type Cleaner struct {
	store   AssetStore
	log     logrus.FieldLogger
	workers int
	timeout time.Duration
}

func NewCleaner(store AssetStore, log logrus.FieldLogger, workers int) *Cleaner {
	if workers < 1 {
		workers = 1
	}
	return &Cleaner{store: store, log: log, workers: workers, timeout: 30 * time.Second}
}

func (c *Cleaner) Delete(ctx context.Context, refs ...AssetRef) {
	// Cleanup outlives a cancelled request; the primary write already happened.
	ctx = context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, ref := range refs {
		if ref.ID == "" {
			continue
		}
		g.Go(func() error {
			taskCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			if err := c.store.Delete(taskCtx, ref.ID, ref.Kind); err != nil {
				c.log.WithError(err).WithFields(logrus.Fields{
					"asset_id": ref.ID,
					"kind":     ref.Kind,
				}).Warn("best-effort asset delete failed")
			}
			return nil
		})
	}
	g.Wait()
}
