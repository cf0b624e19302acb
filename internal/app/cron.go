package app

import (
	"context"
	"time"

	"github.com/rationable/api/internal/middleware"
	pkgcron "github.com/rationable/api/internal/pkg/cron"
	"github.com/rationable/api/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

const finishedTaskRetention = 6 * time.Hour

// registerCronJobs registers all scheduled background jobs.
func (a *App) registerCronJobs() {
	cronLogger := a.logger.Named("CronService")

	a.sched.Register(pkgcron.Job{
		Name:        "sweep_cache",
		Description: "drop expired generation, enrichment and geo cache entries",
		Interval:    time.Hour,
		Fn: func(ctx context.Context) error {
			for ns, c := range a.caches {
				n, err := c.Sweep(ctx)
				if err != nil {
					cronLogger.Warn("cache sweep failed", zap.String("namespace", ns), zap.Error(err))
					return err
				}
				if n > 0 {
					cronLogger.Info("cache swept", zap.String("namespace", ns), zap.Int("removed", n))
				}
			}
			return nil
		},
	})

	tasks := taskqueue.NewService(a.rc)
	a.sched.Register(pkgcron.Job{
		Name:        "cleanup_tasks",
		Description: "delete finished analysis tasks",
		Interval:    time.Hour,
		Fn: func(ctx context.Context) error {
			n, err := tasks.DeleteFinished(ctx, time.Now().Add(-finishedTaskRetention))
			if err != nil {
				cronLogger.Warn("task cleanup failed", zap.Error(err))
				return err
			}
			cronLogger.Info("task cleanup finished", zap.Int("removed", n))
			return nil
		},
	})

	a.sched.Register(pkgcron.Job{
		Name:        "purge_public_cache",
		Description: "drop cached shared-decision responses",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			n, err := middleware.PurgePublicCache(ctx, a.rc)
			if err != nil {
				return err
			}
			cronLogger.Info("public cache purged", zap.Int64("removed", n))
			return nil
		},
	})
}
