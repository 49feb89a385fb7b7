package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// snapshotTimeout bounds a single scheduled save.
const snapshotTimeout = 30 * time.Second

// PersistFunc saves the store under id and returns the stored id.
type PersistFunc func(ctx context.Context, id string) (string, error)

// Scheduler saves snapshots on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// ScheduleSnapshots calls persist on every tick of spec, a five-field cron
// expression or a descriptor such as "@hourly" or "@every 10m". Snapshot IDs
// carry the tick time. A tick that starts while the previous save is still
// running is skipped.
func ScheduleSnapshots(spec string, persist PersistFunc, logger *slog.Logger) (*Scheduler, error) {
	cl := cronLogger{logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()

		id := "scheduled-" + time.Now().UTC().Format("20060102T150405Z")
		saved, err := persist(ctx, id)
		if err != nil {
			logger.Error("scheduled snapshot failed", "id", id, "err", err)
			return
		}
		logger.Info("scheduled snapshot saved", "id", saved)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot schedule %q: %w", spec, err)
	}
	c.Start()
	return &Scheduler{cron: c}, nil
}

// Stop halts the schedule and waits for a running save to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
