package crontab

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/crontab"

	"github.com/janhq/jan-chat/internal/config"
	"github.com/janhq/jan-chat/internal/domain/generation"
	"github.com/janhq/jan-chat/internal/infrastructure/logger"
	"github.com/janhq/jan-chat/internal/utils/platformerrors"
)

const (
	DefaultSweepInterval = 5                // in minutes
	CronJobTimeout       = 10 * time.Minute // Timeout for each cron job execution
)

type Crontab struct {
	ctab    *crontab.Crontab
	sweeper *generation.Sweeper
}

func NewCrontab(sweeper *generation.Sweeper) *Crontab {
	return &Crontab{
		ctab:    crontab.New(),
		sweeper: sweeper,
	}
}

func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()
	cfg := config.GetGlobal()
	if cfg == nil || !cfg.SweepEnabled {
		<-ctx.Done()
		return nil
	}

	// execute once on server start
	c.sweep(ctx)

	interval := cfg.SweepIntervalMinutes
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	cronExpr := fmt.Sprintf("*/%d * * * *", interval)
	if err := c.ctab.AddJob(cronExpr, func() {
		jobCtx, cancel := context.WithTimeout(ctx, CronJobTimeout)
		defer cancel()
		c.sweep(jobCtx)
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add generation sweep job")
	}
	log.Info().Msgf("Generation sweep scheduled: every %d minute(s)", interval)

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) sweep(ctx context.Context) {
	if _, err := c.sweeper.Sweep(ctx); err != nil {
		log := logger.GetLogger()
		log.Error().Err(err).Msg("Generation sweep failed")
	}
}
