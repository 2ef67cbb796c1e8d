package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"recurring-planner/internal/bot"
	"recurring-planner/internal/service"
)

func runBot(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.cfg.ValidateBot(); err != nil {
		return err
	}
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}

	telegramBot, err := bot.New(a.cfg.TelegramToken, a.users, a.taskSvc, a.reminder, a.cfg)
	if err != nil {
		return err
	}

	reconcileAll(ctx, a)

	scheduler := service.NewSchedulerService(loc)
	if _, err := scheduler.ScheduleDaily(a.cfg.ReconcileAt, "reconcile", func() {
		jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		reconcileAll(jobCtx, a)
	}); err != nil {
		return err
	}
	if a.cfg.ReportInterval > 0 {
		if _, err := scheduler.ScheduleInterval(a.cfg.ReportInterval, "report", func() {
			jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("send reports")
			}
		}); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Info().Msg("planner bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}

// reconcileAll removes duplicate series instances for every owner.
func reconcileAll(ctx context.Context, a *app) {
	owners, err := a.tasks.ListOwners(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list owners")
		return
	}
	total := 0
	for _, owner := range owners {
		removed, err := a.taskSvc.ReconcileOwner(ctx, owner)
		if err != nil {
			log.Error().Err(err).Uint("owner", owner).Msg("reconcile")
			continue
		}
		total += removed
	}
	log.Info().Int("owners", len(owners)).Int("removed", total).Msg("reconcile finished")
}
