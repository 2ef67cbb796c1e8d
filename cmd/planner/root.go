package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"recurring-planner/internal/config"
	"recurring-planner/internal/repository"
	"recurring-planner/internal/service"
)

var flagDatabase string

var rootCmd = &cobra.Command{
	Use:   "planner",
	Short: "Day planner with recurring tasks",
	Long: `planner keeps a per-user day plan with recurring tasks.
Run it without a subcommand to start the Telegram bot.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runBot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDatabase, "db", "", "database path (overrides DATABASE_URL)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("planner failed")
		os.Exit(1)
	}
}

// app holds the wiring shared by all subcommands.
type app struct {
	cfg      config.Config
	db       *gorm.DB
	users    *repository.UserRepository
	tasks    *repository.TaskRepository
	taskSvc  *service.TaskService
	reminder *service.ReminderService
}

func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if flagDatabase != "" {
		cfg.DatabaseURL = flagDatabase
	}
	setupLogging(cfg)

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	tasks := repository.NewTaskRepository(db, repository.NewNotifier())
	taskSvc := service.NewTaskService(tasks, cfg.Materialize())
	return &app{
		cfg:      cfg,
		db:       db,
		users:    repository.NewUserRepository(db),
		tasks:    tasks,
		taskSvc:  taskSvc,
		reminder: service.NewReminderService(taskSvc),
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
