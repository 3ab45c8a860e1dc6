package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"grannypad/internal/capture"
	"grannypad/internal/config"
	"grannypad/internal/speech"
	"grannypad/internal/storage"
	"grannypad/internal/todo"
	"grannypad/internal/ui"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           config.AppName,
		Short:         "A to-do notepad with a nagging grandma",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotepad(cmd, ctx)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newConvertCommand(ctx))
	rootCmd.AddCommand(newVoicesCommand(ctx))

	return rootCmd
}

func runNotepad(cmd *cobra.Command, cc *commandContext) error {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	logger, logFile, err := cc.fileLogger(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()
	if cc.created {
		logger.Info("wrote default config", "path", cc.configPath)
	}

	client, err := cc.geminiClient(cmd.Context(), &cfg, logger)
	if err != nil {
		return err
	}

	store := todo.NewStore(todo.WithRemovalDelay(cfg.RemovalDelay()))
	var snapshot *storage.Store
	if cfg.DBPath != "" {
		snapshot, err = storage.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open snapshot: %w", err)
		}
		defer snapshot.Close()
		tasks, err := snapshot.FetchTasks()
		if err != nil {
			return fmt.Errorf("failed to read snapshot: %w", err)
		}
		store.Load(tasks)
		logger.Info("snapshot loaded", "path", cfg.DBPath, "tasks", len(tasks))
	}

	recognizer := speech.NewRecognizer(cfg.Voice.Command, speech.WithLogger(logger))
	defer recognizer.Stop()

	controller := capture.NewController(client, store,
		capture.WithRecognizer(recognizer),
		capture.WithLogger(logger),
	)

	deps := ui.Deps{
		Config:     cfg,
		Store:      store,
		Capture:    controller,
		Recognizer: recognizer,
		Logger:     logger,
	}
	if cfg.Speech.Enabled {
		narrator := cc.narrator(cfg, logger)
		defer narrator.Close()
		narrator.Prepare()
		deps.Narrator = narrator
	}
	if snapshot != nil {
		deps.Snapshot = snapshot
	}

	runErr := ui.Run(cmd.Context(), deps)

	store.Close()
	if snapshot != nil {
		if err := snapshot.SaveTasks(store.Tasks()); err != nil {
			logger.Error("final snapshot save failed", "err", err)
			if runErr == nil {
				runErr = fmt.Errorf("failed to save snapshot: %w", err)
			}
		}
	}
	return runErr
}
