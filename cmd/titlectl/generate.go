package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eternisai/session-titler/internal/app"
	"github.com/eternisai/session-titler/internal/conversation"
	"github.com/eternisai/session-titler/internal/notifications"
	"github.com/eternisai/session-titler/internal/title_generation"
)

func generateCmd() *cobra.Command {
	var (
		sessionID   string
		apply       bool
		showContext bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a title for a session",
		Long: `Runs the title pipeline once for the session, regardless of the idle counter.
Without --apply the title is only printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				return errors.New("--session is required")
			}

			cfg, log := loadConfig()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			store, closer, err := app.NewStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closer.Close()

			generator, err := app.NewGenerator(cfg, log)
			if err != nil {
				return err
			}

			if apply {
				notifier := notifications.NewService(log, cfg.NoticesEnabled, notifications.NewLogSender(log))

				options := title_generation.OptionsFromConfig(cfg)
				options.WorkerPoolSize = 1

				service := title_generation.NewService(log, store, notifier, generator, options)
				defer service.Shutdown()

				result, err := service.Regenerate(ctx, sessionID)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "%s\t(applied, %s via %s)\n", result.Title, result.Model, result.Source)
				return nil
			}

			messages, err := store.ListMessages(ctx, sessionID)
			if err != nil {
				return err
			}

			turns := conversation.ExtractTurns(messages)
			if len(turns) == 0 {
				return title_generation.ErrNoTurns
			}

			formatted := conversation.FormatTurns(turns, cfg.TitleGeneration.MaxTurns, cfg.TitleGeneration.MaxCharsPerMessage)
			if showContext {
				fmt.Fprintln(out, title_generation.BuildPrompt(formatted))
				fmt.Fprintln(out, "---")
			}

			generation, err := generator.Generate(ctx, formatted)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s\t(%s via %s)\n", generation.Title, generation.Selection.Ref, generation.Selection.Source)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session ID")
	cmd.Flags().BoolVar(&apply, "apply", false, "store the generated title")
	cmd.Flags().BoolVar(&showContext, "show-prompt", false, "print the prompt sent to the model")

	return cmd
}
