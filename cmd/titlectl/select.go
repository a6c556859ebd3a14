package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/eternisai/session-titler/internal/app"
	"github.com/eternisai/session-titler/internal/providers"
)

func selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select",
		Short: "Show the model the title pipeline would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := loadConfig()

			selector, err := app.NewSelector(cfg, log)
			if err != nil {
				return err
			}

			result, err := selector.Select(cmd.Context(), cfg.TitleGeneration.Model)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "model:  %s\n", result.Ref)
			fmt.Fprintf(out, "source: %s\n", result.Source)
			fmt.Fprintf(out, "reason: %s\n", result.Reason)
			if result.FailedModel != nil {
				fmt.Fprintf(out, "failed: %s\n", result.FailedModel)
			}

			return nil
		},
	}
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List authenticated providers and the fallback chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := loadConfig()

			registry, err := providers.NewRegistry(cfg.TitleGeneration, log)
			if err != nil {
				return err
			}

			authenticated, err := registry.ListAuthenticated(cmd.Context())
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(authenticated))
			for id := range authenticated {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "authenticated providers:")
			for _, id := range ids {
				fmt.Fprintf(out, "  %-12s %s\n", id, authenticated[id].Description)
			}

			fmt.Fprintln(out, "fallback chain:")
			for i, candidate := range cfg.TitleGeneration.Fallback {
				state := "ready"
				switch {
				case candidate.Model == "":
					state = "no default model"
				case !contains(ids, candidate.Provider):
					state = "not authenticated"
				}
				fmt.Fprintf(out, "  %d. %s/%s (%s)\n", i+1, candidate.Provider, candidate.Model, state)
			}

			return nil
		},
	}
}

func contains(ids []string, id string) bool {
	i := sort.SearchStrings(ids, id)
	return i < len(ids) && ids[i] == id
}
