package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recurring-planner/internal/date"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Remove duplicate series instances",
	Long: `Removes duplicate instances (same series, same date) for every user.
With --extend-days, series are also materialized up to that many days ahead.`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().Int("extend-days", 0, "extend every series up to N days from today")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	extend, _ := cmd.Flags().GetInt("extend-days")
	if extend < 0 {
		return fmt.Errorf("--extend-days must not be negative")
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	reconcileAll(ctx, a)
	if extend == 0 {
		return nil
	}

	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	through := date.Today(loc).AddDays(extend)
	owners, err := a.tasks.ListOwners(ctx)
	if err != nil {
		return err
	}
	created := 0
	for _, owner := range owners {
		n, err := a.taskSvc.ExtendOwner(ctx, owner, through)
		if err != nil {
			return fmt.Errorf("extend owner %d: %w", owner, err)
		}
		created += n
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Extended %d users through %s, %d new instances\n", len(owners), through, created)
	return nil
}
