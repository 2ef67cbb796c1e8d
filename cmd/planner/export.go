package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"recurring-planner/internal/ics"
	"recurring-planner/internal/model"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a user's tasks as iCalendar",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().Int64("telegram-id", 0, "Telegram id of the user")
	exportCmd.Flags().Uint("user", 0, "internal user id")
	exportCmd.Flags().StringP("out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	telegramID, _ := cmd.Flags().GetInt64("telegram-id")
	userID, _ := cmd.Flags().GetUint("user")
	out, _ := cmd.Flags().GetString("out")
	if (telegramID == 0) == (userID == 0) {
		return errors.New("give exactly one of --telegram-id or --user")
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	var user *model.User
	if telegramID != 0 {
		user, err = a.users.FindByTelegramID(ctx, telegramID)
	} else {
		user, err = a.users.FindByID(ctx, userID)
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	tasks, err := a.taskSvc.ListAll(ctx, user.ID)
	if err != nil {
		return err
	}
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return ics.Write(w, tasks, ics.Options{Name: "Planner", Location: loc})
}
