package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/lqasync/internal/config"
	"github.com/danielolaszy/lqasync/pkg/models"
)

// requestCmd runs the interactive path for one subitem from a terminal.
var requestCmd = &cobra.Command{
	Use:   "request <itemId>",
	Short: "Request a ticket for one subitem through the board automation",
	Long: `Write a ticket request onto a subitem and wait for the board automation to
post the Jira link back. The wait is bounded by POLL_TIMEOUT and checks every
POLL_INTERVAL. When the link does not appear in time the automation may still
create the ticket later.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		board, err := newBoard(cfg)
		if err != nil {
			return err
		}
		engine, err := newRequestEngine(cfg, board)
		if err != nil {
			return err
		}

		item, err := board.FetchItem(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch item %s: %w", args[0], err)
		}

		result := engine.ProcessItem(cmd.Context(), item)
		switch result.Status {
		case models.StatusSuccess:
			ui.Success("Created %s: %s", result.TicketKey, result.TicketURL)
		case models.StatusSkipped:
			ui.Info("Skipped %s: %s", item.Name, result.Reason)
		default:
			if result.Reason != "" {
				return errors.New(result.Reason)
			}
			return errors.New(result.Error)
		}
		return nil
	},
}
