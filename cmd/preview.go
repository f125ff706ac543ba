package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/lqasync/internal/config"
	"github.com/danielolaszy/lqasync/internal/logging"
	"github.com/danielolaszy/lqasync/pkg/models"
)

// previewCmd shows the ticket a subitem would produce, without creating it.
var previewCmd = &cobra.Command{
	Use:   "preview <itemId>",
	Short: "Show the ticket a subitem maps to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, err := cmd.Flags().GetBool("json")
		if err != nil {
			return err
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		board, err := newBoard(cfg)
		if err != nil {
			return err
		}
		m, err := newMapper(cfg, false)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		item, err := board.FetchItem(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch item %s: %w", args[0], err)
		}

		var parent *models.Item
		if item.Parent != nil && item.Parent.ID != "" {
			parent, err = board.FetchItem(ctx, item.Parent.ID)
			if err != nil {
				return fmt.Errorf("failed to fetch parent item: %w", err)
			}
		}

		payload, err := m.BuildPayload(item, parent)
		if err != nil {
			ui.Warning("%v", err)
			payload = m.Draft(item, parent)
		}

		if payload.ReporterID != "" {
			email, err := board.UserEmail(ctx, payload.ReporterID)
			if err != nil {
				logging.Warn("failed to resolve reporter email",
					"user_id", payload.ReporterID,
					"error", err)
			}
			payload.ReporterEmail = email
		}

		if asJSON {
			return ui.JSON(payload)
		}
		ui.Preview(payload)
		return nil
	},
}

func init() {
	previewCmd.Flags().Bool("json", false, "Print the payload as JSON")
}
