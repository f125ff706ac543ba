package cmd

import (
	"github.com/spf13/cobra"

	"github.com/danielolaszy/lqasync/internal/output"
)

var ui = output.New()

var rootCmd = &cobra.Command{
	Use:   "lqasync",
	Short: "lqasync turns localization QA findings on a Monday board into Jira tickets",
	Long: `lqasync reads localization QA subitems from a Monday.com board, classifies each
finding into the defect label taxonomy and creates a Jira ticket for it, at most once.
The ticket link and a new status are written back to the board.

Tickets are created either directly through the Jira API (sync) or by handing a
ticket request to a board automation and waiting for it to post the link (request).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(classifyCmd)
}
