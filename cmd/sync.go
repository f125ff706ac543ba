package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/lqasync/internal/config"
	"github.com/danielolaszy/lqasync/internal/logging"
)

// ErrRunFailed is returned when a run finished with item errors or a fatal
// error. The report has already been printed.
var ErrRunFailed = errors.New("synchronization finished with errors")

// syncCmd is the scheduled batch runner.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Create Jira tickets for every ready item on the board",
	Long: `Create Jira tickets for every board subitem whose status is the ready status.

For each ready subitem the command:

1. Skips it when the link column already holds a ticket link
2. Derives the Jira project from the parent item's Jira link
3. Classifies the finding into labels and builds the ticket
4. Creates the ticket and writes the link and the created status back

The command exits non-zero when any item failed, so it can run from cron.

Example:
  lqasync sync --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, err := cmd.Flags().GetBool("dry-run")
		if err != nil {
			return err
		}
		asJSON, err := cmd.Flags().GetBool("json")
		if err != nil {
			return err
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		engine, err := newDirectEngine(cfg, dryRun)
		if err != nil {
			return err
		}

		report := engine.Run(cmd.Context())

		if asJSON {
			if err := ui.JSON(report); err != nil {
				return err
			}
		} else {
			ui.Report(report)
		}

		if report.Failed() {
			logging.Error("synchronization failed",
				"errors", report.Errored,
				"fatal_error", report.FatalError)
			return ErrRunFailed
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("dry-run", false, "Map ready items and report without creating tickets")
	syncCmd.Flags().Bool("json", false, "Print the run report as JSON")
}
