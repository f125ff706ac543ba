package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/lqasync/internal/config"
)

// classifyCmd runs the label classification on ad-hoc input.
var classifyCmd = &cobra.Command{
	Use:   "classify <category> <title> [description]",
	Short: "Print the labels a finding would get",
	Long: `Print the labels a finding would get. The category is the board's "Type of
Issue" value, matched case-insensitively and with its known aliases.

Example:
  lqasync classify "UI issue" "Fix login button" "button not working"`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		classifier, err := loadClassifier(cfg)
		if err != nil {
			return err
		}

		description := ""
		if len(args) == 3 {
			description = args[2]
		}

		labels := classifier.Classify(args[0], args[1], description)
		fmt.Fprintln(ui.Out, strings.Join(labels, "\n"))
		return nil
	},
}
