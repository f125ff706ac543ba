// Package output renders run reports and ticket previews for the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/danielolaszy/lqasync/pkg/models"
)

// UI writes colored messages and tables.
type UI struct {
	Out    io.Writer
	ErrOut io.Writer
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
)

// StatusColor returns the item status colored by outcome.
func StatusColor(status models.ItemStatus) string {
	s := string(status)
	switch status {
	case models.StatusSuccess:
		return green(s)
	case models.StatusSkipped:
		return yellow(s)
	case models.StatusError:
		return red(s)
	default:
		return s
	}
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

// Report prints one row per evaluated item followed by the run totals.
func (u *UI) Report(report *models.RunReport) {
	if report.FatalError != "" {
		u.Error("run failed: %s", report.FatalError)
	}

	if len(report.Items) == 0 {
		if report.FatalError == "" {
			u.Info("No ready items found")
		}
		return
	}

	table := u.Table([]string{"Item", "Name", "Status", "Ticket", "Detail"})
	for _, r := range report.Items {
		ticket := r.TicketKey
		if ticket == "" {
			ticket = r.TicketURL
		}
		_ = table.Append([]string{
			r.ItemID,
			truncate(r.ItemName, 48),
			StatusColor(r.Status),
			cyan(ticket),
			detail(r),
		})
	}
	_ = table.Render()

	fmt.Fprintln(u.Out)
	summary := fmt.Sprintf("%d created, %d skipped, %d errors (%s)",
		report.Processed, report.Skipped, report.Errored,
		report.FinishedAt.Sub(report.StartedAt).Round(10*time.Millisecond))
	if report.Failed() {
		u.Warning("%s", summary)
		return
	}
	u.Success("%s", summary)
}

// Preview prints a mapped ticket payload.
func (u *UI) Preview(payload *models.TicketPayload) {
	table := u.Table([]string{"Field", "Value"})
	_ = table.Append([]string{"Project", cyan(payload.ProjectKey)})
	_ = table.Append([]string{"Summary", payload.Summary})
	_ = table.Append([]string{"Issue type", payload.IssueType})
	_ = table.Append([]string{"Priority", payload.Priority})
	_ = table.Append([]string{"Labels", strings.Join(payload.Labels, ", ")})
	reporter := payload.ReporterEmail
	if reporter == "" {
		reporter = "-"
	}
	_ = table.Append([]string{"Reporter", reporter})
	_ = table.Render()

	fmt.Fprintln(u.Out)
	fmt.Fprintln(u.Out, payload.Description.String())
}

// JSON writes v as indented JSON.
func (u *UI) JSON(v any) error {
	enc := json.NewEncoder(u.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func detail(r models.ItemResult) string {
	if r.Reason != "" {
		return r.Reason
	}
	return r.Error
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
