// Package syncer drives one synchronization run: it discovers board items
// marked ready, creates a ticket for each unlinked one and writes the result
// back to the board.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielolaszy/lqasync/internal/config"
	"github.com/danielolaszy/lqasync/internal/logging"
	"github.com/danielolaszy/lqasync/internal/mapper"
	"github.com/danielolaszy/lqasync/internal/waiter"
	"github.com/danielolaszy/lqasync/pkg/models"
)

// Result reasons recorded on the run report.
const (
	ReasonAlreadyLinked = "already linked"
	ReasonNoParent      = "no parent: cannot determine project"
	ReasonDryRun        = "dry run"
)

// Board is the work board the items live on.
type Board interface {
	FetchItem(ctx context.Context, itemID string) (*models.Item, error)
	FetchItemsByBoard(ctx context.Context, boardID string) ([]models.Item, error)
	ChangeColumnValue(ctx context.Context, boardID, itemID, columnID string, value any) error
	UserEmail(ctx context.Context, userID string) (string, error)
}

// Tracker is the issue tracker tickets are created in.
type Tracker interface {
	CreateIssue(ctx context.Context, payload *models.TicketPayload) (*models.CreatedIssue, error)
}

// Settings are the board coordinates and workflow values of a run.
type Settings struct {
	BoardID       string
	Columns       config.ColumnConfig
	ReadyStatus   string
	CreatedStatus string
	DryRun        bool
}

// SettingsFromConfig extracts the run settings from the application config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		BoardID:       cfg.Monday.BoardID,
		Columns:       cfg.Monday.Columns,
		ReadyStatus:   cfg.Sync.ReadyStatus,
		CreatedStatus: cfg.Sync.CreatedStatus,
	}
}

// Engine coordinates discovery, the duplicate guard, mapping, creation and
// write-back. Items are processed one at a time; the board is the only state
// shared between runs.
type Engine struct {
	board    Board
	mapper   *mapper.Mapper
	creator  Creator
	settings Settings
	now      func() time.Time
}

// NewEngine creates an engine that creates tickets through creator.
func NewEngine(board Board, m *mapper.Mapper, creator Creator, settings Settings) *Engine {
	return &Engine{
		board:    board,
		mapper:   m,
		creator:  creator,
		settings: settings,
		now:      time.Now,
	}
}

// Run evaluates every ready item on the board and returns the run report. A
// discovery failure is recorded as the report's fatal error and ends the run.
func (e *Engine) Run(ctx context.Context) *models.RunReport {
	report := &models.RunReport{StartedAt: e.now()}
	defer func() { report.FinishedAt = e.now() }()

	logging.Info("starting synchronization",
		"board_id", e.settings.BoardID,
		"ready_status", e.settings.ReadyStatus,
		"dry_run", e.settings.DryRun)

	items, err := e.board.FetchItemsByBoard(ctx, e.settings.BoardID)
	if err != nil {
		logging.Error("failed to discover items",
			"board_id", e.settings.BoardID,
			"error", err)
		report.FatalError = err.Error()
		return report
	}

	var candidates []models.Item
	for _, item := range items {
		if item.ColumnText(e.settings.Columns.Status) == e.settings.ReadyStatus {
			candidates = append(candidates, item)
		}
	}

	logging.Info("found ready items",
		"ready_count", len(candidates),
		"total_count", len(items))

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			report.FatalError = fmt.Sprintf("run interrupted: %v", err)
			break
		}
		report.Add(e.ProcessItem(ctx, &candidates[i]))
	}

	logging.Info("synchronization complete",
		"processed", report.Processed,
		"skipped", report.Skipped,
		"errors", report.Errored)

	return report
}

// ProcessItem runs the guard, mapping, creation and write-back steps for one
// item. Failures are returned in the result, never raised.
func (e *Engine) ProcessItem(ctx context.Context, item *models.Item) models.ItemResult {
	result := models.ItemResult{
		ItemID:   item.ID,
		ItemName: item.Name,
	}

	logging.Debug("processing item",
		"item_id", item.ID,
		"name", item.Name)

	if url := LinkedURL(item, e.settings.Columns.Link); url != "" {
		logging.Info("skipping item with existing ticket link",
			"item_id", item.ID,
			"url", url)
		result.Status = models.StatusSkipped
		result.Reason = ReasonAlreadyLinked
		result.TicketURL = url
		return result
	}

	if item.Parent == nil || item.Parent.ID == "" {
		return e.fail(result, ReasonNoParent, mapper.ErrMissingParent)
	}

	parent, err := e.board.FetchItem(ctx, item.Parent.ID)
	if err != nil {
		return e.fail(result, "", fmt.Errorf("failed to fetch parent item: %w", err))
	}

	payload, err := e.mapper.BuildPayload(item, parent)
	if err != nil {
		return e.fail(result, "", err)
	}
	e.resolveReporter(ctx, payload)

	if e.settings.DryRun {
		logging.Info("dry run: would create ticket",
			"item_id", item.ID,
			"project_key", payload.ProjectKey,
			"summary", payload.Summary,
			"labels", payload.Labels)
		result.Status = models.StatusSkipped
		result.Reason = fmt.Sprintf("%s: would create in %s with labels %v", ReasonDryRun, payload.ProjectKey, payload.Labels)
		return result
	}

	created, err := e.creator.Create(ctx, item, payload)
	if err != nil {
		reason := ""
		if errors.Is(err, ErrCreationPending) {
			reason = ErrCreationPending.Error()
		}
		return e.fail(result, reason, err)
	}

	e.writeBack(ctx, item, created)

	logging.Info("created ticket",
		"item_id", item.ID,
		"key", created.Key,
		"url", created.URL)

	result.Status = models.StatusSuccess
	result.TicketKey = created.Key
	result.TicketURL = created.URL
	return result
}

func (e *Engine) fail(result models.ItemResult, reason string, err error) models.ItemResult {
	logging.Error("failed to process item",
		"item_id", result.ItemID,
		"error", err)
	result.Status = models.StatusError
	result.Reason = reason
	result.Error = err.Error()
	return result
}

// resolveReporter fills the reporter email from the board user id. Failure
// leaves the email empty.
func (e *Engine) resolveReporter(ctx context.Context, payload *models.TicketPayload) {
	if payload.ReporterID == "" || payload.ReporterEmail != "" {
		return
	}
	email, err := e.board.UserEmail(ctx, payload.ReporterID)
	if err != nil {
		logging.Warn("failed to resolve reporter email",
			"user_id", payload.ReporterID,
			"error", err)
		return
	}
	payload.ReporterEmail = email
}

// writeBack records the ticket on the item. Both writes are best-effort: the
// ticket exists already, so a failure is logged and the item still succeeds.
func (e *Engine) writeBack(ctx context.Context, item *models.Item, created *models.CreatedIssue) {
	boardID := e.boardFor(item)

	if !writesOwnLink(e.creator) {
		link := models.LinkValue{URL: created.URL, Text: created.Key}
		if err := e.board.ChangeColumnValue(ctx, boardID, item.ID, e.settings.Columns.Link, link); err != nil {
			logging.Error("failed to write ticket link back",
				"item_id", item.ID,
				"key", created.Key,
				"error", err)
		}
	}

	status := models.StatusValue{Label: e.settings.CreatedStatus}
	if err := e.board.ChangeColumnValue(ctx, boardID, item.ID, e.settings.Columns.Status, status); err != nil {
		logging.Error("failed to update item status",
			"item_id", item.ID,
			"status", e.settings.CreatedStatus,
			"error", err)
	}
}

func (e *Engine) boardFor(item *models.Item) string {
	if item.BoardID != "" {
		return item.BoardID
	}
	return e.settings.BoardID
}

// LinkedURL returns the ticket URL already recorded in the item's link
// column, or "" when there is none.
func LinkedURL(item *models.Item, linkColumn string) string {
	col, ok := item.Column(linkColumn)
	if !ok {
		return ""
	}
	if u := col.URL(); u != "" {
		return u
	}
	return waiter.ExtractLink(col.Raw, col.Text)
}
