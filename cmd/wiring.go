// Package cmd provides the command-line interface for lqasync.
package cmd

import (
	"fmt"

	"github.com/danielolaszy/lqasync/internal/classify"
	"github.com/danielolaszy/lqasync/internal/config"
	"github.com/danielolaszy/lqasync/internal/jira"
	"github.com/danielolaszy/lqasync/internal/logging"
	"github.com/danielolaszy/lqasync/internal/mapper"
	"github.com/danielolaszy/lqasync/internal/monday"
	"github.com/danielolaszy/lqasync/internal/syncer"
	"github.com/danielolaszy/lqasync/internal/waiter"
)

// loadClassifier builds the classification engine, reading the rule table
// from LABEL_RULES_FILE when one is configured.
func loadClassifier(cfg *config.Config) (*classify.Engine, error) {
	if cfg.Sync.LabelRulesFile == "" {
		return classify.NewEngine(nil), nil
	}
	table, err := classify.LoadRulesFile(cfg.Sync.LabelRulesFile)
	if err != nil {
		return nil, err
	}
	logging.Info("loaded label rules",
		"path", cfg.Sync.LabelRulesFile,
		"categories", len(table.Categories()))
	return classify.NewEngine(table), nil
}

// newMapper creates a mapper for the configured board. The interactive paths
// rewrite first-person item names; the batch path keeps them.
func newMapper(cfg *config.Config, impersonal bool) (*mapper.Mapper, error) {
	classifier, err := loadClassifier(cfg)
	if err != nil {
		return nil, err
	}
	return mapper.New(classifier, cfg.Monday.Columns,
		mapper.WithIssueType(cfg.Jira.IssueType),
		mapper.WithImpersonal(impersonal),
	), nil
}

func newBoard(cfg *config.Config) (*monday.Client, error) {
	if err := config.ValidateMondayConfig(cfg); err != nil {
		return nil, err
	}
	return monday.NewClient(cfg.Monday)
}

func newTracker(cfg *config.Config) (*jira.Client, error) {
	client, err := jira.NewClient(cfg.Jira)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jira client: %w", err)
	}
	return client, nil
}

// newDirectEngine wires the batch path: tickets are created through the
// Jira API and the link is written back by the engine.
func newDirectEngine(cfg *config.Config, dryRun bool) (*syncer.Engine, error) {
	board, err := newBoard(cfg)
	if err != nil {
		return nil, err
	}
	m, err := newMapper(cfg, false)
	if err != nil {
		return nil, err
	}

	settings := syncer.SettingsFromConfig(cfg)
	settings.DryRun = dryRun

	var tracker syncer.Tracker
	baseURL := cfg.Jira.BaseURL
	if !dryRun {
		client, err := newTracker(cfg)
		if err != nil {
			return nil, err
		}
		tracker = client
		baseURL = client.BaseURL()
	}

	return syncer.NewEngine(board, m, syncer.NewDirectCreator(tracker, baseURL), settings), nil
}

// newRequestEngine wires the interactive path: a ticket request is written
// to the board and the automation's link is awaited.
func newRequestEngine(cfg *config.Config, board syncer.Board) (*syncer.Engine, error) {
	if err := config.ValidatePolling(cfg); err != nil {
		return nil, err
	}
	m, err := newMapper(cfg, true)
	if err != nil {
		return nil, err
	}

	settings := syncer.SettingsFromConfig(cfg)
	w := waiter.New(cfg.Sync.PollInterval, cfg.Sync.PollTimeout)
	creator := syncer.NewRequestCreator(board, w, settings, syncer.DefaultLinkMarker)

	return syncer.NewEngine(board, m, creator, settings), nil
}
