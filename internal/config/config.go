// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for the Localization QA board.
const (
	DefaultMondayAPIURL   = "https://api.monday.com/v2"
	DefaultBoardID        = "18393273008"
	DefaultReadyStatus    = "Ready for Jira"
	DefaultCreatedStatus  = "Jira Created"
	DefaultIssueType      = "Bug"
	DefaultPollInterval   = 3 * time.Second
	DefaultPollTimeout    = 2 * time.Minute
	DefaultServerPort     = "3000"
	defaultTrackerBaseURL = "https://wix.atlassian.net"
)

// Config holds all configuration parameters for the application.
type Config struct {
	Monday MondayConfig
	Jira   JiraConfig
	Sync   SyncConfig
	Server ServerConfig
}

// MondayConfig holds board specific configuration.
type MondayConfig struct {
	APIURL  string
	Token   string
	BoardID string
	Columns ColumnConfig
}

// ColumnConfig holds the board column identifiers the sync reads and writes.
type ColumnConfig struct {
	// Status is the subitem "Report to dev" status column
	Status string
	// Link is the subitem column the ticket link is written back to
	Link string
	// ParentLink is the parent item's Jira link, used to derive the project key
	ParentLink string
	// Category is the subitem "Type of Issue" column
	Category string
	// Language is the subitem affected-languages dropdown
	Language string
	// Priority is the subitem priority column
	Priority string
	// Request is the long text column an automation watches for ticket requests
	Request string
	// Person is the parent item's people column used as reporter
	Person string
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	BaseURL   string
	Email     string
	Token     string
	IssueType string
}

// SyncConfig holds the orchestration settings.
type SyncConfig struct {
	ReadyStatus    string
	CreatedStatus  string
	PollInterval   time.Duration
	PollTimeout    time.Duration
	LabelRulesFile string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string
}

// ConfigurationError reports missing or invalid configuration. It is fatal to
// the whole run and raised before any board access.
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required environment variables: %v", e.Missing))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("invalid configuration: %v", e.Invalid))
	}
	return strings.Join(parts, "; ")
}

func (e *ConfigurationError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

// LoadConfig initializes and loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindings := map[string]string{
		"monday.api_url":        "MONDAY_API_URL",
		"monday.token":          "MONDAY_API_TOKEN",
		"monday.board_id":       "MONDAY_BOARD_ID",
		"columns.status":        "MONDAY_STATUS_COLUMN_ID",
		"columns.link":          "MONDAY_LINK_COLUMN_ID",
		"columns.parent_link":   "MONDAY_PARENT_LINK_COLUMN_ID",
		"columns.category":      "MONDAY_CATEGORY_COLUMN_ID",
		"columns.language":      "MONDAY_LANGUAGE_COLUMN_ID",
		"columns.priority":      "MONDAY_PRIORITY_COLUMN_ID",
		"columns.request":       "MONDAY_REQUEST_COLUMN_ID",
		"columns.person":        "MONDAY_PERSON_COLUMN_ID",
		"jira.base_url":         "JIRA_BASE_URL",
		"jira.email":            "JIRA_EMAIL",
		"jira.token":            "JIRA_API_TOKEN",
		"jira.issue_type":       "JIRA_ISSUE_TYPE",
		"sync.ready_status":     "STATUS_READY",
		"sync.created_status":   "STATUS_CREATED",
		"sync.poll_interval":    "POLL_INTERVAL",
		"sync.poll_timeout":     "POLL_TIMEOUT",
		"sync.label_rules_file": "LABEL_RULES_FILE",
		"server.port":           "PORT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	v.SetDefault("monday.api_url", DefaultMondayAPIURL)
	v.SetDefault("monday.board_id", DefaultBoardID)
	v.SetDefault("columns.status", "color_mkz23qay")
	v.SetDefault("columns.link", "link_mkz21j9b")
	v.SetDefault("columns.parent_link", "link_mkz3e37y")
	v.SetDefault("columns.category", "color_mkz2tbex")
	v.SetDefault("columns.language", "dropdown_mkz29ax2")
	v.SetDefault("columns.priority", "color_mkz4hv6s")
	v.SetDefault("columns.request", "long_text_mm0cavf7")
	v.SetDefault("columns.person", "person")
	v.SetDefault("jira.base_url", defaultTrackerBaseURL)
	v.SetDefault("jira.issue_type", DefaultIssueType)
	v.SetDefault("sync.ready_status", DefaultReadyStatus)
	v.SetDefault("sync.created_status", DefaultCreatedStatus)
	v.SetDefault("sync.poll_interval", DefaultPollInterval)
	v.SetDefault("sync.poll_timeout", DefaultPollTimeout)
	v.SetDefault("server.port", DefaultServerPort)

	config := &Config{
		Monday: MondayConfig{
			APIURL:  v.GetString("monday.api_url"),
			Token:   v.GetString("monday.token"),
			BoardID: v.GetString("monday.board_id"),
			Columns: ColumnConfig{
				Status:     v.GetString("columns.status"),
				Link:       v.GetString("columns.link"),
				ParentLink: v.GetString("columns.parent_link"),
				Category:   v.GetString("columns.category"),
				Language:   v.GetString("columns.language"),
				Priority:   v.GetString("columns.priority"),
				Request:    v.GetString("columns.request"),
				Person:     v.GetString("columns.person"),
			},
		},
		Jira: JiraConfig{
			BaseURL:   strings.TrimSuffix(v.GetString("jira.base_url"), "/"),
			Email:     v.GetString("jira.email"),
			Token:     v.GetString("jira.token"),
			IssueType: v.GetString("jira.issue_type"),
		},
		Sync: SyncConfig{
			ReadyStatus:    v.GetString("sync.ready_status"),
			CreatedStatus:  v.GetString("sync.created_status"),
			PollInterval:   v.GetDuration("sync.poll_interval"),
			PollTimeout:    v.GetDuration("sync.poll_timeout"),
			LabelRulesFile: v.GetString("sync.label_rules_file"),
		},
		Server: ServerConfig{
			Port: v.GetString("server.port"),
		},
	}

	return config, nil
}

// ValidateMondayConfig validates board-specific configuration.
func ValidateMondayConfig(config *Config) error {
	cerr := &ConfigurationError{}
	if config.Monday.Token == "" {
		cerr.Missing = append(cerr.Missing, "MONDAY_API_TOKEN")
	}
	if config.Monday.BoardID == "" {
		cerr.Missing = append(cerr.Missing, "MONDAY_BOARD_ID")
	}
	if config.Monday.Columns.Status == "" {
		cerr.Missing = append(cerr.Missing, "MONDAY_STATUS_COLUMN_ID")
	}
	if config.Monday.Columns.Link == "" {
		cerr.Missing = append(cerr.Missing, "MONDAY_LINK_COLUMN_ID")
	}
	if config.Sync.ReadyStatus == "" {
		cerr.Missing = append(cerr.Missing, "STATUS_READY")
	}
	if config.Sync.CreatedStatus == "" {
		cerr.Missing = append(cerr.Missing, "STATUS_CREATED")
	}
	if cerr.empty() {
		return nil
	}
	return cerr
}

// ValidateJiraConfig validates JIRA-specific configuration.
func ValidateJiraConfig(config *Config) error {
	cerr := &ConfigurationError{}
	if config.Jira.BaseURL == "" {
		cerr.Missing = append(cerr.Missing, "JIRA_BASE_URL")
	}
	if config.Jira.Email == "" {
		cerr.Missing = append(cerr.Missing, "JIRA_EMAIL")
	}
	if config.Jira.Token == "" {
		cerr.Missing = append(cerr.Missing, "JIRA_API_TOKEN")
	}
	if cerr.empty() {
		return nil
	}
	return cerr
}

// ValidatePolling validates the completion waiter timings.
func ValidatePolling(config *Config) error {
	cerr := &ConfigurationError{}
	if config.Sync.PollInterval <= 0 {
		cerr.Invalid = append(cerr.Invalid, "POLL_INTERVAL must be positive")
	}
	if config.Sync.PollTimeout < config.Sync.PollInterval {
		cerr.Invalid = append(cerr.Invalid, "POLL_TIMEOUT must not be shorter than POLL_INTERVAL")
	}
	if config.Monday.Columns.Request == "" {
		cerr.Missing = append(cerr.Missing, "MONDAY_REQUEST_COLUMN_ID")
	}
	if cerr.empty() {
		return nil
	}
	return cerr
}
