// Package jira creates tracker tickets through the Jira REST API.
package jira

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	jira "github.com/andygrunwald/go-jira"

	"github.com/danielolaszy/lqasync/internal/config"
	"github.com/danielolaszy/lqasync/internal/logging"
	"github.com/danielolaszy/lqasync/pkg/models"
)

// Client handles interactions with the JIRA API
type Client struct {
	client  *jira.Client
	baseURL string
}

// NewClient creates a new JIRA client authenticated with an account email and
// API token.
func NewClient(cfg config.JiraConfig) (*Client, error) {
	if err := config.ValidateJiraConfig(&config.Config{Jira: cfg}); err != nil {
		return nil, err
	}

	tp := jira.BasicAuthTransport{
		Username: cfg.Email,
		Password: cfg.Token,
	}

	client, err := jira.NewClient(tp.Client(), cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	logging.Debug("jira client initialized",
		"base_url", cfg.BaseURL,
		"email", cfg.Email,
		"token", logging.MaskSensitive(cfg.Token))

	return &Client{
		client:  client,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// CreateIssue creates a ticket from the payload and returns its key and
// browse URL. Priority and reporter are left to the project defaults.
func (c *Client) CreateIssue(ctx context.Context, payload *models.TicketPayload) (*models.CreatedIssue, error) {
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ticket payload: %w", err)
	}

	issue := &jira.Issue{
		Fields: &jira.IssueFields{
			Project: jira.Project{
				Key: payload.ProjectKey,
			},
			Summary:     payload.Summary,
			Description: payload.Description.String(),
			Type: jira.IssueType{
				Name: payload.IssueType,
			},
			Labels: payload.Labels,
		},
	}

	logging.Debug("creating jira issue",
		"project", payload.ProjectKey,
		"issue_type", payload.IssueType,
		"labels", payload.Labels)

	created, resp, err := c.client.Issue.CreateWithContext(ctx, issue)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to create jira issue in %s (status %d): %w", payload.ProjectKey, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to create jira issue in %s: %w", payload.ProjectKey, err)
	}

	logging.Info("created jira issue",
		"key", created.Key,
		"id", created.ID)

	return &models.CreatedIssue{
		Key: created.Key,
		ID:  created.ID,
		URL: BrowseURL(c.baseURL, created.Key),
	}, nil
}

// BaseURL returns the tracker base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BrowseURL returns the web URL of a ticket.
func BrowseURL(baseURL, key string) string {
	return strings.TrimSuffix(baseURL, "/") + "/browse/" + key
}

var browseKeyPattern = regexp.MustCompile(`(?i)/browse/([A-Z][A-Z0-9]*-\d+)`)

// KeyFromURL returns the ticket key of a browse URL, or the URL itself when
// it does not name a ticket.
func KeyFromURL(u string) string {
	if m := browseKeyPattern.FindStringSubmatch(u); m != nil {
		return strings.ToUpper(m[1])
	}
	return u
}
