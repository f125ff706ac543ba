package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danielolaszy/lqasync/internal/jira"
	"github.com/danielolaszy/lqasync/internal/logging"
	"github.com/danielolaszy/lqasync/internal/waiter"
	"github.com/danielolaszy/lqasync/pkg/models"
)

// DefaultLinkMarker identifies a tracker URL written back by the automation.
const DefaultLinkMarker = "atlassian.net"

// ErrCreationPending means the ticket request was written but no ticket
// link appeared in time. The automation may still create the ticket later.
var ErrCreationPending = errors.New("timed out waiting for ticket link; check the automation")

// Creator creates the ticket for a mapped item.
type Creator interface {
	Create(ctx context.Context, item *models.Item, payload *models.TicketPayload) (*models.CreatedIssue, error)
}

// writesOwnLink reports whether the ticket link reaches the board without a
// write-back from the engine.
func writesOwnLink(c Creator) bool {
	l, ok := c.(interface{ WritesLink() bool })
	return ok && l.WritesLink()
}

// DirectCreator creates tickets synchronously through the tracker API.
type DirectCreator struct {
	tracker Tracker
	baseURL string
}

// NewDirectCreator creates a DirectCreator. baseURL is used to build browse
// URLs when the tracker does not return one.
func NewDirectCreator(tracker Tracker, baseURL string) *DirectCreator {
	return &DirectCreator{tracker: tracker, baseURL: baseURL}
}

// Create submits the payload to the tracker.
func (c *DirectCreator) Create(ctx context.Context, item *models.Item, payload *models.TicketPayload) (*models.CreatedIssue, error) {
	created, err := c.tracker.CreateIssue(ctx, payload)
	if err != nil {
		return nil, err
	}
	if created.URL == "" {
		created.URL = jira.BrowseURL(c.baseURL, created.Key)
	}
	return created, nil
}

// TicketRequest is the document written to the request column for the
// board automation to turn into a ticket.
type TicketRequest struct {
	ProjectKey    string   `json:"projectKey"`
	Summary       string   `json:"summary"`
	Description   string   `json:"description"`
	IssueType     string   `json:"issueType"`
	Priority      string   `json:"priority"`
	Labels        []string `json:"labels"`
	ReporterEmail *string  `json:"reporterEmail"`
	SubitemID     string   `json:"subitemId"`
	BoardID       string   `json:"boardId"`
}

// NewTicketRequest builds the request document for an item.
func NewTicketRequest(item *models.Item, boardID string, payload *models.TicketPayload) TicketRequest {
	req := TicketRequest{
		ProjectKey:  payload.ProjectKey,
		Summary:     payload.Summary,
		Description: payload.Description.String(),
		IssueType:   payload.IssueType,
		Priority:    payload.Priority,
		Labels:      payload.Labels,
		SubitemID:   item.ID,
		BoardID:     boardID,
	}
	if payload.ReporterEmail != "" {
		email := payload.ReporterEmail
		req.ReporterEmail = &email
	}
	return req
}

// RequestCreator hands creation to a board automation: it writes a ticket
// request onto the item and waits for the automation to fill the link column.
type RequestCreator struct {
	board         Board
	waiter        *waiter.Waiter
	boardID       string
	requestColumn string
	linkColumn    string
	marker        string
}

// NewRequestCreator creates a RequestCreator. An empty marker selects
// DefaultLinkMarker.
func NewRequestCreator(board Board, w *waiter.Waiter, settings Settings, marker string) *RequestCreator {
	if marker == "" {
		marker = DefaultLinkMarker
	}
	return &RequestCreator{
		board:         board,
		waiter:        w,
		boardID:       settings.BoardID,
		requestColumn: settings.Columns.Request,
		linkColumn:    settings.Columns.Link,
		marker:        marker,
	}
}

// WritesLink is true: the automation records the link itself.
func (c *RequestCreator) WritesLink() bool { return true }

// Create writes the ticket request and waits for the link. It returns
// ErrCreationPending when the wait runs out.
func (c *RequestCreator) Create(ctx context.Context, item *models.Item, payload *models.TicketPayload) (*models.CreatedIssue, error) {
	boardID := item.BoardID
	if boardID == "" {
		boardID = c.boardID
	}

	doc, err := json.Marshal(NewTicketRequest(item, boardID, payload))
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket request: %w", err)
	}

	if err := c.board.ChangeColumnValue(ctx, boardID, item.ID, c.requestColumn, models.LongTextValue{Text: string(doc)}); err != nil {
		return nil, fmt.Errorf("failed to write ticket request: %w", err)
	}

	logging.Info("ticket request written, waiting for link",
		"item_id", item.ID,
		"interval", c.waiter.Interval(),
		"timeout", c.waiter.Timeout())

	url, ok := c.waiter.Await(ctx, c.lookupLink(item.ID), waiter.Contains(c.marker))
	if !ok {
		return nil, ErrCreationPending
	}

	return &models.CreatedIssue{
		Key: jira.KeyFromURL(url),
		URL: url,
	}, nil
}

func (c *RequestCreator) lookupLink(itemID string) waiter.LookupFunc {
	return func(ctx context.Context) (string, error) {
		item, err := c.board.FetchItem(ctx, itemID)
		if err != nil {
			return "", err
		}
		return LinkedURL(item, c.linkColumn), nil
	}
}
