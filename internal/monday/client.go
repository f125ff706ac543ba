// Package monday reads and updates board items through the Monday.com
// GraphQL API.
package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/danielolaszy/lqasync/internal/config"
	"github.com/danielolaszy/lqasync/internal/logging"
	"github.com/danielolaszy/lqasync/pkg/models"
)

const (
	// defaultTimeout is the default HTTP request timeout.
	defaultTimeout = 30 * time.Second

	// DefaultPageSize is the largest page items_page accepts.
	DefaultPageSize = 500

	// updatesPerItem bounds how many updates are fetched per item.
	updatesPerItem = 5
)

// ErrItemNotFound is returned when the board has no item with the given id.
var ErrItemNotFound = errors.New("item not found")

// itemFields selects everything the sync needs from an item.
const itemFields = `
	id
	name
	board { id }
	parent_item { id name }
	column_values { id text value type }
	updates(limit: %d) { id body created_at }
`

// Client handles interactions with the Monday API.
type Client struct {
	apiURL     string
	token      string
	pageSize   int
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPageSize sets the items_page limit.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewClient creates a board client. The API token is required.
func NewClient(cfg config.MondayConfig, opts ...Option) (*Client, error) {
	if cfg.Token == "" {
		return nil, &config.ConfigurationError{Missing: []string{"MONDAY_API_TOKEN"}}
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = config.DefaultMondayAPIURL
	}

	c := &Client{
		apiURL:   apiURL,
		token:    cfg.Token,
		pageSize: DefaultPageSize,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	logging.Debug("monday client initialized",
		"api_url", apiURL,
		"token", logging.MaskSensitive(cfg.Token))

	return c, nil
}

// graphQLRequest is the body of a GraphQL call.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// execute runs a GraphQL operation and returns its data member.
func (c *Client) execute(ctx context.Context, query string, variables map[string]any) (gjson.Result, error) {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to call monday api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gjson.Result{}, fmt.Errorf("monday api returned %d: %s", resp.StatusCode, truncate(string(respBody), 300))
	}
	if !gjson.ValidBytes(respBody) {
		return gjson.Result{}, fmt.Errorf("monday api returned invalid JSON")
	}

	result := gjson.ParseBytes(respBody)
	if errs := result.Get("errors"); errs.Exists() && len(errs.Array()) > 0 {
		var msgs []string
		for _, e := range errs.Array() {
			msgs = append(msgs, e.Get("message").String())
		}
		return gjson.Result{}, fmt.Errorf("monday api error: %s", strings.Join(msgs, "; "))
	}
	if msg := result.Get("error_message").String(); msg != "" {
		return gjson.Result{}, fmt.Errorf("monday api error: %s", msg)
	}

	return result.Get("data"), nil
}

// FetchItem returns one item with its columns, updates and parent reference.
func (c *Client) FetchItem(ctx context.Context, itemID string) (*models.Item, error) {
	query := fmt.Sprintf(`query ($itemId: ID!) { items(ids: [$itemId]) { %s } }`,
		fmt.Sprintf(itemFields, updatesPerItem))

	data, err := c.execute(ctx, query, map[string]any{"itemId": itemID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item %s: %w", itemID, err)
	}

	items := data.Get("items").Array()
	if len(items) == 0 {
		return nil, fmt.Errorf("item %s: %w", itemID, ErrItemNotFound)
	}

	item := decodeItem(items[0])
	return &item, nil
}

// FetchItemsByBoard returns every item on a board, following the
// items_page cursor until it is exhausted.
func (c *Client) FetchItemsByBoard(ctx context.Context, boardID string) ([]models.Item, error) {
	fields := fmt.Sprintf(itemFields, updatesPerItem)
	first := fmt.Sprintf(`query ($boardId: ID!, $limit: Int!) {
		boards(ids: [$boardId]) { items_page(limit: $limit) { cursor items { %s } } }
	}`, fields)
	next := fmt.Sprintf(`query ($cursor: String!, $limit: Int!) {
		next_items_page(cursor: $cursor, limit: $limit) { cursor items { %s } }
	}`, fields)

	data, err := c.execute(ctx, first, map[string]any{"boardId": boardID, "limit": c.pageSize})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch board %s: %w", boardID, err)
	}

	boards := data.Get("boards").Array()
	if len(boards) == 0 {
		return nil, fmt.Errorf("board %s not found", boardID)
	}

	page := boards[0].Get("items_page")
	var items []models.Item
	for {
		for _, raw := range page.Get("items").Array() {
			items = append(items, decodeItem(raw))
		}

		cursor := page.Get("cursor").String()
		if cursor == "" {
			break
		}

		logging.Debug("fetching next items page",
			"board_id", boardID,
			"fetched", len(items))

		data, err = c.execute(ctx, next, map[string]any{"cursor": cursor, "limit": c.pageSize})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch board %s: %w", boardID, err)
		}
		page = data.Get("next_items_page")
	}

	logging.Debug("fetched board items",
		"board_id", boardID,
		"count", len(items))

	return items, nil
}

// ChangeColumnValue writes one column of an item. Strings are sent as they
// are; any other value is JSON-encoded first.
func (c *Client) ChangeColumnValue(ctx context.Context, boardID, itemID, columnID string, value any) error {
	var encoded string
	switch v := value.(type) {
	case string:
		encoded = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode value for column %s: %w", columnID, err)
		}
		encoded = string(b)
	}

	const mutation = `mutation ($boardId: ID!, $itemId: ID!, $columnId: String!, $value: JSON!) {
		change_column_value(board_id: $boardId, item_id: $itemId, column_id: $columnId, value: $value) { id }
	}`

	_, err := c.execute(ctx, mutation, map[string]any{
		"boardId":  boardID,
		"itemId":   itemID,
		"columnId": columnID,
		"value":    encoded,
	})
	if err != nil {
		return fmt.Errorf("failed to update column %s of item %s: %w", columnID, itemID, err)
	}

	logging.Debug("updated column",
		"board_id", boardID,
		"item_id", itemID,
		"column_id", columnID)

	return nil
}

// UserEmail resolves a board user id to the user's email address.
func (c *Client) UserEmail(ctx context.Context, userID string) (string, error) {
	const query = `query ($ids: [ID!]) { users(ids: $ids) { email } }`

	data, err := c.execute(ctx, query, map[string]any{"ids": []string{userID}})
	if err != nil {
		return "", fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}

	email := data.Get("users.0.email").String()
	if email == "" {
		return "", fmt.Errorf("user %s has no email", userID)
	}
	return email, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
