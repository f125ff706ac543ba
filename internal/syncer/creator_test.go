package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/lqasync/internal/mapper"
	"github.com/danielolaszy/lqasync/internal/waiter"
	"github.com/danielolaszy/lqasync/pkg/models"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// stepTimer fires at once after moving the clock forward.
type stepTimer struct {
	clock *stepClock
	ch    chan time.Time
}

func (t *stepTimer) Start(d time.Duration) {
	t.clock.mu.Lock()
	t.clock.now = t.clock.now.Add(d)
	t.clock.mu.Unlock()
	t.ch <- t.clock.Now()
}

func (t *stepTimer) Stop() {}

func (t *stepTimer) C() <-chan time.Time { return t.ch }

func newInstantWaiter(timeout time.Duration) *waiter.Waiter {
	clock := &stepClock{now: time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)}
	return waiter.New(3*time.Second, timeout,
		waiter.WithClock(clock),
		waiter.WithTimer(func() backoff.Timer {
			return &stepTimer{clock: clock, ch: make(chan time.Time, 1)}
		}),
	)
}

// requestBoard simulates the automation: the link appears after linkAfter
// lookups of the subitem.
func requestBoard(linkAfter int) (*MockBoard, *int) {
	lookups := 0
	board := newTestBoard()
	board.FetchItemFunc = func(ctx context.Context, itemID string) (*models.Item, error) {
		if itemID == "100" {
			return testParent(), nil
		}
		lookups++
		item := readyItem(itemID, "Polled")
		if linkAfter >= 0 && lookups > linkAfter {
			item.Columns = append(item.Columns, models.ColumnValue{
				ID:   "ticket_link",
				Raw:  `{"url":"https://wix.atlassian.net/browse/DOM2-6742","text":"DOM2-6742"}`,
				Kind: models.KindLink,
				Link: &models.Link{URL: "https://wix.atlassian.net/browse/DOM2-6742", Text: "DOM2-6742"},
			})
		}
		return &item, nil
	}
	return board, &lookups
}

func TestRequestCreatorWaitsForLink(t *testing.T) {
	board, lookups := requestBoard(2)
	creator := NewRequestCreator(board, newInstantWaiter(time.Minute), testSettings, "")
	engine := NewEngine(board, mapper.New(nil, testSettings.Columns, mapper.WithImpersonal(true)), creator, testSettings)

	item := readyItem("200", "I see text cut off")
	result := engine.ProcessItem(context.Background(), &item)

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, "DOM2-6742", result.TicketKey)
	assert.Equal(t, "https://wix.atlassian.net/browse/DOM2-6742", result.TicketURL)
	assert.Equal(t, 3, *lookups)

	// request written, link left to the automation, status updated
	require.Len(t, board.Writes, 2)
	assert.Equal(t, "request", board.Writes[0].ColumnID)
	assert.Equal(t, "status", board.Writes[1].ColumnID)
	assert.Equal(t, models.StatusValue{Label: "Jira Created"}, board.Writes[1].Value)

	doc, ok := board.Writes[0].Value.(models.LongTextValue)
	require.True(t, ok)

	var req TicketRequest
	require.NoError(t, json.Unmarshal([]byte(doc.Text), &req))
	assert.Equal(t, "DOM2", req.ProjectKey)
	assert.Equal(t, "[LOC] Checkout LQA - Text cut off", req.Summary)
	assert.Equal(t, "200", req.SubitemID)
	assert.Equal(t, "18393273008", req.BoardID)
	assert.Equal(t, "Bug", req.IssueType)
	assert.NotEmpty(t, req.Labels)
	require.NotNil(t, req.ReporterEmail)
	assert.Equal(t, "dana@example.com", *req.ReporterEmail)
}

func TestRequestCreatorTimesOut(t *testing.T) {
	board, lookups := requestBoard(-1)
	creator := NewRequestCreator(board, newInstantWaiter(30*time.Second), testSettings, "")
	engine := NewEngine(board, mapper.New(nil, testSettings.Columns), creator, testSettings)

	item := readyItem("201", "Never linked")
	result := engine.ProcessItem(context.Background(), &item)

	assert.Equal(t, models.StatusError, result.Status)
	assert.Equal(t, ErrCreationPending.Error(), result.Reason)
	assert.Contains(t, result.Error, "check the automation")
	assert.Empty(t, result.TicketKey)
	assert.Equal(t, 10, *lookups)

	// only the request was written
	require.Len(t, board.Writes, 1)
	assert.Equal(t, "request", board.Writes[0].ColumnID)
}

func TestRequestCreatorIgnoresForeignLinks(t *testing.T) {
	board := newTestBoard()
	board.FetchItemFunc = func(ctx context.Context, itemID string) (*models.Item, error) {
		item := readyItem(itemID, "Foreign")
		item.Columns = append(item.Columns, models.ColumnValue{
			ID:   "ticket_link",
			Kind: models.KindLink,
			Link: &models.Link{URL: "https://example.com/ticket/1"},
		})
		return &item, nil
	}
	creator := NewRequestCreator(board, newInstantWaiter(6*time.Second), testSettings, "")

	payload := &models.TicketPayload{ProjectKey: "DOM2", Summary: "s", IssueType: "Bug", Labels: []string{"Productloc-bug"}}
	item := readyItem("202", "Foreign")
	_, err := creator.Create(context.Background(), &item, payload)

	assert.ErrorIs(t, err, ErrCreationPending)
}

func TestRequestCreatorWriteFailure(t *testing.T) {
	board := newTestBoard()
	board.ChangeColumnValueFunc = func(ctx context.Context, boardID, itemID, columnID string, value any) error {
		return errors.New("column not found")
	}
	creator := NewRequestCreator(board, newInstantWaiter(time.Minute), testSettings, "")

	payload := &models.TicketPayload{ProjectKey: "DOM2", Summary: "s", IssueType: "Bug", Labels: []string{"Productloc-bug"}}
	item := readyItem("203", "Unwritable")
	_, err := creator.Create(context.Background(), &item, payload)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write ticket request")
	assert.NotErrorIs(t, err, ErrCreationPending)
}

func TestNewTicketRequestNullReporter(t *testing.T) {
	item := &models.Item{ID: "200"}
	payload := &models.TicketPayload{
		ProjectKey: "DOM2",
		Summary:    "[LOC] Checkout LQA - Text cut off",
		IssueType:  "Bug",
		Priority:   "High",
		Labels:     []string{"Productloc-bug"},
	}

	doc, err := json.Marshal(NewTicketRequest(item, "18393273008", payload))
	require.NoError(t, err)

	description, err := json.Marshal(payload.Description.String())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"projectKey": "DOM2",
		"summary": "[LOC] Checkout LQA - Text cut off",
		"description": `+string(description)+`,
		"issueType": "Bug",
		"priority": "High",
		"labels": ["Productloc-bug"],
		"reporterEmail": null,
		"subitemId": "200",
		"boardId": "18393273008"
	}`, string(doc))
}

func TestDirectCreatorFillsBrowseURL(t *testing.T) {
	testCases := []struct {
		name     string
		created  *models.CreatedIssue
		expected string
	}{
		{
			name:     "Tracker without URL",
			created:  &models.CreatedIssue{Key: "DOM2-7", ID: "10007"},
			expected: "https://wix.atlassian.net/browse/DOM2-7",
		},
		{
			name:     "Tracker URL kept",
			created:  &models.CreatedIssue{Key: "DOM2-8", URL: "https://other/browse/DOM2-8"},
			expected: "https://other/browse/DOM2-8",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tracker := &MockTracker{
				CreateIssueFunc: func(ctx context.Context, payload *models.TicketPayload) (*models.CreatedIssue, error) {
					return tc.created, nil
				},
			}
			creator := NewDirectCreator(tracker, "https://wix.atlassian.net/")

			created, err := creator.Create(context.Background(), &models.Item{ID: "1"}, &models.TicketPayload{})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, created.URL)
		})
	}
}
