package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/lqasync/internal/config"
	"github.com/danielolaszy/lqasync/internal/mapper"
	"github.com/danielolaszy/lqasync/internal/syncer"
	"github.com/danielolaszy/lqasync/internal/waiter"
	"github.com/danielolaszy/lqasync/pkg/models"
)

var testSettings = syncer.Settings{
	BoardID: "18393273008",
	Columns: config.ColumnConfig{
		Status:     "status",
		Link:       "ticket_link",
		ParentLink: "parent_link",
		Category:   "category",
		Language:   "languages",
		Priority:   "priority",
		Request:    "request",
		Person:     "person",
	},
	ReadyStatus:   "Ready for Jira",
	CreatedStatus: "Jira Created",
}

// fakeBoard serves items from a map; a link appears on an item once it has
// been looked up linkAfter times.
type fakeBoard struct {
	items     map[string]*models.Item
	linkAfter map[string]int
	lookups   map[string]int
	writes    []string
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{
		items: map[string]*models.Item{
			"100": {
				ID:   "100",
				Name: "Checkout LQA",
				Columns: []models.ColumnValue{
					{ID: "parent_link", Kind: models.KindLink, Link: &models.Link{URL: "https://wix.atlassian.net/browse/DOM2-6298"}},
					{ID: "person", Kind: models.KindPeople, PersonIDs: []string{"4242"}},
				},
			},
			"101": {ID: "101", Name: "Signup LQA"},
			"200": {
				ID:      "200",
				Name:    "I see text cut off",
				BoardID: "18393273008",
				Columns: []models.ColumnValue{
					{ID: "category", Text: "UI issue"},
					{ID: "languages", Text: "de"},
				},
				Updates: []models.Update{
					{ID: "u1", Body: "<p>Description: text cut off<br>Screenshot: http://x/s.png</p>", CreatedAt: time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)},
				},
				Parent: &models.ItemRef{ID: "100"},
			},
			"201": {ID: "201", Name: "Unlinked parent", Parent: &models.ItemRef{ID: "101"}},
		},
		linkAfter: map[string]int{},
		lookups:   map[string]int{},
	}
}

func (b *fakeBoard) FetchItem(ctx context.Context, itemID string) (*models.Item, error) {
	item, ok := b.items[itemID]
	if !ok {
		return nil, errors.New("item not found")
	}
	b.lookups[itemID]++
	cp := *item
	cp.Columns = append([]models.ColumnValue(nil), item.Columns...)
	if after, ok := b.linkAfter[itemID]; ok && b.lookups[itemID] > after {
		cp.Columns = append(cp.Columns, models.ColumnValue{
			ID:   "ticket_link",
			Kind: models.KindLink,
			Link: &models.Link{URL: "https://wix.atlassian.net/browse/DOM2-6742", Text: "DOM2-6742"},
		})
	}
	return &cp, nil
}

func (b *fakeBoard) FetchItemsByBoard(ctx context.Context, boardID string) ([]models.Item, error) {
	return nil, nil
}

func (b *fakeBoard) ChangeColumnValue(ctx context.Context, boardID, itemID, columnID string, value any) error {
	b.writes = append(b.writes, columnID)
	return nil
}

func (b *fakeBoard) UserEmail(ctx context.Context, userID string) (string, error) {
	if userID == "4242" {
		return "dana@example.com", nil
	}
	return "", errors.New("user not found")
}

type fakeTracker struct {
	payloads []*models.TicketPayload
	err      error
}

func (t *fakeTracker) CreateIssue(ctx context.Context, payload *models.TicketPayload) (*models.CreatedIssue, error) {
	t.payloads = append(t.payloads, payload)
	if t.err != nil {
		return nil, t.err
	}
	return &models.CreatedIssue{Key: payload.ProjectKey + "-7", ID: "10007", URL: "https://wix.atlassian.net/browse/" + payload.ProjectKey + "-7"}, nil
}

type tickTimer struct{ ch chan time.Time }

func (t *tickTimer) Start(d time.Duration) { t.ch <- time.Now() }

func (t *tickTimer) Stop() {}

func (t *tickTimer) C() <-chan time.Time { return t.ch }

// countingClock moves forward a second on every reading.
type countingClock struct {
	now time.Time
}

func (c *countingClock) Now() time.Time {
	now := c.now
	c.now = c.now.Add(time.Second)
	return now
}

func setupTestServer(t *testing.T) (*Server, *fakeBoard, *fakeTracker) {
	t.Helper()
	board := newFakeBoard()
	tracker := &fakeTracker{}
	m := mapper.New(nil, testSettings.Columns, mapper.WithImpersonal(true))

	w := waiter.New(3*time.Second, 15*time.Second,
		waiter.WithClock(&countingClock{now: time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)}),
		waiter.WithTimer(func() backoff.Timer { return &tickTimer{ch: make(chan time.Time, 1)} }),
	)
	requests := syncer.NewEngine(board, m, syncer.NewRequestCreator(board, w, testSettings, ""), testSettings)

	return NewServer(board, tracker, m, requests), board, tracker
}

func TestHealth(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestDetails(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/details/200", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var d Details
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, "DOM2", d.ProjectKey)
	assert.Equal(t, "[LOC] Checkout LQA - Text cut off", d.Summary)
	assert.Equal(t, "text cut off", d.Description.Issue)
	assert.Equal(t, "http://x/s.png", d.Description.Screenshot)
	assert.Equal(t, "de", d.Description.AffectedLanguages)
	assert.Contains(t, d.DescriptionText, "We are done with the LQA for Checkout")
	assert.NotEmpty(t, d.Labels)
	assert.Equal(t, d.Labels[0], d.Label)
	assert.Equal(t, "dana@example.com", d.ReporterEmail)
	assert.Equal(t, "I see text cut off", d.SubitemName)
	assert.Empty(t, d.Warning)
}

func TestDetailsMappingFailureReturnsDraft(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/details/201", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var d Details
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Empty(t, d.ProjectKey)
	assert.Equal(t, "[LOC] Signup LQA - Unlinked parent", d.Summary)
	assert.Equal(t, mapper.DefaultLanguages, d.Description.AffectedLanguages)
	assert.Contains(t, d.Warning, "project key not found")
}

func TestDetailsUnknownItem(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/details/999", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"item not found"}`, w.Body.String())
}

func TestCreate(t *testing.T) {
	srv, _, tracker := setupTestServer(t)

	body := `{
		"projectKey": "DOM2",
		"summary": "[LOC] Checkout LQA - Text cut off",
		"description": {"qaName": "Checkout", "issue": "edited text", "affectedLanguages": "de", "screenshot": "http://x/s.png"},
		"priority": "High",
		"labels": ["Productloc-bug"],
		"reporterEmail": "dana@example.com"
	}`
	req := httptest.NewRequest("POST", "/api/create", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp CreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "DOM2-7", resp.IssueKey)
	assert.Equal(t, "10007", resp.IssueID)

	require.Len(t, tracker.payloads, 1)
	assert.Equal(t, "Bug", tracker.payloads[0].IssueType)
	assert.Equal(t, "edited text", tracker.payloads[0].Description.Issue)
}

func TestCreateErrors(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		trackerErr error
		status     int
		contains   string
	}{
		{
			name:     "Invalid JSON",
			body:     `{`,
			status:   http.StatusBadRequest,
			contains: "invalid JSON",
		},
		{
			name:     "Invalid project key",
			body:     `{"projectKey": "dom 2", "summary": "s"}`,
			status:   http.StatusBadRequest,
			contains: "invalid project key",
		},
		{
			name:       "Tracker rejects",
			body:       `{"projectKey": "DOM2", "summary": "s", "labels": ["x"]}`,
			trackerErr: errors.New("failed to create jira issue in DOM2 (status 400)"),
			status:     http.StatusInternalServerError,
			contains:   "status 400",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _, tracker := setupTestServer(t)
			tracker.err = tc.trackerErr

			req := httptest.NewRequest("POST", "/api/create", bytes.NewBufferString(tc.body))
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Contains(t, resp["error"], tc.contains)
		})
	}
}

func TestRequestResolved(t *testing.T) {
	srv, board, _ := setupTestServer(t)
	board.linkAfter["200"] = 2

	req := httptest.NewRequest("POST", "/api/items/200/request", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp RequestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Equal(t, "DOM2-6742", resp.IssueKey)
	assert.Equal(t, []string{"request", "status"}, board.writes)
}

func TestRequestPending(t *testing.T) {
	srv, board, _ := setupTestServer(t)

	req := httptest.NewRequest("POST", "/api/items/200/request", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp RequestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusError, resp.Status)
	assert.Contains(t, resp.Message, "check the automation")
	assert.Equal(t, []string{"request"}, board.writes)
}

func TestRequestAlreadyLinked(t *testing.T) {
	srv, board, _ := setupTestServer(t)
	board.linkAfter["200"] = 0

	req := httptest.NewRequest("POST", "/api/items/200/request", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp RequestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusSkipped, resp.Status)
	assert.Equal(t, syncer.ReasonAlreadyLinked, resp.Message)
	assert.Empty(t, board.writes)
}

func TestRequestNotConfigured(t *testing.T) {
	board := newFakeBoard()
	srv := NewServer(board, &fakeTracker{}, mapper.New(nil, testSettings.Columns), nil)

	req := httptest.NewRequest("POST", "/api/items/200/request", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
