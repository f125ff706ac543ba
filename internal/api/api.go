// Package api serves the JSON endpoints behind the interactive ticket form.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/danielolaszy/lqasync/internal/config"
	"github.com/danielolaszy/lqasync/internal/logging"
	"github.com/danielolaszy/lqasync/internal/mapper"
	"github.com/danielolaszy/lqasync/internal/syncer"
	"github.com/danielolaszy/lqasync/pkg/models"
)

// Server provides the REST API handlers.
type Server struct {
	board    syncer.Board
	tracker  syncer.Tracker
	mapper   *mapper.Mapper
	requests *syncer.Engine
}

// NewServer creates a new API server. requests is the engine that handles
// the request-then-poll path; it may be nil, which disables that route.
func NewServer(board syncer.Board, tracker syncer.Tracker, m *mapper.Mapper, requests *syncer.Engine) *Server {
	return &Server{
		board:    board,
		tracker:  tracker,
		mapper:   m,
		requests: requests,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("GET /api/details/{itemId}", s.details)
	mux.HandleFunc("POST /api/create", s.create)
	mux.HandleFunc("POST /api/items/{itemId}/request", s.request)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// DescriptionFields is the editable ticket body.
type DescriptionFields struct {
	QAName            string `json:"qaName"`
	Issue             string `json:"issue"`
	AffectedLanguages string `json:"affectedLanguages"`
	Screenshot        string `json:"screenshot"`
}

func descriptionFields(d models.Description) DescriptionFields {
	return DescriptionFields{
		QAName:            d.QAName,
		Issue:             d.Issue,
		AffectedLanguages: d.AffectedLanguages,
		Screenshot:        d.Screenshot,
	}
}

func (d DescriptionFields) model() models.Description {
	return models.Description{
		QAName:            d.QAName,
		Issue:             d.Issue,
		AffectedLanguages: d.AffectedLanguages,
		Screenshot:        d.Screenshot,
	}
}

// Details is the form prefill for one subitem.
type Details struct {
	ProjectKey      string            `json:"projectKey"`
	Summary         string            `json:"summary"`
	Description     DescriptionFields `json:"description"`
	DescriptionText string            `json:"descriptionText"`
	IssueType       string            `json:"issueType"`
	Priority        string            `json:"priority"`
	Labels          []string          `json:"labels"`
	Label           string            `json:"label"`
	ReporterEmail   string            `json:"reporterEmail,omitempty"`
	SubitemName     string            `json:"subitemName"`
	Warning         string            `json:"warning,omitempty"`
}

func newDetails(item *models.Item, payload *models.TicketPayload) Details {
	d := Details{
		ProjectKey:      payload.ProjectKey,
		Summary:         payload.Summary,
		Description:     descriptionFields(payload.Description),
		DescriptionText: payload.Description.String(),
		IssueType:       payload.IssueType,
		Priority:        payload.Priority,
		Labels:          payload.Labels,
		ReporterEmail:   payload.ReporterEmail,
		SubitemName:     item.Name,
	}
	if len(payload.Labels) > 0 {
		d.Label = payload.Labels[0]
	}
	return d
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// details maps the subitem for the form. A mapping failure still answers
// with the fields that could be derived, plus a warning.
func (s *Server) details(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("itemId")
	logging.Info("fetching details", "item_id", itemID)

	item, err := s.board.FetchItem(r.Context(), itemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var parent *models.Item
	if item.Parent != nil && item.Parent.ID != "" {
		parent, err = s.board.FetchItem(r.Context(), item.Parent.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to fetch parent item: %v", err))
			return
		}
	}

	payload, err := s.mapper.BuildPayload(item, parent)
	warning := ""
	if err != nil {
		logging.Warn("returning draft details", "item_id", itemID, "error", err)
		payload = s.mapper.Draft(item, parent)
		warning = err.Error()
	}
	s.resolveReporter(r, payload)

	d := newDetails(item, payload)
	d.Warning = warning
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) resolveReporter(r *http.Request, payload *models.TicketPayload) {
	if payload.ReporterID == "" {
		return
	}
	email, err := s.board.UserEmail(r.Context(), payload.ReporterID)
	if err != nil {
		logging.Warn("failed to resolve reporter email",
			"user_id", payload.ReporterID,
			"error", err)
		return
	}
	payload.ReporterEmail = email
}

// CreateRequest is the submitted, possibly edited, form.
type CreateRequest struct {
	ProjectKey    string            `json:"projectKey"`
	Summary       string            `json:"summary"`
	Description   DescriptionFields `json:"description"`
	IssueType     string            `json:"issueType"`
	Priority      string            `json:"priority"`
	Labels        []string          `json:"labels"`
	ReporterEmail string            `json:"reporterEmail"`
}

// CreateResponse reports the created ticket.
type CreateResponse struct {
	Success  bool   `json:"success"`
	IssueKey string `json:"issueKey"`
	IssueID  string `json:"issueId,omitempty"`
	URL      string `json:"url,omitempty"`
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	payload := &models.TicketPayload{
		ProjectKey:    req.ProjectKey,
		Summary:       req.Summary,
		Description:   req.Description.model(),
		IssueType:     req.IssueType,
		Priority:      req.Priority,
		Labels:        req.Labels,
		ReporterEmail: req.ReporterEmail,
	}
	if payload.IssueType == "" {
		payload.IssueType = config.DefaultIssueType
	}
	if err := payload.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logging.Info("creating issue", "project_key", payload.ProjectKey, "summary", payload.Summary)

	created, err := s.tracker.CreateIssue(r.Context(), payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CreateResponse{
		Success:  true,
		IssueKey: created.Key,
		IssueID:  created.ID,
		URL:      created.URL,
	})
}

// RequestResponse reports the outcome of the request-then-poll path.
type RequestResponse struct {
	Status   models.ItemStatus `json:"status"`
	IssueKey string            `json:"issueKey,omitempty"`
	URL      string            `json:"url,omitempty"`
	Message  string            `json:"message,omitempty"`
}

func (s *Server) request(w http.ResponseWriter, r *http.Request) {
	if s.requests == nil {
		writeError(w, http.StatusNotImplemented, "ticket requests are not configured")
		return
	}

	itemID := r.PathValue("itemId")
	item, err := s.board.FetchItem(r.Context(), itemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result := s.requests.ProcessItem(r.Context(), item)
	resp := RequestResponse{
		Status:   result.Status,
		IssueKey: result.TicketKey,
		URL:      result.TicketURL,
		Message:  result.Reason,
	}

	switch {
	case result.Status != models.StatusError:
		writeJSON(w, http.StatusOK, resp)
	case result.Reason == syncer.ErrCreationPending.Error():
		writeJSON(w, http.StatusAccepted, resp)
	default:
		writeError(w, http.StatusInternalServerError, result.Error)
	}
}
