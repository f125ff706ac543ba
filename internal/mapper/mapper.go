// Package mapper turns a board subitem and its parent into a tracker ticket
// payload.
package mapper

import (
	"errors"
	"fmt"

	"github.com/danielolaszy/lqasync/internal/classify"
	"github.com/danielolaszy/lqasync/internal/config"
	"github.com/danielolaszy/lqasync/internal/logging"
	"github.com/danielolaszy/lqasync/pkg/models"
)

// Placeholders used when the board has no value.
const (
	SummaryTag          = "[LOC]"
	DefaultLanguages    = "All languages"
	DefaultPriority     = "Medium"
	NoScreenshot        = "No screenshot available"
	UnknownParentName   = "Unknown"
	defaultIssueTypeTag = config.DefaultIssueType
)

var (
	// ErrProjectKeyNotFound means the parent's tracker link holds no project key.
	ErrProjectKeyNotFound = errors.New("project key not found")
	// ErrMissingParent means the item has no parent to derive the project from.
	ErrMissingParent = errors.New("no parent item")
)

// MappingError reports why a payload could not be built for an item. It is
// final for that item; retrying the same input fails the same way.
type MappingError struct {
	ItemID string
	Err    error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("cannot map item %s: %v", e.ItemID, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

// Mapper builds ticket payloads. It performs no I/O.
type Mapper struct {
	classifier *classify.Engine
	columns    config.ColumnConfig
	issueType  string
	impersonal bool
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithIssueType sets the tracker issue type (default "Bug").
func WithIssueType(issueType string) Option {
	return func(m *Mapper) {
		if issueType != "" {
			m.issueType = issueType
		}
	}
}

// WithImpersonal makes the summary rewrite first-person item names, the way
// the interactive request path does.
func WithImpersonal(enabled bool) Option {
	return func(m *Mapper) {
		m.impersonal = enabled
	}
}

// New creates a mapper reading the given board columns. A nil classifier uses
// the default rule table.
func New(classifier *classify.Engine, columns config.ColumnConfig, opts ...Option) *Mapper {
	if classifier == nil {
		classifier = classify.NewEngine(nil)
	}
	m := &Mapper{
		classifier: classifier,
		columns:    columns,
		issueType:  defaultIssueTypeTag,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BuildPayload maps a subitem and its parent to a ticket payload. It fails
// with a *MappingError when the parent is missing or its tracker link has no
// project key.
func (m *Mapper) BuildPayload(item, parent *models.Item) (*models.TicketPayload, error) {
	if parent == nil {
		return nil, &MappingError{ItemID: item.ID, Err: ErrMissingParent}
	}

	projectKey, err := ExtractProjectKey(m.parentLink(parent))
	if err != nil {
		return nil, &MappingError{ItemID: item.ID, Err: err}
	}

	payload := m.Draft(item, parent)
	payload.ProjectKey = projectKey

	if err := payload.Validate(); err != nil {
		return nil, &MappingError{ItemID: item.ID, Err: err}
	}

	logging.Debug("mapped item to ticket payload",
		"item_id", item.ID,
		"project_key", payload.ProjectKey,
		"labels", payload.Labels)

	return payload, nil
}

// Draft maps every field except the project key. It never fails: missing
// values get their placeholders, which makes it usable for prefilling a form
// when BuildPayload cannot complete. parent may be nil.
func (m *Mapper) Draft(item, parent *models.Item) *models.TicketPayload {
	parentName := UnknownParentName
	if parent != nil {
		parentName = withDefault(StripQAMarker(parent.Name), UnknownParentName)
	}
	itemName := StripQAMarker(item.Name)
	if m.impersonal {
		itemName = MakeImpersonal(itemName)
	}

	var body UpdateBody
	if update, ok := EarliestUpdate(item.Updates); ok {
		body = ParseUpdateBody(update.Body)
	}

	payload := &models.TicketPayload{
		Summary: fmt.Sprintf("%s %s LQA - %s", SummaryTag, parentName, itemName),
		Description: models.Description{
			QAName:            parentName,
			Issue:             withDefault(body.Description, itemName),
			AffectedLanguages: withDefault(item.ColumnText(m.columns.Language), DefaultLanguages),
			Screenshot:        withDefault(body.Screenshot, NoScreenshot),
		},
		IssueType: m.issueType,
		Priority:  withDefault(item.ColumnText(m.columns.Priority), DefaultPriority),
		Labels:    m.classifier.Classify(item.ColumnText(m.columns.Category), item.Name, body.Description),
	}
	if parent != nil {
		payload.ReporterID = m.reporterID(parent)
	}
	return payload
}

// parentLink returns the parent's tracker link URL, falling back to the
// column's display text.
func (m *Mapper) parentLink(parent *models.Item) string {
	col, ok := parent.Column(m.columns.ParentLink)
	if !ok {
		return ""
	}
	if u := col.URL(); u != "" {
		return u
	}
	return col.Text
}

func (m *Mapper) reporterID(parent *models.Item) string {
	if m.columns.Person == "" {
		return ""
	}
	col, ok := parent.Column(m.columns.Person)
	if !ok || len(col.PersonIDs) == 0 {
		return ""
	}
	return col.PersonIDs[0]
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
