// Package models defines data structures shared across the application.
package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ColumnKind tags the decoded shape of a board column value.
type ColumnKind int

const (
	// KindEmpty means the column exists but carries no value.
	KindEmpty ColumnKind = iota
	// KindText is a plain scalar value.
	KindText
	// KindLink is a {url, text} link value.
	KindLink
	// KindStatus is a status/color value with a label.
	KindStatus
	// KindPeople is a people value referencing one or more board users.
	KindPeople
	// KindJSON is any other structured value.
	KindJSON
)

// Link is a URL with optional display text.
type Link struct {
	URL  string
	Text string
}

// ColumnValue is a single column record of a board item, decoded once at the
// board client boundary.
type ColumnValue struct {
	// ID is the board column identifier (e.g., "link_mkz21j9b")
	ID string

	// Text is the display text the board renders for the column
	Text string

	// Type is the board's column type tag, if reported
	Type string

	// Raw is the undecoded value as returned by the board API
	Raw string

	// Kind tells which of the typed fields below are populated
	Kind ColumnKind

	// Link is set for KindLink values
	Link *Link

	// Label is set for KindStatus values
	Label string

	// PersonIDs is set for KindPeople values
	PersonIDs []string
}

// URL returns the link URL of the column, or "" when it is not a link.
func (c ColumnValue) URL() string {
	if c.Link == nil {
		return ""
	}
	return c.Link.URL
}

// Update is a free-text update posted on a board item.
type Update struct {
	ID        string
	Body      string
	CreatedAt time.Time
}

// ItemRef is a reference to another board item.
type ItemRef struct {
	ID   string
	Name string
}

// Item is a read-only snapshot of a board item.
type Item struct {
	// ID is the board item identifier
	ID string

	// Name is the item's display name
	Name string

	// BoardID is the board the item lives on, when known
	BoardID string

	// Columns are the item's column records in board order
	Columns []ColumnValue

	// Updates are the item's free-text updates as returned by the board
	Updates []Update

	// Parent is the parent item reference, nil for top-level items
	Parent *ItemRef
}

// Column returns the column with the given id. The boolean is false when the
// item has no such column.
func (i *Item) Column(id string) (ColumnValue, bool) {
	for _, c := range i.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return ColumnValue{}, false
}

// ColumnText returns the display text of a column, or "" when absent.
func (i *Item) ColumnText(id string) string {
	c, ok := i.Column(id)
	if !ok {
		return ""
	}
	return c.Text
}

// LinkValue is written to link columns.
type LinkValue struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// StatusValue is written to status columns.
type StatusValue struct {
	Label string `json:"label"`
}

// LongTextValue is written to long text columns.
type LongTextValue struct {
	Text string `json:"text"`
}

// Description is the structured body of a ticket.
type Description struct {
	QAName            string
	Issue             string
	AffectedLanguages string
	Screenshot        string
}

// String renders the description as the ticket body text.
func (d Description) String() string {
	var b strings.Builder
	b.WriteString("Hi!\n\n")
	fmt.Fprintf(&b, "We are done with the LQA for %s. We have found this issue:\n\n", d.QAName)
	fmt.Fprintf(&b, "Issue: %s\n", d.Issue)
	fmt.Fprintf(&b, "Affected languages: %s\n\n", d.AffectedLanguages)
	fmt.Fprintf(&b, "Screenshot:\n%s\n\n", d.Screenshot)
	b.WriteString("Thanks!")
	return b.String()
}

var projectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)

// TicketPayload is everything needed to create an issue in the tracker.
type TicketPayload struct {
	ProjectKey  string
	Summary     string
	Description Description
	IssueType   string
	Priority    string
	Labels      []string

	// ReporterID is the board user referenced by the parent's people column
	ReporterID string

	// ReporterEmail is resolved from ReporterID by the orchestrator
	ReporterEmail string
}

// Validate checks the payload invariants before submission.
func (p *TicketPayload) Validate() error {
	if !projectKeyPattern.MatchString(p.ProjectKey) {
		return fmt.Errorf("invalid project key %q", p.ProjectKey)
	}
	if strings.TrimSpace(p.Summary) == "" {
		return fmt.Errorf("summary is empty")
	}
	if strings.TrimSpace(p.Description.String()) == "" {
		return fmt.Errorf("description is empty")
	}
	return nil
}

// CreatedIssue is the tracker's answer to a successful creation.
type CreatedIssue struct {
	// Key is the full ticket identifier (e.g., "DOM2-6298")
	Key string

	// ID is the tracker's internal numeric id
	ID string

	// URL is the browse URL of the ticket
	URL string
}

// ItemStatus is the outcome of evaluating one item.
type ItemStatus string

const (
	StatusSuccess ItemStatus = "success"
	StatusSkipped ItemStatus = "skipped"
	StatusError   ItemStatus = "error"
)

// ItemResult is one entry of a run report.
type ItemResult struct {
	ItemID    string     `json:"itemId"`
	ItemName  string     `json:"itemName"`
	Status    ItemStatus `json:"status"`
	TicketKey string     `json:"ticketKey,omitempty"`
	TicketURL string     `json:"ticketUrl,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// RunReport aggregates the outcome of one synchronization run.
type RunReport struct {
	Processed  int          `json:"processed"`
	Skipped    int          `json:"skipped"`
	Errored    int          `json:"errors"`
	Items      []ItemResult `json:"items"`
	FatalError string       `json:"fatalError,omitempty"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
}

// Add records an item result and bumps the matching counter.
func (r *RunReport) Add(res ItemResult) {
	r.Items = append(r.Items, res)
	switch res.Status {
	case StatusSuccess:
		r.Processed++
	case StatusSkipped:
		r.Skipped++
	default:
		r.Errored++
	}
}

// Failed reports whether the run should exit non-zero.
func (r *RunReport) Failed() bool {
	return r.FatalError != "" || r.Errored > 0
}
