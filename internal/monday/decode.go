package monday

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/danielolaszy/lqasync/internal/logging"
	"github.com/danielolaszy/lqasync/pkg/models"
)

// Board column type tags.
const (
	typeLink   = "link"
	typeStatus = "status"
	typePeople = "people"
)

func decodeItem(raw gjson.Result) models.Item {
	item := models.Item{
		ID:      raw.Get("id").String(),
		Name:    raw.Get("name").String(),
		BoardID: raw.Get("board.id").String(),
	}

	if parent := raw.Get("parent_item"); parent.IsObject() && parent.Get("id").String() != "" {
		item.Parent = &models.ItemRef{
			ID:   parent.Get("id").String(),
			Name: parent.Get("name").String(),
		}
	}

	for _, col := range raw.Get("column_values").Array() {
		item.Columns = append(item.Columns, DecodeColumn(
			col.Get("id").String(),
			col.Get("text").String(),
			col.Get("type").String(),
			col.Get("value").String(),
		))
	}

	for _, u := range raw.Get("updates").Array() {
		item.Updates = append(item.Updates, models.Update{
			ID:        u.Get("id").String(),
			Body:      u.Get("body").String(),
			CreatedAt: parseTime(u.Get("created_at").String()),
		})
	}

	return item
}

// DecodeColumn turns a column record into its typed form. The board sends
// the value as a JSON document inside a string, or null.
func DecodeColumn(id, text, columnType, raw string) models.ColumnValue {
	cv := models.ColumnValue{
		ID:   id,
		Text: text,
		Type: columnType,
		Raw:  raw,
		Kind: models.KindEmpty,
	}

	if raw == "" || raw == "null" || !gjson.Valid(raw) {
		if text != "" {
			cv.Kind = models.KindText
		}
		return cv
	}

	v := gjson.Parse(raw)
	switch {
	case columnType == typeLink || v.Get("url").Exists():
		u := v.Get("url").String()
		if u == "" {
			return cv
		}
		cv.Kind = models.KindLink
		cv.Link = &models.Link{URL: u, Text: v.Get("text").String()}
	case columnType == typeStatus:
		cv.Kind = models.KindStatus
		cv.Label = text
	case columnType == typePeople || v.Get("personsAndTeams").Exists():
		for _, p := range v.Get("personsAndTeams").Array() {
			if p.Get("kind").String() == "team" {
				continue
			}
			cv.PersonIDs = append(cv.PersonIDs, p.Get("id").String())
		}
		if len(cv.PersonIDs) > 0 {
			cv.Kind = models.KindPeople
		}
	case v.Type == gjson.String || v.Type == gjson.Number:
		cv.Kind = models.KindText
	default:
		cv.Kind = models.KindJSON
	}

	return cv
}

// parseTime returns the zero time for an empty or unparseable value; the
// mapper treats such updates as the latest.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		logging.Debug("unparseable update timestamp", "value", s, "error", err)
		return time.Time{}
	}
	return t
}
