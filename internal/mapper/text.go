package mapper

import (
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/danielolaszy/lqasync/pkg/models"
)

var (
	qaMarkerPattern   = regexp.MustCompile(`(?i)\s*-?\s*LQA\s*-?\s*`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	lineBreakPattern  = regexp.MustCompile(`(?i)<br\s*/?>`)
	descriptionMarker = regexp.MustCompile(`(?is)Description:\s*`)
	descriptionEnd    = regexp.MustCompile(`(?i)Screenshot:|Thanks`)
	urlPattern        = regexp.MustCompile(`(?i)https?://[^\s]+`)

	stripPolicy = bluemonday.StrictPolicy()
)

// StripQAMarker removes the "LQA" marker and its separators from a board
// name and collapses whitespace.
func StripQAMarker(s string) string {
	s = qaMarkerPattern.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

type rewrite struct {
	pattern     *regexp.Regexp
	replacement string
}

// impersonalRewrites are tried in order; only the first match applies.
var impersonalRewrites = []rewrite{
	{regexp.MustCompile(`(?i)^I\s+can'?t\s+`), "Cannot "},
	{regexp.MustCompile(`(?i)^I\s+cannot\s+`), "Cannot "},
	{regexp.MustCompile(`(?i)^I\s+am\s+not\s+able\s+to\s+`), "Unable to "},
	{regexp.MustCompile(`(?i)^I\s+am\s+unable\s+to\s+`), "Unable to "},
	{regexp.MustCompile(`(?i)^I\s+can\s+not\s+`), "Cannot "},
	{regexp.MustCompile(`(?i)^I\s+see\s+`), ""},
	{regexp.MustCompile(`(?i)^I\s+found\s+`), ""},
	{regexp.MustCompile(`(?i)^I\s+noticed\s+`), ""},
	{regexp.MustCompile(`(?i)^I\s+have\s+`), ""},
	{regexp.MustCompile(`(?i)^I\s+got\s+`), ""},
	{regexp.MustCompile(`(?i)^I\s+get\s+`), ""},
	{regexp.MustCompile(`(?i)^I\s+am\s+seeing\s+`), ""},
	{regexp.MustCompile(`(?i)^I\s+am\s+getting\s+`), ""},
	{regexp.MustCompile(`(?i)^We\s+see\s+`), ""},
	{regexp.MustCompile(`(?i)^We\s+found\s+`), ""},
	{regexp.MustCompile(`(?i)^We\s+noticed\s+`), ""},
	{regexp.MustCompile(`(?i)^We\s+have\s+`), ""},
	{regexp.MustCompile(`(?i)^We\s+can'?t\s+`), "Cannot "},
	{regexp.MustCompile(`(?i)^We\s+cannot\s+`), "Cannot "},
	{regexp.MustCompile(`(?i)^I\s+am\s+`), ""},
	{regexp.MustCompile(`(?i)^I\s+`), ""},
}

// MakeImpersonal rewrites a first-person sentence start ("I can't open the
// menu") into an impersonal one ("Cannot open the menu"). At most one rewrite
// is applied and the first letter is capitalized.
func MakeImpersonal(s string) string {
	s = strings.TrimSpace(s)
	for _, rw := range impersonalRewrites {
		if rw.pattern.MatchString(s) {
			s = rw.pattern.ReplaceAllLiteralString(s, rw.replacement)
			break
		}
	}
	return capitalize(s)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// UpdateBody is the plain-text reading of an update.
type UpdateBody struct {
	// Text is the whole body with markup removed
	Text string
	// Description is the reported issue text
	Description string
	// Screenshot is the first http(s) URL in the body
	Screenshot string
}

// PlainText converts update markup to text. Line breaks become newlines and
// every other tag is dropped.
func PlainText(body string) string {
	s := lineBreakPattern.ReplaceAllString(body, "\n")
	s = stripPolicy.Sanitize(s)
	return strings.TrimSpace(html.UnescapeString(s))
}

// ParseUpdateBody extracts the issue description and screenshot URL from an
// update. The description is the text following "Description:" up to
// "Screenshot:" or "Thanks"; without that marker the whole text is used.
func ParseUpdateBody(body string) UpdateBody {
	text := PlainText(body)
	if text == "" {
		return UpdateBody{}
	}

	out := UpdateBody{Text: text, Description: text}
	if loc := descriptionMarker.FindStringIndex(text); loc != nil {
		rest := text[loc[1]:]
		if end := firstIndexAfter(descriptionEnd, rest, 1); end >= 0 {
			rest = rest[:end]
		}
		out.Description = strings.TrimSpace(rest)
	}

	out.Screenshot = urlPattern.FindString(text)
	return out
}

// firstIndexAfter returns the start of the first match of re in s that
// begins at or after min, or -1.
func firstIndexAfter(re *regexp.Regexp, s string, min int) int {
	if len(s) <= min {
		return -1
	}
	loc := re.FindStringIndex(s[min:])
	if loc == nil {
		return -1
	}
	return loc[0] + min
}

// EarliestUpdate returns the update with the earliest creation time. Ties keep
// the board's order. Updates without a usable timestamp sort after all others.
func EarliestUpdate(updates []models.Update) (models.Update, bool) {
	if len(updates) == 0 {
		return models.Update{}, false
	}
	sorted := append([]models.Update(nil), updates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].CreatedAt, sorted[j].CreatedAt
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.Before(b)
	})
	return sorted[0], true
}
