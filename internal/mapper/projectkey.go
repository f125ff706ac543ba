package mapper

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	selectedIssuePattern = regexp.MustCompile(`(?i)^([A-Z][A-Z0-9]*)-\d+`)
	browsePattern        = regexp.MustCompile(`(?i)/browse/([A-Z][A-Z0-9]*)-\d+`)
	issueKeyPattern      = regexp.MustCompile(`\b([A-Z][A-Z0-9]*)-\d+`)
)

// ExtractProjectKey finds the tracker project key in a ticket or filter URL.
// It looks at the selectedIssue query parameter, then a /browse/KEY-123 path,
// then the first upper-case KEY-123 token anywhere. Keys from the first two
// are upper-cased; the last scan is case-sensitive so host names and path
// segments such as release-2024 are never taken for keys.
func ExtractProjectKey(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", ErrProjectKeyNotFound
	}

	if u, err := url.Parse(link); err == nil {
		if m := selectedIssuePattern.FindStringSubmatch(u.Query().Get("selectedIssue")); m != nil {
			return strings.ToUpper(m[1]), nil
		}
	}

	if m := browsePattern.FindStringSubmatch(link); m != nil {
		return strings.ToUpper(m[1]), nil
	}

	if m := issueKeyPattern.FindStringSubmatch(link); m != nil {
		return strings.ToUpper(m[1]), nil
	}

	return "", ErrProjectKeyNotFound
}
