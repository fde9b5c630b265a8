package course

import (
	"strconv"
	"strings"
)

const (
	// LinkPrefix is the fixed scheme+host+path every course link starts with.
	LinkPrefix = "https://fenix.tecnico.ulisboa.pt/disciplinas/"
	// LinkSuffix terminates the semester segment ("1-semestre", "2-semestre").
	LinkSuffix = "-semestre"

	// ExpectedLinkFormat is the link shape shown to users in help and error replies.
	ExpectedLinkFormat = LinkPrefix + "XXXX/XXXX-XXXX/X" + LinkSuffix
)

// LinkInfo is what a valid course link encodes.
type LinkInfo struct {
	Name     string // course token, e.g. "ABC"
	Years    string // academic year, e.g. "2023-2024"
	Semester string // "1" or "2"
}

// Validate parses a course home page link.
//
// Example: https://fenix.tecnico.ulisboa.pt/disciplinas/ABC/2023-2024/1-semestre
func Validate(link string) (LinkInfo, error) {
	invalid := func(reason string) (LinkInfo, error) {
		return LinkInfo{}, &InvalidLinkError{Link: link, Reason: reason}
	}

	if !strings.HasPrefix(link, LinkPrefix) {
		return invalid("must start with " + LinkPrefix)
	}
	if !strings.HasSuffix(link, LinkSuffix) {
		return invalid("must end with " + LinkSuffix)
	}
	if len(link) < len(LinkPrefix)+len(LinkSuffix) {
		return invalid("too short")
	}

	parts := strings.Split(link[len(LinkPrefix):len(link)-len(LinkSuffix)], "/")
	if len(parts) != 3 {
		return invalid("expected course/years/semester")
	}
	name, years, semester := parts[0], parts[1], parts[2]

	if name == "" {
		return invalid("empty course name")
	}
	if !consecutiveYears(years) {
		return invalid("academic year must look like 2023-2024")
	}
	if semester != "1" && semester != "2" {
		return invalid("semester must be 1 or 2")
	}
	return LinkInfo{Name: name, Years: years, Semester: semester}, nil
}

func consecutiveYears(s string) bool {
	first, second, ok := strings.Cut(s, "-")
	if !ok || !isYear(first) || !isYear(second) {
		return false
	}
	a, err := strconv.Atoi(first)
	if err != nil {
		return false
	}
	b, err := strconv.Atoi(second)
	if err != nil {
		return false
	}
	return b-a == 1
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FeedPath returns the announcement feed path relative to the feed base URL.
func (li LinkInfo) FeedPath() string {
	return "disciplinas/" + li.Name + "/" + li.Years + "/" + li.Semester + LinkSuffix + "/rss/announcement"
}
