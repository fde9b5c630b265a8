package course

import (
	"errors"
	"html"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// PubDateLayout is the RSS pubDate layout used by the feed,
// e.g. "Tue, 22 Jul 2014 20:32:41 +0100". Single-digit days are accepted.
const PubDateLayout = "Mon, 2 Jan 2006 15:04:05 -0700"

// RawItem is one feed entry as it comes off the wire.
type RawItem struct {
	Title       string
	Description string
	Link        string
	Author      string
	PubDate     string
}

// Announcement is the normalized form of a feed item.
//
// ID is the unparsed pubDate string. The source keeps the publication date
// stable when an announcement is edited, so it identifies the item across fetches.
type Announcement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	Author      string    `json:"author"`
	PubDate     time.Time `json:"pub_date"`
}

// Normalize converts a raw feed item into an Announcement.
func Normalize(it RawItem) (Announcement, error) {
	// The identity key must be captured before the date is parsed.
	id := it.PubDate

	pub, err := time.Parse(PubDateLayout, strings.TrimSpace(it.PubDate))
	if err != nil {
		return Announcement{}, &ParseError{Field: "pubDate", Value: it.PubDate, Err: err}
	}

	desc, err := PlainText(it.Description)
	if err != nil {
		return Announcement{}, &ParseError{Field: "description", Err: err}
	}

	return Announcement{
		ID:          id,
		Title:       it.Title,
		Description: desc,
		Link:        it.Link,
		Author:      AuthorName(it.Author),
		PubDate:     pub,
	}, nil
}

// NormalizeAll normalizes items in feed order. The first bad item fails the batch.
func NormalizeAll(items []RawItem) ([]Announcement, error) {
	out := make([]Announcement, 0, len(items))
	for _, it := range items {
		a, err := Normalize(it)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// AuthorName extracts "Display Name" from "email@example.com (Display Name)".
// Without a parenthesized part the trimmed input is returned as is.
func AuthorName(raw string) string {
	i := strings.Index(raw, "(")
	j := strings.LastIndex(raw, ")")
	if i < 0 || j <= i {
		return strings.TrimSpace(raw)
	}
	return raw[i+1 : j]
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true,
	"figure": true, "footer": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "nav": true, "ol": true, "p": true,
	"pre": true, "section": true, "table": true, "tr": true, "ul": true,
}

// PlainText unescapes HTML entities and strips the markup. Block elements
// and <br> become line breaks; blank lines are dropped.
func PlainText(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html.UnescapeString(raw)))
	if err != nil {
		return "", err
	}
	if doc == nil {
		return "", errors.New("empty document")
	}

	var b strings.Builder
	collectText(doc.Selection, &b)
	return joinLines(b.String()), nil
}

func collectText(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		switch name := goquery.NodeName(c); {
		case name == "#text":
			b.WriteString(c.Text())
		case name == "br":
			b.WriteByte('\n')
		case name == "script", name == "style", name == "#comment":
		case blockElements[name]:
			b.WriteByte('\n')
			collectText(c, b)
			b.WriteByte('\n')
		default:
			collectText(c, b)
		}
	})
}

func joinLines(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, ln := range lines {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}
