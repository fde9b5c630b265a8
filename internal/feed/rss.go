package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"

	"golang.org/x/net/html/charset"

	"fenixbot/internal/course"
)

type rssDocument struct {
	XMLName xml.Name    `xml:"rss"`
	Channel *rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	Author      string `xml:"author"`
	PubDate     string `xml:"pubDate"`
}

// Parse decodes an RSS 2.0 document. An empty channel yields an empty slice.
func Parse(data []byte) ([]course.RawItem, error) {
	return Decode(bytes.NewReader(data))
}

// Decode is Parse for streams.
func Decode(r io.Reader) ([]course.RawItem, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var doc rssDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, &course.ParseError{Field: "rss", Err: err}
	}
	if doc.Channel == nil {
		return nil, &course.ParseError{Field: "rss", Err: errors.New("missing channel")}
	}

	items := make([]course.RawItem, 0, len(doc.Channel.Items))
	for _, it := range doc.Channel.Items {
		items = append(items, course.RawItem{
			Title:       it.Title,
			Description: it.Description,
			Link:        it.Link,
			Author:      it.Author,
			PubDate:     it.PubDate,
		})
	}
	return items, nil
}
