package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fenixbot/internal/course"
	logx "fenixbot/pkg/logx"
)

const twoItems = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>ABC</title>
<item><title>One</title><description>&lt;p&gt;first&lt;/p&gt;</description><link>https://x/1</link>
<author>a@b.pt (Ana)</author><pubDate>Tue, 22 Jul 2014 20:32:41 +0100</pubDate></item>
<item><title>Two</title><description><![CDATA[<b>second</b>]]></description><link>https://x/2</link>
<author>c@d.pt (Rui)</author><pubDate>Wed, 23 Jul 2014 08:00:00 +0100</pubDate></item>
</channel></rss>`

const oneItem = `<rss version="2.0"><channel><title>ABC</title>
<item><title>Only</title><description>x</description><link>l</link><author>a (B)</author><pubDate>Tue, 22 Jul 2014 20:32:41 +0100</pubDate></item>
</channel></rss>`

var li = course.LinkInfo{Name: "ABC", Years: "2023-2024", Semester: "1"}

func TestParseShapes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		doc  string
		n    int
	}{
		{name: "list", doc: twoItems, n: 2},
		{name: "single item", doc: oneItem, n: 1},
		{name: "no items", doc: `<rss><channel><title>t</title></channel></rss>`, n: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			items, err := Parse([]byte(tt.doc))
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			if items == nil || len(items) != tt.n {
				t.Fatalf("len(items) = %d, want %d", len(items), tt.n)
			}
		})
	}
}

func TestParseFields(t *testing.T) {
	t.Parallel()
	items, err := Parse([]byte(twoItems))
	if err != nil {
		t.Fatal(err)
	}
	if items[0].Description != "<p>first</p>" || items[1].Description != "<b>second</b>" {
		t.Fatalf("descriptions = %q, %q", items[0].Description, items[1].Description)
	}
	if items[0].PubDate != "Tue, 22 Jul 2014 20:32:41 +0100" || items[1].Author != "c@d.pt (Rui)" {
		t.Fatalf("unexpected item: %+v", items[1])
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	for _, doc := range []string{"", "not xml", "<feed></feed>", "<rss></rss>"} {
		_, err := Parse([]byte(doc))
		if !errors.Is(err, course.ErrParse) {
			t.Fatalf("Parse(%q) err = %v, want parse error", doc, err)
		}
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		_, _ = w.Write([]byte(twoItems))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, logx.Nop())
	items, err := c.Fetch(context.Background(), li)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d", len(items))
	}
	if got := path.Load().(string); got != "/disciplinas/ABC/2023-2024/1-semestre/rss/announcement" {
		t.Fatalf("path = %q", got)
	}
}

func TestFetchNotFoundIsPermanent(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Retries: 3, RetryBase: time.Millisecond}, logx.Nop())
	_, err := c.Fetch(context.Background(), li)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v, want FetchError 404", err)
	}
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("errors.Is(err, ErrFetch) = false")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(oneItem))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Retries: 3, RetryBase: time.Millisecond}, logx.Nop())
	items, err := c.Fetch(context.Background(), li)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 || calls.Load() != 3 {
		t.Fatalf("items=%d calls=%d", len(items), calls.Load())
	}
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, logx.Nop())
	start := time.Now()
	_, err := c.Fetch(context.Background(), li)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("err = %v, want fetch error", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not enforced")
	}
}
