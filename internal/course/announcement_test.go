package course

import (
	"errors"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	raw := RawItem{
		Title:       "Exam dates",
		Description: "&lt;p&gt;First line&lt;/p&gt;&lt;p&gt;Second &amp;amp; third&lt;br/&gt;Fourth&lt;/p&gt;",
		Link:        "https://fenix.tecnico.ulisboa.pt/x",
		Author:      "ist1234@tecnico.ulisboa.pt (Maria Silva)",
		PubDate:     "Tue, 22 Jul 2014 20:32:41 +0100",
	}
	a, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if a.ID != raw.PubDate {
		t.Fatalf("ID = %q, want raw pubDate", a.ID)
	}
	if a.Author != "Maria Silva" {
		t.Fatalf("Author = %q", a.Author)
	}
	want := time.Date(2014, time.July, 22, 20, 32, 41, 0, time.FixedZone("", 3600))
	if !a.PubDate.Equal(want) {
		t.Fatalf("PubDate = %v, want %v", a.PubDate, want)
	}
	if _, off := a.PubDate.Zone(); off != 3600 {
		t.Fatalf("offset = %d, want 3600", off)
	}
	if a.Description != "First line\nSecond & third\nFourth" {
		t.Fatalf("Description = %q", a.Description)
	}
	if a.Title != raw.Title || a.Link != raw.Link {
		t.Fatalf("unexpected passthrough fields: %+v", a)
	}
}

func TestNormalizeSingleDigitDay(t *testing.T) {
	t.Parallel()
	a, err := Normalize(RawItem{PubDate: "Wed, 3 Jan 2024 09:05:00 +0000", Author: "x (Y)"})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if a.PubDate.Day() != 3 {
		t.Fatalf("day = %d", a.PubDate.Day())
	}
}

func TestNormalizeBadDate(t *testing.T) {
	t.Parallel()
	for _, d := range []string{"", "2014-07-22T20:32:41Z", "Tue, 22 Jul 2014 20:32 +0100", "Tue, 32 Jul 2014 20:32:41 +0100"} {
		_, err := Normalize(RawItem{PubDate: d})
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("Normalize(pubDate=%q) err = %v, want *ParseError", d, err)
		}
		if pe.Field != "pubDate" || !errors.Is(err, ErrParse) {
			t.Fatalf("unexpected parse error: %v", err)
		}
	}
}

func TestAuthorName(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"a@b.pt (Ana)":             "Ana",
		"a@b.pt (Ana (Prof) Lima)": "Ana (Prof) Lima",
		"  Plain Name ":            "Plain Name",
		"broken ) (":               "broken ) (",
		"":                         "",
	}
	for in, want := range tests {
		if got := AuthorName(in); got != want {
			t.Fatalf("AuthorName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPlainText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "just text", want: "just text"},
		{name: "escaped markup", in: "&lt;b&gt;bold&lt;/b&gt; word", want: "bold word"},
		{name: "raw markup", in: "<div>one</div><div>two</div>", want: "one\ntwo"},
		{name: "br", in: "a<br>b<br/>c", want: "a\nb\nc"},
		{name: "list", in: "<ul><li>x</li><li>y</li></ul>", want: "x\ny"},
		{name: "blank lines collapse", in: "<p>a</p>\n\n\n<p>b</p>", want: "a\nb"},
		{name: "script dropped", in: "<p>a</p><script>alert(1)</script>", want: "a"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := PlainText(tt.in)
			if err != nil {
				t.Fatalf("PlainText error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
