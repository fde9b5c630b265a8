package adapter

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitTextShort(t *testing.T) {
	t.Parallel()
	got := SplitText("hello", 10, "")
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("SplitText = %q", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	line := strings.Repeat("a", 30)
	text := strings.Join([]string{line, line, line, line}, "\n")

	chunks := SplitText(text, 70, "")
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	for _, c := range chunks {
		if utf8.RuneCountInString(c) > 70 {
			t.Fatalf("chunk over limit: %d runes", utf8.RuneCountInString(c))
		}
		if strings.HasPrefix(c, "\n") || strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk has edge newline: %q", c)
		}
	}
	if strings.Join(chunks, "\n") != text {
		t.Fatalf("joined chunks differ from input")
	}
}

func TestSplitTextKeepsHTMLTags(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("x", 18) + "<b>bold</b>" + strings.Repeat("y", 20)
	for _, c := range SplitText(text, 20, "HTML") {
		if strings.Count(c, "<") != strings.Count(c, ">") {
			t.Fatalf("tag split across chunks: %q", c)
		}
	}
}

func TestSplitTextRunes(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("é", 25)
	chunks := SplitText(text, 10, "")
	if len(chunks) != 3 || utf8.RuneCountInString(chunks[2]) != 5 {
		t.Fatalf("chunks = %q", chunks)
	}
}
