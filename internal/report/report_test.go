package report

import (
	"strings"
	"testing"
)

func TestTopFindings(t *testing.T) {
	d := &Data{KeyFindings: []string{"一", "二", "三"}}

	if got := d.TopFindings(2); len(got) != 2 || got[1] != "二" {
		t.Errorf("TopFindings(2) = %v", got)
	}
	if got := d.TopFindings(10); len(got) != 3 {
		t.Errorf("expected clamp to available findings, got %v", got)
	}
	if got := d.TopFindings(-1); len(got) != 0 {
		t.Errorf("expected empty for negative n, got %v", got)
	}
}

func TestChapterByKeyword(t *testing.T) {
	d := &Data{Chapters: []Chapter{
		{ChapterID: "ch1", Title: "财务深度分析"},
		{ChapterID: "ch2", Title: "Risk and Scenarios"},
	}}

	if ch := d.ChapterByKeyword("财务"); ch == nil || ch.ChapterID != "ch1" {
		t.Errorf("expected ch1, got %+v", ch)
	}
	// Case-insensitive match.
	if ch := d.ChapterByKeyword("RISK"); ch == nil || ch.ChapterID != "ch2" {
		t.Errorf("expected ch2, got %+v", ch)
	}
	if ch := d.ChapterByKeyword("估值"); ch != nil {
		t.Errorf("expected nil for absent keyword, got %+v", ch)
	}
}

func TestSnippet(t *testing.T) {
	d := &Data{RawMarkdown: "核心矛盾分析正文"}

	if got := d.Snippet(100); got != "核心矛盾分析正文" {
		t.Errorf("expected untruncated text, got %q", got)
	}

	got := d.Snippet(4)
	if !strings.HasPrefix(got, "核心矛盾") {
		t.Errorf("expected rune-safe prefix, got %q", got)
	}
	if !strings.HasSuffix(got, "…[truncated]") {
		t.Errorf("expected truncation marker, got %q", got)
	}
	if strings.Contains(got, "分析") {
		t.Errorf("expected content beyond 4 characters dropped, got %q", got)
	}
}
