package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleHTML = `<!DOCTYPE html>
<html>
<head>
<title>SMCI</title>
<script type="application/ld+json">{"ticker":"SMCI","name":"Super Micro Computer","industry":"AI服务器","datePublished":"2025-06-30"}</script>
<script>console.log("tracking");</script>
<style>body { color: red; }</style>
</head>
<body>
<nav>首页导航</nav>
<div id="free-content">
  <h1>Super Micro 深度投资研究报告</h1>
  <h2>一句话结论</h2>
  <p>AI服务器龙头,盈利质量存疑。</p>
  <h2>三个核心发现</h2>
  <ul>
    <li>AI服务器需求爆发推动营收翻倍,增长动力强劲</li>
    <li>短</li>
  </ul>
  <div class="mermaid">graph TD; A--&gt;B;</div>
</div>
<div id="registered-content">
  <h1>第一章:财务分析</h1>
  <p>PE TTM: 18.5x,ROE: 22.1%。</p>
  <table>
    <tr><th>指标</th><th>数值|备注</th></tr>
    <tr><td>毛利率</td><td>9.8%</td></tr>
  </table>
</div>
<div id="paid-content">
  <h1>风险与估值</h1>
  <h2>风险因素</h2>
  <ul><li>会计与内控风险持续存在,需要密切关注</li></ul>
  <h2>估值分析</h2>
  <p>基于DCF模型,公允价值区间为40到60美元。</p>
</div>
<div id="invite-guide-overlay"><p>扫码邀请注册</p></div>
<footer>版权信息</footer>
</body>
</html>`

func writeHTMLReport(t *testing.T, dir, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "index.html")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestHTMLParser_MetadataFromLDJSON(t *testing.T) {
	path := writeHTMLReport(t, filepath.Join(t.TempDir(), "smci"), sampleHTML)
	rd, err := (&HTMLReportParser{}).Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	md := rd.Metadata
	if md.Ticker != "SMCI" {
		t.Errorf("expected ticker SMCI, got %q", md.Ticker)
	}
	if md.CompanyName != "Super Micro Computer" {
		t.Errorf("expected company from ld+json, got %q", md.CompanyName)
	}
	if md.Industry != "AI服务器" {
		t.Errorf("expected industry from ld+json, got %q", md.Industry)
	}
	if md.ReportDate != "2025-06-30" {
		t.Errorf("expected date from ld+json, got %q", md.ReportDate)
	}
	if md.Language != "zh" {
		t.Errorf("expected language zh, got %q", md.Language)
	}
}

func TestHTMLParser_MetadataFromHeading(t *testing.T) {
	content := `<html><body>
<h1>Apple 深度投资研究报告</h1>
<p>正文。</p>
</body></html>`
	path := writeHTMLReport(t, filepath.Join(t.TempDir(), "aapl"), content)
	rd, err := (&HTMLReportParser{}).Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rd.Metadata.Ticker != "AAPL" {
		t.Errorf("expected ticker from directory AAPL, got %q", rd.Metadata.Ticker)
	}
	if rd.Metadata.CompanyName != "Apple" {
		t.Errorf("expected boilerplate-stripped company, got %q", rd.Metadata.CompanyName)
	}
}

func TestHTMLParser_EnglishVariantPath(t *testing.T) {
	content := `<html><body><h1>Apple Research</h1><p>Body.</p></body></html>`
	path := writeHTMLReport(t, filepath.Join(t.TempDir(), "aapl", "en"), content)
	rd, err := (&HTMLReportParser{}).Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rd.Metadata.Ticker != "AAPL" {
		t.Errorf("expected en/ directory to resolve ticker AAPL, got %q", rd.Metadata.Ticker)
	}
	if rd.Metadata.Language != "en" {
		t.Errorf("expected language en, got %q", rd.Metadata.Language)
	}
}

func TestHTMLParser_ChaptersAcrossRegions(t *testing.T) {
	path := writeHTMLReport(t, filepath.Join(t.TempDir(), "smci"), sampleHTML)
	rd, err := (&HTMLReportParser{}).Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The first h1 is the title banner and must not become a chapter.
	if len(rd.Chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(rd.Chapters))
	}

	ch1 := rd.Chapters[0]
	if ch1.ChapterID != "ch1" || ch1.Title != "第一章:财务分析" {
		t.Errorf("unexpected first chapter: %+v", ch1)
	}
	if ch1.Section != "registered" {
		t.Errorf("expected section registered, got %q", ch1.Section)
	}
	if len(ch1.Tables) != 1 {
		t.Fatalf("expected 1 table in first chapter, got %d", len(ch1.Tables))
	}
	if !strings.Contains(ch1.Tables[0], "| 毛利率 | 9.8% |") {
		t.Errorf("expected markdown table row, got %q", ch1.Tables[0])
	}
	if !strings.Contains(ch1.Tables[0], "| --- | --- |") {
		t.Errorf("expected separator row after header, got %q", ch1.Tables[0])
	}
	// Pipes inside cells must not corrupt the table.
	if !strings.Contains(ch1.Tables[0], "数值/备注") {
		t.Errorf("expected escaped pipe in cell, got %q", ch1.Tables[0])
	}

	ch2 := rd.Chapters[1]
	if ch2.Title != "风险与估值" || ch2.Section != "paid" {
		t.Errorf("unexpected second chapter: %+v", ch2)
	}
}

func TestHTMLParser_NoiseStripped(t *testing.T) {
	path := writeHTMLReport(t, filepath.Join(t.TempDir(), "smci"), sampleHTML)
	rd, err := (&HTMLReportParser{}).Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, noise := range []string{"graph TD", "扫码邀请注册", "首页导航", "版权信息", "console.log"} {
		if strings.Contains(rd.RawMarkdown, noise) {
			t.Errorf("expected %q to be stripped from body text", noise)
		}
	}
}

func TestHTMLParser_CuratedSections(t *testing.T) {
	path := writeHTMLReport(t, filepath.Join(t.TempDir(), "smci"), sampleHTML)
	rd, err := (&HTMLReportParser{}).Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(rd.ExecutiveSummary, "AI服务器龙头") {
		t.Errorf("expected one-line verdict in summary, got %q", rd.ExecutiveSummary)
	}

	if len(rd.KeyFindings) != 1 {
		t.Fatalf("expected 1 key finding (short bullets filtered), got %d: %v", len(rd.KeyFindings), rd.KeyFindings)
	}
	if !strings.Contains(rd.KeyFindings[0], "需求爆发") {
		t.Errorf("unexpected finding: %q", rd.KeyFindings[0])
	}

	wantSnapshot := map[string]string{
		"pe_ttm":       "18.5",
		"roe":          "22.1",
		"gross_margin": "9.8",
	}
	for k, v := range wantSnapshot {
		if rd.FinancialSnapshot[k] != v {
			t.Errorf("snapshot[%s]: expected %q, got %q", k, v, rd.FinancialSnapshot[k])
		}
	}

	if len(rd.RiskFactors) != 1 {
		t.Fatalf("expected 1 risk factor, got %d: %v", len(rd.RiskFactors), rd.RiskFactors)
	}
	if !strings.Contains(rd.RiskFactors[0], "会计与内控风险") {
		t.Errorf("unexpected risk: %q", rd.RiskFactors[0])
	}

	if !strings.Contains(rd.ValuationSummary, "公允价值区间") {
		t.Errorf("expected valuation from paid content, got %q", rd.ValuationSummary)
	}
}

func TestHTMLParser_BodyFallbackWithoutRegions(t *testing.T) {
	content := `<html><body>
<h1>Plain 第一章:业务分析</h1>
<p>无分区页面的正文内容。</p>
</body></html>`
	path := writeHTMLReport(t, filepath.Join(t.TempDir(), "test"), content)
	rd, err := (&HTMLReportParser{}).Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(rd.RawMarkdown, "无分区页面的正文内容") {
		t.Errorf("expected body fallback text, got %q", rd.RawMarkdown)
	}
	if len(rd.Chapters) != 1 {
		t.Fatalf("expected 1 chapter from body, got %d", len(rd.Chapters))
	}
	if rd.Chapters[0].Section != "free" {
		t.Errorf("expected body chapters tagged free, got %q", rd.Chapters[0].Section)
	}
}

func TestTableToMarkdown_SingleRowNoSeparator(t *testing.T) {
	content := `<html><body><div id="free-content">
<h1>第一章:数据</h1>
<table><tr><td>唯一</td><td>行</td></tr></table>
</div></body></html>`
	path := writeHTMLReport(t, filepath.Join(t.TempDir(), "test"), content)
	rd, err := (&HTMLReportParser{}).Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rd.Chapters) != 1 || len(rd.Chapters[0].Tables) != 1 {
		t.Fatalf("expected one chapter with one table, got %+v", rd.Chapters)
	}
	table := rd.Chapters[0].Tables[0]
	if table != "| 唯一 | 行 |" {
		t.Errorf("expected single row without separator, got %q", table)
	}
}
