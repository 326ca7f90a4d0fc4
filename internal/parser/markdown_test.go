package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleMarkdown = `# SMCI (Super Micro) 深度研究报告

| 项目 | 值 |
| --- | --- |
| **公司** | Super Micro Computer [DM-META-001] |
| **行业** | AI服务器 |
| 数据截止 | 2025-06-30 |
| 股价 | $45.32 |
| 市值 | $26.5B |
| TTM收入 | $21.3B |
| 报告类型 | 深度研究 |
| 框架版本 | v2.1 |

NASDAQ: SMCI

## 核心结论速览

> **AI需求爆发** --- 盈利质量存疑

### 核心发现

1. **需求强劲**: AI服务器订单持续增长
2. **利润率压力**: 毛利率持续下滑

## 第一章:财务分析

PE TTM: 18.5x, ROE: 22.1%
毛利率: 9.8%
TTM收入: $21.3B

| Q | 问题 | 类型 | 权重 | 评估 |
| --- | --- | --- | --- | --- |
| CQ1 | 营收可持续吗 | quantitative | 0.3 | 部分成立 [DM-FIN-002] |

| ID | 假设 | 共识 | 我们的观点 |
| --- | --- | --- | --- |
| CI-1 | 行业周期 | 成长股 | 周期股 [DM-IND-003] |

## 风险与估值

### 最大风险

- 会计与内控风险
- 客户集中风险

### 估值

公允价值区间为 $40 至 $60。
`

func writeReport(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestMarkdownParser_Metadata(t *testing.T) {
	path := writeReport(t, "SMCI_Complete_Report.md", sampleMarkdown)
	rd, err := (&MarkdownReportParser{}).Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	md := rd.Metadata
	if md.Ticker != "SMCI" {
		t.Errorf("expected ticker %q, got %q", "SMCI", md.Ticker)
	}
	if md.CompanyName != "Super Micro Computer" {
		t.Errorf("expected provenance-stripped company name, got %q", md.CompanyName)
	}
	if md.Exchange != "NASDAQ" {
		t.Errorf("expected exchange NASDAQ, got %q", md.Exchange)
	}
	if md.Industry != "AI服务器" {
		t.Errorf("expected industry %q, got %q", "AI服务器", md.Industry)
	}
	if md.ReportDate != "2025-06-30" {
		t.Errorf("expected report date 2025-06-30, got %q", md.ReportDate)
	}
	if md.TTMRevenue != "$21.3B" {
		t.Errorf("expected TTM revenue $21.3B, got %q", md.TTMRevenue)
	}
	if md.FrameworkVersion != "v2.1" {
		t.Errorf("expected framework version v2.1, got %q", md.FrameworkVersion)
	}
	if md.Language != "zh" {
		t.Errorf("expected language zh, got %q", md.Language)
	}
}

func TestMarkdownParser_Chapters(t *testing.T) {
	path := writeReport(t, "SMCI_Report.md", sampleMarkdown)
	rd, err := (&MarkdownReportParser{}).Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rd.Chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(rd.Chapters))
	}

	wantTitles := []string{"核心结论速览", "第一章:财务分析", "风险与估值"}
	for i, ch := range rd.Chapters {
		wantID := []string{"ch1", "ch2", "ch3"}[i]
		if ch.ChapterID != wantID {
			t.Errorf("chapter %d: expected ID %q, got %q", i, wantID, ch.ChapterID)
		}
		if ch.Title != wantTitles[i] {
			t.Errorf("chapter %d: expected title %q, got %q", i, wantTitles[i], ch.Title)
		}
		if ch.Section != "free" {
			t.Errorf("chapter %d: expected section free, got %q", i, ch.Section)
		}
	}

	// The CQ and CI tables live in chapter 2 as two separate blocks.
	if got := len(rd.Chapters[1].Tables); got != 2 {
		t.Errorf("expected 2 table blocks in chapter 2, got %d", got)
	}
	if len(rd.Chapters[0].Tables) != 0 {
		t.Errorf("expected no tables in chapter 1, got %d", len(rd.Chapters[0].Tables))
	}
}

func TestMarkdownParser_CuratedSections(t *testing.T) {
	path := writeReport(t, "SMCI_Report.md", sampleMarkdown)
	rd, err := (&MarkdownReportParser{}).Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(rd.ExecutiveSummary, "核心发现") {
		t.Errorf("expected executive summary to include findings subsection, got %q", rd.ExecutiveSummary)
	}
	if rd.CoreContradiction != "AI需求爆发 — 盈利质量存疑" {
		t.Errorf("unexpected core contradiction: %q", rd.CoreContradiction)
	}

	if len(rd.KeyFindings) != 2 {
		t.Fatalf("expected 2 key findings, got %d: %v", len(rd.KeyFindings), rd.KeyFindings)
	}
	if rd.KeyFindings[0] != "需求强劲: AI服务器订单持续增长" {
		t.Errorf("unexpected first finding: %q", rd.KeyFindings[0])
	}

	if len(rd.CriticalQuestions) != 1 {
		t.Fatalf("expected 1 critical question, got %d", len(rd.CriticalQuestions))
	}
	cq := rd.CriticalQuestions[0]
	if cq.ID != "CQ1" || cq.Question != "营收可持续吗" || cq.Weight != "0.3" {
		t.Errorf("unexpected CQ row: %+v", cq)
	}
	if cq.Assessment != "部分成立" {
		t.Errorf("expected provenance-stripped assessment, got %q", cq.Assessment)
	}

	if len(rd.Hypotheses) != 1 {
		t.Fatalf("expected 1 hypothesis, got %d", len(rd.Hypotheses))
	}
	h := rd.Hypotheses[0]
	if h.ID != "CI-1" || h.Name != "行业周期" || h.Consensus != "成长股" || h.OurView != "周期股" {
		t.Errorf("unexpected hypothesis row: %+v", h)
	}

	wantSnapshot := map[string]string{
		"pe_ttm":       "18.5",
		"roe":          "22.1",
		"gross_margin": "9.8",
		"ttm_revenue":  "21.3B",
	}
	for k, v := range wantSnapshot {
		if rd.FinancialSnapshot[k] != v {
			t.Errorf("snapshot[%s]: expected %q, got %q", k, v, rd.FinancialSnapshot[k])
		}
	}

	if len(rd.RiskFactors) != 2 {
		t.Fatalf("expected 2 risk factors, got %d: %v", len(rd.RiskFactors), rd.RiskFactors)
	}
	if rd.RiskFactors[0] != "会计与内控风险" {
		t.Errorf("unexpected first risk: %q", rd.RiskFactors[0])
	}

	if !strings.Contains(rd.ValuationSummary, "公允价值") {
		t.Errorf("expected valuation summary to mention fair value, got %q", rd.ValuationSummary)
	}
}

func TestMarkdownParser_TickerFromDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tsla")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "report.md")
	if err := os.WriteFile(path, []byte("## 概述\n\n内容。\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rd, err := (&MarkdownReportParser{}).Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rd.Metadata.Ticker != "TSLA" {
		t.Errorf("expected ticker from directory TSLA, got %q", rd.Metadata.Ticker)
	}
	if rd.Metadata.CompanyName != "" {
		t.Errorf("expected empty company name, got %q", rd.Metadata.CompanyName)
	}
}

func TestMarkdownParser_MissingFile(t *testing.T) {
	_, err := (&MarkdownReportParser{}).Parse(filepath.Join(t.TempDir(), "absent.md"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExtractSection_StopsAtPeerHeading(t *testing.T) {
	text := "## 估值分析\n\n段落一。\n\n### 细节\n\n段落二。\n\n## 下一章\n\n无关。\n"
	got := extractSection(text, []string{"估值"})
	if !strings.Contains(got, "段落一。") || !strings.Contains(got, "段落二。") {
		t.Errorf("expected section to span sub-headings, got %q", got)
	}
	if strings.Contains(got, "无关") {
		t.Errorf("expected section to stop at next H2, got %q", got)
	}
}

func TestExtractSection_NoMatch(t *testing.T) {
	if got := extractSection("## 概述\n\n内容。\n", []string{"估值"}); got != "" {
		t.Errorf("expected empty section, got %q", got)
	}
}

func TestStripProvenance(t *testing.T) {
	cases := []struct{ in, want string }{
		{"营收增长 [DM-FIN-001]", "营收增长"},
		{"多标签 [DM-FIN-001] 中间 [DM-IND-023]", "多标签 中间"},
		{"无标签文本", "无标签文本"},
		// Single-letter codes and single digits are valid tags; lowercase is not.
		{"[DM-X-1] 小写不匹配 [dm-fin-001]", " 小写不匹配 [dm-fin-001]"},
	}
	for _, c := range cases {
		if got := StripProvenance(c.in); got != c.want {
			t.Errorf("StripProvenance(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFirstRunes(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 3, "hel"},
		{"hello", 10, "hello"},
		{"核心矛盾分析", 2, "核心"},
		{"核心", 0, ""},
	}
	for _, c := range cases {
		if got := firstRunes(c.in, c.n); got != c.want {
			t.Errorf("firstRunes(%q, %d) = %q, want %q", c.in, c.n, got, c.want)
		}
	}
}
