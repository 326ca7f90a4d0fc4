// Package splitter partitions a parsed report into themed segments for a
// target platform using weighted keyword classification.
package splitter

// ThemeDef is one canonical classification theme. Keywords are lowercase;
// IncludeFields names report.Data fields whose content is prepended as
// supplementary material when a segment is built for this theme.
type ThemeDef struct {
	Key           string
	TitleZH       string
	TitleEN       string
	Keywords      []string
	IncludeFields []string
}

// Themes is the canonical theme vocabulary, in declaration order. The order
// matters: classification ties break toward the earlier theme, and the last
// theme is the orphan fallback when nothing precedes an unclassified
// chapter.
var Themes = []ThemeDef{
	{
		Key:     "executive_overview",
		TitleZH: "核心概览",
		TitleEN: "Executive Overview",
		Keywords: []string{
			"executive summary", "核心结论", "core contradiction",
			"核心矛盾", "投资摘要", "investment thesis", "概述", "overview",
			"总结", "summary",
		},
		IncludeFields: []string{"executive_summary", "core_contradiction", "key_findings"},
	},
	{
		Key:     "financial_deep_dive",
		TitleZH: "财务深度分析",
		TitleEN: "Financial Deep Dive",
		Keywords: []string{
			"财务", "financial", "revenue", "收入", "利润", "margin",
			"dcf", "valuation", "估值", "盈利", "earnings", "现金流",
			"cash flow", "资产负债", "balance sheet", "营收",
		},
		IncludeFields: []string{"financial_snapshot"},
	},
	{
		Key:     "competitive_position",
		TitleZH: "竞争格局",
		TitleEN: "Competitive Position",
		Keywords: []string{
			"竞争", "competitive", "moat", "护城河", "market share",
			"市场份额", "行业", "industry", "对手", "competitor",
			"壁垒", "barrier", "差异化", "differentiation",
		},
	},
	{
		Key:     "growth_technology",
		TitleZH: "增长与技术",
		TitleEN: "Growth & Technology",
		Keywords: []string{
			"业务", "business", "technology", "技术", "ai", "产品",
			"product", "增长", "growth", "创新", "innovation",
			"pipeline", "研发", "r&d", "expansion", "扩张",
		},
	},
	{
		Key:     "risk_verdict",
		TitleZH: "风险与结论",
		TitleEN: "Risk & Verdict",
		Keywords: []string{
			"风险", "risk", "scenario", "bear case", "bull case",
			"看空", "看多", "情景", "downside", "upside", "挑战",
			"challenge", "不确定", "uncertainty",
		},
		IncludeFields: []string{"risk_factors", "bull_case", "bear_case"},
	},
}

// PlatformThemes maps a platform identifier to its ordered theme keys.
// Entries are either canonical keys or merged keys from MergedThemes.
var PlatformThemes = map[string][]string{
	"xueqiu": {
		"executive_overview",
		"financial_deep_dive",
		"competitive_position",
		"growth_technology",
		"risk_verdict",
	},
	"xiaohongshu": {
		"executive_overview",
		"financial_deep_dive",
		"competitive_growth", // merged: competitive + growth
		"risk_verdict",
	},
	"twitter": {
		"executive_overview",
		"financial_data", // financial only
		"risk_verdict",
	},
	"youtube": {
		"executive_overview",
		"financial_deep_dive",
		"competitive_position",
		"growth_technology",
		"risk_verdict",
	},
}

// MergedThemes expands a platform-facing merged key to the canonical theme
// keys whose chapters it combines. Fixed lookup, never computed.
var MergedThemes = map[string][]string{
	"competitive_growth": {"competitive_position", "growth_technology"},
	"financial_data":     {"financial_deep_dive"},
}

// DefaultPlatform is used when a platform has no configured theme list.
const DefaultPlatform = "xueqiu"

func themeByKey(key string) *ThemeDef {
	for i := range Themes {
		if Themes[i].Key == key {
			return &Themes[i]
		}
	}
	return nil
}
