package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReportDir returns the source directory for a ticker.
func (c Config) ReportDir(ticker string) string {
	return filepath.Join(c.ReportsDir, strings.ToLower(ticker))
}

// FindHTMLReport returns the ticker's index.html, or "" if absent.
func (c Config) FindHTMLReport(ticker string) string {
	return existing(filepath.Join(c.ReportDir(ticker), "index.html"))
}

// FindEnglishHTMLReport returns the English index.html, or "" if absent.
func (c Config) FindEnglishHTMLReport(ticker string) string {
	return existing(filepath.Join(c.ReportDir(ticker), "en", "index.html"))
}

// FindMarkdownReport returns the newest .md report for a ticker (README.md
// excluded), or "" if none exists.
func (c Config) FindMarkdownReport(ticker string) string {
	return newestMarkdown(c.ReportDir(ticker))
}

// FindEnglishMarkdown returns the newest .md report under en/, or "".
func (c Config) FindEnglishMarkdown(ticker string) string {
	return newestMarkdown(filepath.Join(c.ReportDir(ticker), "en"))
}

func existing(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func newestMarkdown(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	type candidate struct {
		name string
		mod  int64
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() || e.Name() == "README.md" {
			continue
		}
		if strings.ToLower(filepath.Ext(e.Name())) != ".md" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{e.Name(), info.ModTime().UnixNano()})
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].mod > candidates[j].mod })
	return filepath.Join(dir, candidates[0].name)
}
