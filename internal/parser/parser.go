// Package parser converts report source files (Markdown, HTML, and a few
// text-only fallbacks) into the normalized report.Data model.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/finbrief/reportseg/internal/report"
)

// ReportParser converts one source file into a normalized report.
type ReportParser interface {
	Parse(path string) (*report.Data, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".txt":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (ReportParser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".md", ".markdown":
		return &MarkdownReportParser{}, nil
	case ".html", ".htm":
		return &HTMLReportParser{}, nil
	case ".txt":
		return &TextReportParser{}, nil
	case ".pdf":
		return &PDFReportParser{}, nil
	case ".docx":
		return &DOCXReportParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// SelectSource picks the report source file inside dir. HTML wins over
// Markdown when both exist because index.html carries the manually-edited
// content; among Markdown files the newest one (excluding README.md) wins.
func SelectSource(dir string) (string, error) {
	htmlPath := filepath.Join(dir, "index.html")
	if _, err := os.Stat(htmlPath); err == nil {
		return htmlPath, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var newest string
	var newestMod int64
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
		if newest == "" || info.ModTime().UnixNano() > newestMod {
			newest = e.Name()
			newestMod = info.ModTime().UnixNano()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no report source in %s", dir)
	}
	return filepath.Join(dir, newest), nil
}
