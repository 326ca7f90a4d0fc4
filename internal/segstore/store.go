// Package segstore persists split results as JSON on the local filesystem,
// one bundle per report+platform.
package segstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/finbrief/reportseg/internal/report"
)

// Bundle is the stored unit: the parsed metadata plus the segments emitted
// for one platform.
type Bundle struct {
	Ticker      string           `json:"ticker"`
	Platform    string           `json:"platform"`
	Metadata    report.Metadata  `json:"metadata"`
	Segments    []report.Segment `json:"segments"`
	SourceFile  string           `json:"source_file"`
	ContentHash string           `json:"content_hash"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Store writes and reads bundles under a root directory, laid out as
// <root>/<ticker>/segments_<platform>.json.
type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

// Save writes a bundle atomically (write to temp file, then rename).
func (s *Store) Save(b *Bundle) error {
	if b.Ticker == "" {
		return fmt.Errorf("bundle has no ticker")
	}
	dir := filepath.Join(s.root, strings.ToLower(b.Ticker))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}

	path := s.bundlePath(b.Ticker, b.Platform)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename bundle: %w", err)
	}
	return nil
}

// Load reads the bundle for a ticker+platform. Returns os.ErrNotExist
// (wrapped) when no bundle has been stored.
func (s *Store) Load(ticker, platform string) (*Bundle, error) {
	data, err := os.ReadFile(s.bundlePath(ticker, platform))
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &b, nil
}

// ListTickers returns the tickers that have at least one stored bundle.
func (s *Store) ListTickers() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var tickers []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		bundles, _ := filepath.Glob(filepath.Join(s.root, e.Name(), "segments_*.json"))
		if len(bundles) > 0 {
			tickers = append(tickers, strings.ToUpper(e.Name()))
		}
	}
	sort.Strings(tickers)
	return tickers, nil
}

// Platforms returns the platforms a ticker has bundles for.
func (s *Store) Platforms(ticker string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.root, strings.ToLower(ticker), "segments_*.json"))
	if err != nil {
		return nil, err
	}
	var platforms []string
	for _, p := range paths {
		name := filepath.Base(p)
		name = strings.TrimSuffix(strings.TrimPrefix(name, "segments_"), ".json")
		platforms = append(platforms, name)
	}
	sort.Strings(platforms)
	return platforms, nil
}

func (s *Store) bundlePath(ticker, platform string) string {
	return filepath.Join(s.root, strings.ToLower(ticker), "segments_"+platform+".json")
}
