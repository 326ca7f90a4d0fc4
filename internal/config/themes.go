package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// themeFile is the shape of the optional THEME_CONFIG YAML file:
//
//	platforms:
//	  xiaohongshu:
//	    - executive_overview
//	    - competitive_growth
//	    - risk_verdict
type themeFile struct {
	Platforms map[string][]string `yaml:"platforms"`
}

// LoadThemeOverrides reads per-platform theme-list overrides from a YAML
// file. A platform absent from the file keeps its built-in theme list.
func LoadThemeOverrides(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f themeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse theme config %s: %w", path, err)
	}
	return f.Platforms, nil
}
