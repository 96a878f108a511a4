// Package eval replays labeled question suites through the pipeline and
// aggregates pass/fail statistics for offline model comparison.
package eval

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrNoCases = errors.New("eval: no cases found")

// Case is one labeled question. Expectations are optional; a case with
// neither passes on any successful session.
type Case struct {
	Question          string   `json:"question" yaml:"question"`
	CSV               string   `json:"csv" yaml:"csv"`
	Table             string   `json:"table" yaml:"table"`
	ExpectSQLContains []string `json:"expect_sql_contains" yaml:"expect_sql_contains"`
	ExpectMinRows     *int     `json:"expect_min_rows" yaml:"expect_min_rows"`
}

// LoadCases reads a case suite from a JSONL file (one object per line) or a
// YAML list, selected by extension.
func LoadCases(path string) ([]Case, error) {
	var cases []Case
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cases, err = loadYAML(path)
	default:
		cases, err = loadJSONL(path)
	}
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("%w in %q", ErrNoCases, path)
	}
	for i := range cases {
		if cases[i].Table == "" {
			cases[i].Table = "data"
		}
		if cases[i].Question == "" {
			return nil, fmt.Errorf("case %d in %q has no question", i+1, path)
		}
		if cases[i].CSV == "" {
			return nil, fmt.Errorf("case %d in %q has no data source", i+1, path)
		}
	}
	return cases, nil
}

func loadJSONL(path string) ([]Case, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cases %q: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	var cases []Case
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var c Case
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, fmt.Errorf("parse case at %s:%d: %w", path, line, err)
		}
		cases = append(cases, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cases %q: %w", path, err)
	}
	return cases, nil
}

func loadYAML(path string) ([]Case, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open cases %q: %w", path, err)
	}
	var cases []Case
	if err := yaml.Unmarshal(raw, &cases); err != nil {
		return nil, fmt.Errorf("parse cases %q: %w", path, err)
	}
	return cases, nil
}
