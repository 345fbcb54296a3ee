// Package kb provides read-only browsing over the knowledge base: a
// directory of categories, each holding markdown materials and optional
// per-material index files.
package kb

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/starford/studykb/internal/apperr"
)

// Material is one markdown file in a category.
type Material struct {
	Name      string `json:"name"` // file name without the .md extension
	Title     string `json:"title"`
	LineCount int    `json:"line_count"`
	HasIndex  bool   `json:"has_index"`
}

// Category is one directory of materials.
type Category struct {
	Name      string     `json:"name"`
	Materials []Material `json:"materials"`
}

// Line is one numbered line of a material.
type Line struct {
	Num  int    `json:"num"`
	Text string `json:"text"`
}

// Service reads the knowledge base rooted at one directory.
type Service struct {
	root         string
	maxReadLines int
}

// NewService creates a kb service rooted at root, returning at most
// maxReadLines lines per read.
func NewService(root string, maxReadLines int) *Service {
	return &Service{root: root, maxReadLines: maxReadLines}
}

// ListCategories returns every category with its materials, sorted by name.
// Hidden directories and index files ({material}_index.md) are skipped; a
// missing kb root yields an empty list.
func (s *Service) ListCategories() ([]Category, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []Category{}, nil
		}
		return nil, fmt.Errorf("kb: read root: %w", err)
	}

	var categories []Category
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		materials, err := s.listMaterials(entry.Name())
		if err != nil {
			return nil, err
		}
		categories = append(categories, Category{Name: entry.Name(), Materials: materials})
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	if categories == nil {
		categories = []Category{}
	}
	return categories, nil
}

func (s *Service) listMaterials(category string) ([]Material, error) {
	dir := filepath.Join(s.root, category)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("kb: read category %s: %w", category, err)
	}

	var materials []Material
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") || strings.HasSuffix(name, "_index.md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		base := strings.TrimSuffix(name, ".md")
		_, hasIndex := statFile(filepath.Join(dir, base+"_index.md"))
		materials = append(materials, Material{
			Name:      base,
			Title:     ExtractTitle(data),
			LineCount: countLines(data),
			HasIndex:  hasIndex,
		})
	}
	sort.Slice(materials, func(i, j int) bool { return materials[i].Name < materials[j].Name })
	if materials == nil {
		materials = []Material{}
	}
	return materials, nil
}

// ReadRange returns the inclusive 1-based line range [startLine, endLine] of
// a material (the whole file when both are 0), capped at the configured read
// limit. The second return reports truncation.
func (s *Service) ReadRange(category, material string, startLine, endLine int) ([]Line, bool, error) {
	path := filepath.Join(s.root, category, material+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, fmt.Errorf("kb: material %s/%s: %w", category, material, apperr.ErrNotFound)
		}
		return nil, false, fmt.Errorf("kb: read %s/%s: %w", category, material, err)
	}

	all := splitLines(string(data))
	if startLine <= 0 {
		startLine = 1
	}
	if endLine <= 0 || endLine > len(all) {
		endLine = len(all)
	}
	start := startLine - 1
	end := endLine
	truncated := false
	if end-start > s.maxReadLines {
		end = start + s.maxReadLines
		truncated = true
	}

	var lines []Line
	for i := start; i < end; i++ {
		lines = append(lines, Line{Num: i + 1, Text: all[i]})
	}
	return lines, truncated, nil
}

// GrepMatch is one pattern hit with surrounding context.
type GrepMatch struct {
	LineNum int    `json:"line_num"`
	Context []Line `json:"context"`
}

// GrepResult holds all hits within one material.
type GrepResult struct {
	Material     string      `json:"material"`
	Matches      []GrepMatch `json:"matches"`
	TotalMatches int         `json:"total_matches"`
}

// Grep searches materials in a category for a regular expression. material
// narrows the search to one file ("" searches all); contextLines is the
// window of lines included before and after each hit; maxMatches caps the
// hits returned per call (matches beyond it still count in TotalMatches).
func (s *Service) Grep(category, pattern, material string, contextLines, maxMatches int) ([]GrepResult, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("kb: invalid pattern: %w", err)
	}

	var targets []string
	if material != "" {
		if _, ok := statFile(filepath.Join(s.root, category, material+".md")); !ok {
			return nil, fmt.Errorf("kb: material %s/%s: %w", category, material, apperr.ErrNotFound)
		}
		targets = []string{material}
	} else {
		materials, err := s.listMaterials(category)
		if err != nil {
			return nil, err
		}
		for _, m := range materials {
			targets = append(targets, m.Name)
		}
	}

	remaining := maxMatches
	var results []GrepResult
	for _, name := range targets {
		res, err := s.grepFile(category, name, re, contextLines, remaining)
		if err != nil {
			return nil, err
		}
		if res.TotalMatches == 0 {
			continue
		}
		remaining -= len(res.Matches)
		results = append(results, res)
		if remaining <= 0 {
			break
		}
	}
	if results == nil {
		results = []GrepResult{}
	}
	return results, nil
}

func (s *Service) grepFile(category, material string, re *regexp.Regexp, contextLines, maxMatches int) (GrepResult, error) {
	path := filepath.Join(s.root, category, material+".md")
	f, err := os.Open(path)
	if err != nil {
		return GrepResult{}, fmt.Errorf("kb: open %s/%s: %w", category, material, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return GrepResult{}, fmt.Errorf("kb: scan %s/%s: %w", category, material, err)
	}

	result := GrepResult{Material: material}
	for i, line := range lines {
		if !re.MatchString(line) {
			continue
		}
		result.TotalMatches++
		if len(result.Matches) >= maxMatches {
			continue
		}
		match := GrepMatch{LineNum: i + 1}
		lo := max(0, i-contextLines)
		hi := min(len(lines), i+contextLines+1)
		for j := lo; j < hi; j++ {
			match.Context = append(match.Context, Line{Num: j + 1, Text: lines[j]})
		}
		result.Matches = append(result.Matches, match)
	}
	return result, nil
}

func statFile(path string) (os.FileInfo, bool) {
	info, err := os.Stat(path)
	return info, err == nil
}

func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := strings.Count(string(data), "\n")
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
