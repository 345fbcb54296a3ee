package mcpserver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/studykb/internal/history"
	"github.com/starford/studykb/internal/index"
	"github.com/starford/studykb/internal/kb"
	"github.com/starford/studykb/internal/progress"
	"github.com/starford/studykb/internal/workspace"
)

func formatCategories(cats []kb.Category) string {
	var b strings.Builder
	for _, cat := range cats {
		fmt.Fprintf(&b, "%s/ (%d materials)\n", cat.Name, len(cat.Materials))
		for _, m := range cat.Materials {
			idx := ""
			if m.HasIndex {
				idx = " [index]"
			}
			title := m.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Fprintf(&b, "  %s - %s, %d lines%s\n", m.Name, title, m.LineCount, idx)
		}
	}
	return b.String()
}

func formatLines(lines []kb.Line, truncated bool) string {
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "%4d: %s\n", l.Num, l.Text)
	}
	if truncated {
		b.WriteString("... output truncated; request a narrower line range to continue\n")
	}
	return b.String()
}

func formatWorkspaceLines(lines []workspace.Line, truncated bool) string {
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "%4d: %s\n", l.Num, l.Text)
	}
	if truncated {
		b.WriteString("... output truncated; request a narrower line range to continue\n")
	}
	return b.String()
}

func formatGrepResults(results []kb.GrepResult) string {
	var b strings.Builder
	for _, res := range results {
		fmt.Fprintf(&b, "%s (%d matches)\n", res.Material, res.TotalMatches)
		for _, m := range res.Matches {
			for _, l := range m.Context {
				marker := " "
				if l.Num == m.LineNum {
					marker = ">"
				}
				fmt.Fprintf(&b, "%s %4d: %s\n", marker, l.Num, l.Text)
			}
			b.WriteString("--\n")
		}
		if res.TotalMatches > len(res.Matches) {
			fmt.Fprintf(&b, "(%d more matches not shown)\n", res.TotalMatches-len(res.Matches))
		}
	}
	return b.String()
}

func formatSearchResults(results []index.SearchResult) string {
	var b strings.Builder
	for _, r := range results {
		title := r.Title
		if title == "" {
			title = r.Material
		}
		fmt.Fprintf(&b, "%s - %s\n  %s\n", r.Path, title, r.Snippet)
	}
	return b.String()
}

func formatProgressFile(file *progress.File) string {
	if len(file.Entries) == 0 {
		return fmt.Sprintf("no progress entries in %s", file.Category)
	}

	type keyed struct {
		id    string
		entry *progress.Entry
	}
	byStatus := map[progress.Status][]keyed{}
	for id, e := range file.Entries {
		byStatus[e.Status] = append(byStatus[e.Status], keyed{id, e})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "progress for %s (%d entries)\n", file.Category, len(file.Entries))
	for _, status := range []progress.Status{progress.StatusReview, progress.StatusActive, progress.StatusPending, progress.StatusDone} {
		group := byStatus[status]
		if len(group) == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].id < group[j].id })
		fmt.Fprintf(&b, "\n[%s]\n", status)
		for _, k := range group {
			fmt.Fprintf(&b, "  %s - %s", k.id, k.entry.Name)
			if k.entry.Comment != "" {
				fmt.Fprintf(&b, " (%s)", k.entry.Comment)
			}
			if k.entry.NextReviewAt != nil {
				fmt.Fprintf(&b, " [next review %s]", k.entry.NextReviewAt.Format("2006-01-02"))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func formatFileList(files []workspace.FileInfo) string {
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "%s (%d bytes)\n", f.Path, f.Size)
	}
	return b.String()
}

func formatVersions(path string, versions []history.Version) string {
	var b strings.Builder
	fmt.Fprintf(&b, "history for %s (%d versions, newest first)\n", path, len(versions))
	for _, v := range versions {
		fmt.Fprintf(&b, "  %s  %s  %-6s  %d bytes, %d lines  %s\n",
			v.VersionID, v.Timestamp, v.Operation, v.Size, v.Lines, v.Description)
	}
	return b.String()
}
