// Package tools renders tool registry entries and live invocations for
// the terminal: one-line summaries, argument previews and category
// grouping for the selector.
package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"agentx/internal/models"
	"agentx/internal/transcript"
)

// categoryTitles maps registry categories to display names. Unknown
// categories fall back to a title-cased version of the raw id.
var categoryTitles = map[string]string{
	"search":       "Search",
	"productivity": "Productivity",
	"google_drive": "Google Drive",
	"gmail":        "Gmail",
	"calendar":     "Calendar",
	"code":         "Code",
}

func CategoryTitle(category string) string {
	if title, ok := categoryTitles[category]; ok {
		return title
	}
	words := strings.Split(category, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// GroupByCategory buckets the registry for the selector, with
// categories and tools in stable alphabetical order.
func GroupByCategory(registry []models.Tool) (categories []string, grouped map[string][]models.Tool) {
	grouped = make(map[string][]models.Tool)
	for _, tool := range registry {
		grouped[tool.Category] = append(grouped[tool.Category], tool)
	}
	for category, ts := range grouped {
		sort.Slice(ts, func(i, j int) bool { return ts[i].Name < ts[j].Name })
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories, grouped
}

// Summarize renders one invocation as a single transcript line, e.g.
//
//	WEB_SEARCH "weather in oslo" (done, 1.2KB)
func Summarize(inv transcript.Invocation) string {
	label := strings.ToUpper(inv.Name)
	preview := argPreview(inv.Arguments)

	if inv.Status == transcript.StatusRunning {
		if preview == "" {
			return fmt.Sprintf("%s (running)", label)
		}
		return fmt.Sprintf("%s %s (running)", label, preview)
	}

	size := resultSize(inv.Result)
	if preview == "" {
		return fmt.Sprintf("%s (done, %s)", label, size)
	}
	return fmt.Sprintf("%s %s (done, %s)", label, preview, size)
}

// argPreview picks the most useful scalar out of the call arguments.
// Tools take free-form argument objects, so this goes by convention:
// common primary keys first, then the first string value found.
func argPreview(args json.RawMessage) string {
	if len(args) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(args, &asString); err == nil {
		return quoteTrimmed(asString)
	}

	var asMap map[string]any
	if err := json.Unmarshal(args, &asMap); err != nil {
		return ""
	}
	for _, key := range []string{"query", "q", "prompt", "url", "path", "name"} {
		if v, ok := asMap[key].(string); ok && v != "" {
			return quoteTrimmed(v)
		}
	}

	keys := make([]string, 0, len(asMap))
	for k := range asMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v, ok := asMap[k].(string); ok && v != "" {
			return quoteTrimmed(v)
		}
	}
	return ""
}

const previewMax = 40

func quoteTrimmed(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > previewMax {
		s = s[:previewMax-3] + "..."
	}
	return fmt.Sprintf("%q", s)
}

func resultSize(result json.RawMessage) string {
	n := len(result)
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1fMB", float64(n)/(1024*1024))
	}
}
