package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentx/internal/models"
	"agentx/internal/transcript"
)

func TestCategoryTitle(t *testing.T) {
	assert.Equal(t, "Google Drive", CategoryTitle("google_drive"))
	assert.Equal(t, "Search", CategoryTitle("search"))
	assert.Equal(t, "Custom Thing", CategoryTitle("custom_thing"))
}

func TestGroupByCategory(t *testing.T) {
	registry := []models.Tool{
		{ID: "drive_list", Name: "List Files", Category: "google_drive"},
		{ID: "web_search", Name: "Web Search", Category: "search"},
		{ID: "drive_read", Name: "Fetch File", Category: "google_drive"},
	}

	categories, grouped := GroupByCategory(registry)
	require.Equal(t, []string{"google_drive", "search"}, categories)
	require.Len(t, grouped["google_drive"], 2)
	assert.Equal(t, "Fetch File", grouped["google_drive"][0].Name)
}

func TestSummarize_RunningWithQuery(t *testing.T) {
	inv := transcript.Invocation{
		Name:      "web_search",
		Arguments: json.RawMessage(`{"query": "weather in oslo"}`),
		Status:    transcript.StatusRunning,
	}
	assert.Equal(t, `WEB_SEARCH "weather in oslo" (running)`, Summarize(inv))
}

func TestSummarize_CompletedShowsResultSize(t *testing.T) {
	inv := transcript.Invocation{
		Name:      "calculator",
		Arguments: json.RawMessage(`{"expression": "2+2"}`),
		Status:    transcript.StatusCompleted,
		Result:    json.RawMessage(`"4"`),
	}
	assert.Equal(t, `CALCULATOR "2+2" (done, 3B)`, Summarize(inv))
}

func TestSummarize_NoArguments(t *testing.T) {
	inv := transcript.Invocation{Name: "list_models", Status: transcript.StatusRunning}
	assert.Equal(t, "LIST_MODELS (running)", Summarize(inv))
}

func TestArgPreview_TruncatesLongValues(t *testing.T) {
	long := `{"query": "this is a very long query that keeps going well past the limit"}`
	got := argPreview(json.RawMessage(long))
	assert.LessOrEqual(t, len(got), previewMax+2)
	assert.Contains(t, got, "...")
}
