package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

type stubService struct {
	answer  string
	results []domain.SearchResult
	asked   []string
}

func (s *stubService) Ask(question string, topK int) (string, []domain.SearchResult) {
	s.asked = append(s.asked, question)
	return s.answer, s.results
}

func pressEnter(m Model, query string) Model {
	m.input.SetValue(query)
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return updated.(Model)
}

func TestEnterAsksAndUpdatesStatus(t *testing.T) {
	svc := &stubService{
		answer: "bees pollinate",
		results: []domain.SearchResult{
			{Content: "Bees pollinate flowers.", ExternalID: "a", Metadata: map[string]any{"source": "bees.txt"}},
			{Content: "Steel is an alloy.", ExternalID: "b", Metadata: map[string]any{"source": "steel.txt"}},
		},
	}
	m := New(svc, 5, "Ready.")

	m = pressEnter(m, "  bees  ")
	require.Equal(t, []string{"bees"}, svc.asked, "query is trimmed before asking")
	assert.Equal(t, "bees pollinate", m.answer)
	assert.Equal(t, `2 chunks for "bees"`, m.status)
	assert.Equal(t, 0, m.cursor)
}

func TestEnterWithNoMatches(t *testing.T) {
	svc := &stubService{}
	m := New(svc, 5, "Ready.")

	m = pressEnter(m, "anything")
	assert.Equal(t, `No matches for "anything"`, m.status)
	assert.Contains(t, m.currentResultView(), "No supporting chunks yet.")
}

func TestArrowKeysWrapAroundResults(t *testing.T) {
	svc := &stubService{results: []domain.SearchResult{
		{Content: "one.", ExternalID: "1"},
		{Content: "two.", ExternalID: "2"},
		{Content: "three.", ExternalID: "3"},
	}}
	m := pressEnter(New(svc, 5, "Ready."), "q")

	m, handled := m.handleKey("down")
	require.True(t, handled)
	assert.Equal(t, 1, m.cursor)
	m, _ = m.handleKey("up")
	m, _ = m.handleKey("up")
	assert.Equal(t, 2, m.cursor, "moving up from the first chunk wraps to the last")
}

func TestCurrentResultViewNamesSourceAndDistance(t *testing.T) {
	svc := &stubService{results: []domain.SearchResult{{
		Content:    "Bees pollinate flowers.",
		ExternalID: "bees.txt_chunk_0",
		Score:      0.125,
		Metadata:   map[string]any{"source": "bees.txt"},
	}}}
	m := pressEnter(New(svc, 5, "Ready."), "bees")

	view := m.currentResultView()
	assert.Contains(t, view, "Chunk 1/1")
	assert.Contains(t, view, "distance=0.125")
	assert.Contains(t, view, "source=bees.txt")
	assert.Contains(t, view, "id=bees.txt_chunk_0")
}

func TestEmphasizeBestSentenceKeepsAllSentences(t *testing.T) {
	text := "Bees pollinate flowers. Steel is an alloy. Rivers carve valleys."
	out := emphasizeBestSentence(text, "how do bees pollinate")
	assert.Contains(t, out, "Bees pollinate flowers.")
	assert.Contains(t, out, "Steel is an alloy.")
	assert.Contains(t, out, "Rivers carve valleys.")
}

func TestEmphasizeBestSentenceWithoutPunctuation(t *testing.T) {
	out := emphasizeBestSentence("no punctuation here", "punctuation")
	assert.Contains(t, out, "no punctuation here")
}

func TestOverlapCountsDistinctSharedTokens(t *testing.T) {
	q := tokenSet("bees and more bees")
	assert.Equal(t, 1, overlap(q, tokenSet("bees bees bees")))
	assert.Equal(t, 0, overlap(q, tokenSet("steel")))
}
