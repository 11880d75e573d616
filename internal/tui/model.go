// Package tui is the interactive front-end: a single-question input, the
// synthesized answer, and a browsable view of the supporting chunks.
package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
)

// QAPort is the TUI-facing subset of the question-answering service.
type QAPort interface {
	Ask(question string, topK int) (answer string, results []domain.SearchResult)
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// Model holds the query loop state: the last question asked, its answer, and
// a cursor over the retrieved chunks.
type Model struct {
	service   QAPort
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	results   []domain.SearchResult
	answer    string
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

func New(service QAPort, topK int, banner string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	return Model{service: service, topK: topK, input: ti, viewport: viewport.New(0, 0), status: banner}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.viewport.SetContent(m.currentResultView())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if updated, handled := m.handleKey(msg.String()); handled {
			return updated, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// resize fits the chunk viewport into whatever height the boxes and the
// single-line header, answer, and status rows leave over.
func (m *Model) resize(width, height int) {
	m.ready = true
	_, boxFrame := boxStyle.GetFrameSize()
	reserved := 3 + boxFrame + 1 // header + answer + status, query box, spacer
	m.viewport.Width = max(20, width)
	m.viewport.Height = max(3, height-reserved-boxFrame)
}

func (m Model) handleKey(key string) (Model, bool) {
	switch key {
	case "enter":
		q := strings.TrimSpace(m.input.Value())
		if q == "" {
			return m, false
		}
		m.ask(q)
	case "down":
		if len(m.results) == 0 {
			return m, false
		}
		m.cursor = (m.cursor + 1) % len(m.results)
	case "up":
		if len(m.results) == 0 {
			return m, false
		}
		m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
	default:
		return m, false
	}
	m.viewport.SetContent(m.currentResultView())
	return m, true
}

func (m *Model) ask(question string) {
	m.answer, m.results = m.service.Ask(question, m.topK)
	m.cursor = 0
	m.lastQuery = question
	if len(m.results) == 0 {
		m.status = fmt.Sprintf("No matches for %q", question)
		return
	}
	m.status = fmt.Sprintf("%d chunks for %q", len(m.results), question)
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("docqa"),
		answerStyle.Render(m.answer),
		boxStyle.Render(m.viewport.View()),
		boxStyle.Render(m.input.View()),
		statusStyle.Render(m.status),
	)
}

// currentResultView renders the chunk under the cursor, with the sentence
// closest to the last question emphasized.
func (m Model) currentResultView() string {
	if len(m.results) == 0 {
		return "No supporting chunks yet."
	}
	r := m.results[m.cursor]
	source, _ := r.Metadata["source"].(string)
	title := fmt.Sprintf("Chunk %d/%d  distance=%.3f  source=%s  id=%s",
		m.cursor+1, len(m.results), r.Score, source, r.ExternalID)
	return title + "\n\n" + emphasizeBestSentence(r.Content, m.lastQuery)
}

// emphasizeBestSentence styles the sentence sharing the most distinct tokens
// with the query. Text without sentence punctuation is treated as one
// sentence.
func emphasizeBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	best, bestScore := 0, -1
	for i, s := range sentences {
		if score := overlap(queryTokens, tokenSet(s)); score > bestScore {
			best, bestScore = i, score
		}
	}
	sentences[best] = highlightStyle.Render(sentences[best])
	return strings.Join(sentences, " ")
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) int {
	n := 0
	for t := range b {
		if _, ok := a[t]; ok {
			n++
		}
	}
	return n
}
