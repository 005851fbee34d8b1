package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/pedigest/internal/embed"
	"github.com/dgallion1/pedigest/internal/store"
)

// view identifies which screen the model is showing.
type view int

const (
	viewMenu view = iota
	viewInput
	viewLoading
	viewResults
	viewStats
)

// Search modes offered by the menu. These match the HTTP API's
// search mode names.
const (
	modeSemantic = "semantic"
	modeKeyword  = "keyword"
	modeCategory = "category"
)

const previewChars = 200

type menuItem struct {
	label string
	mode  string
}

var menuItems = []menuItem{
	{"Semantic search", modeSemantic},
	{"Keyword search", modeKeyword},
	{"Browse by category", modeCategory},
	{"Database stats", "stats"},
	{"Quit", "quit"},
}

// ModelConfig holds the configuration for creating a new Model
type ModelConfig struct {
	Searcher  store.Searcher
	Embedder  embed.Embedder
	Threshold float32
	Limit     int
	Renderer  *lipgloss.Renderer // Optional: if nil, uses default renderer
}

// Model is the main TUI model for the search client
type Model struct {
	searcher  store.Searcher
	embedder  embed.Embedder
	threshold float32
	limit     int
	styles    Styles

	input   textinput.Model
	spin    spinner.Model
	results viewport.Model

	view    view
	menuIdx int
	mode    string
	query   string
	hits    []store.SearchResult
	stats   *store.Stats
	err     error

	width    int
	height   int
	ready    bool
	quitting bool
}

// NewModel creates a new TUI model with the given configuration
func NewModel(config ModelConfig) Model {
	renderer := config.Renderer
	if renderer == nil {
		renderer = lipgloss.DefaultRenderer()
	}
	styles := NewStyles(renderer)

	threshold := config.Threshold
	if threshold <= 0 {
		threshold = store.DefaultMatchThreshold
	}
	limit := config.Limit
	if limit <= 0 {
		limit = store.DefaultMatchLimit
	}

	ti := textinput.New()
	ti.Placeholder = "type a query"
	ti.CharLimit = 256
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Accent

	return Model{
		searcher:  config.Searcher,
		embedder:  config.Embedder,
		threshold: threshold,
		limit:     limit,
		styles:    styles,
		input:     ti,
		spin:      sp,
		results:   viewport.New(80, 20),
		view:      viewMenu,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model state
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.results.Width = msg.Width - 2
		m.results.Height = max(msg.Height-6, 5)
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case SearchResultMsg:
		m.hits = msg.Hits
		m.err = msg.Err
		m.mode = msg.Mode
		m.query = msg.Query
		m.view = viewResults
		m.results.SetContent(m.renderResults())
		m.results.GotoTop()
		return m, nil

	case StatsMsg:
		m.stats = msg.Stats
		m.err = msg.Err
		m.view = viewStats
		m.results.SetContent(m.renderStats())
		m.results.GotoTop()
		return m, nil

	case spinner.TickMsg:
		if m.view == viewLoading {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if m.view == viewInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.view {
	case viewMenu:
		switch key {
		case "up", "k":
			if m.menuIdx > 0 {
				m.menuIdx--
			}
		case "down", "j":
			if m.menuIdx < len(menuItems)-1 {
				m.menuIdx++
			}
		case "enter":
			return m.selectMenuItem()
		case "q", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case viewInput:
		switch key {
		case "esc":
			m.view = viewMenu
			m.input.Blur()
			return m, nil
		case "enter":
			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				return m, nil
			}
			m.view = viewLoading
			m.input.Blur()
			return m, tea.Batch(m.spin.Tick, m.searchCmd(m.mode, query))
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case viewLoading:
		return m, nil

	case viewResults, viewStats:
		switch key {
		case "esc", "b":
			m.view = viewMenu
			return m, nil
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "/":
			if m.view == viewResults {
				return m.openInput(m.mode), nil
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) selectMenuItem() (tea.Model, tea.Cmd) {
	item := menuItems[m.menuIdx]
	switch item.mode {
	case "quit":
		m.quitting = true
		return m, tea.Quit
	case "stats":
		m.view = viewLoading
		return m, tea.Batch(m.spin.Tick, m.statsCmd())
	default:
		return m.openInput(item.mode), textinput.Blink
	}
}

func (m Model) openInput(mode string) Model {
	m.mode = mode
	m.view = viewInput
	m.input.Reset()
	m.input.Focus()
	return m
}

// View renders the current state of the model
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	title := m.styles.Title.Render("Nelson Pediatrics Search")

	var body, help string
	switch m.view {
	case viewMenu:
		body = m.renderMenu()
		help = "up/down: navigate | enter: select | q: quit"
	case viewInput:
		body = m.renderInput()
		help = "enter: search | esc: back"
	case viewLoading:
		body = fmt.Sprintf("\n  %s searching...\n", m.spin.View())
		help = "ctrl+c: quit"
	case viewResults:
		body = m.results.View()
		help = "up/down: scroll | /: new search | esc: menu | q: quit"
	case viewStats:
		body = m.results.View()
		help = "up/down: scroll | esc: menu | q: quit"
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		body,
		"",
		m.styles.StatusBar.Render(help),
	)
}

func (m Model) renderMenu() string {
	var b strings.Builder
	for i, item := range menuItems {
		if i == m.menuIdx {
			b.WriteString(m.styles.MenuSelected.Render("> " + item.label))
		} else {
			b.WriteString(m.styles.MenuItem.Render("  " + item.label))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderInput() string {
	prompt := m.styles.Prompt.Render(inputPrompt(m.mode))
	return fmt.Sprintf("  %s\n\n  %s", prompt, m.input.View())
}

func inputPrompt(mode string) string {
	switch mode {
	case modeKeyword:
		return "Keyword search:"
	case modeCategory:
		return "Category (e.g. Cardiology):"
	default:
		return "Semantic search:"
	}
}

func (m Model) renderResults() string {
	if m.err != nil {
		return m.styles.Error.Render(fmt.Sprintf("  search failed: %v", m.err))
	}
	if len(m.hits) == 0 {
		return m.styles.Muted.Render(fmt.Sprintf("  no results for %q", m.query))
	}

	var b strings.Builder
	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("  %d results for %q (%s)", len(m.hits), m.query, m.mode)))
	b.WriteString("\n\n")
	for i, hit := range m.hits {
		rec := hit.Record
		title := fmt.Sprintf("%d. %s", i+1, rec.Chapter)
		if rec.Section != "" {
			title += " / " + rec.Section
		}
		if rec.PageNumber > 0 {
			title += fmt.Sprintf(" (p. %d)", rec.PageNumber)
		}
		b.WriteString("  " + m.styles.ResultTitle.Render(title))
		if hit.Similarity > 0 {
			b.WriteString("  " + m.styles.Similarity.Render(fmt.Sprintf("%.2f", hit.Similarity)))
		}
		b.WriteString("\n")
		b.WriteString("  " + m.styles.ResultMeta.Render(rec.MedicalCategory+" | "+rec.AgeGroup))
		b.WriteString("\n")
		b.WriteString("  " + m.styles.ResultBody.Render(preview(rec.Content, previewChars)))
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m Model) renderStats() string {
	if m.err != nil {
		return m.styles.Error.Render(fmt.Sprintf("  stats failed: %v", m.err))
	}
	if m.stats == nil {
		return m.styles.Muted.Render("  no stats available")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("  Textbook records:  %d\n", m.stats.TextbookCount))
	b.WriteString(fmt.Sprintf("  Resource records:  %d\n", m.stats.ResourceCount))
	b.WriteString(fmt.Sprintf("  With embeddings:   %d\n\n", m.stats.EmbeddedCount))

	b.WriteString("  " + m.styles.ResultTitle.Render("Categories") + "\n")
	for _, c := range sortedCounts(m.stats.Categories) {
		b.WriteString(fmt.Sprintf("    %-28s %d\n", c.name, c.count))
	}
	b.WriteString("\n  " + m.styles.ResultTitle.Render("Age groups") + "\n")
	for _, c := range sortedCounts(m.stats.AgeGroups) {
		b.WriteString(fmt.Sprintf("    %-28s %d\n", c.name, c.count))
	}
	return b.String()
}

type labelCount struct {
	name  string
	count int
}

func sortedCounts(counts map[string]int) []labelCount {
	out := make([]labelCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, labelCount{name, count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

// preview collapses whitespace and truncates to n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
