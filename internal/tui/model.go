package tui

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"memetrend/internal/domain"
	"memetrend/internal/pipeline"
)

// RecommendPort is the TUI-facing subset of the recommender.
type RecommendPort interface {
	GenerateRecommendations(trends []string, prefs domain.UserPreferences) []string
}

// SaveFunc persists the interests applied in the browser.
type SaveFunc func(interests []string) error

type savedMsg struct {
	interests []string
	err       error
}

const examplesPerTrend = 3

// Model is the Bubble Tea model for browsing a pipeline report.
type Model struct {
	report    *pipeline.Report
	recommend RecommendPort
	save      SaveFunc
	input     textinput.Model
	viewport  viewport.Model
	interests []string
	recs      map[string]string
	status    string
	cursor    int
	ready     bool
}

// New creates a browser over report. Typing comma separated interests and
// pressing Enter recomputes the recommendations.
func New(report *pipeline.Report, recommend RecommendPort, interests []string) Model {
	ti := textinput.New()
	ti.Prompt = "interests> "
	ti.Placeholder = "crypto, memes, AI"
	ti.SetValue(strings.Join(interests, ", "))
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	m := Model{report: report, recommend: recommend, input: ti, viewport: vp, status: "Up/Down to browse trends, Enter to apply interests."}
	m.applyInterests(interests)
	return m
}

// WithSave enables Ctrl+S, which saves the applied interests with fn.
func (m Model) WithSave(fn SaveFunc) Model {
	m.save = fn
	m.status = "Up/Down to browse trends, Enter to apply interests, Ctrl+S to save them."
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around trend and input boxes
		_, rh := trendBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentTrend())
		return m, nil
	case savedMsg:
		if msg.err != nil {
			m.status = "Save failed: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Saved %d interest(s)", len(msg.interests))
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "ctrl+s":
			if m.save == nil {
				m.status = "This profile store is read-only."
				return m, nil
			}
			save, interests := m.save, append([]string(nil), m.interests...)
			m.status = "Saving..."
			return m, func() tea.Msg { return savedMsg{interests: interests, err: save(interests)} }
		case "enter":
			m.applyInterests(splitInterests(m.input.Value()))
			m.status = fmt.Sprintf("%d recommendation(s) for %d interest(s)", len(m.recs), len(m.interests))
			m.viewport.SetContent(m.renderCurrentTrend())
			return m, nil
		case "down":
			if n := len(m.report.Trends); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrentTrend())
				return m, nil
			}
		case "up":
			if n := len(m.report.Trends); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrentTrend())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the layout and the selected trend.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Meme Trends")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary())
	input := inputBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	body := trendBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + body + "\n" + input + "\n" + status
}

func (m *Model) applyInterests(interests []string) {
	m.interests = interests
	prefs := domain.UserPreferences{domain.InterestsKey: interests}
	m.recs = make(map[string]string)
	for _, rec := range m.recommend.GenerateRecommendations(m.report.Trends, prefs) {
		for _, t := range m.report.Trends {
			if strings.HasSuffix(rec, t) {
				m.recs[t] = rec
				break
			}
		}
	}
}

func (m Model) summary() string {
	r := m.report
	s := fmt.Sprintf("run %s  documents=%d  trends=%d  took=%s", shortID(r.RunID), len(r.Documents), len(r.Trends), r.Duration.Round(time.Millisecond))
	if r.Balance != nil {
		s += fmt.Sprintf("  balance=%d lamports", *r.Balance)
	}
	if len(r.Degraded) > 0 {
		s += "  degraded=" + strings.Join(r.Degraded, ",")
	}
	return s
}

func (m Model) renderCurrentTrend() string {
	trends := m.report.Trends
	if len(trends) == 0 {
		return "No trends detected."
	}
	label := trends[m.cursor]
	var b strings.Builder
	fmt.Fprintf(&b, "Trend %d/%d\n%s\n\n", m.cursor+1, len(trends), label)
	if rec, ok := m.recs[label]; ok {
		b.WriteString(recStyle.Render(rec))
	} else {
		b.WriteString(mutedStyle.Render("No matching interest."))
	}
	b.WriteString("\n")

	words := trendTokens(label)
	examples := m.examples(words)
	if len(examples) == 0 {
		return b.String()
	}
	b.WriteString("\nExamples:\n")
	for _, i := range examples {
		line := "- " + highlightWords(m.report.Documents[i], words)
		if i < len(m.report.Predictions) {
			line += mutedStyle.Render(fmt.Sprintf("  p(success)=%.2f", m.report.Predictions[i]))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// examples returns indexes of the documents sharing the most words with the
// trend, best first.
func (m Model) examples(words map[string]struct{}) []int {
	type pair struct {
		idx   int
		score int
	}
	var scored []pair
	for i, d := range m.report.Documents {
		if s := tokenOverlapScore(words, d); s > 0 {
			scored = append(scored, pair{i, s})
		}
	}
	sort.SliceStable(scored, func(a, b int) bool { return scored[a].score > scored[b].score })
	out := make([]int, 0, examplesPerTrend)
	for i := 0; i < len(scored) && i < examplesPerTrend; i++ {
		out = append(out, scored[i].idx)
	}
	return out
}

var (
	trendBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	recStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unicodeWordRe  = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)
)

// trendTokens returns the lower-cased words of a label after "Trend N: ".
func trendTokens(label string) map[string]struct{} {
	if _, rest, ok := strings.Cut(label, ": "); ok {
		label = rest
	}
	return toTokenSet(label)
}

func highlightWords(text string, words map[string]struct{}) string {
	return unicodeWordRe.ReplaceAllStringFunc(text, func(tok string) string {
		if _, ok := words[strings.ToLower(tok)]; ok {
			return highlightStyle.Render(tok)
		}
		return tok
	})
}

func splitInterests(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(words map[string]struct{}, text string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := words[t]; ok {
			score++
		}
	}
	return score
}
