package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/domain"
)

// SessionPort is the TUI-facing subset of the session.
type SessionPort interface {
	Ingested() bool
	Ask(ctx context.Context, question string) (*domain.Answer, error)
	Reset()
	History() []domain.Turn
}

// Reloader re-ingests the session's documents after a reset.
type Reloader func(ctx context.Context) (*domain.IngestReport, error)

// Option configures a Model.
type Option func(*Model)

// WithReload makes ctrl+r re-process the documents once the session is reset.
func WithReload(r Reloader) Option {
	return func(m *Model) { m.reload = r }
}

// Summary is the one-line description of an ingest shown under the title.
func Summary(r *domain.IngestReport) string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%d files, %d segments. %s", len(r.Processed), r.Segments, r.Summary)
}

type reloadMsg struct {
	report *domain.IngestReport
	err    error
}

type answerMsg struct {
	question string
	answer   *domain.Answer
	err      error
}

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	ctx         context.Context
	session     SessionPort
	reload      Reloader
	input       textinput.Model
	viewport    viewport.Model
	spinner     spinner.Model
	summary     string
	status      string
	pending     string
	asking      bool
	reloading   bool
	showSources bool
	sources     []domain.SearchResult
	ready       bool
}

// New creates the chat model. summary is shown under the title.
func New(ctx context.Context, session SessionPort, summary string, opts ...Option) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your documents"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	status := "Documents processed. Ask away."
	if !session.Ingested() {
		status = "No documents loaded."
	}
	m := Model{
		ctx:      ctx,
		session:  session,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
		status:   status,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) busy() bool { return m.asking || m.reloading }

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header + summary, status, input, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-ch)
		m.refresh()
		return m, nil

	case answerMsg:
		m.asking = false
		m.pending = ""
		switch {
		case errors.Is(msg.err, domain.ErrNoIndex) && m.reload != nil:
			m.status = "No documents ingested. Press ctrl+r to process them again."
		case msg.err != nil:
			m.status = describe(msg.err)
		default:
			m.sources = msg.answer.Sources
			m.status = fmt.Sprintf("Answered from %d passages. ctrl+s toggles sources.", len(m.sources))
		}
		m.refresh()
		return m, nil

	case reloadMsg:
		m.reloading = false
		if msg.err != nil {
			m.status = "Processing the documents again failed: " + msg.err.Error()
		} else {
			m.summary = Summary(msg.report)
			m.status = "Chat reset. Documents processed again."
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy() {
				return m, nil
			}
			m.input.Reset()
			m.asking = true
			m.pending = q
			m.status = "Thinking..."
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, ask(m.ctx, m.session, q))
		case "ctrl+r":
			if m.busy() {
				return m, nil
			}
			m.session.Reset()
			m.sources = nil
			m.summary = ""
			if m.reload == nil {
				m.status = "Chat reset. Documents were discarded."
				m.refresh()
				return m, nil
			}
			m.reloading = true
			m.status = "Chat reset. Processing the documents again..."
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, reload(m.ctx, m.reload))
		case "ctrl+s":
			m.showSources = !m.showSources
			m.refresh()
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func ask(ctx context.Context, s SessionPort, q string) tea.Cmd {
	return func() tea.Msg {
		a, err := s.Ask(ctx, q)
		return answerMsg{question: q, answer: a, err: err}
	}
}

func reload(ctx context.Context, r Reloader) tea.Cmd {
	return func() tea.Msg {
		report, err := r(ctx)
		return reloadMsg{report: report, err: err}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("docchat")
	summary := summaryStyle.Render(firstLine(m.summary))
	chat := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy() {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + summary + "\n" + chat + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

func (m Model) renderConversation() string {
	width := max(20, m.viewport.Width-4)
	var b strings.Builder
	history := m.session.History()
	if len(history) == 0 && m.pending == "" {
		b.WriteString(hintStyle.Render("enter: ask  ctrl+s: sources  ctrl+r: reset  ctrl+c: quit"))
	}
	for _, t := range history {
		b.WriteString(bubble(t.Role, t.Text, width))
		b.WriteString("\n")
	}
	if m.pending != "" {
		b.WriteString(bubble(domain.RoleUser, m.pending, width))
		b.WriteString("\n")
	}
	if m.showSources && len(m.sources) > 0 {
		question := lastQuestion(history)
		for i, s := range m.sources {
			title := fmt.Sprintf("Source %d/%d  segment=%d  score=%.3f", i+1, len(m.sources), s.Segment.Index, s.Score)
			b.WriteString(sourceStyle.Width(width).Render(title + "\n" + highlightBestSentence(s.Segment.Text, question)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func bubble(role domain.Role, text string, width int) string {
	w := max(10, width*3/4)
	if role == domain.RoleUser {
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, userStyle.Width(w).Render(text))
	}
	return assistantStyle.Width(w).Render(text)
}

func lastQuestion(history []domain.Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleUser {
			return history[i].Text
		}
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// describe turns session errors into status lines.
func describe(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoIndex):
		return "No documents ingested. Restart docchat with files to chat about."
	case errors.Is(err, domain.ErrRetrieval):
		return "Retrieval failed: " + err.Error()
	case errors.Is(err, domain.ErrGeneration):
		return "Generating the answer failed: " + err.Error()
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	default:
		return "Error: " + err.Error()
	}
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	summaryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("12")).Padding(0, 1)
	assistantStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("10")).Padding(0, 1)
	sourceStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
