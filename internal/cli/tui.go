package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Iwaschkin/maptoposter/pkg/errors"
	"github.com/Iwaschkin/maptoposter/pkg/pipeline"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// BatchModel - Live batch progress
// =============================================================================

type jobStatus int

const (
	jobPending jobStatus = iota
	jobRunning
	jobDone
	jobFailed
)

type jobRow struct {
	job      pipeline.Job
	status   jobStatus
	stage    pipeline.Stage
	took     time.Duration
	err      error
	cacheHit bool
}

type (
	jobStartedMsg struct{ job pipeline.Job }
	jobStageMsg   struct {
		job   pipeline.Job
		stage pipeline.Stage
	}
	jobDoneMsg struct {
		job    pipeline.Job
		result *pipeline.Result
		err    error
		took   time.Duration
	}
	batchDoneMsg struct{}
	tickMsg      struct{}
)

// BatchModel is the bubbletea model showing one row per batch job.
type BatchModel struct {
	Rows     []jobRow
	Height   int
	Offset   int
	Finished bool
	Quitting bool

	frame  int
	cancel func()
}

// newBatchModel creates a model for jobs. cancel is called when the user
// quits before the batch finishes.
func newBatchModel(jobs []pipeline.Job, cancel func()) BatchModel {
	rows := make([]jobRow, len(jobs))
	for i, j := range jobs {
		rows[i] = jobRow{job: j}
	}
	return BatchModel{Rows: rows, Height: 15, cancel: cancel}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m BatchModel) Init() tea.Cmd {
	return tick()
}

func (m BatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	case tickMsg:
		m.frame++
		return m, tick()
	case jobStartedMsg:
		if i := m.find(msg.job, jobPending); i >= 0 {
			m.Rows[i].status = jobRunning
			m.follow(i)
		}
	case jobStageMsg:
		if i := m.find(msg.job, jobRunning); i >= 0 {
			m.Rows[i].stage = msg.stage
		}
	case jobDoneMsg:
		if i := m.find(msg.job, jobRunning); i >= 0 {
			r := &m.Rows[i]
			r.took, r.err = msg.took, msg.err
			r.status = jobDone
			if msg.err != nil {
				r.status = jobFailed
			} else if msg.result != nil {
				r.cacheHit = msg.result.CacheHit
			}
		}
	case batchDoneMsg:
		m.Finished = true
		return m, tea.Quit
	}
	return m, nil
}

// find returns the first row for job in the given status. Jobs are matched by
// their display string; duplicate lines in a batch file resolve in order.
func (m BatchModel) find(job pipeline.Job, status jobStatus) int {
	key := job.String()
	for i, r := range m.Rows {
		if r.status == status && r.job.String() == key {
			return i
		}
	}
	return -1
}

// follow scrolls so row i is visible.
func (m *BatchModel) follow(i int) {
	if i >= m.Offset+m.Height {
		m.Offset = i - m.Height + 1
	}
}

// Counts returns the number of finished and failed jobs.
func (m BatchModel) Counts() (finished, failed int) {
	for _, r := range m.Rows {
		switch r.status {
		case jobDone:
			finished++
		case jobFailed:
			finished++
			failed++
		}
	}
	return finished, failed
}

func (m BatchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(fmt.Sprintf("Rendering %d posters", len(m.Rows))))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("q cancel"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Rows))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.Rows[i]
		rows = append(rows, []string{m.icon(r), r.job.String(), rowStatus(r), formatTook(r)})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Poster", "Status", "Time").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			idx := m.Offset + row
			if idx >= len(m.Rows) {
				return lipgloss.NewStyle()
			}
			switch m.Rows[idx].status {
			case jobRunning:
				return lipgloss.NewStyle().Foreground(colorTeal).Bold(col == 1)
			case jobDone:
				return lipgloss.NewStyle().Foreground(colorGreen)
			case jobFailed:
				return lipgloss.NewStyle().Foreground(colorRed)
			}
			return lipgloss.NewStyle().Foreground(colorDim)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	finished, failed := m.Counts()
	footer := fmt.Sprintf("  [%d/%d]", finished, len(m.Rows))
	if failed > 0 {
		footer += fmt.Sprintf("  %d failed", failed)
	}
	b.WriteString(listDimStyle.Render(footer))
	b.WriteString("\n")

	return b.String()
}

func (m BatchModel) icon(r jobRow) string {
	switch r.status {
	case jobRunning:
		return spinnerFrames[m.frame%len(spinnerFrames)]
	case jobDone:
		return "✓"
	case jobFailed:
		return "✗"
	}
	return "·"
}

func rowStatus(r jobRow) string {
	switch r.status {
	case jobRunning:
		if r.stage == "" {
			return "locating"
		}
		return strings.ReplaceAll(string(r.stage), "_", " ")
	case jobDone:
		if r.cacheHit {
			return "done (cached)"
		}
		return "done"
	case jobFailed:
		if code := errors.GetCode(r.err); code != "" {
			return string(code)
		}
		return "failed"
	}
	return "queued"
}

func formatTook(r jobRow) string {
	if r.status != jobDone && r.status != jobFailed {
		return ""
	}
	if r.took < time.Second {
		return r.took.Round(time.Millisecond).String()
	}
	return r.took.Round(100 * time.Millisecond).String()
}
