// Package tui renders the `batchmender status --watch` live dashboard: a
// small bubbletea program that polls the gateway's GET /status endpoint on
// a timer and redraws a lipgloss panel.
package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// CycleSnapshot mirrors the JSON body of GET /status.
type CycleSnapshot struct {
	SchedulerRunning bool     `json:"scheduler_running"`
	CycleNumber      int      `json:"cycle_number"`
	StartedAt        string   `json:"started_at,omitempty"`
	DurationSeconds  float64  `json:"duration_seconds,omitempty"`
	JobIDsCreated    []string `json:"job_ids_created,omitempty"`
	ErrorMessage     string   `json:"error_message,omitempty"`
}

// StatusModel is the bubbletea model driving `batchmender status --watch`.
type StatusModel struct {
	statusURL string
	client    *http.Client
	interval  time.Duration

	snapshot CycleSnapshot
	lastPoll time.Time
	lastErr  error
	width    int
	height   int
}

type statusPolledMsg struct {
	snapshot CycleSnapshot
	err      error
}

type tickMsg time.Time

// NewStatusModel builds a StatusModel polling statusURL every interval.
func NewStatusModel(statusURL string, interval time.Duration) StatusModel {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return StatusModel{
		statusURL: statusURL,
		client:    &http.Client{Timeout: 5 * time.Second},
		interval:  interval,
	}
}

func (m StatusModel) Init() tea.Cmd {
	return m.pollCmd()
}

func (m StatusModel) pollCmd() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.fetch()
		return statusPolledMsg{snapshot: snap, err: err}
	}
}

func (m StatusModel) fetch() (CycleSnapshot, error) {
	var snap CycleSnapshot
	resp, err := m.client.Get(m.statusURL)
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return snap, err
	}
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, &snap); err != nil {
		return snap, err
	}
	return snap, nil
}

func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.pollCmd()
		}
	case statusPolledMsg:
		m.lastPoll = time.Now()
		m.lastErr = msg.err
		if msg.err == nil {
			m.snapshot = msg.snapshot
		}
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
	case tickMsg:
		return m, m.pollCmd()
	}
	return m, nil
}

func (m StatusModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("batchmender — scheduler status"))
	b.WriteString("\n\n")

	if m.lastErr != nil {
		b.WriteString(errStyle.Render(fmt.Sprintf("poll failed: %v", m.lastErr)))
		b.WriteString("\n\n")
	}

	running := warnStyle.Render("stopped")
	if m.snapshot.SchedulerRunning {
		running = okStyle.Render("running")
	}

	lines := []string{
		fmt.Sprintf("scheduler:        %s", running),
		fmt.Sprintf("cycle:            %d", m.snapshot.CycleNumber),
		fmt.Sprintf("last started:     %s", orDash(m.snapshot.StartedAt)),
		fmt.Sprintf("last duration:    %.2fs", m.snapshot.DurationSeconds),
		fmt.Sprintf("jobs created:     %d", len(m.snapshot.JobIDsCreated)),
	}
	if m.snapshot.ErrorMessage != "" {
		lines = append(lines, errStyle.Render("last cycle error: "+m.snapshot.ErrorMessage))
	}

	body := panelHeaderStyle.Render("Cycle") + "\n" + strings.Join(lines, "\n")
	w := m.width - 4
	if w < 30 {
		w = 40
	}
	b.WriteString(panelStyle.Width(w).Render(body))
	b.WriteString("\n")
	b.WriteString(statusBarStyle.Width(max(w, 40)).Render(
		dimStyle.Render(fmt.Sprintf("polled %s ago  ·  q quit  ·  r refresh", time.Since(m.lastPoll).Round(time.Second)))))
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
