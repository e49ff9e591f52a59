package ui

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/linuxmatters/greetgif/internal/cli"
)

// PreviewProgress reports one finished template of a preview batch
type PreviewProgress struct {
	Done      int
	Total     int
	ID        string
	Err       error
	Size      int64         // Preview GIF size in bytes
	Elapsed   time.Duration // Time since the batch started
	Thumbnail image.Image   // Final frame for the terminal preview (optional)
}

// PreviewsComplete signals the end of the batch
type PreviewsComplete struct {
	OutputDir  string
	Written    int
	Failed     int
	TotalBytes int64
	TotalTime  time.Duration
}

// recentRows is how many finished templates the progress view lists
const recentRows = 6

type quitTimerMsg struct{}

// previewsModel implements the Bubbletea model for a preview batch
type previewsModel struct {
	progress        progress.Model
	results         []PreviewProgress
	complete        *PreviewsComplete
	startTime       time.Time
	width           int
	minDisplayTime  time.Duration // Minimum time to show UI
	completionDelay time.Duration // Time to show completion screen
	cachedPreview   string
	noPreview       bool
}

// NewPreviewsModel creates the batch progress UI
func NewPreviewsModel(noPreview bool) tea.Model {
	p := progress.New(
		progress.WithGradient(string(cli.Coral), string(cli.Gold)),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &previewsModel{
		progress:        p,
		startTime:       time.Now(),
		minDisplayTime:  500 * time.Millisecond,
		completionDelay: 2 * time.Second,
		noPreview:       noPreview,
	}
}

func (m *previewsModel) Init() tea.Cmd {
	return nil
}

func (m *previewsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(10, min(msg.Width-30, 50))
		return m, nil

	case PreviewProgress:
		m.results = append(m.results, msg)
		if !m.noPreview && msg.Thumbnail != nil {
			m.cachedPreview = RenderPreview(DownsampleFrame(msg.Thumbnail, DefaultPreviewConfig()))
		}
		return m, nil

	case PreviewsComplete:
		m.complete = &msg

		delay := m.completionDelay
		if elapsed := time.Since(m.startTime); elapsed < m.minDisplayTime {
			delay += m.minDisplayTime - elapsed
		}
		return m, tea.Tick(delay, func(time.Time) tea.Msg {
			return quitTimerMsg{}
		})

	case quitTimerMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		// Any key skips the completion screen
		if m.complete != nil || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *previewsModel) View() string {
	if m.complete != nil {
		return m.renderComplete()
	}
	return m.renderProgress()
}

func (m *previewsModel) last() (PreviewProgress, bool) {
	if len(m.results) == 0 {
		return PreviewProgress{}, false
	}
	return m.results[len(m.results)-1], true
}

func (m *previewsModel) renderProgress() string {
	var s strings.Builder

	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(cli.Coral).Render("GreetGIF 🎉"))
	s.WriteString("\n")
	s.WriteString(lipgloss.NewStyle().Faint(true).Render("Rendering template previews"))
	s.WriteString("\n\n")

	last, ok := m.last()
	if !ok {
		s.WriteString(lipgloss.NewStyle().Faint(true).Italic(true).Render("Loading templates…"))
		return m.frame(s.String(), cli.Coral)
	}

	ratio := float64(last.Done) / float64(max(last.Total, 1))
	s.WriteString("Progress: ")
	s.WriteString(m.progress.ViewAs(ratio))
	s.WriteString(fmt.Sprintf("  %d%%", int(ratio*100)))
	s.WriteString("\n\n")

	elapsed := last.Elapsed
	if elapsed == 0 {
		elapsed = time.Since(m.startTime)
	}
	var estimated, eta time.Duration
	if ratio > 0 {
		estimated = time.Duration(float64(elapsed) / ratio)
		eta = estimated - elapsed
	}
	s.WriteString(lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf("Time: %s / %s  │  ETA: %s",
		formatDuration(elapsed), formatDuration(estimated), formatDuration(eta))))
	s.WriteString("\n")
	s.WriteString(lipgloss.NewStyle().Faint(true).Italic(true).Render(
		fmt.Sprintf("Template %d of %d", last.Done, last.Total)))
	s.WriteString("\n\n")

	from := max(0, len(m.results)-recentRows)
	for _, r := range m.results[from:] {
		s.WriteString(resultLine(r))
		s.WriteString("\n")
	}

	if m.cachedPreview != "" {
		s.WriteString("\n")
		s.WriteString(m.cachedPreview)
	}

	return m.frame(s.String(), cli.Coral)
}

func (m *previewsModel) renderComplete() string {
	var s strings.Builder
	c := m.complete

	title := "✓ Previews Complete!"
	colour := cli.Mint
	if c.Failed > 0 {
		title = fmt.Sprintf("Previews finished with %d failure(s)", c.Failed)
		colour = cli.Gold
	}
	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(colour).Render(title))
	s.WriteString("\n\n")

	s.WriteString(fmt.Sprintf("Output:    %s\n", c.OutputDir))
	s.WriteString(fmt.Sprintf("Templates: %d written, %d failed\n", c.Written, c.Failed))
	s.WriteString(fmt.Sprintf("Size:      %s\n", cli.FormatBytes(c.TotalBytes)))
	s.WriteString(fmt.Sprintf("Time:      %s\n", formatDuration(c.TotalTime)))

	var largest int64
	for _, r := range m.results {
		largest = max(largest, r.Size)
	}
	if largest > 0 {
		s.WriteString("\n")
		s.WriteString(lipgloss.NewStyle().Faint(true).Render("Preview sizes:"))
		s.WriteString("\n")
		for _, r := range m.results {
			if r.Err != nil {
				continue
			}
			s.WriteString(fmt.Sprintf("  %-20s%-9s %s\n", r.ID, cli.FormatBytes(r.Size),
				makeSparkline(float64(r.Size)/float64(largest), 24)))
		}
	}

	if c.Failed > 0 {
		s.WriteString("\n")
		s.WriteString(lipgloss.NewStyle().Faint(true).Render("Failures:"))
		s.WriteString("\n")
		for _, r := range m.results {
			if r.Err != nil {
				s.WriteString("  " + resultLine(r) + "\n")
			}
		}
	}

	return m.frame(strings.TrimRight(s.String(), "\n"), colour) + "\n"
}

func (m *previewsModel) frame(body string, colour lipgloss.Color) string {
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colour).
		Padding(1, 2).
		Render(body)
}

func resultLine(r PreviewProgress) string {
	if r.Err != nil {
		return lipgloss.NewStyle().Foreground(cli.Coral).Render("✗ "+r.ID) + "  " + r.Err.Error()
	}
	return lipgloss.NewStyle().Foreground(cli.Mint).Render("✓ "+r.ID) + "  " + cli.FormatBytes(r.Size)
}

// Helper functions

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func makeSparkline(ratio float64, width int) string {
	filled := min(int(ratio*float64(width)), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
