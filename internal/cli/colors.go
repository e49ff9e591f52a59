package cli

import "github.com/charmbracelet/lipgloss"

// Celebration palette 🎉
// Shared colours for the CLI and TUI
var (
	Gold  = lipgloss.Color("#FFD700") // Headline gold
	Coral = lipgloss.Color("#FF6B6B") // Warm coral
	Sky   = lipgloss.Color("#4DABF7") // Sky blue
	Mint  = lipgloss.Color("#51CF66") // Mint green
	Grape = lipgloss.Color("#CC5DE8") // Purple accent

	// Accent colours
	Slate = lipgloss.Color("#868E96") // Muted text
)
