package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Custom help styles - celebration theme
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Gold).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(Coral).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Coral).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(Gold).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(Sky).
			Bold(true)

	helpCommandStyle = lipgloss.NewStyle().
				Foreground(Mint).
				Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(Slate).
				Italic(true)
)

// StyledHelpPrinter creates a custom help printer with Lipgloss styling.
// It describes the selected command, or the application when none is.
func StyledHelpPrinter(options kong.HelpOptions) kong.HelpPrinter {
	return kong.HelpPrinter(func(options kong.HelpOptions, ctx *kong.Context) error {
		node := ctx.Selected()
		if node == nil {
			node = ctx.Model.Node
		}

		var sb strings.Builder

		sb.WriteString(helpTitleStyle.Render(appTitle))
		sb.WriteString("\n")
		desc := appTagline
		if node != ctx.Model.Node && node.Help != "" {
			desc = node.Help
		}
		sb.WriteString(helpDescStyle.Render(desc))
		sb.WriteString("\n")

		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString("\n  ")
		sb.WriteString(usage(ctx.Model.Name, node))
		sb.WriteString("\n")

		if cmds := getCommands(node); len(cmds) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Commands:"))
			sb.WriteString("\n")
			writeColumns(&sb, cmds, helpCommandStyle)
		}

		if args := getArguments(node); len(args) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Arguments:"))
			sb.WriteString("\n")
			writeColumns(&sb, args, helpArgStyle)
		}

		flags := getFlags(node)
		sb.WriteString("\n")
		sb.WriteString(helpSectionStyle.Render("Flags:"))
		sb.WriteString("\n")
		for _, flag := range flags {
			sb.WriteString("  ")
			sb.WriteString(helpFlagStyle.Render(flag.flags))
			if flag.help != "" {
				sb.WriteString("  ")
				sb.WriteString(flag.help)
			}
			if flag.defaultVal != "" {
				sb.WriteString(" ")
				sb.WriteString(helpDefaultStyle.Render("(default: " + flag.defaultVal + ")"))
			}
			sb.WriteString("\n")
		}

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	})
}

type entry struct {
	name string
	help string
}

type flag struct {
	flags      string
	help       string
	defaultVal string
}

func usage(app string, node *kong.Node) string {
	parts := []string{app}
	if node.Type == kong.CommandNode {
		parts = append(parts, node.Path())
	}
	if len(getCommands(node)) > 0 {
		parts = append(parts, "<command>")
	}
	for _, arg := range node.Positional {
		parts = append(parts, arg.Summary())
	}
	parts = append(parts, "[flags]")
	return strings.Join(parts, " ")
}

func writeColumns(sb *strings.Builder, entries []entry, style lipgloss.Style) {
	width := 0
	for _, e := range entries {
		width = max(width, len(e.name))
	}
	for _, e := range entries {
		sb.WriteString("  ")
		sb.WriteString(style.Render(e.name))
		if e.help != "" {
			sb.WriteString(strings.Repeat(" ", width-len(e.name)+2))
			sb.WriteString(e.help)
		}
		sb.WriteString("\n")
	}
}

func getCommands(node *kong.Node) []entry {
	var cmds []entry
	for _, child := range node.Children {
		if child.Hidden || child.Type != kong.CommandNode {
			continue
		}
		cmds = append(cmds, entry{name: child.Name, help: child.Help})
	}
	return cmds
}

func getArguments(node *kong.Node) []entry {
	var args []entry
	for _, arg := range node.Positional {
		args = append(args, entry{name: arg.Summary(), help: arg.Help})
	}
	return args
}

// getFlags lists the flags in scope for node, including those inherited
// from its parents.
func getFlags(node *kong.Node) []flag {
	flags := []flag{{
		flags: "-h, --help",
		help:  "Show context-sensitive help.",
	}}

	for _, group := range node.AllFlags(true) {
		for _, f := range group {
			if f.Name == "help" {
				continue
			}

			flagStr := ""
			if f.Short != 0 {
				flagStr = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
			} else {
				flagStr = fmt.Sprintf("--%s", f.Name)
			}

			if !f.IsBool() && f.PlaceHolder != "" {
				flagStr += "=" + strings.ToUpper(f.PlaceHolder)
			}

			// Only show default if it's a meaningful value
			defaultVal := ""
			if f.HasDefault && !f.IsBool() && f.Default != "" {
				defaultVal = f.Default
			}

			flags = append(flags, flag{
				flags:      flagStr,
				help:       f.Help,
				defaultVal: defaultVal,
			})
		}
	}

	return flags
}
