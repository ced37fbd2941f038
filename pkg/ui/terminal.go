package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// ASCII logo for the application
const ASCIILogo = `
  ██╗ ██████╗ ████████╗ █████╗ ██╗██╗
  ██║██╔════╝ ╚══██╔══╝██╔══██╗██║██║
  ██║██║  ███╗   ██║   ███████║██║██║
  ██║██║   ██║   ██║   ██╔══██║██║██║
  ██║╚██████╔╝   ██║   ██║  ██║██║███████╗
  ╚═╝ ╚═════╝    ╚═╝   ╚═╝  ╚═╝╚═╝╚══════╝
`

var (
	accent   = lipgloss.Color("#00D7FF")
	warn     = lipgloss.Color("#FFD700")
	danger   = lipgloss.Color("#FF5F5F")
	positive = lipgloss.Color("#5FFF87")
	subtle   = lipgloss.Color("#8A8A8A")
	magenta  = lipgloss.Color("#FF5FD7")

	logoStyle      = lipgloss.NewStyle().Foreground(accent).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(accent)
	valueStyle     = lipgloss.NewStyle().Foreground(warn)
	errorStyle     = lipgloss.NewStyle().Foreground(danger)
	successStyle   = lipgloss.NewStyle().Foreground(positive)
	dimStyle       = lipgloss.NewStyle().Foreground(subtle)
	highlightStyle = lipgloss.NewStyle().Foreground(magenta).Bold(true)
)

// Color functions for terminal output
var (
	Cyan    = render(labelStyle)
	Yellow  = render(valueStyle)
	Red     = render(errorStyle)
	Green   = render(successStyle)
	Magenta = render(highlightStyle)
	Dim     = render(dimStyle)
)

func render(style lipgloss.Style) func(string) string {
	return func(text string) string {
		return style.Render(text)
	}
}

// Output is where the Print helpers write.
var Output io.Writer = os.Stdout

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	fmt.Fprintln(Output, logoStyle.Render(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg += ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(Output, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Output, Green(msg))
}

// PrintInfo prints a label and value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(Output, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg += ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(Output, Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Output, Magenta(msg))
}
