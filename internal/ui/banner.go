// Package ui provides the ASCII banner for the relay CLI.
package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// banner is the ASCII art logo.
const banner = `
  ██████╗ ███████╗██╗      █████╗ ██╗   ██╗
  ██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝
  ██████╔╝█████╗  ██║     ███████║ ╚████╔╝
  ██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝
  ██║  ██║███████╗███████╗██║  ██║   ██║
  ╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝`

// tagline is the product tagline.
const tagline = "Remote commands into a shared terminal"

// PrintBanner prints the relay banner with version info. Skipped in
// quiet mode and when stdout is not a terminal.
//
// Parameters:
//   - version: The CLI version string to display
func PrintBanner(version string) {
	if quietMode || !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}

	styledBanner := lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true).
		Render(banner)

	fmt.Println(styledBanner)
	fmt.Println()

	taglineStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		PaddingLeft(2)
	fmt.Println(taglineStyle.Render(tagline))

	versionStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		PaddingLeft(2)
	fmt.Println(versionStyle.Render("v" + version))
	fmt.Println()
}
