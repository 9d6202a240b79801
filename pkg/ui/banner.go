package ui

import "strings"

const (
	reset       = "\033[0m"
	bold        = "\033[1m"
	honeyOrange = "\033[38;5;214m"
	mint        = "\033[38;5;121m"
	seafoam     = "\033[38;5;49m"
	cobalt      = "\033[38;5;33m"
	ember       = "\033[38;5;208m"
)

// Banner renders a colored pstat wordmark.
func Banner() string {
	var b strings.Builder

	pstatLetters := [][]string{
		{"██████╗  ", "██╔══██╗ ", "██████╔╝ ", "██╔═══╝  ", "██║      ", "╚═╝      "},
		{" ██████╗ ", "██╔════╝ ", "╚█████╗  ", " ╚═══██╗ ", "██████╔╝ ", "╚═════╝  "},
		{"████████╗", "╚══██╔══╝", "   ██║   ", "   ██║   ", "   ██║   ", "   ╚═╝   "},
		{" █████╗  ", "██╔══██╗ ", "███████║ ", "██╔══██║ ", "██║  ██║ ", "╚═╝  ╚═╝ "},
		{"████████╗", "╚══██╔══╝", "   ██║   ", "   ██║   ", "   ██║   ", "   ╚═╝   "},
	}
	pstatGradient := []string{cobalt, seafoam, mint, honeyOrange, ember}
	pstatRows := make([]string, len(pstatLetters[0]))
	for i, letter := range pstatLetters {
		color := pstatGradient[i%len(pstatGradient)]
		for row := 0; row < len(letter); row++ {
			pstatRows[row] += color + letter[row] + "  "
		}
	}
	for _, line := range pstatRows {
		b.WriteString(bold + line + reset + "\n")
	}

	b.WriteString("\n")
	b.WriteString(bold + cobalt + "pstat" + reset + "  •  process table lens\n\n")

	return b.String()
}
