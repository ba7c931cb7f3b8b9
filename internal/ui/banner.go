// Package ui provides styled console output for the relay.
package ui

import (
	"fmt"

	"github.com/fatih/color"
)

// PrintBanner displays the ASCII art startup banner.
func PrintBanner() {
	cyan := color.New(color.FgCyan, color.Bold)
	hiCyan := color.New(color.FgHiCyan)
	magenta := color.New(color.FgMagenta, color.Bold)
	dim := color.New(color.FgHiBlack)

	fmt.Println()
	cyan.Println("╔══════════════════════════════════════════════════════════╗")

	cyan.Print("║  ")
	hiCyan.Print(" ██████╗██╗      █████╗ ██╗   ██╗██████╗ ███████╗")
	dim.Print("        ")
	cyan.Println(" ║")

	cyan.Print("║  ")
	hiCyan.Print("██╔════╝██║     ██╔══██╗██║   ██║██╔══██╗██╔════╝")
	dim.Print("        ")
	cyan.Println(" ║")

	cyan.Print("║  ")
	hiCyan.Print("██║     ██║     ███████║██║   ██║██║  ██║█████╗  ")
	magenta.Print("RELAY")
	dim.Print("   ")
	cyan.Println(" ║")

	cyan.Print("║  ")
	hiCyan.Print("██║     ██║     ██╔══██║██║   ██║██║  ██║██╔══╝  ")
	dim.Print("        ")
	cyan.Println(" ║")

	cyan.Print("║  ")
	hiCyan.Print("╚██████╗███████╗██║  ██║╚██████╔╝██████╔╝███████╗")
	dim.Print("        ")
	cyan.Println(" ║")

	cyan.Print("║  ")
	hiCyan.Print(" ╚═════╝╚══════╝╚═╝  ╚═╝ ╚═════╝ ╚═════╝ ╚══════╝")
	dim.Print("        ")
	cyan.Println(" ║")

	cyan.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// PrintMiniBanner displays a smaller banner for constrained terminals.
func PrintMiniBanner() {
	cyan := color.New(color.FgCyan, color.Bold)
	magenta := color.New(color.FgMagenta, color.Bold)

	fmt.Println()
	cyan.Print("╔════════════════════════════╗")
	fmt.Println()
	cyan.Print("║  ")
	magenta.Print("CLAUDE RELAY")
	cyan.Print("              ║")
	fmt.Println()
	cyan.Print("╚════════════════════════════╝")
	fmt.Println()
	fmt.Println()
}
