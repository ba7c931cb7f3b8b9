// Package ui provides styled console output for the relay.
package ui

import (
	"fmt"
	"time"

	"github.com/fatih/color"
)

var (
	successBadge = color.New(color.BgGreen, color.FgBlack, color.Bold)
	warningBadge = color.New(color.FgYellow, color.Bold)
	errorBadge   = color.New(color.BgRed, color.FgWhite, color.Bold)
	infoBadge    = color.New(color.FgCyan, color.Bold)

	successText = color.New(color.FgGreen, color.Bold)
	warningText = color.New(color.FgYellow)
	errorText   = color.New(color.FgRed)
	infoText    = color.New(color.FgCyan)
	mutedText   = color.New(color.FgHiBlack)
	accentText  = color.New(color.FgMagenta, color.Bold)

	methodPOST = color.New(color.BgHiMagenta, color.FgBlack, color.Bold)
	methodGET  = color.New(color.BgHiCyan, color.FgBlack, color.Bold)
)

// PrintRelayInfo logs general relay information.
// Format: [RELAY] message
func PrintRelayInfo(msg string) {
	infoBadge.Print("[RELAY]")
	fmt.Print(" ")
	infoText.Println(msg)
}

// PrintKeyRetired logs when an API key is taken out of rotation.
// Format: [KEY RETIRED] key (reason)
func PrintKeyRetired(key, reason string) {
	errorBadge.Print(" KEY RETIRED ")
	fmt.Print(" ")
	errorText.Print(maskKeyShort(key))
	mutedText.Printf(" (%s)\n", reason)
}

// PrintTrimmed logs a context overflow retry.
// Format: [TRIMMED] dropped oldest turn, N left
func PrintTrimmed(turnsLeft int) {
	warningBadge.Print("[TRIMMED]")
	warningText.Print(" dropped oldest turn")
	mutedText.Printf(", %d left\n", turnsLeft)
}

// PrintStartupInfo prints styled server startup information.
func PrintStartupInfo(host string, port int, model string, activeKeys int, modes []string) {
	fmt.Println()
	infoBadge.Print("[RELAY]")
	fmt.Print(" Server starting on ")
	accentText.Printf("http://%s:%d\n", host, port)

	infoBadge.Print("[RELAY]")
	fmt.Print(" Model: ")
	accentText.Println(model)

	infoBadge.Print("[RELAY]")
	fmt.Print(" Active keys: ")
	if activeKeys > 0 {
		successText.Printf("%d", activeKeys)
	} else {
		errorText.Print("0")
	}
	fmt.Print(" | Modes: ")
	for i, mode := range modes {
		if i > 0 {
			mutedText.Print(", ")
		}
		infoText.Print(mode)
	}
	fmt.Println()

	fmt.Println()
	printEndpoints()
}

// printEndpoints prints the available API endpoints.
func printEndpoints() {
	mutedText.Println("  ┌──────────────────────────────────────────────────────┐")

	mutedText.Print("  │ ")
	methodPOST.Print(" POST ")
	fmt.Print(" /v1/chat        ")
	mutedText.Print("  Blocking completion           ")
	mutedText.Println(" │")

	mutedText.Print("  │ ")
	methodPOST.Print(" POST ")
	fmt.Print(" /v1/chat/stream ")
	mutedText.Print("  Streamed completion (SSE)     ")
	mutedText.Println(" │")

	mutedText.Print("  │ ")
	methodGET.Print(" GET  ")
	fmt.Print(" /v1/modes       ")
	mutedText.Print("  List configured chat modes    ")
	mutedText.Println(" │")

	mutedText.Print("  │ ")
	methodGET.Print(" GET  ")
	fmt.Print(" /health         ")
	mutedText.Print("  Health check                  ")
	mutedText.Println(" │")

	mutedText.Println("  └──────────────────────────────────────────────────────┘")
	fmt.Println()
}

// PrintShutdown prints a styled shutdown message.
func PrintShutdown() {
	fmt.Println()
	warningBadge.Print("[SHUTDOWN]")
	warningText.Println(" Graceful shutdown initiated...")
}

// PrintGoodbye prints a styled goodbye message.
func PrintGoodbye() {
	successBadge.Print(" OK ")
	fmt.Print(" ")
	successText.Println("Server stopped. Goodbye!")
}

// maskKeyShort returns a short masked version of an API key.
// Format: xxxx...xxxx
func maskKeyShort(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// PrintUptime prints how long the server ran, on shutdown.
func PrintUptime(start time.Time) {
	mutedText.Printf("  uptime: %s\n", time.Since(start).Round(time.Second))
}
