// Package color provides terminal color output support for lockview.
// It respects the NO_COLOR environment variable (https://no-color.org/).
package color

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
)

var state struct {
	enabled    atomic.Bool
	overridden atomic.Bool
}

// Init decides whether color is used, based on NO_COLOR, TERM=dumb and the
// --no-color flag. Explicit Enable/Disable calls win over Init.
func Init(noColorFlag bool) {
	if state.overridden.Load() {
		return
	}
	enabled := true
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		enabled = false
	}
	if os.Getenv("TERM") == "dumb" {
		enabled = false
	}
	if noColorFlag {
		enabled = false
	}
	state.enabled.Store(enabled)
}

func init() {
	Init(false)
}

// Enabled returns true if color output is enabled.
func Enabled() bool {
	return state.enabled.Load()
}

// Disable turns off color output.
func Disable() {
	state.overridden.Store(true)
	state.enabled.Store(false)
}

// Enable turns on color output.
func Enable() {
	state.overridden.Store(true)
	state.enabled.Store(true)
}

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	headerStyle  = lipgloss.NewStyle().Bold(true)
	codeStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
)

func render(style lipgloss.Style, s string) string {
	if !Enabled() {
		return s
	}
	return style.Render(s)
}

// Error formats an error message in red.
func Error(s string) string { return render(errorStyle, s) }

// Errorf formats an error message with printf-style arguments.
func Errorf(format string, args ...any) string { return Error(fmt.Sprintf(format, args...)) }

// Warning formats a warning message in yellow.
func Warning(s string) string { return render(warningStyle, s) }

// Success formats a success message in green.
func Success(s string) string { return render(successStyle, s) }

// Dim formats secondary information.
func Dim(s string) string { return render(dimStyle, s) }

// Header formats a header in bold.
func Header(s string) string { return render(headerStyle, s) }

// Code formats command strings.
func Code(s string) string { return render(codeStyle, s) }
