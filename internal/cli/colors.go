// Package cli provides colored terminal output for the packager commands.
package cli

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// ANSI color codes
const (
	reset  = "\033[0m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
)

// ColorsEnabled controls whether colored output is enabled.
// Set to false to disable colors (e.g., via --no-color flag).
var ColorsEnabled = true

// init checks terminal capabilities and the NO_COLOR environment variable.
func init() {
	// Respect NO_COLOR environment variable (https://no-color.org/)
	if os.Getenv("NO_COLOR") != "" {
		ColorsEnabled = false
		return
	}

	// Modern Windows 10+ consoles support ANSI escapes; when stdout is not
	// a terminal (redirected output, older consoles) colors stay off.
	if !isTerminal() {
		ColorsEnabled = false
	}
}

// isTerminal checks if stdout is connected to a terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// DisableColors turns off colored output.
func DisableColors() {
	ColorsEnabled = false
}

// colorize wraps text in ANSI color codes if colors are enabled.
func colorize(color, text string) string {
	if !ColorsEnabled {
		return text
	}
	return color + text + reset
}

// Error formats text in red (for errors, failures).
func Error(text string) string {
	return colorize(red, text)
}

// Success formats text in green (for success messages, completions).
func Success(text string) string {
	return colorize(green, text)
}

// Warning formats text in yellow (for warnings, advisories).
func Warning(text string) string {
	return colorize(yellow, text)
}

// Info formats text in cyan (for informational messages, progress).
func Info(text string) string {
	return colorize(cyan, text)
}

// Bold formats text in bold (for emphasis, section headers).
func Bold(text string) string {
	if !ColorsEnabled {
		return text
	}
	return bold + text + reset
}

// Filename formats a filename/path in cyan.
func Filename(text string) string {
	return colorize(cyan, text)
}

// Successf prints a green plus-marked status line to stdout.
func Successf(format string, args ...interface{}) {
	fmt.Println(Success("+ " + fmt.Sprintf(format, args...)))
}

// Errorf prints a red x-marked status line to stderr.
func Errorf(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, Error("x "+fmt.Sprintf(format, args...)))
}

// Warningf prints a yellow bang-marked status line to stdout.
func Warningf(format string, args ...interface{}) {
	fmt.Println(Warning("! " + fmt.Sprintf(format, args...)))
}

// Infof prints a cyan star-marked status line to stdout.
func Infof(format string, args ...interface{}) {
	fmt.Println(Info("* " + fmt.Sprintf(format, args...)))
}
