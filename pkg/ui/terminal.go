package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

const (
	ansiCyan    = "\033[36m"
	ansiYellow  = "\033[33m"
	ansiRed     = "\033[31m"
	ansiGreen   = "\033[32m"
	ansiMagenta = "\033[35m"
	ansiDim     = "\033[2m"
	ansiReset   = "\033[0m"
)

var (
	mu        sync.Mutex
	out       io.Writer = os.Stdout
	errOut    io.Writer = os.Stderr
	colors              = detectColor(os.Stdout)
	quietMode bool
)

// detectColor enables colors only for a terminal and only when NO_COLOR is unset
func detectColor(f *os.File) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// SetOutput redirects normal and error output
func SetOutput(stdout, stderr io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out, errOut = stdout, stderr
}

// SetColorEnabled forces colors on or off
func SetColorEnabled(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	colors = enabled
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(quiet bool) {
	mu.Lock()
	defer mu.Unlock()
	quietMode = quiet
}

func paint(code, text string) string {
	mu.Lock()
	enabled := colors
	mu.Unlock()
	if !enabled {
		return text
	}
	return code + text + ansiReset
}

// Color functions for terminal output
func Cyan(s string) string    { return paint(ansiCyan, s) }
func Yellow(s string) string  { return paint(ansiYellow, s) }
func Red(s string) string     { return paint(ansiRed, s) }
func Green(s string) string   { return paint(ansiGreen, s) }
func Magenta(s string) string { return paint(ansiMagenta, s) }
func Dim(s string) string     { return paint(ansiDim, s) }

func writer(isErr bool) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	if isErr {
		return errOut
	}
	if quietMode {
		return io.Discard
	}
	return out
}

// Println writes a plain line to standard output
func Println(a ...interface{}) {
	fmt.Fprintln(writer(false), a...)
}

// PrintError prints an error message in red to standard error
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(writer(true), Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(writer(false), Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	fmt.Fprintf(writer(false), "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(writer(false), Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(writer(false), Magenta(msg))
}
