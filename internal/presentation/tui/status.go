package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Success prints a green check line.
func Success(w io.Writer, format string, args ...any) {
	status(w, "✔", "#22c55e", format, args...)
}

// Failure prints a red cross line.
func Failure(w io.Writer, format string, args ...any) {
	status(w, "✘", "#ef4444", format, args...)
}

// Info prints a system message.
func Info(w io.Writer, format string, args ...any) {
	status(w, ">>>", "#818cf8", format, args...)
}

func status(w io.Writer, mark, color, format string, args ...any) {
	p := termenv.ColorProfile()
	fmt.Fprintf(w, "%s %s\n", termenv.String(mark).Foreground(p.Color(color)).Bold(), fmt.Sprintf(format, args...))
}
