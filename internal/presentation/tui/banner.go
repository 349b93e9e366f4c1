package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the apptrail banner followed by the version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"                    _             _ _ ", "#34d399"},
		{"   __ _ _ __  _ __ | |_ _ __ __ _(_) |", "#2dd4bf"},
		{"  / _` | '_ \\| '_ \\| __| '__/ _` | | |", "#22d3ee"},
		{" | (_| | |_) | |_) | |_| | | (_| | | |", "#38bdf8"},
		{"  \\__,_| .__/| .__/ \\__|_|  \\__,_|_|_|", "#60a5fa"},
		{"       |_|   |_|                      ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  "+version).Faint())
	fmt.Fprintln(w)
}
