// Package obslog is the pool's logging and stats-formatting surface: a
// package-level *log.Logger writing to os.Stderr by default, swappable via
// SetOutput for callers that want to redirect it (tests, daemons writing
// to a file).
package obslog

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"slabpool/slab"
)

var logger = log.New(os.Stderr, "slabpool: ", log.LstdFlags)

// SetOutput redirects the package logger's destination.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Printf logs a formatted line through the package logger.
func Printf(format string, args ...any) {
	logger.Printf(format, args...)
}

// Println logs its arguments, space-separated, through the package
// logger.
func Println(args ...any) {
	logger.Println(args...)
}

// FormatStats renders a titled stats block in the same fixed-width,
// dashed-rule layout the reference implementation's printStats produces.
func FormatStats(title string, stats slab.Stats) string {
	var b strings.Builder
	rule := strings.Repeat("-", 50)
	fmt.Fprintf(&b, "\n%s\n", rule)
	fmt.Fprintf(&b, "%s:\n", title)
	fmt.Fprintf(&b, "  Allocate Count: %d\n", stats.AllocCount)
	fmt.Fprintf(&b, "  Deallocate Count: %d\n", stats.DeallocCount)
	fmt.Fprintf(&b, "  Used Memory: %d B\n", stats.UsedBytes)
	fmt.Fprintf(&b, "  Free Memory: %d B\n", stats.FreeBytes)
	fmt.Fprintf(&b, "  Total Allocated: %d B\n", stats.HostBytes)
	fmt.Fprintf(&b, "%s\n", rule)
	return b.String()
}

// PrintStats logs a titled stats block via the package logger.
func PrintStats(title string, stats slab.Stats) {
	logger.Print(FormatStats(title, stats))
}
